package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rxtech-lab/argo-trader/internal/journal"
	"github.com/rxtech-lab/argo-trader/internal/types"
)

// notifiedEvents are forwarded to the operator. Partial fills, cancels,
// expiries and skips only go to the journal.
var notifiedEvents = map[types.EventType]bool{
	types.EventSubmit:    true,
	types.EventFill:      true,
	types.EventReject:    true,
	types.EventStateLost: true,
}

// Journal forwards selected journal events to a Notifier.
type Journal struct {
	notifier Notifier
}

// NewJournal creates a journal that notifies on submits, fills, rejects and
// lost order state.
func NewJournal(n Notifier) *Journal {
	return &Journal{notifier: n}
}

// Write implements journal.Journal. It never fails.
func (j *Journal) Write(event types.JournalEvent) error {
	if !notifiedEvents[event.Event] {
		return nil
	}

	j.notifier.Send(context.Background(), FormatEvent(event), 0)

	return nil
}

// Close implements journal.Journal.
func (j *Journal) Close() error {
	return nil
}

// FormatEvent renders an event as a single line, e.g.
// "FILL BUY SBER 1 lot @ 250.5 (filled)".
func FormatEvent(event types.JournalEvent) string {
	name := event.Ticker
	if name == "" {
		name = event.InstrumentID
	}

	parts := []string{string(event.Event)}
	if event.Side != "" {
		parts = append(parts, string(event.Side))
	}

	parts = append(parts, name)

	if event.Lots.IsSome() {
		unit := "lots"
		if event.Lots.Unwrap() == 1 {
			unit = "lot"
		}

		parts = append(parts, fmt.Sprintf("%d %s", event.Lots.Unwrap(), unit))
	}

	if event.Price.IsSome() {
		parts = append(parts, "@ "+event.Price.Unwrap().String())
	}

	if event.Reason != "" {
		parts = append(parts, "("+event.Reason+")")
	}

	return strings.Join(parts, " ")
}

var _ journal.Journal = (*Journal)(nil)

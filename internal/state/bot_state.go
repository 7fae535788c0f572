package state

import (
	"sort"

	"github.com/shopspring/decimal"
)

// BotState is the process-wide account belief.
type BotState struct {
	instruments map[string]*InstrumentState

	TradesToday    int
	DayRealizedPnL decimal.Decimal
	CurrentDayKey  string
}

// NewBotState creates an empty BotState.
func NewBotState() *BotState {
	return &BotState{
		instruments:    make(map[string]*InstrumentState),
		TradesToday:    0,
		DayRealizedPnL: decimal.Zero,
		CurrentDayKey:  "",
	}
}

// Instrument returns the state of id, creating a flat one on first use.
func (b *BotState) Instrument(id string) *InstrumentState {
	st, ok := b.instruments[id]
	if !ok {
		st = NewInstrumentState()
		b.instruments[id] = st
	}

	return st
}

// Lookup returns the state of id without creating it.
func (b *BotState) Lookup(id string) (*InstrumentState, bool) {
	st, ok := b.instruments[id]

	return st, ok
}

// InstrumentIDs returns the tracked ids in a stable order.
func (b *BotState) InstrumentIDs() []string {
	ids := make([]string, 0, len(b.instruments))
	for id := range b.instruments {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// OpenPositions counts instruments holding lots.
func (b *BotState) OpenPositions() int {
	n := 0

	for _, st := range b.instruments {
		if st.InPosition() {
			n++
		}
	}

	return n
}

// PendingBuys counts flat instruments with a tracked order.
func (b *BotState) PendingBuys() int {
	n := 0

	for _, st := range b.instruments {
		if st.HasPendingBuy() {
			n++
		}
	}

	return n
}

// ActiveOrders counts tracked orders across all instruments.
func (b *BotState) ActiveOrders() int {
	n := 0

	for _, st := range b.instruments {
		if st.HasActiveOrder() {
			n++
		}
	}

	return n
}

// TouchDay rolls the daily counters over when dayKey differs from the current
// one. Entry bookkeeping is position scoped and survives the rollover.
// It reports whether a rollover happened.
func (b *BotState) TouchDay(dayKey string) bool {
	if b.CurrentDayKey == dayKey {
		return false
	}

	b.CurrentDayKey = dayKey
	b.TradesToday = 0
	b.DayRealizedPnL = decimal.Zero

	return true
}

// Snapshot copies every instrument state.
func (b *BotState) Snapshot() []Snapshot {
	ids := b.InstrumentIDs()
	out := make([]Snapshot, 0, len(ids))

	for _, id := range ids {
		out = append(out, b.instruments[id].Snapshot(id))
	}

	return out
}

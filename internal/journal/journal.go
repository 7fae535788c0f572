// Package journal records order lifecycle events.
//
// Events are stored with DuckDB and exported to parquet after every write,
// one file per session run: {dir}/{YYYY-MM-DD}/run_N/events.parquet.
package journal

import (
	"github.com/rxtech-lab/argo-trader/internal/types"
)

// EventsFileName is the parquet file written in each run folder.
const EventsFileName = "events.parquet"

// Journal receives one event per meaningful order transition. It is write only.
type Journal interface {
	Write(event types.JournalEvent) error
	Close() error
}

// Tee writes every event to all journals. The first error is returned after
// every journal has been tried.
type Tee []Journal

// Write implements Journal.
func (t Tee) Write(event types.JournalEvent) error {
	var first error

	for _, j := range t {
		if err := j.Write(event); err != nil && first == nil {
			first = err
		}
	}

	return first
}

// Close implements Journal.
func (t Tee) Close() error {
	var first error

	for _, j := range t {
		if err := j.Close(); err != nil && first == nil {
			first = err
		}
	}

	return first
}

// Discard drops every event.
type Discard struct{}

// Write implements Journal.
func (Discard) Write(types.JournalEvent) error { return nil }

// Close implements Journal.
func (Discard) Close() error { return nil }

package journal

import (
	"sync"

	"github.com/rxtech-lab/argo-trader/internal/session"
	"github.com/rxtech-lab/argo-trader/internal/types"
)

// SessionJournal writes events into the current run folder of a session and
// switches to a new parquet file when an event crosses into a new UTC date.
type SessionJournal struct {
	mu      sync.Mutex
	session *session.Manager
	writer  *ParquetWriter
}

// NewSessionJournal opens the events file of the session's current run folder.
// The session must be initialized.
func NewSessionJournal(s *session.Manager) (*SessionJournal, error) {
	w := NewParquetWriter(s.FilePath(EventsFileName))
	if err := w.Initialize(); err != nil {
		return nil, err
	}

	return &SessionJournal{
		mu:      sync.Mutex{},
		session: s,
		writer:  w,
	}, nil
}

// Write implements Journal.
func (j *SessionJournal) Write(event types.JournalEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	crossed, err := j.session.HandleDateBoundary(event.Timestamp)
	if err != nil {
		return err
	}

	if crossed {
		next := NewParquetWriter(j.session.FilePath(EventsFileName))
		if err := next.Initialize(); err != nil {
			return err
		}

		_ = j.writer.Close()
		j.writer = next
	}

	return j.writer.Write(event)
}

// OutputPath returns the parquet file currently written.
func (j *SessionJournal) OutputPath() string {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.writer.OutputPath()
}

// Close implements Journal.
func (j *SessionJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.writer.Close()
}

var _ Journal = (*SessionJournal)(nil)

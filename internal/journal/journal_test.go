package journal

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/internal/logger"
	"github.com/rxtech-lab/argo-trader/internal/session"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type JournalTestSuite struct {
	suite.Suite
	tempDir string
	now     time.Time
}

func TestJournalTestSuite(t *testing.T) {
	suite.Run(t, new(JournalTestSuite))
}

func (s *JournalTestSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
	s.now = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
}

func (s *JournalTestSuite) event(kind types.EventType, ts time.Time, ticker string) types.JournalEvent {
	return types.JournalEvent{
		Timestamp:    ts,
		Event:        kind,
		InstrumentID: "FIGI-" + ticker,
		Ticker:       ticker,
		Side:         types.SideBuy,
		Lots:         optional.Some(int64(2)),
		Price:        optional.Some(decimal.NewFromFloat(10.5)),
		OrderID:      "order-1",
		ClientUID:    "uid-1",
		Status:       "NEW",
		Reason:       "test",
		Meta:         map[string]string{"k": "v"},
	}
}

func (s *JournalTestSuite) TestParquetWriterPersistsAndReloads() {
	path := filepath.Join(s.tempDir, "run_1", EventsFileName)

	w := NewParquetWriter(path)
	s.Require().NoError(w.Initialize())
	s.Require().NoError(w.Write(s.event(types.EventSubmit, s.now, "AAA")))
	s.Require().NoError(w.Write(s.event(types.EventFill, s.now.Add(time.Second), "AAA")))

	count, err := w.Count()
	s.Require().NoError(err)
	s.Equal(2, count)
	s.FileExists(path)
	s.Require().NoError(w.Close())

	reopened := NewParquetWriter(path)
	s.Require().NoError(reopened.Initialize())
	defer reopened.Close()

	count, err = reopened.Count()
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *JournalTestSuite) TestParquetWriterRejectsInvalidEvent() {
	w := NewParquetWriter(filepath.Join(s.tempDir, EventsFileName))
	s.Require().NoError(w.Initialize())
	defer w.Close()

	err := w.Write(types.JournalEvent{Timestamp: s.now, Event: "BOGUS", InstrumentID: "X"})
	s.Error(err)

	err = w.Write(types.JournalEvent{Timestamp: s.now, Event: types.EventSubmit})
	s.Error(err)
}

func (s *JournalTestSuite) TestParquetWriterNotInitialized() {
	w := NewParquetWriter(filepath.Join(s.tempDir, EventsFileName))
	s.Error(w.Write(s.event(types.EventSubmit, s.now, "AAA")))
}

func (s *JournalTestSuite) TestParquetWriterAcceptsMissingOptionals() {
	w := NewParquetWriter(filepath.Join(s.tempDir, EventsFileName))
	s.Require().NoError(w.Initialize())
	defer w.Close()

	event := types.JournalEvent{
		Timestamp:    s.now,
		Event:        types.EventStateLost,
		InstrumentID: "FIGI-AAA",
		Lots:         optional.None[int64](),
		Price:        optional.None[decimal.Decimal](),
	}
	s.NoError(w.Write(event))
}

type recordingJournal struct {
	events []types.JournalEvent
	err    error
	closed bool
}

func (r *recordingJournal) Write(event types.JournalEvent) error {
	r.events = append(r.events, event)

	return r.err
}

func (r *recordingJournal) Close() error {
	r.closed = true

	return r.err
}

func (s *JournalTestSuite) TestTeeWritesToAll() {
	failing := &recordingJournal{err: errors.New("disk full")}
	ok := &recordingJournal{}

	tee := Tee{failing, ok}
	err := tee.Write(s.event(types.EventSubmit, s.now, "AAA"))

	s.EqualError(err, "disk full")
	s.Len(failing.events, 1)
	s.Len(ok.events, 1)

	s.Error(tee.Close())
	s.True(failing.closed)
	s.True(ok.closed)
}

func (s *JournalTestSuite) TestDiscard() {
	s.NoError(Discard{}.Write(s.event(types.EventSubmit, s.now, "AAA")))
	s.NoError(Discard{}.Close())
}

func (s *JournalTestSuite) TestSessionJournalRotatesAtMidnight() {
	sm := session.NewManager(s.tempDir, logger.NewNopLogger())
	s.Require().NoError(sm.Initialize(s.now))

	j, err := NewSessionJournal(sm)
	s.Require().NoError(err)
	defer j.Close()

	first := j.OutputPath()
	s.Require().NoError(j.Write(s.event(types.EventSubmit, s.now, "AAA")))

	nextDay := time.Date(2026, 10, 20, 0, 0, 5, 0, time.UTC)
	s.Require().NoError(j.Write(s.event(types.EventFill, nextDay, "AAA")))

	second := j.OutputPath()
	s.NotEqual(first, second)
	s.Equal(filepath.Join(s.tempDir, "2026-10-20", "run_1", EventsFileName), second)
	s.FileExists(first)
	s.FileExists(second)
}

func (s *JournalTestSuite) TestReaderSummarizesDay() {
	sm := session.NewManager(s.tempDir, logger.NewNopLogger())
	s.Require().NoError(sm.Initialize(s.now))

	j, err := NewSessionJournal(sm)
	s.Require().NoError(err)

	sell := s.event(types.EventFill, s.now.Add(3*time.Minute), "BBB")
	sell.Side = types.SideSell
	sell.Lots = optional.Some(int64(1))
	sell.Price = optional.Some(decimal.NewFromInt(20))

	events := []types.JournalEvent{
		s.event(types.EventSubmit, s.now, "AAA"),
		s.event(types.EventFill, s.now.Add(time.Minute), "AAA"),
		s.event(types.EventReject, s.now.Add(2*time.Minute), "CCC"),
		sell,
	}
	for _, e := range events {
		s.Require().NoError(j.Write(e))
	}
	s.Require().NoError(j.Close())

	r, err := OpenDay(s.tempDir, "2026-10-19")
	s.Require().NoError(err)
	defer r.Close()

	s.Len(r.Files(), 1)

	counts, err := r.EventCounts()
	s.Require().NoError(err)
	s.Equal([]Count{{"FILL", 2}, {"REJECT", 1}, {"SUBMIT", 1}}, counts)

	bySide, err := r.FillsBySide()
	s.Require().NoError(err)
	s.Equal([]Count{{"BUY", 1}, {"SELL", 1}}, bySide)

	byTicker, err := r.FillsByTicker()
	s.Require().NoError(err)
	s.Equal([]Count{{"AAA", 1}, {"BBB", 1}}, byTicker)

	turnover, err := r.Turnover()
	s.Require().NoError(err)
	s.InDelta(41.0, turnover, 1e-9)

	rejects, err := r.LastEvents(10, types.EventReject, types.EventCancel)
	s.Require().NoError(err)
	s.Require().Len(rejects, 1)
	s.Equal("CCC", rejects[0].DisplayName())

	last, err := r.LastEvents(2)
	s.Require().NoError(err)
	s.Require().Len(last, 2)
	s.Equal(types.EventReject, last[0].Event)
	s.Equal(types.EventFill, last[1].Event)
	s.Equal(int64(1), last[1].Lots.Unwrap())
}

func (s *JournalTestSuite) TestReaderEmptyDay() {
	r, err := OpenDay(s.tempDir, "2026-01-01")
	s.Require().NoError(err)
	defer r.Close()

	s.Empty(r.Files())

	counts, err := r.EventCounts()
	s.Require().NoError(err)
	s.Empty(counts)

	turnover, err := r.Turnover()
	s.Require().NoError(err)
	s.Zero(turnover)
}

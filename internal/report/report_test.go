package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/internal/journal"
	"github.com/rxtech-lab/argo-trader/internal/logger"
	"github.com/rxtech-lab/argo-trader/internal/session"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type ReportTestSuite struct {
	suite.Suite
	dir string
	now time.Time
}

func TestReportSuite(t *testing.T) {
	suite.Run(t, new(ReportTestSuite))
}

func (s *ReportTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.now = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
}

func (s *ReportTestSuite) writeDay(events ...types.JournalEvent) {
	sm := session.NewManager(s.dir, logger.NewNopLogger())
	s.Require().NoError(sm.Initialize(s.now))

	j, err := journal.NewSessionJournal(sm)
	s.Require().NoError(err)

	for _, e := range events {
		s.Require().NoError(j.Write(e))
	}

	s.Require().NoError(j.Close())
}

func (s *ReportTestSuite) event(kind types.EventType, offset time.Duration, ticker string, side types.Side, lots int64, price string) types.JournalEvent {
	return types.JournalEvent{
		Timestamp:    s.now.Add(offset),
		Event:        kind,
		InstrumentID: "ID-" + ticker,
		Ticker:       ticker,
		Side:         side,
		Lots:         optional.Some(lots),
		Price:        optional.Some(decimal.RequireFromString(price)),
		OrderID:      "order-1",
		ClientUID:    "key-1",
		Status:       "NEW",
		Reason:       "",
		Meta:         nil,
	}
}

func (s *ReportTestSuite) TestGenerateFullDay() {
	cancel := s.event(types.EventCancel, 3*time.Minute, "ETHUSDT", types.SideBuy, 1, "2000")
	cancel.Status = "CANCELLED"
	cancel.Reason = "ttl_expired"
	cancel.Lots = optional.None[int64]()
	cancel.Price = optional.None[decimal.Decimal]()

	s.writeDay(
		s.event(types.EventSubmit, 0, "BTCUSDT", types.SideBuy, 2, "1000"),
		s.event(types.EventFill, time.Minute, "BTCUSDT", types.SideBuy, 2, "1000"),
		s.event(types.EventFill, 2*time.Minute, "BTCUSDT", types.SideSell, 2, "1010.5"),
		cancel,
	)

	var out bytes.Buffer
	s.Require().NoError(Generate(&out, s.dir, "2026-10-19"))

	text := out.String()
	s.Contains(text, "Daily report for 2026-10-19 (UTC)")
	s.Contains(text, "1 journal file(s)")
	s.Contains(text, "Events")
	s.Contains(text, "Fills by side")
	s.Contains(text, "Fills by ticker")
	s.Contains(text, "Turnover (approx): 4,021.00")
	s.Contains(text, "Reject/Cancel (last 10)")
	s.Contains(text, "ttl_expired")
	s.Contains(text, "10:03:00")
	s.Contains(text, "Last 15 events")
	s.Contains(text, "1010.5000")
	s.NotContains(text, "No fills today.")
}

func (s *ReportTestSuite) TestGenerateWithoutFills() {
	s.writeDay(s.event(types.EventSubmit, 0, "BTCUSDT", types.SideBuy, 1, "1000"))

	var out bytes.Buffer
	s.Require().NoError(Generate(&out, s.dir, "2026-10-19"))

	s.Contains(out.String(), "No fills today.")
	s.NotContains(out.String(), "Reject/Cancel")
	s.Contains(out.String(), "SUBMIT")
}

func (s *ReportTestSuite) TestGenerateEmptyDay() {
	var out bytes.Buffer
	s.Require().NoError(Generate(&out, s.dir, "2026-01-01"))

	s.Contains(out.String(), "No events for 2026-01-01")
	s.Contains(out.String(), "0 journal file(s)")
}

func (s *ReportTestSuite) TestRenderUsesDashes() {
	text := Render(Summary{
		Date:     "2026-10-19",
		Counts:   []journal.Count{{Label: "SKIP", N: 1}},
		Recent:   []journal.Row{{Timestamp: s.now, Event: types.EventSkip, InstrumentID: "ID-X"}},
		Files:    nil,
		BySide:   nil,
		ByTicker: nil,
		Turnover: 0,
		Problems: nil,
	})

	s.Contains(text, "ID-X")
	s.Contains(text, "SKIP")
	s.Contains(text, "-")
}

func (s *ReportTestSuite) TestFormatAmount() {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{999.999, "1,000.00"},
		{1234567.891, "1,234,567.89"},
		{-4021, "-4,021.00"},
	}

	for _, tt := range tests {
		s.Equal(tt.want, formatAmount(tt.in))
	}
}

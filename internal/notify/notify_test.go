package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/internal/logger"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type NotifyTestSuite struct {
	suite.Suite
	server   *httptest.Server
	mu       sync.Mutex
	requests []sendMessageRequest
	paths    []string
	status   int
}

func TestNotifyTestSuite(t *testing.T) {
	suite.Run(t, new(NotifyTestSuite))
}

func (s *NotifyTestSuite) SetupTest() {
	s.requests = nil
	s.paths = nil
	s.status = http.StatusOK
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.paths = append(s.paths, r.URL.Path)
		status := s.status
		s.mu.Unlock()

		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
}

func (s *NotifyTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *NotifyTestSuite) telegram() *Telegram {
	return NewTelegram(TelegramConfig{
		Enabled: true,
		Token:   "123:abc",
		ChatID:  "42",
		BaseURL: s.server.URL,
		Timeout: time.Second,
	}, logger.NewNopLogger())
}

func (s *NotifyTestSuite) sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.requests)
}

func (s *NotifyTestSuite) TestSendPostsMessage() {
	tg := s.telegram()
	s.True(tg.Enabled())

	tg.Send(context.Background(), "hello", 0)

	s.Require().Equal(1, s.sent())
	s.Equal("/bot123:abc/sendMessage", s.paths[0])
	s.Equal("42", s.requests[0].ChatID)
	s.Equal("hello", s.requests[0].Text)
	s.True(s.requests[0].DisableWebPagePreview)
}

func (s *NotifyTestSuite) TestDisabledWithoutCredentials() {
	tg := NewTelegram(TelegramConfig{Enabled: true, BaseURL: s.server.URL}, logger.NewNopLogger())
	s.False(tg.Enabled())

	tg.Send(context.Background(), "hello", 0)
	s.Equal(0, s.sent())
}

func (s *NotifyTestSuite) TestTransportErrorHidesToken() {
	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()

	core, logs := observer.New(zap.WarnLevel)
	tg := NewTelegram(TelegramConfig{
		Enabled: true,
		Token:   "123:secret",
		ChatID:  "42",
		BaseURL: url,
		Timeout: time.Second,
	}, &logger.Logger{Logger: zap.New(core)})

	tg.Send(context.Background(), "hello", 0)

	entries := logs.FilterMessage("Telegram notification failed").All()
	s.Require().Len(entries, 1)

	msg, ok := entries[0].ContextMap()["error"].(string)
	s.Require().True(ok)
	s.Contains(msg, "<redacted>")
	s.False(strings.Contains(msg, "123:secret"))
}

func (s *NotifyTestSuite) TestThrottle() {
	tg := s.telegram()
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	tg.now = func() time.Time { return now }

	tg.Send(context.Background(), "first", time.Minute)
	tg.Send(context.Background(), "throttled", time.Minute)
	s.Equal(1, s.sent())

	now = now.Add(time.Minute)
	tg.Send(context.Background(), "after window", time.Minute)
	s.Equal(2, s.sent())

	tg.Send(context.Background(), "unthrottled", 0)
	s.Equal(3, s.sent())
}

func (s *NotifyTestSuite) TestServerErrorIsSwallowed() {
	s.status = http.StatusInternalServerError
	tg := s.telegram()
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	tg.now = func() time.Time { return now }

	tg.Send(context.Background(), "a", time.Minute)
	// a failed delivery does not start the throttle window
	tg.Send(context.Background(), "b", time.Minute)
	s.Equal(2, s.sent())
}

func (s *NotifyTestSuite) TestUnreachableServerIsSwallowed() {
	tg := s.telegram()
	s.server.Close()

	s.NotPanics(func() { tg.Send(context.Background(), "x", 0) })
}

type recorder struct {
	texts []string
}

func (r *recorder) Send(_ context.Context, text string, _ time.Duration) {
	r.texts = append(r.texts, text)
}

func (s *NotifyTestSuite) TestJournalForwardsSelectedEvents() {
	rec := &recorder{}
	j := NewJournal(rec)

	base := types.JournalEvent{
		Timestamp:    time.Now(),
		InstrumentID: "FIGI1",
		Ticker:       "SBER",
		Side:         types.SideBuy,
		Lots:         optional.Some(int64(1)),
		Price:        optional.Some(decimal.RequireFromString("250.5")),
		Reason:       "filled",
	}

	for _, kind := range []types.EventType{
		types.EventSubmit, types.EventFill, types.EventPartialFill, types.EventCancel,
		types.EventExpire, types.EventReject, types.EventSkip, types.EventStateLost,
	} {
		e := base
		e.Event = kind
		s.NoError(j.Write(e))
	}

	s.Len(rec.texts, 4)
	s.Equal("FILL BUY SBER 1 lot @ 250.5 (filled)", rec.texts[1])
	s.NoError(j.Close())
}

func (s *NotifyTestSuite) TestFormatEventWithoutOptionals() {
	text := FormatEvent(types.JournalEvent{
		Event:        types.EventStateLost,
		InstrumentID: "FIGI1",
		Lots:         optional.None[int64](),
		Price:        optional.None[decimal.Decimal](),
		Reason:       "order_not_found",
	})
	s.Equal("STATE_LOST FIGI1 (order_not_found)", text)
}

func (s *NotifyTestSuite) TestNop() {
	s.NotPanics(func() { Nop{}.Send(context.Background(), "x", 0) })
}

package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rxtech-lab/argo-trader/internal/engine"
	"github.com/rxtech-lab/argo-trader/internal/logger"
	"github.com/rxtech-lab/argo-trader/internal/state"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type MetricsTestSuite struct {
	suite.Suite
	metrics *Metrics
	status  *engine.Status
	server  *httptest.Server
}

func TestMetricsTestSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}

func (suite *MetricsTestSuite) SetupTest() {
	suite.metrics = New()
	suite.status = nil

	srv := NewServer(suite.metrics, func() *engine.Status { return suite.status }, logger.NewNopLogger())
	suite.server = httptest.NewServer(srv.Handler())
}

func (suite *MetricsTestSuite) TearDownTest() {
	suite.server.Close()
}

func (suite *MetricsTestSuite) sampleStatus() engine.Status {
	cash := decimal.NewFromInt(9000)

	return engine.Status{
		Time:                time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC),
		Phase:               engine.PhaseTrading,
		AccountID:           "acc",
		Strategy:            "threshold",
		Cash:                &cash,
		Reserved:            map[string]decimal.Decimal{"FIGI1": decimal.NewFromInt(1000)},
		ReservedTotal:       decimal.NewFromInt(1000),
		DayKey:              "2026-10-19",
		TradesToday:         2,
		DayRealizedPnL:      decimal.NewFromInt(-20),
		DayMetric:           decimal.NewFromInt(-35),
		DayLocked:           true,
		OpenPositions:       1,
		PendingBuys:         1,
		ActiveOrders:        1,
		ConsecutiveFailures: 0,
		Instruments: []state.Snapshot{
			{InstrumentID: "FIGI1", PositionLots: 3},
		},
	}
}

func (suite *MetricsTestSuite) get(path string) (int, string) {
	resp, err := http.Get(suite.server.URL + path)
	suite.Require().NoError(err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	suite.Require().NoError(err)

	return resp.StatusCode, string(body)
}

func (suite *MetricsTestSuite) TestObserveStatus() {
	suite.metrics.ObserveStatus(suite.sampleStatus())

	suite.Equal(9000.0, testutil.ToFloat64(suite.metrics.cash))
	suite.Equal(1000.0, testutil.ToFloat64(suite.metrics.reserved))
	suite.Equal(-35.0, testutil.ToFloat64(suite.metrics.dayMetric))
	suite.Equal(1.0, testutil.ToFloat64(suite.metrics.dayLocked))
	suite.Equal(2.0, testutil.ToFloat64(suite.metrics.tradesToday))
	suite.Equal(3.0, testutil.ToFloat64(suite.metrics.positionLots.WithLabelValues("FIGI1")))
	suite.Equal(1.0, testutil.ToFloat64(suite.metrics.phase.WithLabelValues(string(engine.PhaseTrading))))
	suite.Equal(0.0, testutil.ToFloat64(suite.metrics.phase.WithLabelValues(string(engine.PhaseIdle))))
	suite.Equal(1.0, testutil.ToFloat64(suite.metrics.cycles.WithLabelValues(string(engine.PhaseTrading))))
}

func (suite *MetricsTestSuite) TestJournalEventsCounted() {
	suite.NoError(suite.metrics.Write(types.JournalEvent{Event: types.EventSubmit, Side: types.SideBuy}))
	suite.NoError(suite.metrics.Write(types.JournalEvent{Event: types.EventSubmit, Side: types.SideBuy}))
	suite.NoError(suite.metrics.Write(types.JournalEvent{Event: types.EventFill, Side: types.SideSell}))
	suite.NoError(suite.metrics.Close())

	suite.Equal(2.0, testutil.ToFloat64(suite.metrics.events.WithLabelValues("SUBMIT", "BUY")))
	suite.Equal(1.0, testutil.ToFloat64(suite.metrics.events.WithLabelValues("FILL", "SELL")))
}

func (suite *MetricsTestSuite) TestMetricsEndpoint() {
	suite.metrics.ObserveStatus(suite.sampleStatus())

	code, body := suite.get("/metrics")
	suite.Equal(http.StatusOK, code)
	suite.Contains(body, "argo_day_locked 1")
	suite.Contains(body, `argo_position_lots{instrument_id="FIGI1"} 3`)
}

func (suite *MetricsTestSuite) TestStateEndpoint() {
	code, body := suite.get("/state")
	suite.Equal(http.StatusServiceUnavailable, code)
	suite.Contains(body, "no cycle completed yet")

	status := suite.sampleStatus()
	suite.status = &status

	code, body = suite.get("/state")
	suite.Equal(http.StatusOK, code)

	var decoded map[string]any
	suite.Require().NoError(json.Unmarshal([]byte(body), &decoded))
	suite.Equal("TRADING", decoded["phase"])
	suite.Equal("acc", decoded["account_id"])
	suite.Equal(true, decoded["day_locked"])
}

func (suite *MetricsTestSuite) TestHealthz() {
	code, body := suite.get("/healthz")
	suite.Equal(http.StatusOK, code)
	suite.Equal("ok", strings.TrimSpace(body))
}

func (suite *MetricsTestSuite) TestStartAndShutdown() {
	srv := NewServer(suite.metrics, func() *engine.Status { return nil }, logger.NewNopLogger())
	suite.Equal("", srv.Address())
	suite.Require().NoError(srv.Start("127.0.0.1:0"))
	suite.NotEmpty(srv.Address())

	resp, err := http.Get("http://" + srv.Address() + "/healthz")
	suite.Require().NoError(err)
	resp.Body.Close()
	suite.Equal(http.StatusOK, resp.StatusCode)

	suite.NoError(srv.Shutdown(context.Background()))
}

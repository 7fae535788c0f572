package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type ThresholdTestSuite struct {
	suite.Suite
	strategy *Threshold
	inst     types.InstrumentInfo
	start    time.Time
}

func TestThresholdTestSuite(t *testing.T) {
	suite.Run(t, new(ThresholdTestSuite))
}

func (suite *ThresholdTestSuite) SetupTest() {
	suite.strategy = NewThreshold(ThresholdConfig{
		DipPct:        decimal.RequireFromString("0.01"),
		TakeProfitPct: decimal.RequireFromString("0.02"),
		StopLossPct:   decimal.RequireFromString("0.03"),
		MaxHold:       time.Hour,
	})
	suite.inst = types.InstrumentInfo{Ticker: "SBER", InstrumentID: "FIGI", LotSize: decimal.NewFromInt(10)}
	suite.start = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
}

func (suite *ThresholdTestSuite) market(at time.Time, price string) types.MarketData {
	return types.MarketData{
		InstrumentID: "FIGI",
		Time:         at,
		LastPrice:    optional.Some(decimal.RequireFromString(price)),
	}
}

func (suite *ThresholdTestSuite) flat() View {
	return View{EntriesAllowed: true}
}

func (suite *ThresholdTestSuite) decide(at time.Time, price string, view View) types.Decision {
	d, err := suite.strategy.Decide(context.Background(), suite.inst, suite.market(at, price), view)
	suite.Require().NoError(err)

	return d
}

func (suite *ThresholdTestSuite) TestBuysTheDip() {
	suite.Equal(types.ActionHold, suite.decide(suite.start, "100", suite.flat()).Action)
	suite.Equal(types.ActionHold, suite.decide(suite.start.Add(time.Minute), "99.5", suite.flat()).Action)

	d := suite.decide(suite.start.Add(2*time.Minute), "99", suite.flat())
	suite.Equal(types.ActionBuy, d.Action)
	suite.True(decimal.NewFromInt(99).Equal(d.OrderPrice()))
}

func (suite *ThresholdTestSuite) TestReferenceResetsEachDay() {
	suite.decide(suite.start, "100", suite.flat())

	nextDay := suite.start.Add(24 * time.Hour)
	suite.Equal(types.ActionHold, suite.decide(nextDay, "95", suite.flat()).Action)
	suite.Equal(types.ActionBuy, suite.decide(nextDay.Add(time.Minute), "94", suite.flat()).Action)
}

func (suite *ThresholdTestSuite) TestHoldsWhileOrderPending() {
	suite.decide(suite.start, "100", suite.flat())

	d := suite.decide(suite.start.Add(time.Minute), "90", View{HasActiveOrder: true})
	suite.Equal(types.ActionHold, d.Action)
	suite.Equal("order pending", d.Reason)
}

func (suite *ThresholdTestSuite) TestExits() {
	held := View{
		PositionLots: 1,
		EntryPrice:   optional.Some(decimal.NewFromInt(100)),
		EntryTime:    optional.Some(suite.start),
	}

	tests := []struct {
		name   string
		at     time.Time
		price  string
		action types.Action
		reason string
	}{
		{name: "take profit", at: suite.start.Add(time.Minute), price: "102", action: types.ActionSell, reason: "take_profit"},
		{name: "stop loss", at: suite.start.Add(time.Minute), price: "97", action: types.ActionSell, reason: "stop_loss"},
		{name: "time stop", at: suite.start.Add(time.Hour), price: "100.5", action: types.ActionSell, reason: "time_stop"},
		{name: "keep holding", at: suite.start.Add(59 * time.Minute), price: "100.5", action: types.ActionHold, reason: "holding"},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			d := suite.decide(tc.at, tc.price, held)
			suite.Equal(tc.action, d.Action)
			suite.Contains(d.Reason, tc.reason)
		})
	}
}

func (suite *ThresholdTestSuite) TestNoPrice() {
	d, err := suite.strategy.Decide(context.Background(), suite.inst, types.MarketData{
		InstrumentID: "FIGI",
		Time:         suite.start,
		LastPrice:    optional.None[decimal.Decimal](),
	}, suite.flat())
	suite.NoError(err)
	suite.Equal(types.ActionHold, d.Action)
}

func (suite *ThresholdTestSuite) TestValidate() {
	cfg := DefaultThresholdConfig()
	suite.NoError(cfg.Validate())

	cfg.StopLossPct = decimal.NewFromInt(-1)
	suite.True(errors.HasCode(cfg.Validate(), errors.ErrCodeInvalidConfiguration))
}

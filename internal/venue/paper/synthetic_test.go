package paper

import (
	"context"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-trader/internal/logger"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/rxtech-lab/argo-trader/internal/venue"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type SyntheticTestSuite struct {
	suite.Suite
	now    time.Time
	source *Synthetic
}

func TestSyntheticSuite(t *testing.T) {
	suite.Run(t, new(SyntheticTestSuite))
}

func (suite *SyntheticTestSuite) SetupTest() {
	suite.now = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	suite.source = NewSyntheticWithClock(DefaultSyntheticConfig(), func() time.Time { return suite.now })
}

func (suite *SyntheticTestSuite) TestInstrumentBy() {
	inst, err := suite.source.InstrumentBy(context.Background(), "SBER", "TQBR")
	suite.Require().NoError(err)
	suite.Equal("SYN-SBER", inst.InstrumentID)
	suite.Equal("TQBR", inst.ClassCode)
	suite.True(inst.Tradeable.Unwrap())

	_, err = suite.source.InstrumentBy(context.Background(), "", "")
	suite.Equal(errors.ErrCodeInstrumentUnknown, errors.GetCode(err))
}

func (suite *SyntheticTestSuite) TestPriceMovesOncePerInterval() {
	_, err := suite.source.InstrumentBy(context.Background(), "SBER", "")
	suite.Require().NoError(err)

	first, err := suite.source.GetLastPrice(context.Background(), InstrumentID("SBER"))
	suite.Require().NoError(err)
	suite.True(first.IsSome())

	p := first.Unwrap()
	suite.True(p.GreaterThanOrEqual(decimal.NewFromInt(80)))
	suite.True(p.LessThanOrEqual(decimal.NewFromInt(120)))
	suite.True(p.Mod(decimal.RequireFromString("0.01")).IsZero())

	again, err := suite.source.GetLastPrice(context.Background(), InstrumentID("SBER"))
	suite.Require().NoError(err)
	suite.True(p.Equal(again.Unwrap()))

	suite.now = suite.now.Add(time.Minute)
	moved, err := suite.source.GetLastPrice(context.Background(), InstrumentID("SBER"))
	suite.Require().NoError(err)
	suite.True(moved.Unwrap().IsPositive())
}

func (suite *SyntheticTestSuite) TestSameSeedReplays() {
	other := NewSyntheticWithClock(DefaultSyntheticConfig(), func() time.Time { return suite.now })

	for _, s := range []*Synthetic{suite.source, other} {
		_, err := s.InstrumentBy(context.Background(), "GAZP", "")
		suite.Require().NoError(err)
	}

	a, err := suite.source.GetLastPrice(context.Background(), InstrumentID("GAZP"))
	suite.Require().NoError(err)
	b, err := other.GetLastPrice(context.Background(), InstrumentID("GAZP"))
	suite.Require().NoError(err)
	suite.True(a.Unwrap().Equal(b.Unwrap()))
}

func (suite *SyntheticTestSuite) TestUnknownInstrument() {
	_, err := suite.source.GetLastPrice(context.Background(), "SYN-NOPE")
	suite.Equal(errors.ErrCodeInstrumentUnknown, errors.GetCode(err))
}

func (suite *SyntheticTestSuite) TestDrivesPaperVenue() {
	v := New(suite.source, Config{Currency: "USDT", InitialCash: decimal.NewFromInt(1000)}, logger.NewNopLogger())

	inst, err := v.InstrumentBy(context.Background(), "SBER", "")
	suite.Require().NoError(err)

	last, err := v.GetLastPrice(context.Background(), inst.InstrumentID)
	suite.Require().NoError(err)

	id, err := v.SubmitLimitOrder(context.Background(), AccountID, venue.OrderRequest{
		InstrumentID:   inst.InstrumentID,
		Side:           types.SideBuy,
		Lots:           1,
		Price:          last.Unwrap().Add(decimal.NewFromInt(50)),
		IdempotencyKey: "k1",
	})
	suite.Require().NoError(err)
	suite.NotEmpty(id)
}

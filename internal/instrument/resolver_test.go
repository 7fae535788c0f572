package instrument

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/internal/logger"
	"github.com/rxtech-lab/argo-trader/internal/retry"
	"github.com/rxtech-lab/argo-trader/internal/venue"
	"github.com/rxtech-lab/argo-trader/internal/venue/venuetest"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type ResolverTestSuite struct {
	suite.Suite
	fake     *venuetest.Fake
	resolver *Resolver
}

func TestResolverTestSuite(t *testing.T) {
	suite.Run(t, new(ResolverTestSuite))
}

func noSleep(_ context.Context, _ time.Duration) error {
	return nil
}

func (suite *ResolverTestSuite) SetupTest() {
	suite.fake = venuetest.NewFake()
	suite.fake.AddInstrument(venue.Instrument{
		Ticker:            "SBER",
		InstrumentID:      "BBG004730N88",
		ClassCode:         "TQBR",
		LotSize:           decimal.NewFromInt(10),
		MinPriceIncrement: decimal.RequireFromString("0.01"),
		Tradeable:         optional.Some(true),
	})
	suite.fake.AddInstrument(venue.Instrument{
		Ticker:            "GAZP",
		InstrumentID:      "BBG004730RP0",
		ClassCode:         "TQBR",
		LotSize:           decimal.NewFromInt(10),
		MinPriceIncrement: decimal.RequireFromString("0.01"),
		Tradeable:         optional.None[bool](),
	})
	suite.fake.AddInstrument(venue.Instrument{
		Ticker:            "HALT",
		InstrumentID:      "BBG000000000",
		LotSize:           decimal.NewFromInt(1),
		MinPriceIncrement: decimal.RequireFromString("0.1"),
		Tradeable:         optional.Some(false),
	})

	r := retry.NewRetrierWithSleeper(retry.DefaultPolicy(), logger.NewNopLogger(), noSleep)
	suite.resolver = NewResolver(suite.fake, r, logger.NewNopLogger(), "TQBR")
}

func (suite *ResolverTestSuite) TestResolvePartialSuccess() {
	got := suite.resolver.Resolve(context.Background(), []string{"SBER", "NOPE", "GAZP", "HALT"})

	suite.Len(got, 2)
	suite.Equal("BBG004730N88", got["SBER"].InstrumentID)

	info, ok := suite.resolver.Lookup("BBG004730RP0")
	suite.True(ok)
	suite.Equal("GAZP", info.Ticker)

	_, ok = suite.resolver.ByTicker("NOPE")
	suite.False(ok)

	_, ok = suite.resolver.ByTicker("HALT")
	suite.False(ok)

	all := suite.resolver.All()
	suite.Len(all, 2)
	suite.Equal("GAZP", all[0].Ticker)
}

func (suite *ResolverTestSuite) TestResolveRetriesTransient() {
	suite.fake.FailNext(venuetest.MethodInstrumentBy, errors.New(errors.ErrCodeTransient, "timeout"))

	got := suite.resolver.Resolve(context.Background(), []string{"SBER"})
	suite.Len(got, 1)
	suite.Equal(2, suite.fake.Calls(venuetest.MethodInstrumentBy))
}

func (suite *ResolverTestSuite) TestPickTradeable() {
	suite.fake.SetPrice("BBG004730N88", decimal.NewFromInt(270))
	suite.fake.SetPrice("BBG004730RP0", decimal.NewFromInt(120))

	picked, err := suite.resolver.PickTradeable(context.Background(), []string{"SBER", "GAZP"}, decimal.NewFromInt(1500))
	suite.NoError(err)
	suite.Len(picked, 1)
	suite.Equal("GAZP", picked[0].Info.Ticker)
	suite.True(decimal.NewFromInt(1200).Equal(picked[0].LotCost))

	picked, err = suite.resolver.PickTradeable(context.Background(), []string{"SBER", "GAZP"}, decimal.Zero)
	suite.NoError(err)
	suite.Len(picked, 2)
	suite.Equal("GAZP", picked[0].Info.Ticker)
	suite.Equal("SBER", picked[1].Info.Ticker)
}

func (suite *ResolverTestSuite) TestPickTradeableNothingFits() {
	suite.fake.SetPrice("BBG004730N88", decimal.NewFromInt(270))

	_, err := suite.resolver.PickTradeable(context.Background(), []string{"SBER", "GAZP"}, decimal.NewFromInt(100))
	suite.True(errors.HasCode(err, errors.ErrCodeNoTradeableSymbol))
}

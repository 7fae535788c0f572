package pricing

import (
	"testing"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type PricingTestSuite struct {
	suite.Suite
}

func TestPricingTestSuite(t *testing.T) {
	suite.Run(t, new(PricingTestSuite))
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (suite *PricingTestSuite) TestNormalize() {
	tests := []struct {
		name     string
		price    string
		step     string
		side     types.Side
		expected string
	}{
		{name: "buy rounds up", price: "100.03", step: "0.05", side: types.SideBuy, expected: "100.05"},
		{name: "sell rounds down", price: "100.03", step: "0.05", side: types.SideSell, expected: "100"},
		{name: "exact multiple buy", price: "100.05", step: "0.05", side: types.SideBuy, expected: "100.05"},
		{name: "exact multiple sell", price: "100.05", step: "0.05", side: types.SideSell, expected: "100.05"},
		{name: "integer step", price: "271.4", step: "1", side: types.SideBuy, expected: "272"},
		{name: "tiny crypto step", price: "64123.456789", step: "0.01", side: types.SideSell, expected: "64123.45"},
		{name: "zero step unchanged", price: "12.3456", step: "0", side: types.SideBuy, expected: "12.3456"},
		{name: "negative step unchanged", price: "12.3456", step: "-0.1", side: types.SideSell, expected: "12.3456"},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			got := Normalize(d(tc.price), d(tc.step), tc.side)
			suite.True(d(tc.expected).Equal(got), "expected %s got %s", tc.expected, got)
		})
	}
}

func (suite *PricingTestSuite) TestNormalizeIsIdempotentAndDirectional() {
	steps := []string{"0.01", "0.05", "0.2", "1", "0.0001", "0.03"}
	prices := []string{"0.07", "1.111", "99.99", "100", "123.4567", "5000.015", "7.777777"}

	for _, s := range steps {
		for _, p := range prices {
			for _, side := range []types.Side{types.SideBuy, types.SideSell} {
				once := Normalize(d(p), d(s), side)
				twice := Normalize(once, d(s), side)
				suite.True(once.Equal(twice), "idempotency %s/%s/%s", p, s, side)
				suite.True(once.Mod(d(s)).IsZero(), "multiple of step %s/%s", p, s)

				if side == types.SideBuy {
					suite.True(once.GreaterThanOrEqual(d(p)), "buy %s step %s -> %s", p, s, once)
					suite.True(once.Sub(d(p)).LessThan(d(s)))
				} else {
					suite.True(once.LessThanOrEqual(d(p)), "sell %s step %s -> %s", p, s, once)
					suite.True(d(p).Sub(once).LessThan(d(s)))
				}
			}
		}
	}
}

func (suite *PricingTestSuite) TestNudgeBuy() {
	step := d("0.01")

	// last 99.50 + 2 ticks = 99.52 is cheaper than the suggested 100
	got := Nudge(d("100"), optional.Some(d("99.50")), step, 2, types.SideBuy)
	suite.True(d("99.52").Equal(got), got.String())

	// never above the suggested price
	got = Nudge(d("100"), optional.Some(d("101")), step, 2, types.SideBuy)
	suite.True(d("100").Equal(got), got.String())
}

func (suite *PricingTestSuite) TestNudgeSell() {
	step := d("0.5")

	got := Nudge(d("100"), optional.Some(d("103.2")), step, 1, types.SideSell)
	suite.True(d("102.5").Equal(got), got.String())

	got = Nudge(d("100"), optional.Some(d("99")), step, 1, types.SideSell)
	suite.True(d("100").Equal(got), got.String())
}

func (suite *PricingTestSuite) TestNudgeDisabled() {
	suite.True(d("10").Equal(Nudge(d("10"), optional.None[decimal.Decimal](), d("0.1"), 1, types.SideBuy)))
	suite.True(d("10").Equal(Nudge(d("10"), optional.Some(d("9")), d("0"), 1, types.SideBuy)))
	suite.True(d("10").Equal(Nudge(d("10"), optional.Some(d("9")), d("0.1"), -1, types.SideBuy)))
}

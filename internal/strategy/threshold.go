package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"github.com/shopspring/decimal"
)

// ThresholdConfig configures the threshold strategy. Percentages are fractions,
// 0.004 means 0.4%.
type ThresholdConfig struct {
	// DipPct is how far below the day's reference price the last price must fall to buy.
	DipPct decimal.Decimal `json:"dip_pct" yaml:"dip_pct" jsonschema:"title=Dip,description=Entry drop below the day reference price,default=0.003"`
	// TakeProfitPct closes a position once the price rose this much above entry.
	TakeProfitPct decimal.Decimal `json:"take_profit_pct" yaml:"take_profit_pct" jsonschema:"title=Take Profit,default=0.004"`
	// StopLossPct closes a position once the price fell this much below entry.
	StopLossPct decimal.Decimal `json:"stop_loss_pct" yaml:"stop_loss_pct" jsonschema:"title=Stop Loss,default=0.006"`
	// MaxHold closes a position held longer than this. Zero disables the time stop.
	MaxHold time.Duration `json:"max_hold" yaml:"max_hold" jsonschema:"title=Max Hold,description=Time stop for open positions,default=3h"`
}

// Validate validates the ThresholdConfig struct.
func (c *ThresholdConfig) Validate() error {
	if c.DipPct.IsNegative() || c.TakeProfitPct.IsNegative() || c.StopLossPct.IsNegative() {
		return errors.New(errors.ErrCodeInvalidConfiguration, "strategy percentages must not be negative")
	}

	if c.MaxHold < 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "strategy max_hold must not be negative")
	}

	return nil
}

// DefaultThresholdConfig returns the defaults of the threshold strategy.
func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		DipPct:        decimal.RequireFromString("0.003"),
		TakeProfitPct: decimal.RequireFromString("0.004"),
		StopLossPct:   decimal.RequireFromString("0.006"),
		MaxHold:       3 * time.Hour,
	}
}

// Threshold buys a dip below the first price seen each day and exits on
// take profit, stop loss or time stop.
type Threshold struct {
	cfg ThresholdConfig

	mu        sync.Mutex
	reference map[string]dayReference
}

type dayReference struct {
	day   string
	price decimal.Decimal
}

// NewThreshold creates the threshold strategy.
func NewThreshold(cfg ThresholdConfig) *Threshold {
	return &Threshold{
		cfg:       cfg,
		mu:        sync.Mutex{},
		reference: make(map[string]dayReference),
	}
}

// Name implements Strategy.
func (t *Threshold) Name() string {
	return "threshold"
}

// Decide implements Strategy.
func (t *Threshold) Decide(_ context.Context, instrument types.InstrumentInfo, market types.MarketData, view View) (types.Decision, error) {
	if market.LastPrice.IsNone() {
		return types.Hold(decimal.Zero, "no last price"), nil
	}

	last := market.LastPrice.Unwrap()
	ref := t.referencePrice(instrument.InstrumentID, market.Time, last)

	if view.PositionLots > 0 {
		return t.exit(last, market.Time, view), nil
	}

	if view.HasActiveOrder {
		return types.Hold(last, "order pending"), nil
	}

	buyLevel := ref.Mul(decimal.NewFromInt(1).Sub(t.cfg.DipPct))
	if last.LessThanOrEqual(buyLevel) {
		return types.Decision{
			Action:     types.ActionBuy,
			Price:      last,
			LimitPrice: optional.None[decimal.Decimal](),
			Reason:     fmt.Sprintf("last<=%s ref=%s", buyLevel.StringFixed(4), ref.String()),
		}, nil
	}

	return types.Hold(last, "no edge"), nil
}

func (t *Threshold) exit(last decimal.Decimal, now time.Time, view View) types.Decision {
	if view.EntryPrice.IsNone() {
		return types.Hold(last, "entry unknown")
	}

	entry := view.EntryPrice.Unwrap()
	one := decimal.NewFromInt(1)

	take := entry.Mul(one.Add(t.cfg.TakeProfitPct))
	if last.GreaterThanOrEqual(take) {
		return sell(last, fmt.Sprintf("take_profit last>=%s", take.StringFixed(4)))
	}

	stop := entry.Mul(one.Sub(t.cfg.StopLossPct))
	if last.LessThanOrEqual(stop) {
		return sell(last, fmt.Sprintf("stop_loss last<=%s", stop.StringFixed(4)))
	}

	if t.cfg.MaxHold > 0 && view.EntryTime.IsSome() && now.Sub(view.EntryTime.Unwrap()) >= t.cfg.MaxHold {
		return sell(last, "time_stop")
	}

	return types.Hold(last, "holding")
}

// referencePrice returns the first price seen for the instrument on the day of now.
func (t *Threshold) referencePrice(id string, now time.Time, last decimal.Decimal) decimal.Decimal {
	day := now.Format(time.DateOnly)

	t.mu.Lock()
	defer t.mu.Unlock()

	ref, ok := t.reference[id]
	if !ok || ref.day != day {
		ref = dayReference{day: day, price: last}
		t.reference[id] = ref
	}

	return ref.price
}

func sell(price decimal.Decimal, reason string) types.Decision {
	return types.Decision{
		Action:     types.ActionSell,
		Price:      price,
		LimitPrice: optional.None[decimal.Decimal](),
		Reason:     reason,
	}
}

var _ Strategy = (*Threshold)(nil)

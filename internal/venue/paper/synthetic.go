package paper

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/internal/venue"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"github.com/shopspring/decimal"
)

// SyntheticConfig drives a geometric Brownian motion price feed, for running
// the paper venue without any market connection.
type SyntheticConfig struct {
	Seed         int64           `json:"seed" yaml:"seed" jsonschema:"title=Seed,description=Random seed; the same seed replays the same prices,default=42"`
	InitialPrice decimal.Decimal `json:"initial_price" yaml:"initial_price" jsonschema:"title=Initial Price,default=100"`
	// Volatility is the standard deviation of one step, 0.002 means 0.2%.
	Volatility float64 `json:"volatility" yaml:"volatility" jsonschema:"title=Volatility,default=0.002" validate:"gte=0"`
	// Trend is the drift added to every step.
	Trend     float64         `json:"trend" yaml:"trend" jsonschema:"title=Trend,default=0"`
	Interval  time.Duration   `json:"interval" yaml:"interval" jsonschema:"title=Interval,description=Prices move at most once per interval,default=1m" validate:"gte=0"`
	LotSize   decimal.Decimal `json:"lot_size" yaml:"lot_size" jsonschema:"title=Lot Size,default=1"`
	PriceStep decimal.Decimal `json:"price_step" yaml:"price_step" jsonschema:"title=Price Step,default=0.01"`
}

// DefaultSyntheticConfig returns a calm, trendless feed.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Seed:         42,
		InitialPrice: decimal.NewFromInt(100),
		Volatility:   0.002,
		Trend:        0,
		Interval:     time.Minute,
		LotSize:      decimal.NewFromInt(1),
		PriceStep:    decimal.RequireFromString("0.01"),
	}
}

type walk struct {
	ticker string
	price  float64
	moved  time.Time
}

// Synthetic is a MarketSource that invents instruments on first lookup and
// walks their prices randomly. It is safe for concurrent use.
type Synthetic struct {
	cfg SyntheticConfig
	now func() time.Time

	mu    sync.Mutex
	rng   *rand.Rand
	walks map[string]*walk
}

// NewSynthetic creates a synthetic source.
func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	return NewSyntheticWithClock(cfg, time.Now)
}

// NewSyntheticWithClock creates a synthetic source reading time from now.
func NewSyntheticWithClock(cfg SyntheticConfig, now func() time.Time) *Synthetic {
	return &Synthetic{
		cfg:   cfg,
		now:   now,
		mu:    sync.Mutex{},
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		walks: make(map[string]*walk),
	}
}

// InstrumentID returns the id the source assigns to ticker.
func InstrumentID(ticker string) string {
	return "SYN-" + ticker
}

// InstrumentBy implements MarketSource. Every ticker exists; its starting
// price varies around InitialPrice.
func (s *Synthetic) InstrumentBy(_ context.Context, ticker, classCode string) (venue.Instrument, error) {
	if ticker == "" {
		return venue.Instrument{}, errors.New(errors.ErrCodeInstrumentUnknown, "empty ticker")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := InstrumentID(ticker)
	if _, ok := s.walks[id]; !ok {
		initial := s.cfg.InitialPrice.InexactFloat64() * (0.8 + s.rng.Float64()*0.4)
		s.walks[id] = &walk{ticker: ticker, price: initial, moved: s.now()}
	}

	return venue.Instrument{
		Ticker:            ticker,
		InstrumentID:      id,
		ClassCode:         classCode,
		LotSize:           s.cfg.LotSize,
		MinPriceIncrement: s.cfg.PriceStep,
		Tradeable:         optional.Some(true),
	}, nil
}

// GetLastPrice implements MarketSource. The price takes one step when at
// least Interval passed since the previous one.
func (s *Synthetic) GetLastPrice(_ context.Context, instrumentID string) (optional.Option[decimal.Decimal], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.walks[instrumentID]
	if !ok {
		return optional.None[decimal.Decimal](), errors.Newf(errors.ErrCodeInstrumentUnknown, "unknown instrument %s", instrumentID)
	}

	now := s.now()
	if now.Sub(w.moved) >= s.cfg.Interval {
		w.price = s.step(w.price)
		w.moved = now
	}

	price := decimal.NewFromFloat(w.price)
	if s.cfg.PriceStep.IsPositive() {
		price = price.Div(s.cfg.PriceStep).Round(0).Mul(s.cfg.PriceStep)
	}

	return optional.Some(price), nil
}

// step moves price by one normally distributed return, drawn with the
// Box-Muller transform.
func (s *Synthetic) step(price float64) float64 {
	u1 := 1 - s.rng.Float64() // (0, 1]
	u2 := s.rng.Float64()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

	next := price * (1 + s.cfg.Volatility*z + s.cfg.Trend)
	if next <= 0 {
		next = price * 0.99
	}

	return next
}

var _ MarketSource = (*Synthetic)(nil)

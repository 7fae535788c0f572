// Package strategy defines the decision source consulted once per instrument
// and cycle, plus a rule-based implementation built on entry and exit thresholds.
package strategy

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/shopspring/decimal"
)

// View is the engine state a strategy may look at. It is a copy; changing it
// has no effect on the engine.
type View struct {
	PositionLots   int64
	EntryPrice     optional.Option[decimal.Decimal]
	EntryTime      optional.Option[time.Time]
	HasActiveOrder bool
	EntriesAllowed bool
}

// Strategy turns market data into a BUY, SELL or HOLD decision.
type Strategy interface {
	Decide(ctx context.Context, instrument types.InstrumentInfo, market types.MarketData, view View) (types.Decision, error)
	// Name identifies the strategy in logs and journal metadata.
	Name() string
}

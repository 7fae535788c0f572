// Package instrument maps configured tickers to venue instruments.
package instrument

import (
	"context"
	"sort"
	"sync"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/internal/logger"
	"github.com/rxtech-lab/argo-trader/internal/retry"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/rxtech-lab/argo-trader/internal/venue"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Resolver caches instrument metadata by ticker and by venue id.
type Resolver struct {
	venue     venue.Venue
	retrier   *retry.Retrier
	log       *logger.Logger
	classCode string

	mu       sync.RWMutex
	byTicker map[string]types.InstrumentInfo
	byID     map[string]types.InstrumentInfo
}

// NewResolver creates a Resolver. classCode constrains lookups to one market
// so a ticker does not resolve to a derivative of the same name.
func NewResolver(v venue.Venue, retrier *retry.Retrier, log *logger.Logger, classCode string) *Resolver {
	return &Resolver{
		venue:     v,
		retrier:   retrier,
		log:       log,
		classCode: classCode,
		mu:        sync.RWMutex{},
		byTicker:  make(map[string]types.InstrumentInfo),
		byID:      make(map[string]types.InstrumentInfo),
	}
}

// Resolve looks up every ticker. A ticker that fails is logged and skipped.
func (r *Resolver) Resolve(ctx context.Context, tickers []string) map[string]types.InstrumentInfo {
	out := make(map[string]types.InstrumentInfo, len(tickers))

	for _, ticker := range tickers {
		inst, err := retry.Do(ctx, r.retrier, "instrument_by", func(ctx context.Context) (venue.Instrument, error) {
			return r.venue.InstrumentBy(ctx, ticker, r.classCode)
		})
		if err != nil {
			r.log.Warn("Failed to resolve ticker", zap.String("ticker", ticker), zap.Error(err))

			continue
		}

		if inst.Tradeable.IsSome() && !inst.Tradeable.Unwrap() {
			r.log.Warn("Instrument is not tradeable", zap.String("ticker", ticker), zap.String("instrument_id", inst.InstrumentID))

			continue
		}

		info := inst.Info()
		if info.Ticker == "" {
			info.Ticker = ticker
		}

		r.mu.Lock()
		r.byTicker[ticker] = info
		r.byID[info.InstrumentID] = info
		r.mu.Unlock()

		out[ticker] = info

		r.log.Info("Resolved instrument",
			zap.String("ticker", ticker),
			zap.String("instrument_id", info.InstrumentID),
			zap.String("lot_size", info.LotSize.String()),
			zap.String("min_price_increment", info.MinPriceIncrement.String()),
		)
	}

	return out
}

// Lookup returns the instrument with venue id id.
func (r *Resolver) Lookup(id string) (types.InstrumentInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.byID[id]

	return info, ok
}

// ByTicker returns the instrument configured as ticker.
func (r *Resolver) ByTicker(ticker string) (types.InstrumentInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.byTicker[ticker]

	return info, ok
}

// All returns every resolved instrument ordered by ticker.
func (r *Resolver) All() []types.InstrumentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.InstrumentInfo, 0, len(r.byTicker))
	for _, info := range r.byTicker {
		out = append(out, info)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })

	return out
}

// Candidate is a resolved instrument with the lot cost it was judged at.
type Candidate struct {
	Info    types.InstrumentInfo
	LotCost decimal.Decimal
}

// PickTradeable resolves tickers and keeps those whose one-lot cost at the last
// price does not exceed maxLotCost, cheapest first. A non-positive maxLotCost
// disables the filter. Instruments without a last price are skipped.
func (r *Resolver) PickTradeable(ctx context.Context, tickers []string, maxLotCost decimal.Decimal) ([]Candidate, error) {
	resolved := r.Resolve(ctx, tickers)
	out := make([]Candidate, 0, len(resolved))

	for _, ticker := range tickers {
		info, ok := resolved[ticker]
		if !ok {
			continue
		}

		last, err := retry.Do(ctx, r.retrier, "last_price", func(ctx context.Context) (optional.Option[decimal.Decimal], error) {
			return r.venue.GetLastPrice(ctx, info.InstrumentID)
		})
		if err != nil {
			r.log.Warn("Failed to get last price", zap.String("ticker", ticker), zap.Error(err))

			continue
		}

		if last.IsNone() || !last.Unwrap().IsPositive() {
			r.log.Warn("No last price", zap.String("ticker", ticker))

			continue
		}

		cost := info.LotCost(last.Unwrap())
		if maxLotCost.IsPositive() && cost.GreaterThan(maxLotCost) {
			r.log.Info("Instrument lot too expensive",
				zap.String("ticker", ticker),
				zap.String("lot_cost", cost.String()),
				zap.String("max_lot_cost", maxLotCost.String()),
			)

			continue
		}

		out = append(out, Candidate{Info: info, LotCost: cost})
	}

	if len(out) == 0 {
		return nil, errors.New(errors.ErrCodeNoTradeableSymbol, "no tradeable instrument within the lot cost limit")
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].LotCost.LessThan(out[j].LotCost) })

	return out, nil
}

package engine

import (
	"context"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/internal/retry"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/rxtech-lab/argo-trader/internal/venue"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Reconcile refreshes positions and open orders from the venue. The two
// fetches run concurrently and fail independently; a failed half leaves its
// part of the state stale until the next cycle. It returns an error only when
// both halves failed.
//
// Orders are applied before positions so that an order that left the book
// since the last cycle is polled, and its fill booked, while the entry it
// closes is still known.
func (e *Engine) Reconcile(ctx context.Context) error {
	var (
		positions    venue.Positions
		openOrders   []venue.OpenOrder
		positionsErr error
		ordersErr    error
		group        errgroup.Group
	)

	group.Go(func() error {
		positions, positionsErr = retry.Do(ctx, e.retrier, "get_positions", func(ctx context.Context) (venue.Positions, error) {
			return e.venue.GetPositions(ctx, e.accountID)
		})

		return nil
	})

	group.Go(func() error {
		openOrders, ordersErr = retry.Do(ctx, e.retrier, "get_open_orders", func(ctx context.Context) ([]venue.OpenOrder, error) {
			return e.venue.GetOpenOrders(ctx, e.accountID)
		})

		return nil
	})

	_ = group.Wait()

	if ordersErr != nil {
		e.log.Warn("Failed to refresh open orders", zap.Error(ordersErr))
	} else {
		e.applyOpenOrders(ctx, openOrders)
	}

	if positionsErr != nil {
		e.log.Warn("Failed to refresh positions", zap.Error(positionsErr))
	} else {
		e.applyPositions(ctx, positions)
	}

	if positionsErr != nil && ordersErr != nil {
		return errors.Wrap(errors.ErrCodeReconcileFailed, "positions and open orders unavailable", positionsErr)
	}

	return nil
}

// applyPositions writes cash and lot counts, bridging entry bookkeeping on
// position transitions.
func (e *Engine) applyPositions(ctx context.Context, positions venue.Positions) {
	e.cash = optional.Some(positions.Cash(e.cfg.SettlementCurrency))

	for _, info := range e.instruments {
		id := info.InstrumentID
		st := e.state.Instrument(id)

		prev := st.PositionLots
		lots := info.UnitsToLots(positions.Units(id))
		st.PositionLots = lots

		switch {
		case prev > 0 && lots == 0:
			st.ClearEntry()
		case prev == 0 && lots > 0:
			e.adoptEntry(ctx, info)
		}

		if prev != lots {
			e.log.Info("Reconciled position",
				zap.String("ticker", info.Ticker),
				zap.Int64("previous_lots", prev),
				zap.Int64("lots", lots),
			)
		}
	}
}

// adoptEntry records an entry for a position that appeared without a fill
// being observed: entry time is now, entry price the last price when known.
func (e *Engine) adoptEntry(ctx context.Context, info types.InstrumentInfo) {
	st := e.state.Instrument(info.InstrumentID)

	if st.EntryTime.IsNone() {
		st.EntryTime = optional.Some(e.clock())
	}

	if st.EntryPrice.IsSome() {
		return
	}

	last, err := e.lastPrice(ctx, info.InstrumentID)
	if err != nil {
		e.log.Warn("Entry price unknown", zap.String("ticker", info.Ticker), zap.Error(err))

		return
	}

	if last.IsSome() {
		st.EntryPrice = optional.Some(last.Unwrap())
	}
}

// applyOpenOrders tracks the first open order of every instrument and stops
// tracking orders that left the book.
func (e *Engine) applyOpenOrders(ctx context.Context, openOrders []venue.OpenOrder) {
	first := make(map[string]venue.OpenOrder, len(openOrders))

	for _, o := range openOrders {
		if _, tracked := e.byID[o.InstrumentID]; !tracked {
			continue
		}

		if _, seen := first[o.InstrumentID]; !seen {
			first[o.InstrumentID] = o
		}
	}

	for _, info := range e.instruments {
		id := info.InstrumentID
		st := e.state.Instrument(id)
		listed, hasListed := first[id]

		if !hasListed {
			if st.HasActiveOrder() {
				e.orderLeftBook(ctx, info)
			}

			continue
		}

		if st.ActiveOrderID().TakeOr("") == listed.OrderID {
			continue
		}

		// an order listed by the venue but not tracked locally, or a different one
		side := listed.Side.TakeOr(types.SideBuy)
		if listed.Side.IsNone() && st.InPosition() {
			side = types.SideSell
		}

		if st.HasActiveOrder() {
			e.partialsDone(st.ActiveOrderID().Unwrap())
		}

		st.SetOrder(listed.OrderID, listed.ClientUID.TakeOr(""), side, e.clock())
		e.ledger.Release(id)

		reserved := decimal.Zero
		if side == types.SideBuy && st.PositionLots == 0 {
			reserved = e.reserveListed(info, listed)
		}

		e.log.Info("Reconcile adopted open order",
			zap.String("ticker", info.Ticker),
			zap.String("order_id", listed.OrderID),
			zap.String("side", string(side)),
			zap.String("reserved", reserved.String()),
		)
	}
}

// reserveListed reserves the unexecuted notional of an adopted buy so its
// cash, which the venue reports as part of the balance, is not spent twice.
func (e *Engine) reserveListed(info types.InstrumentInfo, listed venue.OpenOrder) decimal.Decimal {
	if listed.Price.IsNone() || listed.RemainingLots.IsNone() {
		e.log.Warn("Adopted buy has no price or size, nothing reserved",
			zap.String("ticker", info.Ticker),
			zap.String("order_id", listed.OrderID),
		)

		return decimal.Zero
	}

	cost := info.LotCost(listed.Price.Unwrap()).Mul(decimal.NewFromInt(listed.RemainingLots.Unwrap()))
	e.ledger.Reserve(info.InstrumentID, cost)

	return cost
}

// orderLeftBook handles a tracked order missing from the open orders. The
// order is polled once so a fill between cycles is booked. If the poll is
// inconclusive tracking is dropped and the reservation released.
func (e *Engine) orderLeftBook(ctx context.Context, info types.InstrumentInfo) {
	id := info.InstrumentID
	st := e.state.Instrument(id)
	orderID := st.ActiveOrderID().Unwrap()

	switch e.Poll(ctx, id) {
	case types.OutcomeFilled, types.OutcomeCancelled, types.OutcomeRejected, types.OutcomeStateLost:
		return
	case types.OutcomePending:
		// the order state is more specific than the listing, which may lag
		e.log.Info("Reconcile kept order missing from open orders",
			zap.String("ticker", info.Ticker),
			zap.String("order_id", orderID),
		)

		return
	case types.OutcomeNone:
	}

	released := e.clearTracking(id)

	e.log.Info("Reconcile cleared order that left the book",
		zap.String("ticker", info.Ticker),
		zap.String("order_id", orderID),
		zap.String("released", released.String()),
	)
}

// clearTracking clears the order of id and releases its reservation.
func (e *Engine) clearTracking(id string) decimal.Decimal {
	st := e.state.Instrument(id)

	if orderID := st.ActiveOrderID(); orderID.IsSome() {
		e.partialsDone(orderID.Unwrap())
	}

	st.ClearOrder()

	return e.ledger.Release(id)
}

func (e *Engine) partialsDone(orderID string) {
	delete(e.partials, orderID)
}

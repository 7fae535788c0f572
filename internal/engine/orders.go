package engine

import (
	"context"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/internal/pricing"
	"github.com/rxtech-lab/argo-trader/internal/retry"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/rxtech-lab/argo-trader/internal/venue"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Journal reasons.
const (
	ReasonLimitBuy         = "limit_buy"
	ReasonLimitSellToClose = "limit_sell_to_close"
	ReasonInsufficientCash = "insufficient_cash"
	ReasonCashUnknown      = "cash_unknown"
	ReasonCancelBeforeSell = "cancel_before_sell"
	ReasonTTLExpired       = "ttl_expired"
	ReasonFlatten          = "flatten"
	ReasonFilled           = "filled"
	ReasonPartialFill      = "partial_fill"
	ReasonCancelledByVenue = "cancelled_by_venue"
	ReasonRejected         = "rejected"
	ReasonOrderNotFound    = "order_not_found"
)

// SubmitBuy places a limit buy of lots for id. It refuses, returning false,
// when an order is already tracked, a position is held or free cash does not
// cover the order. On success the order is tracked and its estimated cost
// reserved.
func (e *Engine) SubmitBuy(ctx context.Context, id string, price decimal.Decimal, lots int64) bool {
	info, ok := e.byID[id]
	if !ok || lots <= 0 || !price.IsPositive() {
		return false
	}

	st := e.state.Instrument(id)
	if st.HasActiveOrder() || st.PositionLots > 0 {
		return false
	}

	limit := pricing.Normalize(price, info.MinPriceIncrement, types.SideBuy)
	limit = e.nudge(ctx, info, limit, types.SideBuy)

	cost := info.LotCost(limit).Mul(decimal.NewFromInt(lots))
	if reason, free, enough := e.cashCovers(cost); !enough {
		e.skip(info, limit, lots, cost, free, reason)

		return false
	}

	key := e.newKey()
	req := venue.OrderRequest{
		InstrumentID:   id,
		Side:           types.SideBuy,
		Lots:           lots,
		Price:          limit,
		IdempotencyKey: key,
	}

	orderID, err := e.submit(ctx, "submit_buy", req)
	if err != nil {
		e.clearTracking(id)
		e.submitFailed(info, req, err)

		return false
	}

	st.SetOrder(orderID, key, types.SideBuy, e.clock())
	e.ledger.Reserve(id, cost)

	e.log.Info("Order BUY",
		zap.String("ticker", info.Ticker),
		zap.Int64("lots", lots),
		zap.String("price", limit.String()),
		zap.String("order_id", orderID),
		zap.String("client_uid", key),
	)

	e.record(types.JournalEvent{
		Event:        types.EventSubmit,
		InstrumentID: id,
		Side:         types.SideBuy,
		Lots:         optional.Some(lots),
		Price:        optional.Some(limit),
		OrderID:      orderID,
		ClientUID:    key,
		Status:       string(types.OrderStatusNew),
		Reason:       ReasonLimitBuy,
		Meta:         map[string]string{"reserved": cost.String()},
	})

	return true
}

// SubmitSellToClose sells the whole position of id. A tracked order is
// cancelled first and a failed cancel aborts the sell.
func (e *Engine) SubmitSellToClose(ctx context.Context, id string, price decimal.Decimal) bool {
	info, ok := e.byID[id]
	if !ok || !price.IsPositive() {
		return false
	}

	st := e.state.Instrument(id)
	if st.PositionLots <= 0 {
		return false
	}

	if st.HasActiveOrder() && !e.Cancel(ctx, id, ReasonCancelBeforeSell) {
		return false
	}

	lots := st.PositionLots
	limit := pricing.Normalize(price, info.MinPriceIncrement, types.SideSell)
	limit = e.nudge(ctx, info, limit, types.SideSell)

	key := e.newKey()
	req := venue.OrderRequest{
		InstrumentID:   id,
		Side:           types.SideSell,
		Lots:           lots,
		Price:          limit,
		IdempotencyKey: key,
	}

	orderID, err := e.submit(ctx, "submit_sell", req)
	if err != nil {
		e.clearTracking(id)
		e.submitFailed(info, req, err)

		return false
	}

	st.SetOrder(orderID, key, types.SideSell, e.clock())
	e.ledger.Release(id)

	e.log.Info("Order SELL",
		zap.String("ticker", info.Ticker),
		zap.Int64("lots", lots),
		zap.String("price", limit.String()),
		zap.String("order_id", orderID),
		zap.String("client_uid", key),
	)

	e.record(types.JournalEvent{
		Event:        types.EventSubmit,
		InstrumentID: id,
		Side:         types.SideSell,
		Lots:         optional.Some(lots),
		Price:        optional.Some(limit),
		OrderID:      orderID,
		ClientUID:    key,
		Status:       string(types.OrderStatusNew),
		Reason:       ReasonLimitSellToClose,
		Meta:         nil,
	})

	return true
}

// Cancel cancels the tracked order of id. Without a tracked order it does
// nothing and reports success. A venue answer of not found counts as
// success: the order is gone either way. Any other failure leaves the order
// tracked and returns false.
//
// A cancel for ReasonTTLExpired is journaled as EXPIRE, every other one as CANCEL.
func (e *Engine) Cancel(ctx context.Context, id, reason string) bool {
	st := e.state.Instrument(id)
	if !st.HasActiveOrder() {
		return true
	}

	orderID := st.ActiveOrderID().Unwrap()
	clientUID := st.ClientOrderUID().TakeOr("")
	side := st.OrderSide().TakeOr("")

	err := retry.Run(ctx, e.retrier, "cancel_order", func(ctx context.Context) error {
		return e.venue.CancelOrder(ctx, e.accountID, orderID)
	})

	status := string(types.OrderStatusCancelled)

	if err != nil {
		if !errors.IsNotFound(err) {
			e.log.Warn("Cancel failed",
				zap.String("instrument_id", id),
				zap.String("order_id", orderID),
				zap.Error(errors.Wrap(errors.ErrCodeCancelFailed, reason, err)),
			)

			return false
		}

		status = "NOT_FOUND"
	}

	e.clearTracking(id)

	event := types.EventCancel
	if reason == ReasonTTLExpired {
		event = types.EventExpire
	}

	e.log.Info("Order cancelled",
		zap.String("instrument_id", id),
		zap.String("order_id", orderID),
		zap.String("reason", reason),
		zap.String("status", status),
	)

	e.record(types.JournalEvent{
		Event:        event,
		InstrumentID: id,
		Side:         side,
		Lots:         optional.None[int64](),
		Price:        optional.None[decimal.Decimal](),
		OrderID:      orderID,
		ClientUID:    clientUID,
		Status:       status,
		Reason:       reason,
		Meta:         nil,
	})

	return true
}

// submit sends req with retries. The idempotency key makes a resend after a
// lost response return the order already accepted.
func (e *Engine) submit(ctx context.Context, operation string, req venue.OrderRequest) (string, error) {
	return retry.Do(ctx, e.retrier, operation, func(ctx context.Context) (string, error) {
		return e.venue.SubmitLimitOrder(ctx, e.accountID, req)
	})
}

// submitFailed logs a failed submission and journals venue rejections.
func (e *Engine) submitFailed(info types.InstrumentInfo, req venue.OrderRequest, err error) {
	e.log.Warn("Order submission failed",
		zap.String("ticker", info.Ticker),
		zap.String("side", string(req.Side)),
		zap.Int64("lots", req.Lots),
		zap.String("price", req.Price.String()),
		zap.Error(errors.Wrap(errors.ErrCodeOrderFailed, "submit limit order", err)),
	)

	if !errors.IsRejected(err) {
		return
	}

	e.record(types.JournalEvent{
		Event:        types.EventReject,
		InstrumentID: info.InstrumentID,
		Side:         req.Side,
		Lots:         optional.Some(req.Lots),
		Price:        optional.Some(req.Price),
		OrderID:      "",
		ClientUID:    req.IdempotencyKey,
		Status:       string(types.OrderStatusRejected),
		Reason:       ReasonRejected,
		Meta:         map[string]string{"error": err.Error()},
	})
}

// cashCovers checks cost against cash net of all reservations, with slack.
func (e *Engine) cashCovers(cost decimal.Decimal) (string, decimal.Decimal, bool) {
	if e.cash.IsNone() {
		return ReasonCashUnknown, decimal.Zero, false
	}

	free := e.cash.Unwrap().Sub(e.ledger.Total())
	allowed := free.Mul(decimal.NewFromInt(1).Add(e.cfg.Orders.CashSlack))

	if cost.GreaterThan(allowed) {
		return ReasonInsufficientCash, free, false
	}

	return "", free, true
}

// skip journals a refused entry, at most once per SkipCooldown per instrument.
func (e *Engine) skip(info types.InstrumentInfo, limit decimal.Decimal, lots int64, cost, free decimal.Decimal, reason string) {
	now := e.clock()
	id := info.InstrumentID

	if last, ok := e.lastSkip[id]; ok && now.Sub(last) < e.cfg.Orders.SkipCooldown {
		e.log.Debug("Entry skipped", zap.String("ticker", info.Ticker), zap.String("reason", reason))

		return
	}

	e.lastSkip[id] = now

	e.log.Info("Entry skipped",
		zap.String("ticker", info.Ticker),
		zap.String("reason", reason),
		zap.String("cost", cost.String()),
		zap.String("free_cash", free.String()),
	)

	e.record(types.JournalEvent{
		Event:        types.EventSkip,
		InstrumentID: id,
		Side:         types.SideBuy,
		Lots:         optional.Some(lots),
		Price:        optional.Some(limit),
		OrderID:      "",
		ClientUID:    "",
		Status:       "",
		Reason:       reason,
		Meta: map[string]string{
			"cost":      cost.String(),
			"free_cash": free.String(),
		},
	})
}

// nudge applies the configured tick nudge toward the last price.
func (e *Engine) nudge(ctx context.Context, info types.InstrumentInfo, limit decimal.Decimal, side types.Side) decimal.Decimal {
	if !e.cfg.Orders.Nudge {
		return limit
	}

	last, ok := e.lastPrices[info.InstrumentID]
	if !ok {
		fetched, err := e.lastPrice(ctx, info.InstrumentID)
		if err != nil || fetched.IsNone() {
			return limit
		}

		last = fetched.Unwrap()
	}

	ticks := e.cfg.Orders.BuyTicks
	if side == types.SideSell {
		ticks = e.cfg.Orders.SellTicks
	}

	return pricing.Nudge(limit, optional.Some(last), info.MinPriceIncrement, ticks, side)
}

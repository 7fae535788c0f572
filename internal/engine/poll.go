package engine

import (
	"context"
	"strconv"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/internal/retry"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/rxtech-lab/argo-trader/internal/venue"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Poll queries the venue for the tracked order of id and applies the result.
//
// A not found answer means the local state was lost: tracking is cleared and
// STATE_LOST journaled, without inferring a fill or a cancel. A partial fill
// is journaled once per change of executed lots and the order stays pending.
// A terminal status clears tracking; a fill also updates position and entry
// bookkeeping.
func (e *Engine) Poll(ctx context.Context, id string) types.Outcome {
	st := e.state.Instrument(id)
	if !st.HasActiveOrder() {
		return types.OutcomeNone
	}

	orderID := st.ActiveOrderID().Unwrap()

	order, err := retry.Do(ctx, e.retrier, "get_order_state", func(ctx context.Context) (venue.OrderState, error) {
		return e.venue.GetOrderState(ctx, e.accountID, orderID)
	})
	if err != nil {
		if errors.IsNotFound(err) {
			e.stateLost(id, orderID)

			return types.OutcomeStateLost
		}

		e.log.Warn("Order poll failed",
			zap.String("instrument_id", id),
			zap.String("order_id", orderID),
			zap.Error(errors.Wrap(errors.ErrCodePollFailed, "get order state", err)),
		)

		return types.OutcomeNone
	}

	side := order.Side.TakeOr(st.OrderSide().TakeOr(""))
	event := e.orderEvent(id, order, side)
	event.OrderID = orderID

	if order.IsPartialFill() && e.partials[orderID] != order.ExecutedLots {
		e.partials[orderID] = order.ExecutedLots

		partial := event
		partial.Event = types.EventPartialFill
		partial.Reason = ReasonPartialFill
		partial.Meta = map[string]string{"lots_requested": strconv.FormatInt(order.RequestedLots, 10)}
		e.record(partial)
	}

	switch order.Status {
	case types.OrderStatusFilled:
		e.applyFill(id, side, order)
		e.clearTracking(id)

		event.Event = types.EventFill
		event.Reason = ReasonFilled
		e.record(event)

		return types.OutcomeFilled
	case types.OrderStatusCancelled:
		e.clearTracking(id)

		event.Event = types.EventCancel
		event.Reason = ReasonCancelledByVenue
		e.record(event)

		return types.OutcomeCancelled
	case types.OrderStatusRejected:
		e.clearTracking(id)

		event.Event = types.EventReject
		event.Reason = ReasonRejected
		e.record(event)

		return types.OutcomeRejected
	case types.OrderStatusNew, types.OrderStatusPartiallyFilled:
	}

	return types.OutcomePending
}

// orderEvent builds the journal event describing order.
func (e *Engine) orderEvent(id string, order venue.OrderState, side types.Side) types.JournalEvent {
	st := e.state.Instrument(id)

	return types.JournalEvent{
		Event:        "",
		InstrumentID: id,
		Side:         side,
		Lots:         optional.Some(order.ExecutedLots),
		Price:        order.AvgPrice,
		OrderID:      order.OrderID,
		ClientUID:    st.ClientOrderUID().TakeOr(""),
		Status:       string(order.Status),
		Reason:       "",
		Meta:         nil,
	}
}

// applyFill books a completed order. A buy sets lots and entry and counts a
// trade. A sell realizes PnL against the entry and clears it.
func (e *Engine) applyFill(id string, side types.Side, order venue.OrderState) {
	info := e.byID[id]
	st := e.state.Instrument(id)
	now := e.clock()

	switch side {
	case types.SideBuy:
		e.state.TradesToday++
		st.PositionLots = max(st.PositionLots, order.ExecutedLots)

		if order.AvgPrice.IsSome() {
			st.SetEntry(order.AvgPrice.Unwrap(), now)
		} else if st.EntryTime.IsNone() {
			st.EntryTime = optional.Some(now)
		}
	case types.SideSell:
		if order.AvgPrice.IsSome() && st.EntryPrice.IsSome() {
			pnl := order.AvgPrice.Unwrap().Sub(st.EntryPrice.Unwrap()).
				Mul(info.LotSize).
				Mul(decimal.NewFromInt(order.ExecutedLots))
			e.state.DayRealizedPnL = e.state.DayRealizedPnL.Add(pnl)

			e.log.Info("Realized PnL",
				zap.String("ticker", info.Ticker),
				zap.String("pnl", pnl.String()),
				zap.String("day_realized_pnl", e.state.DayRealizedPnL.String()),
			)
		}

		st.PositionLots = max(0, st.PositionLots-order.ExecutedLots)
		st.ClearEntry()
	}
}

// stateLost drops an order the venue no longer knows.
func (e *Engine) stateLost(id, orderID string) {
	st := e.state.Instrument(id)
	clientUID := st.ClientOrderUID().TakeOr("")
	side := st.OrderSide().TakeOr("")

	released := e.clearTracking(id)

	e.log.Warn("Order state lost",
		zap.String("instrument_id", id),
		zap.String("order_id", orderID),
		zap.String("released", released.String()),
	)

	e.record(types.JournalEvent{
		Event:        types.EventStateLost,
		InstrumentID: id,
		Side:         side,
		Lots:         optional.None[int64](),
		Price:        optional.None[decimal.Decimal](),
		OrderID:      orderID,
		ClientUID:    clientUID,
		Status:       "NOT_FOUND",
		Reason:       ReasonOrderNotFound,
		Meta:         nil,
	})
}

package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpireIfStale cancels the tracked order of id once now - placedAt >= TTL.
// It reports whether an order was expired.
func (e *Engine) ExpireIfStale(ctx context.Context, id string, now time.Time) bool {
	st := e.state.Instrument(id)

	placedAt := st.OrderPlacedAt()
	if placedAt.IsNone() {
		return false
	}

	age := now.Sub(placedAt.Unwrap())
	if age < e.cfg.Orders.TTL {
		return false
	}

	e.log.Info("Order TTL expired",
		zap.String("instrument_id", id),
		zap.String("order_id", st.ActiveOrderID().TakeOr("")),
		zap.Duration("age", age),
		zap.Duration("ttl", e.cfg.Orders.TTL),
	)

	return e.Cancel(ctx, id, ReasonTTLExpired)
}

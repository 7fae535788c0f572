package types

// Side is the direction of an order.
type Side string

// OrderStatus is the execution status reported by the venue.
type OrderStatus string

// Outcome is what a poll or cancel concluded about a tracked order.
type Outcome string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

const (
	// OutcomeNone means the poll was skipped or failed and nothing changed.
	OutcomeNone Outcome = "NONE"
	// OutcomePending means the order is still working, possibly partially filled.
	OutcomePending   Outcome = "PENDING"
	OutcomeFilled    Outcome = "FILLED"
	OutcomeCancelled Outcome = "CANCELLED"
	OutcomeRejected  Outcome = "REJECTED"
	// OutcomeStateLost means the venue no longer knows the order; fill or cancel cannot be inferred.
	OutcomeStateLost Outcome = "STATE_LOST"
)

// IsTerminal reports whether the venue will not change the order any further.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

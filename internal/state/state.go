// Package state holds the engine's local belief about the account: one
// InstrumentState per traded instrument plus the daily counters.
//
// Nothing in this package talks to the venue. The engine owns a single
// BotState and mutates it from one goroutine; only the Ledger is shared.
package state

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/shopspring/decimal"
)

// InstrumentState is the order and position bookkeeping of one instrument.
//
// The four order fields are set and cleared together through SetOrder and
// ClearOrder, so they are either all Some or all None.
type InstrumentState struct {
	activeOrderID  optional.Option[string]
	clientOrderUID optional.Option[string]
	orderSide      optional.Option[types.Side]
	orderPlacedAt  optional.Option[time.Time]

	// PositionLots is only written by reconciliation and fills.
	PositionLots int64
	EntryPrice   optional.Option[decimal.Decimal]
	EntryTime    optional.Option[time.Time]
}

// NewInstrumentState returns a flat state with no order and no position.
func NewInstrumentState() *InstrumentState {
	return &InstrumentState{
		activeOrderID:  optional.None[string](),
		clientOrderUID: optional.None[string](),
		orderSide:      optional.None[types.Side](),
		orderPlacedAt:  optional.None[time.Time](),
		PositionLots:   0,
		EntryPrice:     optional.None[decimal.Decimal](),
		EntryTime:      optional.None[time.Time](),
	}
}

// SetOrder starts tracking a pending order.
func (s *InstrumentState) SetOrder(orderID, clientUID string, side types.Side, placedAt time.Time) {
	s.activeOrderID = optional.Some(orderID)
	s.clientOrderUID = optional.Some(clientUID)
	s.orderSide = optional.Some(side)
	s.orderPlacedAt = optional.Some(placedAt)
}

// ClearOrder stops tracking the pending order, if any.
func (s *InstrumentState) ClearOrder() {
	s.activeOrderID = optional.None[string]()
	s.clientOrderUID = optional.None[string]()
	s.orderSide = optional.None[types.Side]()
	s.orderPlacedAt = optional.None[time.Time]()
}

// HasActiveOrder reports whether an order is being tracked.
func (s *InstrumentState) HasActiveOrder() bool {
	return s.activeOrderID.IsSome()
}

// ActiveOrderID returns the venue id of the tracked order.
func (s *InstrumentState) ActiveOrderID() optional.Option[string] {
	return s.activeOrderID
}

// ClientOrderUID returns the idempotency key of the tracked order.
func (s *InstrumentState) ClientOrderUID() optional.Option[string] {
	return s.clientOrderUID
}

// OrderSide returns the side of the tracked order.
func (s *InstrumentState) OrderSide() optional.Option[types.Side] {
	return s.orderSide
}

// OrderPlacedAt returns when the tracked order was placed.
func (s *InstrumentState) OrderPlacedAt() optional.Option[time.Time] {
	return s.orderPlacedAt
}

// HasPendingBuy reports whether the instrument is flat with a tracked order,
// which reserves a position slot.
func (s *InstrumentState) HasPendingBuy() bool {
	return s.HasActiveOrder() && s.PositionLots == 0
}

// InPosition reports whether any lots are held.
func (s *InstrumentState) InPosition() bool {
	return s.PositionLots > 0
}

// SetEntry records the entry of a new position unless one is already recorded.
func (s *InstrumentState) SetEntry(price decimal.Decimal, at time.Time) {
	if s.EntryPrice.IsNone() {
		s.EntryPrice = optional.Some(price)
	}

	if s.EntryTime.IsNone() {
		s.EntryTime = optional.Some(at)
	}
}

// ClearEntry forgets the entry of a closed position.
func (s *InstrumentState) ClearEntry() {
	s.EntryPrice = optional.None[decimal.Decimal]()
	s.EntryTime = optional.None[time.Time]()
}

// Snapshot is a read-only copy of an InstrumentState, used by the strategy and
// the status endpoint.
type Snapshot struct {
	InstrumentID   string     `json:"instrument_id"`
	ActiveOrderID  string     `json:"active_order_id,omitempty"`
	ClientOrderUID string     `json:"client_order_uid,omitempty"`
	OrderSide      types.Side `json:"order_side,omitempty"`
	OrderPlacedAt  *time.Time `json:"order_placed_at,omitempty"`
	PositionLots   int64      `json:"position_lots"`
	EntryPrice     *string    `json:"entry_price,omitempty"`
	EntryTime      *time.Time `json:"entry_time,omitempty"`
}

// Snapshot copies the state.
func (s *InstrumentState) Snapshot(instrumentID string) Snapshot {
	snap := Snapshot{
		InstrumentID:   instrumentID,
		ActiveOrderID:  s.activeOrderID.TakeOr(""),
		ClientOrderUID: s.clientOrderUID.TakeOr(""),
		OrderSide:      s.orderSide.TakeOr(""),
		OrderPlacedAt:  nil,
		PositionLots:   s.PositionLots,
		EntryPrice:     nil,
		EntryTime:      nil,
	}

	if s.orderPlacedAt.IsSome() {
		placed := s.orderPlacedAt.Unwrap()
		snap.OrderPlacedAt = &placed
	}

	if s.EntryPrice.IsSome() {
		price := s.EntryPrice.Unwrap().String()
		snap.EntryPrice = &price
	}

	if s.EntryTime.IsSome() {
		entry := s.EntryTime.Unwrap()
		snap.EntryTime = &entry
	}

	return snap
}

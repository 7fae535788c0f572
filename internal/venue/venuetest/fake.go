// Package venuetest provides a scriptable in-memory venue for tests.
package venuetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/rxtech-lab/argo-trader/internal/venue"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"github.com/shopspring/decimal"
)

// Method names accepted by FailNext.
const (
	MethodListAccounts     = "ListAccounts"
	MethodGetPositions     = "GetPositions"
	MethodGetOpenOrders    = "GetOpenOrders"
	MethodSubmitLimitOrder = "SubmitLimitOrder"
	MethodCancelOrder      = "CancelOrder"
	MethodGetOrderState    = "GetOrderState"
	MethodGetLastPrice     = "GetLastPrice"
	MethodInstrumentBy     = "InstrumentBy"
)

// Fake is a venue whose state tests set directly. Submissions are idempotent
// on the request key, like a real venue.
type Fake struct {
	mu sync.Mutex

	Accounts    []venue.Account
	Money       []venue.MoneyBalance
	Securities  []venue.SecurityBalance
	Instruments map[string]venue.Instrument
	Prices      map[string]decimal.Decimal

	open   []venue.OpenOrder
	states map[string]venue.OrderState
	byKey  map[string]string
	seq    int

	errs  map[string][]error
	lose  int
	calls map[string]int

	// Submitted records every submission that reached the venue, retries included.
	Submitted []venue.OrderRequest
	// Cancelled records every order id passed to CancelOrder.
	Cancelled []string
}

// NewFake returns an empty Fake with one account named "acc".
func NewFake() *Fake {
	return &Fake{
		mu:          sync.Mutex{},
		Accounts:    []venue.Account{{ID: "acc", Name: "test"}},
		Money:       nil,
		Securities:  nil,
		Instruments: make(map[string]venue.Instrument),
		Prices:      make(map[string]decimal.Decimal),
		open:        nil,
		states:      make(map[string]venue.OrderState),
		byKey:       make(map[string]string),
		seq:         0,
		errs:        make(map[string][]error),
		lose:        0,
		calls:       make(map[string]int),
		Submitted:   nil,
		Cancelled:   nil,
	}
}

// FailNext queues errors returned by the next calls of method, one per call.
func (f *Fake) FailNext(method string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.errs[method] = append(f.errs[method], errs...)
}

// LoseSubmitResponses makes the next n accepted submissions answer with a
// transient error, as if the response was lost on the way back.
func (f *Fake) LoseSubmitResponses(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lose = n
}

// Calls returns how often method was invoked.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[method]
}

// SetCash replaces the money balances with a single one.
func (f *Fake) SetCash(currency string, amount decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Money = []venue.MoneyBalance{{Currency: currency, Amount: amount}}
}

// SetUnits replaces the holding of instrumentID.
func (f *Fake) SetUnits(instrumentID string, units decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()

	kept := make([]venue.SecurityBalance, 0, len(f.Securities)+1)

	for _, s := range f.Securities {
		if s.InstrumentID != instrumentID {
			kept = append(kept, s)
		}
	}

	if units.IsPositive() {
		kept = append(kept, venue.SecurityBalance{InstrumentID: instrumentID, Units: units})
	}

	f.Securities = kept
}

// SetPrice sets the last price of instrumentID.
func (f *Fake) SetPrice(instrumentID string, price decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Prices[instrumentID] = price
}

// AddInstrument registers an instrument under its ticker.
func (f *Fake) AddInstrument(inst venue.Instrument) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Instruments[inst.Ticker] = inst
}

// AddOpenOrder lists an order the engine did not place.
func (f *Fake) AddOpenOrder(o venue.OpenOrder) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.open = append(f.open, o)
}

// OpenOrders returns the live orders.
func (f *Fake) OpenOrders() []venue.OpenOrder {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]venue.OpenOrder(nil), f.open...)
}

// SetOrderState overrides the reported state of an order. A terminal status
// also removes it from the open orders.
func (f *Fake) SetOrderState(st venue.OrderState) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.states[st.OrderID] = st

	if st.Status.IsTerminal() {
		f.removeOpen(st.OrderID)
	}
}

// Fill executes lots of an order at price.
func (f *Fake) Fill(orderID string, lots int64, price decimal.Decimal) {
	f.mu.Lock()
	st := f.states[orderID]
	f.mu.Unlock()

	st.ExecutedLots = lots
	st.AvgPrice = optional.Some(price)
	st.Status = types.OrderStatusPartiallyFilled

	if lots >= st.RequestedLots {
		st.Status = types.OrderStatusFilled
	}

	f.SetOrderState(st)

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.open {
		if f.open[i].OrderID == orderID {
			f.open[i].RemainingLots = optional.Some(st.RequestedLots - lots)
		}
	}
}

// Forget drops an order entirely so lookups report not found.
func (f *Fake) Forget(orderID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.states, orderID)
	f.removeOpen(orderID)
}

func (f *Fake) removeOpen(orderID string) {
	kept := f.open[:0]

	for _, o := range f.open {
		if o.OrderID != orderID {
			kept = append(kept, o)
		}
	}

	f.open = kept
}

// call counts the invocation and pops a queued error. Caller holds mu.
func (f *Fake) call(method string) error {
	f.calls[method]++

	queue := f.errs[method]
	if len(queue) == 0 {
		return nil
	}

	f.errs[method] = queue[1:]

	return queue[0]
}

// ListAccounts implements venue.Venue.
func (f *Fake) ListAccounts(_ context.Context) ([]venue.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.call(MethodListAccounts); err != nil {
		return nil, err
	}

	return append([]venue.Account(nil), f.Accounts...), nil
}

// GetPositions implements venue.Venue.
func (f *Fake) GetPositions(_ context.Context, _ string) (venue.Positions, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.call(MethodGetPositions); err != nil {
		return venue.Positions{}, err
	}

	return venue.Positions{
		Money:      append([]venue.MoneyBalance(nil), f.Money...),
		Securities: append([]venue.SecurityBalance(nil), f.Securities...),
	}, nil
}

// GetOpenOrders implements venue.Venue.
func (f *Fake) GetOpenOrders(_ context.Context, _ string) ([]venue.OpenOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.call(MethodGetOpenOrders); err != nil {
		return nil, err
	}

	return append([]venue.OpenOrder(nil), f.open...), nil
}

// SubmitLimitOrder implements venue.Venue.
func (f *Fake) SubmitLimitOrder(_ context.Context, _ string, req venue.OrderRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.call(MethodSubmitLimitOrder); err != nil {
		return "", err
	}

	f.Submitted = append(f.Submitted, req)

	id, known := f.byKey[req.IdempotencyKey]
	if !known {
		f.seq++
		id = fmt.Sprintf("order-%d", f.seq)
		f.byKey[req.IdempotencyKey] = id
		f.open = append(f.open, venue.OpenOrder{
			OrderID:       id,
			InstrumentID:  req.InstrumentID,
			Side:          optional.Some(req.Side),
			ClientUID:     optional.Some(req.IdempotencyKey),
			Price:         optional.Some(req.Price),
			RemainingLots: optional.Some(req.Lots),
		})
		f.states[id] = venue.OrderState{
			OrderID:       id,
			Status:        types.OrderStatusNew,
			Side:          optional.Some(req.Side),
			RequestedLots: req.Lots,
			ExecutedLots:  0,
			AvgPrice:      optional.None[decimal.Decimal](),
		}
	}

	if f.lose > 0 {
		f.lose--

		return "", errors.New(errors.ErrCodeTransient, "response lost")
	}

	return id, nil
}

// CancelOrder implements venue.Venue.
func (f *Fake) CancelOrder(_ context.Context, _ string, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Cancelled = append(f.Cancelled, orderID)

	if err := f.call(MethodCancelOrder); err != nil {
		return err
	}

	st, ok := f.states[orderID]
	if !ok || st.Status.IsTerminal() {
		return errors.Newf(errors.ErrCodeNotFound, "order not found: %s", orderID)
	}

	st.Status = types.OrderStatusCancelled
	f.states[orderID] = st
	f.removeOpen(orderID)

	return nil
}

// GetOrderState implements venue.Venue.
func (f *Fake) GetOrderState(_ context.Context, _ string, orderID string) (venue.OrderState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.call(MethodGetOrderState); err != nil {
		return venue.OrderState{}, err
	}

	st, ok := f.states[orderID]
	if !ok {
		return venue.OrderState{}, errors.Newf(errors.ErrCodeNotFound, "order not found: %s", orderID)
	}

	return st, nil
}

// GetLastPrice implements venue.Venue.
func (f *Fake) GetLastPrice(_ context.Context, instrumentID string) (optional.Option[decimal.Decimal], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.call(MethodGetLastPrice); err != nil {
		return optional.None[decimal.Decimal](), err
	}

	p, ok := f.Prices[instrumentID]
	if !ok {
		return optional.None[decimal.Decimal](), nil
	}

	return optional.Some(p), nil
}

// InstrumentBy implements venue.Venue.
func (f *Fake) InstrumentBy(_ context.Context, ticker, _ string) (venue.Instrument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.call(MethodInstrumentBy); err != nil {
		return venue.Instrument{}, err
	}

	inst, ok := f.Instruments[ticker]
	if !ok {
		return venue.Instrument{}, errors.Newf(errors.ErrCodeInstrumentUnknown, "unknown ticker %s", ticker)
	}

	return inst, nil
}

var _ venue.Venue = (*Fake)(nil)

// Package paper is an in-memory venue that simulates limit order execution
// against prices taken from a real market data source.
//
// Orders rest until the last price crosses their limit, then fill completely
// at the limit. Cancelling an order that is no longer open reports not found,
// like a live venue does.
package paper

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/internal/logger"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/rxtech-lab/argo-trader/internal/venue"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AccountID is the single simulated account.
const AccountID = "paper"

// MarketSource supplies instrument metadata and prices.
type MarketSource interface {
	InstrumentBy(ctx context.Context, ticker, classCode string) (venue.Instrument, error)
	GetLastPrice(ctx context.Context, instrumentID string) (optional.Option[decimal.Decimal], error)
}

// Config seeds the simulated account.
type Config struct {
	Currency    string          `json:"currency" yaml:"currency" jsonschema:"title=Currency,default=USDT"`
	InitialCash decimal.Decimal `json:"initial_cash" yaml:"initial_cash" jsonschema:"title=Initial Cash,default=10000"`
}

type order struct {
	id        string
	clientUID string
	req       venue.OrderRequest
	lotSize   decimal.Decimal
	status    types.OrderStatus
	executed  int64
	avgPrice  optional.Option[decimal.Decimal]
}

// Venue is the simulated venue. It is safe for concurrent use.
type Venue struct {
	source   MarketSource
	currency string
	log      *logger.Logger

	mu          sync.Mutex
	cash        decimal.Decimal
	units       map[string]decimal.Decimal
	instruments map[string]venue.Instrument
	prices      map[string]decimal.Decimal
	orders      map[string]*order
	byClientUID map[string]string
	seq         int64
}

// New creates a paper venue.
func New(source MarketSource, cfg Config, log *logger.Logger) *Venue {
	return &Venue{
		source:      source,
		currency:    cfg.Currency,
		log:         log,
		mu:          sync.Mutex{},
		cash:        cfg.InitialCash,
		units:       make(map[string]decimal.Decimal),
		instruments: make(map[string]venue.Instrument),
		prices:      make(map[string]decimal.Decimal),
		orders:      make(map[string]*order),
		byClientUID: make(map[string]string),
		seq:         0,
	}
}

// ListAccounts returns the simulated account.
func (v *Venue) ListAccounts(_ context.Context) ([]venue.Account, error) {
	return []venue.Account{{ID: AccountID, Name: "paper"}}, nil
}

// GetPositions returns simulated cash and holdings.
func (v *Venue) GetPositions(_ context.Context, accountID string) (venue.Positions, error) {
	if err := checkAccount(accountID); err != nil {
		return venue.Positions{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	ids := make([]string, 0, len(v.units))
	for id := range v.units {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	securities := make([]venue.SecurityBalance, 0, len(ids))

	for _, id := range ids {
		if v.units[id].IsPositive() {
			securities = append(securities, venue.SecurityBalance{InstrumentID: id, Units: v.units[id]})
		}
	}

	return venue.Positions{
		Money:      []venue.MoneyBalance{{Currency: v.currency, Amount: v.cash}},
		Securities: securities,
	}, nil
}

// GetOpenOrders lists resting orders in submission order.
func (v *Venue) GetOpenOrders(_ context.Context, accountID string) ([]venue.OpenOrder, error) {
	if err := checkAccount(accountID); err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	open := make([]*order, 0)

	for _, o := range v.orders {
		if !o.status.IsTerminal() {
			open = append(open, o)
		}
	}

	sort.Slice(open, func(i, j int) bool { return open[i].id < open[j].id })

	out := make([]venue.OpenOrder, 0, len(open))
	for _, o := range open {
		out = append(out, venue.OpenOrder{
			OrderID:       o.id,
			InstrumentID:  o.req.InstrumentID,
			Side:          optional.Some(o.req.Side),
			ClientUID:     optional.Some(o.clientUID),
			Price:         optional.Some(o.req.Price),
			RemainingLots: optional.Some(o.req.Lots - o.executed),
		})
	}

	return out, nil
}

// SubmitLimitOrder accepts an order, or returns the existing one for a known idempotency key.
func (v *Venue) SubmitLimitOrder(_ context.Context, accountID string, req venue.OrderRequest) (string, error) {
	if err := checkAccount(accountID); err != nil {
		return "", err
	}

	if req.Lots <= 0 {
		return "", errors.Newf(errors.ErrCodeInvalidQuantity, "order lots must be positive, got %d", req.Lots)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if req.IdempotencyKey != "" {
		if id, ok := v.byClientUID[req.IdempotencyKey]; ok {
			return id, nil
		}
	}

	inst, ok := v.instruments[req.InstrumentID]
	if !ok {
		return "", errors.Newf(errors.ErrCodeRejected, "unknown instrument %s", req.InstrumentID)
	}

	if inst.MinPriceIncrement.IsPositive() && !req.Price.Mod(inst.MinPriceIncrement).IsZero() {
		return "", errors.Newf(errors.ErrCodeRejected, "price %s is not a multiple of %s", req.Price, inst.MinPriceIncrement)
	}

	units := inst.LotSize.Mul(decimal.NewFromInt(req.Lots))

	switch req.Side {
	case types.SideBuy:
		cost := units.Mul(req.Price)
		if cost.GreaterThan(v.cash.Sub(v.lockedCash())) {
			return "", errors.Newf(errors.ErrCodeRejected, "insufficient %s balance: need %s", v.currency, cost)
		}
	case types.SideSell:
		if units.GreaterThan(v.units[req.InstrumentID].Sub(v.lockedUnits(req.InstrumentID))) {
			return "", errors.Newf(errors.ErrCodeRejected, "insufficient %s balance: need %s", req.InstrumentID, units)
		}
	default:
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported order side: %s", req.Side)
	}

	v.seq++
	o := &order{
		id:        fmt.Sprintf("paper-%08d", v.seq),
		clientUID: req.IdempotencyKey,
		req:       req,
		lotSize:   inst.LotSize,
		status:    types.OrderStatusNew,
		executed:  0,
		avgPrice:  optional.None[decimal.Decimal](),
	}
	v.orders[o.id] = o

	if req.IdempotencyKey != "" {
		v.byClientUID[req.IdempotencyKey] = o.id
	}

	if last, ok := v.prices[req.InstrumentID]; ok {
		v.cross(o, last)
	}

	return o.id, nil
}

// CancelOrder cancels a resting order.
func (v *Venue) CancelOrder(_ context.Context, accountID, orderID string) error {
	if err := checkAccount(accountID); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	o, ok := v.orders[orderID]
	if !ok || o.status.IsTerminal() {
		return errors.Newf(errors.ErrCodeNotFound, "order not found: %s", orderID)
	}

	o.status = types.OrderStatusCancelled

	return nil
}

// GetOrderState reports a known order.
func (v *Venue) GetOrderState(_ context.Context, accountID, orderID string) (venue.OrderState, error) {
	if err := checkAccount(accountID); err != nil {
		return venue.OrderState{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	o, ok := v.orders[orderID]
	if !ok {
		return venue.OrderState{}, errors.Newf(errors.ErrCodeNotFound, "order not found: %s", orderID)
	}

	return venue.OrderState{
		OrderID:       o.id,
		Status:        o.status,
		Side:          optional.Some(o.req.Side),
		RequestedLots: o.req.Lots,
		ExecutedLots:  o.executed,
		AvgPrice:      o.avgPrice,
	}, nil
}

// GetLastPrice fetches the source price and fills every order it crosses.
func (v *Venue) GetLastPrice(ctx context.Context, instrumentID string) (optional.Option[decimal.Decimal], error) {
	last, err := v.source.GetLastPrice(ctx, instrumentID)
	if err != nil {
		return optional.None[decimal.Decimal](), err
	}

	if last.IsSome() {
		v.SetPrice(instrumentID, last.Unwrap())
	}

	return last, nil
}

// SetPrice records a trade price and fills every order it crosses.
func (v *Venue) SetPrice(instrumentID string, price decimal.Decimal) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.prices[instrumentID] = price

	for _, o := range v.orders {
		if o.req.InstrumentID == instrumentID && !o.status.IsTerminal() {
			v.cross(o, price)
		}
	}
}

// InstrumentBy resolves through the market source and remembers the metadata.
func (v *Venue) InstrumentBy(ctx context.Context, ticker, classCode string) (venue.Instrument, error) {
	inst, err := v.source.InstrumentBy(ctx, ticker, classCode)
	if err != nil {
		return venue.Instrument{}, err
	}

	v.mu.Lock()
	v.instruments[inst.InstrumentID] = inst
	v.mu.Unlock()

	return inst, nil
}

// cross fills o completely at its limit when last has reached it. Caller holds mu.
func (v *Venue) cross(o *order, last decimal.Decimal) {
	crossed := (o.req.Side == types.SideBuy && last.LessThanOrEqual(o.req.Price)) ||
		(o.req.Side == types.SideSell && last.GreaterThanOrEqual(o.req.Price))
	if !crossed {
		return
	}

	units := o.lotSize.Mul(decimal.NewFromInt(o.req.Lots))
	notional := units.Mul(o.req.Price)

	if o.req.Side == types.SideBuy {
		v.cash = v.cash.Sub(notional)
		v.units[o.req.InstrumentID] = v.units[o.req.InstrumentID].Add(units)
	} else {
		v.cash = v.cash.Add(notional)
		v.units[o.req.InstrumentID] = v.units[o.req.InstrumentID].Sub(units)
	}

	o.status = types.OrderStatusFilled
	o.executed = o.req.Lots
	o.avgPrice = optional.Some(o.req.Price)

	v.log.Info("Paper order filled",
		zap.String("order_id", o.id),
		zap.String("instrument_id", o.req.InstrumentID),
		zap.String("side", string(o.req.Side)),
		zap.Int64("lots", o.req.Lots),
		zap.String("price", o.req.Price.String()),
	)
}

// lockedCash is the notional of resting buys. Caller holds mu.
func (v *Venue) lockedCash() decimal.Decimal {
	total := decimal.Zero

	for _, o := range v.orders {
		if o.req.Side == types.SideBuy && !o.status.IsTerminal() {
			total = total.Add(o.lotSize.Mul(decimal.NewFromInt(o.req.Lots)).Mul(o.req.Price))
		}
	}

	return total
}

// lockedUnits is the quantity of resting sells of an instrument. Caller holds mu.
func (v *Venue) lockedUnits(instrumentID string) decimal.Decimal {
	total := decimal.Zero

	for _, o := range v.orders {
		if o.req.InstrumentID == instrumentID && o.req.Side == types.SideSell && !o.status.IsTerminal() {
			total = total.Add(o.lotSize.Mul(decimal.NewFromInt(o.req.Lots)))
		}
	}

	return total
}

func checkAccount(accountID string) error {
	if accountID != AccountID {
		return errors.Newf(errors.ErrCodeNotFound, "account not found: %s", accountID)
	}

	return nil
}

var _ venue.Venue = (*Venue)(nil)

// Package venue defines the narrow RPC surface the engine needs from a brokerage.
//
// Implementations classify their failures with pkg/errors codes:
// ErrCodeTransient for network and rate-limit errors (retried),
// ErrCodeNotFound for unknown orders or accounts, and ErrCodeRejected when
// the venue refuses an order.
package venue

import (
	"context"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/shopspring/decimal"
)

// Account is a trading account visible to the credentials in use.
type Account struct {
	ID   string
	Name string
}

// MoneyBalance is a cash balance in one currency.
type MoneyBalance struct {
	Currency string
	Amount   decimal.Decimal
}

// SecurityBalance is a holding expressed in underlying units, not lots.
type SecurityBalance struct {
	InstrumentID string
	Units        decimal.Decimal
}

// Positions is the account portfolio as reported by the venue.
type Positions struct {
	Money      []MoneyBalance
	Securities []SecurityBalance
}

// Cash sums the money balances held in currency.
func (p Positions) Cash(currency string) decimal.Decimal {
	total := decimal.Zero

	for _, m := range p.Money {
		if m.Currency == currency {
			total = total.Add(m.Amount)
		}
	}

	return total
}

// Units returns the holding of instrumentID, zero when absent.
func (p Positions) Units(instrumentID string) decimal.Decimal {
	total := decimal.Zero

	for _, s := range p.Securities {
		if s.InstrumentID == instrumentID {
			total = total.Add(s.Units)
		}
	}

	return total
}

// OpenOrder is a working order listed by the venue.
type OpenOrder struct {
	OrderID      string
	InstrumentID string
	Side         optional.Option[types.Side]
	ClientUID    optional.Option[string]
	// Price is the limit price.
	Price optional.Option[decimal.Decimal]
	// RemainingLots is the unexecuted part of the order.
	RemainingLots optional.Option[int64]
}

// OrderRequest is a limit order submission.
type OrderRequest struct {
	InstrumentID string
	Side         types.Side
	Lots         int64
	Price        decimal.Decimal
	// IdempotencyKey identifies the intent; resubmitting the same key must
	// never create a second live order.
	IdempotencyKey string
}

// OrderState is the venue's view of one order.
type OrderState struct {
	OrderID       string
	Status        types.OrderStatus
	Side          optional.Option[types.Side]
	RequestedLots int64
	ExecutedLots  int64
	// AvgPrice is None until something executed.
	AvgPrice optional.Option[decimal.Decimal]
}

// IsPartialFill reports an order that executed some but not all lots.
func (s OrderState) IsPartialFill() bool {
	return s.ExecutedLots > 0 && s.ExecutedLots < s.RequestedLots
}

// Instrument is the venue metadata returned by an instrument lookup.
type Instrument struct {
	Ticker            string
	InstrumentID      string
	ClassCode         string
	LotSize           decimal.Decimal
	MinPriceIncrement decimal.Decimal
	// Tradeable is None when the venue does not report trading status.
	Tradeable optional.Option[bool]
}

// Info converts the lookup result into the engine's immutable metadata.
func (i Instrument) Info() types.InstrumentInfo {
	return types.InstrumentInfo{
		Ticker:            i.Ticker,
		InstrumentID:      i.InstrumentID,
		LotSize:           i.LotSize,
		MinPriceIncrement: i.MinPriceIncrement,
	}
}

// Venue is the brokerage RPC surface consumed by the engine.
type Venue interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	GetPositions(ctx context.Context, accountID string) (Positions, error)
	GetOpenOrders(ctx context.Context, accountID string) ([]OpenOrder, error)
	// SubmitLimitOrder returns the venue order id.
	SubmitLimitOrder(ctx context.Context, accountID string, req OrderRequest) (string, error)
	CancelOrder(ctx context.Context, accountID, orderID string) error
	GetOrderState(ctx context.Context, accountID, orderID string) (OrderState, error)
	// GetLastPrice returns None when no trade is known.
	GetLastPrice(ctx context.Context, instrumentID string) (optional.Option[decimal.Decimal], error)
	// InstrumentBy resolves a ticker within classCode, which may be empty when the
	// venue has a single market.
	InstrumentBy(ctx context.Context, ticker, classCode string) (Instrument, error)
}

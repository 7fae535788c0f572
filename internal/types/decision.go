package types

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
)

// Action is what a strategy wants the engine to do with an instrument.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// MarketData is the snapshot handed to the strategy for one instrument and cycle.
type MarketData struct {
	InstrumentID string
	Time         time.Time
	// LastPrice is None when the venue had no trade to report.
	LastPrice optional.Option[decimal.Decimal]
}

// Decision is the strategy's answer for one instrument and cycle.
type Decision struct {
	Action Action
	// Price is the reference price the decision was made at.
	Price decimal.Decimal
	// LimitPrice overrides Price as the order limit when set.
	LimitPrice optional.Option[decimal.Decimal]
	Reason     string
}

// OrderPrice returns the limit the engine should submit for this decision.
func (d Decision) OrderPrice() decimal.Decimal {
	if d.LimitPrice.IsSome() {
		return d.LimitPrice.Unwrap()
	}

	return d.Price
}

// Hold builds a HOLD decision.
func Hold(price decimal.Decimal, reason string) Decision {
	return Decision{
		Action:     ActionHold,
		Price:      price,
		LimitPrice: optional.None[decimal.Decimal](),
		Reason:     reason,
	}
}

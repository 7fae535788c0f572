package types

import (
	"github.com/shopspring/decimal"
)

// InstrumentInfo is the venue metadata of a tradeable instrument.
// It is resolved once at startup and never mutated afterwards.
type InstrumentInfo struct {
	// Ticker is the human symbol the instrument was configured with.
	Ticker string `json:"ticker" yaml:"ticker"`
	// InstrumentID is the venue identifier referenced by every order and position message.
	InstrumentID string `json:"instrument_id" yaml:"instrument_id"`
	// LotSize is the number of underlying units in one lot.
	LotSize decimal.Decimal `json:"lot_size" yaml:"lot_size"`
	// MinPriceIncrement is the price step; orders at non-multiples are rejected by the venue.
	MinPriceIncrement decimal.Decimal `json:"min_price_increment" yaml:"min_price_increment"`
}

// LotCost returns the notional of one lot at price.
func (i InstrumentInfo) LotCost(price decimal.Decimal) decimal.Decimal {
	return price.Mul(i.LotSize)
}

// UnitsToLots converts a balance expressed in underlying units to whole lots.
func (i InstrumentInfo) UnitsToLots(units decimal.Decimal) int64 {
	if !i.LotSize.IsPositive() || !units.IsPositive() {
		return 0
	}

	return units.Div(i.LotSize).Floor().IntPart()
}

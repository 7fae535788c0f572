// Package pricing snaps limit prices to an instrument's price step.
package pricing

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/shopspring/decimal"
)

// Normalize rounds price to a multiple of step: up for buys, down for sells.
// A non-positive step or price is returned unchanged.
func Normalize(price, step decimal.Decimal, side types.Side) decimal.Decimal {
	if !step.IsPositive() || !price.IsPositive() {
		return price
	}

	rem := price.Mod(step)
	if rem.IsZero() {
		return price
	}

	floor := price.Sub(rem)
	if side == types.SideBuy {
		return floor.Add(step)
	}

	return floor
}

// Nudge moves an already normalized limit toward the last traded price, offset by
// ticks price steps in the direction that helps the order fill. The result is never
// worse for the caller than price: a buy never pays more, a sell never asks less.
func Nudge(price decimal.Decimal, last optional.Option[decimal.Decimal], step decimal.Decimal, ticks int64, side types.Side) decimal.Decimal {
	if last.IsNone() || !step.IsPositive() || ticks < 0 {
		return price
	}

	offset := step.Mul(decimal.NewFromInt(ticks))
	lastPrice := last.Unwrap()

	if side == types.SideBuy {
		target := Normalize(lastPrice.Add(offset), step, types.SideBuy)
		if target.IsPositive() && target.LessThan(price) {
			return target
		}

		return price
	}

	target := Normalize(lastPrice.Sub(offset), step, types.SideSell)
	if target.IsPositive() && target.GreaterThan(price) {
		return target
	}

	return price
}

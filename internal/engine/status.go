package engine

import (
	"time"

	"github.com/rxtech-lab/argo-trader/internal/state"
	"github.com/shopspring/decimal"
)

// Status is a copy of the engine state taken after a cycle. It is safe to
// read from any goroutine.
type Status struct {
	Time                time.Time                  `json:"time"`
	Phase               Phase                      `json:"phase"`
	AccountID           string                     `json:"account_id"`
	Strategy            string                     `json:"strategy"`
	Cash                *decimal.Decimal           `json:"cash,omitempty"`
	Reserved            map[string]decimal.Decimal `json:"reserved"`
	ReservedTotal       decimal.Decimal            `json:"reserved_total"`
	DayKey              string                     `json:"day_key"`
	TradesToday         int                        `json:"trades_today"`
	DayRealizedPnL      decimal.Decimal            `json:"day_realized_pnl"`
	DayMetric           decimal.Decimal            `json:"day_metric"`
	DayLocked           bool                       `json:"day_locked"`
	OpenPositions       int                        `json:"open_positions"`
	PendingBuys         int                        `json:"pending_buys"`
	ActiveOrders        int                        `json:"active_orders"`
	ConsecutiveFailures int                        `json:"consecutive_failures"`
	Instruments         []state.Snapshot           `json:"instruments"`
}

// Status returns the status published by the last cycle, or nil before the first one.
func (e *Engine) Status() *Status {
	return e.status.Load()
}

// publish stores a fresh Status and hands it to OnCycle.
func (e *Engine) publish(phase Phase) {
	s := &Status{
		Time:                e.clock(),
		Phase:               phase,
		AccountID:           e.accountID,
		Strategy:            e.strategy.Name(),
		Cash:                nil,
		Reserved:            e.ledger.Entries(),
		ReservedTotal:       e.ledger.Total(),
		DayKey:              e.state.CurrentDayKey,
		TradesToday:         e.state.TradesToday,
		DayRealizedPnL:      e.state.DayRealizedPnL,
		DayMetric:           e.risk.DayMetric(),
		DayLocked:           e.risk.DayLocked(),
		OpenPositions:       e.state.OpenPositions(),
		PendingBuys:         e.state.PendingBuys(),
		ActiveOrders:        e.state.ActiveOrders(),
		ConsecutiveFailures: e.failures,
		Instruments:         e.state.Snapshot(),
	}

	if e.cash.IsSome() {
		cash := e.cash.Unwrap()
		s.Cash = &cash
	}

	e.status.Store(s)

	if e.onCycle != nil {
		e.onCycle(*s)
	}
}

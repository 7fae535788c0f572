// Package risk gates new entries on daily and portfolio limits.
package risk

import (
	"fmt"
	"sync"

	"github.com/rxtech-lab/argo-trader/internal/state"
	"github.com/shopspring/decimal"
)

// Reasons returned by Manager.Allow. Limit reasons carry the observed counts
// after the tag, e.g. "max_positions (open=1 pending=0 limit=1)".
const (
	ReasonOK                  = "ok"
	ReasonDayLocked           = "day_locked"
	ReasonMaxTradesPerDay     = "max_trades_per_day"
	ReasonAlreadyInPosition   = "already_in_position"
	ReasonActiveOrderExists   = "active_order_exists_for_figi"
	ReasonMaxPositions        = "max_positions"
	ReasonMaxPendingBuysTotal = "max_pending_buys_total"
	ReasonMaxActiveOrders     = "max_active_orders_total"
)

// Config holds the risk limits.
type Config struct {
	// MaxDayLoss locks new entries once the day metric falls to -MaxDayLoss.
	MaxDayLoss      decimal.Decimal `json:"max_day_loss" yaml:"max_day_loss" jsonschema:"title=Max Day Loss,description=Loss in settlement currency that locks the day,default=100"`
	MaxTradesPerDay int             `json:"max_trades_per_day" yaml:"max_trades_per_day" jsonschema:"title=Max Trades Per Day,default=3" validate:"gte=0"`
	MaxPositions    int             `json:"max_positions" yaml:"max_positions" jsonschema:"title=Max Positions,default=1" validate:"gte=0"`
	// MaxActiveOrdersPerInstrument of 1 or less forbids a second order on an instrument.
	MaxActiveOrdersPerInstrument int `json:"max_active_orders_per_instrument" yaml:"max_active_orders_per_instrument" jsonschema:"title=Max Active Orders Per Instrument,default=1" validate:"gte=0"`
	// MaxPendingBuysTotal defaults to MaxPositions when zero.
	MaxPendingBuysTotal int `json:"max_pending_buys_total" yaml:"max_pending_buys_total" jsonschema:"title=Max Pending Buys Total" validate:"gte=0"`
	// MaxActiveOrdersTotal defaults to MaxPositions when zero.
	MaxActiveOrdersTotal int `json:"max_active_orders_total" yaml:"max_active_orders_total" jsonschema:"title=Max Active Orders Total" validate:"gte=0"`
}

// DefaultConfig returns the conservative single-position limits.
func DefaultConfig() Config {
	return Config{
		MaxDayLoss:                   decimal.NewFromInt(100),
		MaxTradesPerDay:              3,
		MaxPositions:                 1,
		MaxActiveOrdersPerInstrument: 1,
		MaxPendingBuysTotal:          1,
		MaxActiveOrdersTotal:         1,
	}
}

// WithDefaults fills the portfolio caps that were left at zero.
func (c Config) WithDefaults() Config {
	if c.MaxPendingBuysTotal == 0 {
		c.MaxPendingBuysTotal = c.MaxPositions
	}

	if c.MaxActiveOrdersTotal == 0 {
		c.MaxActiveOrdersTotal = c.MaxPositions
	}

	return c
}

// Manager tracks the day metric and decides whether entries are allowed.
type Manager struct {
	mu sync.Mutex

	cfg       Config
	dayKey    string
	dayMetric decimal.Decimal
	locked    bool
}

// NewManager creates a Manager.
func NewManager(cfg Config) *Manager {
	return &Manager{
		mu:        sync.Mutex{},
		cfg:       cfg.WithDefaults(),
		dayKey:    "",
		dayMetric: decimal.Zero,
		locked:    false,
	}
}

// Config returns the effective limits.
func (m *Manager) Config() Config {
	return m.cfg
}

// TouchDay resets the day metric and the lock when dayKey changes.
func (m *Manager) TouchDay(dayKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dayKey == dayKey {
		return
	}

	m.dayKey = dayKey
	m.dayMetric = decimal.Zero
	m.locked = false
}

// UpdateDayPnL records the day metric. It returns true when this call locked the day.
// A locked day stays locked until TouchDay sees a new day key.
func (m *Manager) UpdateDayPnL(metric decimal.Decimal) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dayMetric = metric

	if m.locked {
		return false
	}

	if metric.LessThanOrEqual(m.cfg.MaxDayLoss.Neg()) {
		m.locked = true

		return true
	}

	return false
}

// DayLocked reports whether entries are locked for the rest of the day.
func (m *Manager) DayLocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.locked
}

// DayMetric returns the last metric passed to UpdateDayPnL.
func (m *Manager) DayMetric() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.dayMetric
}

// Allow decides whether a new entry on instrumentID is permitted.
// Checks run in a fixed order and the first failing one names the reason.
func (m *Manager) Allow(bs *state.BotState, instrumentID string) (bool, string) {
	if m.DayLocked() {
		return false, ReasonDayLocked
	}

	if bs.TradesToday >= m.cfg.MaxTradesPerDay {
		return false, fmt.Sprintf("%s (trades_today=%d limit=%d)", ReasonMaxTradesPerDay, bs.TradesToday, m.cfg.MaxTradesPerDay)
	}

	st, tracked := bs.Lookup(instrumentID)
	if tracked && st.InPosition() {
		return false, ReasonAlreadyInPosition
	}

	if tracked && st.HasActiveOrder() && m.cfg.MaxActiveOrdersPerInstrument <= 1 {
		return false, ReasonActiveOrderExists
	}

	open := bs.OpenPositions()
	pending := bs.PendingBuys()

	if open+pending >= m.cfg.MaxPositions {
		return false, fmt.Sprintf("%s (open=%d pending=%d limit=%d)", ReasonMaxPositions, open, pending, m.cfg.MaxPositions)
	}

	if pending >= m.cfg.MaxPendingBuysTotal {
		return false, fmt.Sprintf("%s (pending=%d limit=%d)", ReasonMaxPendingBuysTotal, pending, m.cfg.MaxPendingBuysTotal)
	}

	active := bs.ActiveOrders()
	if active >= m.cfg.MaxActiveOrdersTotal {
		return false, fmt.Sprintf("%s (active=%d limit=%d)", ReasonMaxActiveOrders, active, m.cfg.MaxActiveOrdersTotal)
	}

	return true, ReasonOK
}

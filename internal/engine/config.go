package engine

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"github.com/shopspring/decimal"
)

// OrdersConfig controls order placement.
type OrdersConfig struct {
	// LotsPerOrder is the size of every entry.
	LotsPerOrder int64 `json:"lots_per_order" yaml:"lots_per_order" jsonschema:"title=Lots Per Order,default=1" validate:"gte=1"`
	// TTL cancels orders that stayed unfilled this long.
	TTL time.Duration `json:"ttl" yaml:"ttl" jsonschema:"title=Order TTL,description=Unfilled orders older than this are cancelled,default=120s" validate:"gt=0"`
	// Nudge moves limits toward the last price by BuyTicks or SellTicks price steps.
	Nudge     bool  `json:"nudge" yaml:"nudge" jsonschema:"title=Nudge,description=Move limits toward the last traded price,default=false"`
	BuyTicks  int64 `json:"buy_ticks" yaml:"buy_ticks" jsonschema:"title=Buy Ticks,default=1" validate:"gte=0"`
	SellTicks int64 `json:"sell_ticks" yaml:"sell_ticks" jsonschema:"title=Sell Ticks,default=1" validate:"gte=0"`
	// CashSlack is the fraction by which an entry may exceed free cash.
	CashSlack decimal.Decimal `json:"cash_slack" yaml:"cash_slack" jsonschema:"title=Cash Slack,default=0.01"`
	// SkipCooldown rate limits SKIP events per instrument.
	SkipCooldown time.Duration `json:"skip_cooldown" yaml:"skip_cooldown" jsonschema:"title=Skip Cooldown,default=5m" validate:"gte=0"`
}

// RuntimeConfig controls the polling loop.
type RuntimeConfig struct {
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" jsonschema:"title=Poll Interval,default=55s" validate:"gt=0"`
	ErrorSleep   time.Duration `json:"error_sleep" yaml:"error_sleep" jsonschema:"title=Error Sleep,description=Pause after a failed cycle,default=10s" validate:"gte=0"`
	// IdleSleep caps the pause outside trading hours and while flattening.
	IdleSleep      time.Duration `json:"idle_sleep" yaml:"idle_sleep" jsonschema:"title=Idle Sleep,default=10s" validate:"gte=0"`
	DayLockedSleep time.Duration `json:"day_locked_sleep" yaml:"day_locked_sleep" jsonschema:"title=Day Locked Sleep,default=30s" validate:"gte=0"`
	// MaxConsecutiveErrors halts the loop after this many failed cycles in a row. Zero never halts.
	MaxConsecutiveErrors int `json:"max_consecutive_errors" yaml:"max_consecutive_errors" jsonschema:"title=Max Consecutive Errors,default=20" validate:"gte=0"`
	// ErrorNotifyThrottle limits error notifications.
	ErrorNotifyThrottle time.Duration `json:"error_notify_throttle" yaml:"error_notify_throttle" jsonschema:"title=Error Notify Throttle,default=5m" validate:"gte=0"`
}

// Config is the engine configuration.
type Config struct {
	// AccountID pins the account. Empty picks the first account the venue lists.
	AccountID string `json:"account_id"`
	// Sandbox only changes how the account is reported.
	Sandbox            bool          `json:"sandbox"`
	SettlementCurrency string        `json:"settlement_currency" validate:"required"`
	Orders             OrdersConfig  `json:"orders"`
	Runtime            RuntimeConfig `json:"runtime"`
}

// DefaultOrdersConfig returns the default order settings.
func DefaultOrdersConfig() OrdersConfig {
	return OrdersConfig{
		LotsPerOrder: 1,
		TTL:          120 * time.Second,
		Nudge:        false,
		BuyTicks:     1,
		SellTicks:    1,
		CashSlack:    decimal.RequireFromString("0.01"),
		SkipCooldown: 5 * time.Minute,
	}
}

// DefaultRuntimeConfig returns the default loop settings.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		PollInterval:         55 * time.Second,
		ErrorSleep:           10 * time.Second,
		IdleSleep:            10 * time.Second,
		DayLockedSleep:       30 * time.Second,
		MaxConsecutiveErrors: 20,
		ErrorNotifyThrottle:  5 * time.Minute,
	}
}

// Validate validates the Config struct.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid engine config", err)
	}

	if c.Orders.CashSlack.IsNegative() {
		return errors.New(errors.ErrCodeInvalidConfiguration, "orders.cash_slack must not be negative")
	}

	return nil
}

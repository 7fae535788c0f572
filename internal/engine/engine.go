// Package engine runs the order lifecycle of one trading account: it
// reconciles local state with the venue, expires and polls tracked orders,
// consults the strategy and submits idempotent limit orders behind the risk
// gate and the cash reservation ledger.
//
// The engine is driven by a single goroutine. Instruments are processed one
// after another and, per instrument, expiry runs before polling, polling
// before the strategy and the strategy before execution.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/internal/journal"
	"github.com/rxtech-lab/argo-trader/internal/logger"
	"github.com/rxtech-lab/argo-trader/internal/notify"
	"github.com/rxtech-lab/argo-trader/internal/retry"
	"github.com/rxtech-lab/argo-trader/internal/risk"
	"github.com/rxtech-lab/argo-trader/internal/schedule"
	"github.com/rxtech-lab/argo-trader/internal/state"
	"github.com/rxtech-lab/argo-trader/internal/strategy"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/rxtech-lab/argo-trader/internal/venue"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Phase is what a cycle did.
type Phase string

const (
	// PhaseTrading is a full cycle over every instrument.
	PhaseTrading Phase = "TRADING"
	// PhaseIdle is outside trading hours before flatten time.
	PhaseIdle Phase = "IDLE"
	// PhaseFlatten closes everything at or after flatten time.
	PhaseFlatten   Phase = "FLATTEN"
	PhaseDayLocked Phase = "DAY_LOCKED"
)

// Deps are the collaborators of the engine. Venue and Strategy are required.
type Deps struct {
	Venue    venue.Venue
	Strategy strategy.Strategy
	Journal  journal.Journal
	Notifier notify.Notifier
	Risk     *risk.Manager
	// Schedule may be nil for an always open market.
	Schedule *schedule.Schedule
	Retrier  *retry.Retrier
	Logger   *logger.Logger
	// Clock, Sleep and NewKey default to time.Now, retry.ContextSleep and uuid.NewString.
	Clock  func() time.Time
	Sleep retry.Sleeper
	NewKey func() string
	// OnCycle receives the status published after every cycle.
	OnCycle func(Status)
}

// Engine is the order lifecycle and reconciliation engine.
type Engine struct {
	cfg      Config
	venue    venue.Venue
	strategy strategy.Strategy
	journal  journal.Journal
	notifier notify.Notifier
	risk     *risk.Manager
	schedule *schedule.Schedule
	retrier  *retry.Retrier
	log      *logger.Logger
	clock       func() time.Time
	sleep retry.Sleeper
	newKey      func() string
	onCycle     func(Status)
	instruments []types.InstrumentInfo
	byID        map[string]types.InstrumentInfo

	state     *state.BotState
	ledger    *state.Ledger
	accountID string
	// cash is the settlement balance from the last successful position refresh.
	cash optional.Option[decimal.Decimal]
	// lastPrices holds the prices seen during the current cycle.
	lastPrices map[string]decimal.Decimal
	// lastSkip rate limits SKIP events per instrument.
	lastSkip map[string]time.Time
	// partials remembers the executed lots last journaled per order.
	partials map[string]int64
	failures int

	status atomic.Pointer[Status]
}

// New creates an engine trading instruments.
func New(cfg Config, instruments []types.InstrumentInfo, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if deps.Venue == nil {
		return nil, errors.New(errors.ErrCodeEngineInitFailed, "venue is required")
	}

	if deps.Strategy == nil {
		return nil, errors.New(errors.ErrCodeEngineInitFailed, "strategy is required")
	}

	if len(instruments) == 0 {
		return nil, errors.New(errors.ErrCodeNoTradeableSymbol, "no instruments to trade")
	}

	log := deps.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	e := &Engine{
		cfg:         cfg,
		venue:       deps.Venue,
		strategy:    deps.Strategy,
		journal:     deps.Journal,
		notifier:    deps.Notifier,
		risk:        deps.Risk,
		schedule:    deps.Schedule,
		retrier:     deps.Retrier,
		log:         log,
		clock:       deps.Clock,
		sleep:       deps.Sleep,
		newKey:      deps.NewKey,
		onCycle:     deps.OnCycle,
		instruments: nil,
		byID:        make(map[string]types.InstrumentInfo, len(instruments)),
		state:       state.NewBotState(),
		ledger:      state.NewLedger(),
		accountID:   cfg.AccountID,
		cash:        optional.None[decimal.Decimal](),
		lastPrices:  make(map[string]decimal.Decimal),
		lastSkip:    make(map[string]time.Time),
		partials:    make(map[string]int64),
		failures:    0,
		status:      atomic.Pointer[Status]{},
	}

	if e.journal == nil {
		e.journal = journal.Discard{}
	}

	if e.notifier == nil {
		e.notifier = notify.Nop{}
	}

	if e.risk == nil {
		e.risk = risk.NewManager(risk.DefaultConfig())
	}

	if e.retrier == nil {
		e.retrier = retry.NewRetrier(retry.DefaultPolicy(), log)
	}

	if e.clock == nil {
		e.clock = time.Now
	}

	if e.sleep == nil {
		e.sleep = retry.ContextSleep
	}

	if e.newKey == nil {
		e.newKey = uuid.NewString
	}

	for _, info := range instruments {
		if _, dup := e.byID[info.InstrumentID]; dup {
			continue
		}

		e.byID[info.InstrumentID] = info
		e.instruments = append(e.instruments, info)
		e.state.Instrument(info.InstrumentID)
	}

	return e, nil
}

// State exposes the engine's bookkeeping. It must only be read from the
// goroutine driving the engine.
func (e *Engine) State() *state.BotState {
	return e.state
}

// Ledger returns the cash reservation ledger.
func (e *Engine) Ledger() *state.Ledger {
	return e.ledger
}

// AccountID returns the account in use, empty before PickAccount.
func (e *Engine) AccountID() string {
	return e.accountID
}

// PickAccount selects the account to trade: the configured one, or else the
// first account the venue lists.
func (e *Engine) PickAccount(ctx context.Context) (string, error) {
	if e.accountID != "" {
		return e.accountID, nil
	}

	accounts, err := retry.Do(ctx, e.retrier, "list_accounts", func(ctx context.Context) ([]venue.Account, error) {
		return e.venue.ListAccounts(ctx)
	})
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeNoAccount, "failed to list accounts", err)
	}

	if len(accounts) == 0 {
		return "", errors.New(errors.ErrCodeNoAccount, "venue returned no accounts")
	}

	e.accountID = accounts[0].ID

	e.log.Info("Account selected",
		zap.String("account_id", e.accountID),
		zap.String("name", accounts[0].Name),
		zap.Bool("sandbox", e.cfg.Sandbox),
		zap.Int("available", len(accounts)),
	)

	return e.accountID, nil
}

// Run drives cycles until ctx is done or too many cycles fail in a row.
func (e *Engine) Run(ctx context.Context) error {
	if _, err := e.PickAccount(ctx); err != nil {
		return err
	}

	e.log.Info("Engine started",
		zap.String("account_id", e.accountID),
		zap.String("strategy", e.strategy.Name()),
		zap.Int("instruments", len(e.instruments)),
	)

	for {
		phase, err := e.RunCycle(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := e.wait(phase)

		if err != nil {
			e.failures++

			e.log.Error("Cycle failed",
				zap.Int("consecutive_failures", e.failures),
				zap.Error(err),
			)
			e.notifier.Send(ctx, "Cycle failed: "+err.Error(), e.cfg.Runtime.ErrorNotifyThrottle)

			limit := e.cfg.Runtime.MaxConsecutiveErrors
			if limit > 0 && e.failures > limit {
				e.notifier.Send(ctx, "Engine halted after repeated failures: "+err.Error(), 0)

				return errors.Wrapf(errors.ErrCodeTooManyFailures, err, "%d consecutive failed cycles", e.failures)
			}

			wait = e.cfg.Runtime.ErrorSleep
		} else {
			e.failures = 0
		}

		if err := e.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (e *Engine) wait(phase Phase) time.Duration {
	rt := e.cfg.Runtime

	switch phase {
	case PhaseIdle, PhaseFlatten:
		return min(rt.IdleSleep, rt.PollInterval)
	case PhaseDayLocked:
		return rt.DayLockedSleep
	default:
		return rt.PollInterval
	}
}

// RunCycle runs one polling iteration. It fails only when the venue could not
// be reached for either half of the reconciliation.
func (e *Engine) RunCycle(ctx context.Context) (Phase, error) {
	now := e.clock()
	e.rollover(now)

	clear(e.lastPrices)

	if e.schedule.FlattenDue(now) {
		err := e.Reconcile(ctx)
		if err == nil {
			e.Flatten(ctx)
		}

		e.publish(PhaseFlatten)

		return PhaseFlatten, err
	}

	if !e.schedule.IsTradingTime(now) {
		e.publish(PhaseIdle)

		return PhaseIdle, nil
	}

	if e.risk.DayLocked() {
		// The lock stops new trading only; live orders still expire and fill.
		err := e.Reconcile(ctx)
		if err == nil {
			for _, info := range e.instruments {
				if ctx.Err() != nil {
					break
				}

				e.ExpireIfStale(ctx, info.InstrumentID, e.clock())
				e.Poll(ctx, info.InstrumentID)
			}
		}

		e.publish(PhaseDayLocked)

		return PhaseDayLocked, err
	}

	if err := e.Reconcile(ctx); err != nil {
		e.publish(PhaseTrading)

		return PhaseTrading, err
	}

	entries := e.schedule.EntriesAllowed(now)

	for _, info := range e.instruments {
		if err := ctx.Err(); err != nil {
			return PhaseTrading, err
		}

		e.processInstrument(ctx, info, entries)
	}

	e.updateDayMetric(ctx)
	e.publish(PhaseTrading)

	return PhaseTrading, nil
}

// processInstrument runs expiry, poll, strategy and execution for one instrument.
func (e *Engine) processInstrument(ctx context.Context, info types.InstrumentInfo, entriesAllowed bool) {
	id := info.InstrumentID

	e.ExpireIfStale(ctx, id, e.clock())
	e.Poll(ctx, id)

	last, err := e.lastPrice(ctx, id)
	if err != nil {
		e.log.Warn("Failed to get last price", zap.String("ticker", info.Ticker), zap.Error(err))

		return
	}

	st := e.state.Instrument(id)
	view := strategy.View{
		PositionLots:   st.PositionLots,
		EntryPrice:     st.EntryPrice,
		EntryTime:      st.EntryTime,
		HasActiveOrder: st.HasActiveOrder(),
		EntriesAllowed: entriesAllowed,
	}

	market := types.MarketData{
		InstrumentID: id,
		Time:         e.clock(),
		LastPrice:    last,
	}

	decision, err := e.strategy.Decide(ctx, info, market, view)
	if err != nil {
		e.log.Warn("Strategy failed",
			zap.String("ticker", info.Ticker),
			zap.Error(errors.Wrap(errors.ErrCodeStrategyFailed, e.strategy.Name(), err)),
		)

		return
	}

	switch decision.Action {
	case types.ActionBuy:
		if !entriesAllowed {
			e.log.Debug("Entry ignored after stop_new_entries", zap.String("ticker", info.Ticker))

			return
		}

		if ok, reason := e.risk.Allow(e.state, id); !ok {
			e.log.Info("Entry blocked by risk gate",
				zap.String("ticker", info.Ticker),
				zap.String("reason", reason),
			)

			return
		}

		if e.SubmitBuy(ctx, id, decision.OrderPrice(), e.cfg.Orders.LotsPerOrder) {
			e.log.Info("Signal BUY",
				zap.String("ticker", info.Ticker),
				zap.String("price", decision.OrderPrice().String()),
				zap.String("reason", decision.Reason),
			)
		}
	case types.ActionSell:
		if e.SubmitSellToClose(ctx, id, decision.OrderPrice()) {
			e.log.Info("Signal SELL",
				zap.String("ticker", info.Ticker),
				zap.String("price", decision.OrderPrice().String()),
				zap.String("reason", decision.Reason),
			)
		}
	case types.ActionHold:
	}
}

// Flatten cancels every tracked order and closes every position at the last price.
func (e *Engine) Flatten(ctx context.Context) {
	for _, info := range e.instruments {
		id := info.InstrumentID
		st := e.state.Instrument(id)

		e.Poll(ctx, id)

		if st.HasActiveOrder() && !st.InPosition() {
			e.Cancel(ctx, id, ReasonFlatten)
		}

		if !st.InPosition() {
			continue
		}

		last, err := e.lastPrice(ctx, id)
		if err != nil || last.IsNone() {
			e.log.Warn("Cannot flatten without a last price", zap.String("ticker", info.Ticker), zap.Error(err))

			continue
		}

		e.SubmitSellToClose(ctx, id, last.Unwrap())
	}
}

// FlattenIfDue flattens when the schedule says so. It is meant for shutdown.
func (e *Engine) FlattenIfDue(ctx context.Context) {
	if !e.schedule.FlattenDue(e.clock()) {
		return
	}

	if err := e.Reconcile(ctx); err != nil {
		e.log.Warn("Reconcile before flatten failed", zap.Error(err))
	}

	e.Flatten(ctx)
}

// rollover resets the daily counters when the UTC date changes.
func (e *Engine) rollover(now time.Time) {
	key := now.UTC().Format(time.DateOnly)

	e.risk.TouchDay(key)

	if e.state.TouchDay(key) {
		e.log.Info("Day rollover", zap.String("day", key))
	}
}

// updateDayMetric feeds realized plus unrealized PnL to the risk manager.
func (e *Engine) updateDayMetric(ctx context.Context) {
	metric := e.DayMetric()

	if e.risk.UpdateDayPnL(metric) {
		e.log.Warn("Day locked", zap.String("day_metric", metric.String()))
		e.notifier.Send(ctx, "Day locked: day PnL "+metric.StringFixed(2), 0)
	}
}

// DayMetric returns the realized PnL of the day plus the unrealized PnL of
// held positions at the last prices seen this cycle.
func (e *Engine) DayMetric() decimal.Decimal {
	metric := e.state.DayRealizedPnL

	for _, info := range e.instruments {
		st := e.state.Instrument(info.InstrumentID)
		if !st.InPosition() || st.EntryPrice.IsNone() {
			continue
		}

		last, ok := e.lastPrices[info.InstrumentID]
		if !ok {
			continue
		}

		unrealized := last.Sub(st.EntryPrice.Unwrap()).
			Mul(info.LotSize).
			Mul(decimal.NewFromInt(st.PositionLots))
		metric = metric.Add(unrealized)
	}

	return metric
}

// lastPrice fetches and remembers the last price of id.
func (e *Engine) lastPrice(ctx context.Context, id string) (optional.Option[decimal.Decimal], error) {
	last, err := retry.Do(ctx, e.retrier, "get_last_price", func(ctx context.Context) (optional.Option[decimal.Decimal], error) {
		return e.venue.GetLastPrice(ctx, id)
	})
	if err != nil {
		return optional.None[decimal.Decimal](), err
	}

	if last.IsSome() {
		e.lastPrices[id] = last.Unwrap()
	}

	return last, nil
}

// record journals event, stamping time and ticker. Journal failures are logged only.
func (e *Engine) record(event types.JournalEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = e.clock()
	}

	if info, ok := e.byID[event.InstrumentID]; ok && event.Ticker == "" {
		event.Ticker = info.Ticker
	}

	if err := e.journal.Write(event); err != nil {
		e.log.Warn("Failed to journal event",
			zap.String("event", string(event.Event)),
			zap.String("instrument_id", event.InstrumentID),
			zap.Error(err),
		)
	}
}

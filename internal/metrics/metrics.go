// Package metrics exposes engine state and journal activity to Prometheus.
//
// Series, all prefixed argo_:
//   - journal_events_total{event,side}: journaled order lifecycle events
//   - cycles_total{phase}: completed engine cycles
//   - cash, reserved_cash: settlement balance and cash held for pending buys
//   - day_metric, day_realized_pnl, day_locked, trades_today
//   - open_positions, pending_buys, active_orders, consecutive_failures
//   - position_lots{instrument_id}
//   - phase{phase}: 1 for the phase of the last cycle, 0 otherwise
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rxtech-lab/argo-trader/internal/engine"
	"github.com/rxtech-lab/argo-trader/internal/journal"
	"github.com/rxtech-lab/argo-trader/internal/types"
)

const namespace = "argo"

var phases = []engine.Phase{engine.PhaseTrading, engine.PhaseIdle, engine.PhaseFlatten, engine.PhaseDayLocked}

// Metrics owns a private registry so tests and multiple engines never collide
// on the global one.
type Metrics struct {
	registry *prometheus.Registry

	events *prometheus.CounterVec
	cycles *prometheus.CounterVec

	cash                prometheus.Gauge
	reserved            prometheus.Gauge
	dayMetric           prometheus.Gauge
	dayRealizedPnL      prometheus.Gauge
	dayLocked           prometheus.Gauge
	tradesToday         prometheus.Gauge
	openPositions       prometheus.Gauge
	pendingBuys         prometheus.Gauge
	activeOrders        prometheus.Gauge
	consecutiveFailures prometheus.Gauge
	positionLots        *prometheus.GaugeVec
	phase               *prometheus.GaugeVec
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}

// New creates and registers every series.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "journal_events_total",
				Help:      "Journaled order lifecycle events",
			},
			[]string{"event", "side"},
		),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Completed engine cycles by phase",
			},
			[]string{"phase"},
		),
		cash:                gauge("cash", "Settlement currency balance from the last position refresh"),
		reserved:            gauge("reserved_cash", "Cash reserved for pending buy orders"),
		dayMetric:           gauge("day_metric", "Realized plus unrealized PnL of the day"),
		dayRealizedPnL:      gauge("day_realized_pnl", "Realized PnL of the day"),
		dayLocked:           gauge("day_locked", "1 when new entries are locked for the day"),
		tradesToday:         gauge("trades_today", "Buy fills of the day"),
		openPositions:       gauge("open_positions", "Instruments holding lots"),
		pendingBuys:         gauge("pending_buys", "Flat instruments with a tracked order"),
		activeOrders:        gauge("active_orders", "Tracked orders across all instruments"),
		consecutiveFailures: gauge("consecutive_failures", "Failed cycles in a row"),
		positionLots: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "position_lots",
				Help:      "Lots held per instrument",
			},
			[]string{"instrument_id"},
		),
		phase: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "phase",
				Help:      "Phase of the last cycle as separate labeled series",
			},
			[]string{"phase"},
		),
	}

	m.registry.MustRegister(m.events, m.cycles)
	m.registry.MustRegister(m.cash, m.reserved, m.dayMetric, m.dayRealizedPnL, m.dayLocked, m.tradesToday)
	m.registry.MustRegister(m.openPositions, m.pendingBuys, m.activeOrders, m.consecutiveFailures)
	m.registry.MustRegister(m.positionLots, m.phase)

	return m
}

// Registry returns the registry holding every series.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveStatus copies a cycle status into the gauges. It fits engine.Deps.OnCycle.
func (m *Metrics) ObserveStatus(s engine.Status) {
	m.cycles.WithLabelValues(string(s.Phase)).Inc()

	for _, p := range phases {
		v := 0.0
		if p == s.Phase {
			v = 1
		}

		m.phase.WithLabelValues(string(p)).Set(v)
	}

	if s.Cash != nil {
		m.cash.Set(s.Cash.InexactFloat64())
	}

	m.reserved.Set(s.ReservedTotal.InexactFloat64())
	m.dayMetric.Set(s.DayMetric.InexactFloat64())
	m.dayRealizedPnL.Set(s.DayRealizedPnL.InexactFloat64())
	m.dayLocked.Set(boolValue(s.DayLocked))
	m.tradesToday.Set(float64(s.TradesToday))
	m.openPositions.Set(float64(s.OpenPositions))
	m.pendingBuys.Set(float64(s.PendingBuys))
	m.activeOrders.Set(float64(s.ActiveOrders))
	m.consecutiveFailures.Set(float64(s.ConsecutiveFailures))

	for _, inst := range s.Instruments {
		m.positionLots.WithLabelValues(inst.InstrumentID).Set(float64(inst.PositionLots))
	}
}

// Write counts event. Metrics can sit behind journal.Tee next to the real journal.
func (m *Metrics) Write(event types.JournalEvent) error {
	m.events.WithLabelValues(string(event.Event), string(event.Side)).Inc()

	return nil
}

// Close implements journal.Journal.
func (m *Metrics) Close() error {
	return nil
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}

	return 0
}

var _ journal.Journal = (*Metrics)(nil)

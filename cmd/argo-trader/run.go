package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rxtech-lab/argo-trader/internal/config"
	"github.com/rxtech-lab/argo-trader/internal/engine"
	"github.com/rxtech-lab/argo-trader/internal/instrument"
	"github.com/rxtech-lab/argo-trader/internal/journal"
	"github.com/rxtech-lab/argo-trader/internal/logger"
	"github.com/rxtech-lab/argo-trader/internal/metrics"
	"github.com/rxtech-lab/argo-trader/internal/notify"
	"github.com/rxtech-lab/argo-trader/internal/retry"
	"github.com/rxtech-lab/argo-trader/internal/risk"
	"github.com/rxtech-lab/argo-trader/internal/schedule"
	"github.com/rxtech-lab/argo-trader/internal/session"
	"github.com/rxtech-lab/argo-trader/internal/strategy"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/rxtech-lab/argo-trader/internal/venue"
	"github.com/rxtech-lab/argo-trader/internal/venue/binance"
	"github.com/rxtech-lab/argo-trader/internal/venue/paper"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// loadConfig reads the dotenv files and then the configuration.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	if err := config.LoadEnv(cmd.StringSlice("env-file")...); err != nil {
		return config.Config{}, err
	}

	return config.Load(cmd.String("config"))
}

// buildVenue creates the venue the configuration asks for.
func buildVenue(cfg config.Config, log *logger.Logger) (venue.Venue, error) {
	switch cfg.Broker.Provider {
	case config.ProviderBinance:
		return binance.New(cfg.BinanceConfig())
	case config.ProviderPaper:
		var source paper.MarketSource

		switch cfg.Broker.Paper.Source {
		case config.PaperSourceSynthetic:
			source = paper.NewSynthetic(cfg.Broker.Paper.Synthetic)
		default:
			source = binance.NewPublic(cfg.Broker.BaseURL, cfg.Broker.Sandbox)
		}

		return paper.New(source, cfg.Broker.Paper.Config, log), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown provider %q", cfg.Broker.Provider)
	}
}

// pickUniverse resolves the configured tickers and keeps the affordable ones.
func pickUniverse(ctx context.Context, cfg config.Config, v venue.Venue, retrier *retry.Retrier, log *logger.Logger) ([]instrument.Candidate, error) {
	resolver := instrument.NewResolver(v, retrier, log, cfg.Broker.ClassCode)

	candidates, err := resolver.PickTradeable(ctx, cfg.Universe.Tickers, cfg.Universe.MaxLotCost)
	if err != nil {
		return nil, err
	}

	if n := cfg.Universe.MaxInstruments; n > 0 && len(candidates) > n {
		candidates = candidates[:n]
	}

	return candidates, nil
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logger.NewLoggerWithConfig(cfg.LoggerConfig())
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	v, err := buildVenue(cfg, log)
	if err != nil {
		return err
	}

	retrier := retry.NewRetrier(cfg.Retry, log)

	candidates, err := pickUniverse(ctx, cfg, v, retrier, log)
	if err != nil {
		return err
	}

	instruments := make([]types.InstrumentInfo, 0, len(candidates))
	for _, c := range candidates {
		instruments = append(instruments, c.Info)
	}

	sessions := session.NewManager(cfg.Journal.Dir, log)
	if err := sessions.Initialize(time.Now()); err != nil {
		return err
	}

	sessionJournal, err := journal.NewSessionJournal(sessions)
	if err != nil {
		return err
	}

	sched, err := schedule.New(cfg.Schedule)
	if err != nil {
		return err
	}

	telegram := notify.NewTelegram(cfg.Notify.Telegram, log)
	m := metrics.New()
	events := journal.Tee{sessionJournal, m, notify.NewJournal(telegram)}

	defer func() {
		if err := events.Close(); err != nil {
			log.Error("Failed to close journal", zap.Error(err))
		}
	}()

	eng, err := engine.New(cfg.EngineConfig(), instruments, engine.Deps{
		Venue:    v,
		Strategy: strategy.NewThreshold(cfg.Strategy.Threshold),
		Journal:  events,
		Notifier: telegram,
		Risk:     risk.NewManager(cfg.Risk),
		Schedule: sched,
		Retrier:  retrier,
		Logger:   log,
		Clock:    time.Now,
		Sleep:    retry.ContextSleep,
		NewKey:   nil,
		OnCycle:  m.ObserveStatus,
	})
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(m, eng.Status, log)
		if err := srv.Start(cfg.Metrics.Addr); err != nil {
			return err
		}

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("Metrics server shutdown failed", zap.Error(err))
			}
		}()
	}

	telegram.Send(ctx, fmt.Sprintf("Bot started: %d instrument(s), provider %s", len(instruments), cfg.Broker.Provider), 0)

	runErr := eng.Run(ctx)

	// the run context is gone by now; shutdown work gets its own deadline
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if cmd.Bool("flatten-on-exit") {
		eng.Flatten(shutdownCtx)
	} else {
		eng.FlattenIfDue(shutdownCtx)
	}

	log.Info("Engine stopped", zap.String("account_id", eng.AccountID()), zap.Error(runErr))
	telegram.Send(shutdownCtx, "Bot stopped", 0)

	if runErr != nil && ctx.Err() != nil {
		return nil
	}

	return runErr
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	cfg := config.Default()

	out, err := cfg.GenerateSchemaJSON()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.Root().Writer, out)

	return err
}

func resolveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logger.NewLoggerWithConfig(cfg.LoggerConfig())
	if err != nil {
		return err
	}
	defer log.Sync()

	v, err := buildVenue(cfg, log)
	if err != nil {
		return err
	}

	candidates, err := pickUniverse(ctx, cfg, v, retry.NewRetrier(cfg.Retry, log), log)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.Root().Writer, renderCandidates(candidates))

	return err
}

func renderCandidates(candidates []instrument.Candidate) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "TICKER", "INSTRUMENT ID", "LOT SIZE", "PRICE STEP", "LOT COST")

	for i, c := range candidates {
		t.Row(
			strconv.Itoa(i+1),
			c.Info.Ticker,
			c.Info.InstrumentID,
			c.Info.LotSize.String(),
			c.Info.MinPriceIncrement.String(),
			c.LotCost.StringFixed(2),
		)
	}

	return t.Render()
}

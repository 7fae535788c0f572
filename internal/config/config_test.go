package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-trader/internal/version"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	suite.T().Setenv(EnvBinanceAPIKey, "")
	suite.T().Setenv(EnvBinanceSecretKey, "")
	suite.T().Setenv("TG_BOT_TOKEN", "")
	suite.T().Setenv("TG_CHAT_ID", "")
}

const fullConfig = `
broker:
  provider: binance
  sandbox: true
  settlement_currency: USDT
  account_id: main
risk:
  max_day_loss: "250.5"
  max_trades_per_day: 5
  max_positions: 2
orders:
  lots_per_order: 2
  ttl: 90s
  nudge: true
  cash_slack: "0.02"
schedule:
  tz: Europe/Moscow
  start_trade: "10:05"
  stop_new_entries: "18:20"
  flatten_time: "18:40"
universe:
  tickers: [BTCUSDT, ETHUSDT]
  max_lot_cost: "500"
strategy:
  name: threshold
  threshold:
    dip_pct: "0.005"
    max_hold: 2h
journal:
  dir: /var/lib/argo
metrics:
  enabled: true
  addr: 127.0.0.1:9200
runtime:
  poll_interval: 30s
  max_consecutive_errors: 7
logging:
  level: debug
retry:
  tries: 5
`

func (suite *ConfigTestSuite) TestParseFullConfig() {
	suite.T().Setenv(EnvBinanceAPIKey, "key")
	suite.T().Setenv(EnvBinanceSecretKey, "secret")

	cfg, err := Parse([]byte(fullConfig))
	suite.Require().NoError(err)

	suite.Equal(ProviderBinance, cfg.Broker.Provider)
	suite.Equal("key", cfg.Broker.APIKey)
	suite.Equal("secret", cfg.Broker.SecretKey)
	suite.Equal("250.5", cfg.Risk.MaxDayLoss.String())
	suite.Equal(2, cfg.Risk.MaxPositions)
	suite.Equal(int64(2), cfg.Orders.LotsPerOrder)
	suite.Equal(90*time.Second, cfg.Orders.TTL)
	suite.True(cfg.Orders.Nudge)
	suite.Equal("0.02", cfg.Orders.CashSlack.String())
	suite.Equal("Europe/Moscow", cfg.Schedule.TZ)
	suite.Equal([]string{"BTCUSDT", "ETHUSDT"}, cfg.Universe.Tickers)
	suite.Equal("500", cfg.Universe.MaxLotCost.String())
	suite.Equal("0.005", cfg.Strategy.Threshold.DipPct.String())
	suite.Equal(2*time.Hour, cfg.Strategy.Threshold.MaxHold)
	suite.Equal("/var/lib/argo", cfg.Journal.Dir)
	suite.Equal("127.0.0.1:9200", cfg.Metrics.Addr)
	suite.Equal(30*time.Second, cfg.Runtime.PollInterval)
	suite.Equal(7, cfg.Runtime.MaxConsecutiveErrors)
	suite.Equal(5, cfg.Retry.Tries)

	// untouched keys keep their defaults
	suite.Equal("0.004", cfg.Strategy.Threshold.TakeProfitPct.String())
	suite.Equal(10*time.Second, cfg.Runtime.ErrorSleep)
	suite.Equal(int64(1), cfg.Orders.SellTicks)
	suite.Equal(time.Second, cfg.Retry.MinBackoff)

	engineCfg := cfg.EngineConfig()
	suite.Equal("main", engineCfg.AccountID)
	suite.Equal("USDT", engineCfg.SettlementCurrency)
	suite.Equal(cfg.Orders, engineCfg.Orders)

	binanceCfg := cfg.BinanceConfig()
	suite.True(binanceCfg.Testnet)
	suite.Equal("key", binanceCfg.APIKey)

	suite.Equal("debug", cfg.LoggerConfig().Level)
}

func (suite *ConfigTestSuite) TestPaperDefaults() {
	cfg, err := Parse([]byte("universe:\n  tickers: [BTCUSDT]\n"))
	suite.Require().NoError(err)

	suite.Equal(ProviderPaper, cfg.Broker.Provider)
	suite.Equal(PaperSourceBinance, cfg.Broker.Paper.Source)
	suite.Equal("10000", cfg.Broker.Paper.InitialCash.String())
	suite.Equal("logs", cfg.Journal.Dir)
	suite.False(cfg.Metrics.Enabled)
}

func (suite *ConfigTestSuite) TestPaperInlineFields() {
	cfg, err := Parse([]byte(`
broker:
  paper:
    currency: RUB
    initial_cash: "50000"
    source: synthetic
    synthetic:
      seed: 7
      volatility: 0.01
universe:
  tickers: [SBER]
`))
	suite.Require().NoError(err)

	suite.Equal("RUB", cfg.Broker.Paper.Currency)
	suite.Equal("50000", cfg.Broker.Paper.InitialCash.String())
	suite.Equal(PaperSourceSynthetic, cfg.Broker.Paper.Source)
	suite.Equal(int64(7), cfg.Broker.Paper.Synthetic.Seed)
	suite.Equal(0.01, cfg.Broker.Paper.Synthetic.Volatility)
	suite.Equal(time.Minute, cfg.Broker.Paper.Synthetic.Interval)
}

func (suite *ConfigTestSuite) TestTelegramSecretsFromEnv() {
	suite.T().Setenv("TG_BOT_TOKEN", "token")
	suite.T().Setenv("TG_CHAT_ID", "42")

	cfg, err := Parse([]byte("universe:\n  tickers: [BTCUSDT]\nnotify:\n  telegram:\n    enabled: true\n"))
	suite.Require().NoError(err)

	suite.True(cfg.Notify.Telegram.Enabled)
	suite.Equal("token", cfg.Notify.Telegram.Token)
	suite.Equal("42", cfg.Notify.Telegram.ChatID)
}

func (suite *ConfigTestSuite) TestValidationErrors() {
	tests := []struct {
		name string
		yaml string
		code errors.ErrorCode
	}{
		{"no tickers", "broker:\n  provider: paper\n", errors.ErrCodeInvalidConfiguration},
		{"unknown provider", "broker:\n  provider: ftx\nuniverse:\n  tickers: [A]\n", errors.ErrCodeInvalidConfiguration},
		{"binance without keys", "broker:\n  provider: binance\nuniverse:\n  tickers: [A]\n", errors.ErrCodeMissingParameter},
		{"bad flatten time", "schedule:\n  flatten_time: \"25:99\"\nuniverse:\n  tickers: [A]\n", errors.ErrCodeInvalidConfiguration},
		{"bad time zone", "schedule:\n  tz: Mars/Olympus\nuniverse:\n  tickers: [A]\n", errors.ErrCodeInvalidConfiguration},
		{"zero ttl", "orders:\n  ttl: 0s\nuniverse:\n  tickers: [A]\n", errors.ErrCodeInvalidConfiguration},
		{"negative day loss", "risk:\n  max_day_loss: \"-1\"\nuniverse:\n  tickers: [A]\n", errors.ErrCodeInvalidConfiguration},
		{"negative dip", "strategy:\n  threshold:\n    dip_pct: \"-0.1\"\nuniverse:\n  tickers: [A]\n", errors.ErrCodeInvalidConfiguration},
		{"bad log level", "logging:\n  level: loud\nuniverse:\n  tickers: [A]\n", errors.ErrCodeInvalidConfiguration},
		{"metrics without addr", "metrics:\n  enabled: true\n  addr: \"\"\nuniverse:\n  tickers: [A]\n", errors.ErrCodeInvalidConfiguration},
		{"not yaml", "broker: [", errors.ErrCodeInvalidConfiguration},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			_, err := Parse([]byte(tt.yaml))
			suite.Require().Error(err)
			suite.Equal(tt.code, errors.GetCode(err))
		})
	}
}

func (suite *ConfigTestSuite) TestConfigVersion() {
	saved := version.Version
	defer func() { version.Version = saved }()

	version.Version = "v1.4.2"

	_, err := Parse([]byte("version: 1.4.0\nuniverse:\n  tickers: [A]\n"))
	suite.NoError(err)

	_, err = Parse([]byte("version: 1.5.0\nuniverse:\n  tickers: [A]\n"))
	suite.Equal(errors.ErrCodeInvalidConfiguration, errors.GetCode(err))

	_, err = Parse([]byte("version: 2.0.0\nuniverse:\n  tickers: [A]\n"))
	suite.Equal(errors.ErrCodeInvalidConfiguration, errors.GetCode(err))
}

func (suite *ConfigTestSuite) TestLoadFromFile() {
	dir := suite.T().TempDir()
	path := filepath.Join(dir, "config.yaml")
	suite.Require().NoError(os.WriteFile(path, []byte("universe:\n  tickers: [BTCUSDT]\n"), 0o600))

	cfg, err := Load(path)
	suite.Require().NoError(err)
	suite.Equal([]string{"BTCUSDT"}, cfg.Universe.Tickers)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	suite.Equal(errors.ErrCodeInvalidConfiguration, errors.GetCode(err))
}

func (suite *ConfigTestSuite) TestLoadEnv() {
	dir := suite.T().TempDir()
	path := filepath.Join(dir, ".env")
	suite.Require().NoError(os.WriteFile(path, []byte("BINANCE_API_KEY=from-file\nBINANCE_SECRET_KEY=s3cret\n"), 0o600))

	// an empty value still counts as set for godotenv, so clear it first
	suite.Require().NoError(os.Unsetenv(EnvBinanceAPIKey))
	suite.Require().NoError(os.Unsetenv(EnvBinanceSecretKey))

	suite.Require().NoError(LoadEnv(path, filepath.Join(dir, "absent.env")))
	suite.Equal("from-file", os.Getenv(EnvBinanceAPIKey))

	cfg, err := Parse([]byte("broker:\n  provider: binance\nuniverse:\n  tickers: [A]\n"))
	suite.Require().NoError(err)
	suite.Equal("s3cret", cfg.Broker.SecretKey)
}

func (suite *ConfigTestSuite) TestSchema() {
	cfg := Default()

	out, err := cfg.GenerateSchemaJSON()
	suite.Require().NoError(err)

	suite.Contains(out, `"broker"`)
	suite.Contains(out, `"lots_per_order"`)
	suite.Contains(out, `"flatten_time"`)
	suite.Contains(out, `"initial_cash"`)
	suite.False(strings.Contains(out, "SecretKey"))
	suite.False(strings.Contains(out, "APIKey"))
}

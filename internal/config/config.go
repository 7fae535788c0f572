// Package config loads the bot configuration from YAML, fills defaults,
// reads secrets from the environment and validates the result.
package config

import (
	"encoding/json"
	"os"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/joho/godotenv"
	"github.com/rxtech-lab/argo-trader/internal/engine"
	"github.com/rxtech-lab/argo-trader/internal/logger"
	"github.com/rxtech-lab/argo-trader/internal/notify"
	"github.com/rxtech-lab/argo-trader/internal/retry"
	"github.com/rxtech-lab/argo-trader/internal/risk"
	"github.com/rxtech-lab/argo-trader/internal/schedule"
	"github.com/rxtech-lab/argo-trader/internal/strategy"
	"github.com/rxtech-lab/argo-trader/internal/venue/binance"
	"github.com/rxtech-lab/argo-trader/internal/venue/paper"
	"github.com/rxtech-lab/argo-trader/internal/version"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Broker providers.
const (
	ProviderBinance = "binance"
	ProviderPaper   = "paper"
)

// Paper price sources.
const (
	PaperSourceBinance   = "binance"
	PaperSourceSynthetic = "synthetic"
)

// Environment variables holding venue credentials.
const (
	EnvBinanceAPIKey    = "BINANCE_API_KEY"
	EnvBinanceSecretKey = "BINANCE_SECRET_KEY"
)

// PaperConfig configures the simulated venue.
type PaperConfig struct {
	paper.Config `yaml:",inline"`
	// Source is where prices come from.
	Source    string                `json:"source" yaml:"source" jsonschema:"title=Price Source,enum=binance,enum=synthetic,default=binance" validate:"oneof=binance synthetic"`
	Synthetic paper.SyntheticConfig `json:"synthetic" yaml:"synthetic" jsonschema:"title=Synthetic Feed"`
}

// BrokerConfig selects and configures the venue.
type BrokerConfig struct {
	Provider string `json:"provider" yaml:"provider" jsonschema:"title=Provider,enum=binance,enum=paper,default=paper" validate:"oneof=binance paper"`
	// Sandbox routes to the venue's test environment.
	Sandbox bool `json:"sandbox" yaml:"sandbox" jsonschema:"title=Sandbox,description=Use the venue test environment,default=true"`
	// BaseURL overrides the venue REST endpoint.
	BaseURL            string `json:"base_url,omitempty" yaml:"base_url" jsonschema:"title=Base URL"`
	SettlementCurrency string `json:"settlement_currency" yaml:"settlement_currency" jsonschema:"title=Settlement Currency,default=USDT" validate:"required"`
	// ClassCode narrows instrument lookups on venues with several markets.
	ClassCode string `json:"class_code,omitempty" yaml:"class_code" jsonschema:"title=Class Code"`
	// AccountID pins the account; empty picks the first one.
	AccountID string      `json:"account_id,omitempty" yaml:"account_id" jsonschema:"title=Account ID"`
	Paper     PaperConfig `json:"paper" yaml:"paper" jsonschema:"title=Paper Venue"`

	APIKey    string `json:"-" yaml:"-" jsonschema:"-"`
	SecretKey string `json:"-" yaml:"-" jsonschema:"-"`
}

// UniverseConfig lists the instruments the bot may trade.
type UniverseConfig struct {
	Tickers []string `json:"tickers" yaml:"tickers" jsonschema:"title=Tickers,minItems=1" validate:"min=1,dive,required"`
	// MaxLotCost drops instruments whose lot costs more at startup. Zero keeps all.
	MaxLotCost decimal.Decimal `json:"max_lot_cost" yaml:"max_lot_cost" jsonschema:"title=Max Lot Cost,default=0"`
	// MaxInstruments keeps only the cheapest tradeable instruments. Zero keeps all.
	MaxInstruments int `json:"max_instruments" yaml:"max_instruments" jsonschema:"title=Max Instruments,default=0" validate:"gte=0"`
}

// StrategyConfig selects the decision source.
type StrategyConfig struct {
	Name      string                   `json:"name" yaml:"name" jsonschema:"title=Strategy,enum=threshold,default=threshold" validate:"oneof=threshold"`
	Threshold strategy.ThresholdConfig `json:"threshold" yaml:"threshold" jsonschema:"title=Threshold Strategy"`
}

// JournalConfig places the event journal.
type JournalConfig struct {
	// Dir holds one folder per day with one run folder per process start.
	Dir string `json:"dir" yaml:"dir" jsonschema:"title=Journal Directory,default=logs" validate:"required"`
}

// NotifyConfig configures notifications.
type NotifyConfig struct {
	Telegram notify.TelegramConfig `json:"telegram" yaml:"telegram" jsonschema:"title=Telegram"`
}

// MetricsConfig configures the status server.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" jsonschema:"title=Enabled,default=false"`
	Addr    string `json:"addr" yaml:"addr" jsonschema:"title=Listen Address,default=:9108" validate:"required_if=Enabled true"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level string `json:"level" yaml:"level" jsonschema:"title=Level,enum=debug,enum=info,enum=warn,enum=error,default=info" validate:"omitempty,oneof=debug info warn error"`
	File  string `json:"file,omitempty" yaml:"file" jsonschema:"title=Log File"`
}

// Config is the whole bot configuration.
type Config struct {
	// Version is the argo-trader release the file was written for.
	Version  string               `json:"version,omitempty" yaml:"version" jsonschema:"title=Config Version"`
	Broker   BrokerConfig         `json:"broker" yaml:"broker" jsonschema:"title=Broker"`
	Risk     risk.Config          `json:"risk" yaml:"risk" jsonschema:"title=Risk"`
	Orders   engine.OrdersConfig  `json:"orders" yaml:"orders" jsonschema:"title=Orders"`
	Schedule schedule.Config      `json:"schedule" yaml:"schedule" jsonschema:"title=Schedule"`
	Universe UniverseConfig       `json:"universe" yaml:"universe" jsonschema:"title=Universe"`
	Strategy StrategyConfig       `json:"strategy" yaml:"strategy" jsonschema:"title=Strategy"`
	Journal  JournalConfig        `json:"journal" yaml:"journal" jsonschema:"title=Journal"`
	Notify   NotifyConfig         `json:"notify" yaml:"notify" jsonschema:"title=Notifications"`
	Metrics  MetricsConfig        `json:"metrics" yaml:"metrics" jsonschema:"title=Metrics"`
	Runtime  engine.RuntimeConfig `json:"runtime" yaml:"runtime" jsonschema:"title=Runtime"`
	Logging  LoggingConfig        `json:"logging" yaml:"logging" jsonschema:"title=Logging"`
	Retry    retry.Policy         `json:"retry" yaml:"retry" jsonschema:"title=Retry"`
}

// Default returns a paper trading configuration with conservative limits.
func Default() Config {
	return Config{
		Version: "",
		Broker: BrokerConfig{
			Provider:           ProviderPaper,
			Sandbox:            true,
			BaseURL:            "",
			SettlementCurrency: "USDT",
			ClassCode:          "",
			AccountID:          "",
			Paper: PaperConfig{
				Config: paper.Config{
					Currency:    "USDT",
					InitialCash: decimal.NewFromInt(10000),
				},
				Source:    PaperSourceBinance,
				Synthetic: paper.DefaultSyntheticConfig(),
			},
			APIKey:    "",
			SecretKey: "",
		},
		Risk:     risk.DefaultConfig(),
		Orders:   engine.DefaultOrdersConfig(),
		Schedule: schedule.Config{TZ: "UTC", StartTrade: "", StopNewEntries: "", FlattenTime: ""},
		Universe: UniverseConfig{Tickers: nil, MaxLotCost: decimal.Zero, MaxInstruments: 0},
		Strategy: StrategyConfig{Name: "threshold", Threshold: strategy.DefaultThresholdConfig()},
		Journal:  JournalConfig{Dir: "logs"},
		Notify: NotifyConfig{
			Telegram: notify.TelegramConfig{
				Enabled: false,
				Token:   "",
				ChatID:  "",
				BaseURL: "",
				Timeout: 10 * time.Second,
			},
		},
		Metrics: MetricsConfig{Enabled: false, Addr: ":9108"},
		Runtime: engine.DefaultRuntimeConfig(),
		Logging: LoggingConfig{Level: "info", File: ""},
		Retry:   retry.DefaultPolicy(),
	}
}

// LoadEnv loads environment files into the process environment. Missing
// files are ignored. Without arguments it reads ".env".
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to load %s", f)
		}
	}

	return nil
}

// Load reads the YAML file at path over the defaults, fills secrets from the
// environment and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config %s", path)
	}

	return Parse(data)
}

// Parse is Load for YAML already in memory.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// applyEnv fills credentials that the file does not carry.
func (c *Config) applyEnv() {
	if c.Broker.APIKey == "" {
		c.Broker.APIKey = os.Getenv(EnvBinanceAPIKey)
	}

	if c.Broker.SecretKey == "" {
		c.Broker.SecretKey = os.Getenv(EnvBinanceSecretKey)
	}

	if c.Notify.Telegram.Token == "" {
		c.Notify.Telegram.Token = os.Getenv(notify.EnvBotToken)
	}

	if c.Notify.Telegram.ChatID == "" {
		c.Notify.Telegram.ChatID = os.Getenv(notify.EnvChatID)
	}
}

// Validate validates the Config struct and every section with its own rules.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	if err := version.CheckConfigCompatibility(version.GetVersion(), c.Version); err != nil {
		return err
	}

	if c.Broker.Provider == ProviderBinance && (c.Broker.APIKey == "" || c.Broker.SecretKey == "") {
		return errors.Newf(errors.ErrCodeMissingParameter, "binance provider needs %s and %s", EnvBinanceAPIKey, EnvBinanceSecretKey)
	}

	if c.Risk.MaxDayLoss.IsNegative() || c.Universe.MaxLotCost.IsNegative() {
		return errors.New(errors.ErrCodeInvalidConfiguration, "risk.max_day_loss and universe.max_lot_cost must not be negative")
	}

	if err := c.Schedule.Validate(); err != nil {
		return err
	}

	if err := c.Strategy.Threshold.Validate(); err != nil {
		return err
	}

	engineCfg := c.EngineConfig()

	return engineCfg.Validate()
}

// EngineConfig returns the engine part of the configuration.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		AccountID:          c.Broker.AccountID,
		Sandbox:            c.Broker.Sandbox,
		SettlementCurrency: c.Broker.SettlementCurrency,
		Orders:             c.Orders,
		Runtime:            c.Runtime,
	}
}

// BinanceConfig returns the live venue configuration.
func (c *Config) BinanceConfig() binance.Config {
	return binance.Config{
		APIKey:             c.Broker.APIKey,
		SecretKey:          c.Broker.SecretKey,
		BaseURL:            c.Broker.BaseURL,
		Testnet:            c.Broker.Sandbox,
		SettlementCurrency: c.Broker.SettlementCurrency,
	}
}

// LoggerConfig returns the logger configuration.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level: c.Logging.Level,
		File:  c.Logging.File,
	}
}

// GenerateSchema generates a JSON schema for the Config struct.
func (c *Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			switch t {
			case reflect.TypeOf(decimal.Decimal{}):
				return &jsonschema.Schema{
					Type:    "string",
					Pattern: `^-?[0-9]+(\.[0-9]+)?$`,
				}
			case reflect.TypeOf(time.Duration(0)):
				return &jsonschema.Schema{
					Type:    "string",
					Pattern: `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "argo-trader-config"
	schema.Description = "Configuration schema for argo-trader"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the Config struct.
func (c *Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

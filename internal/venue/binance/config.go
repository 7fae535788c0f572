package binance

import (
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
)

// Config contains the credentials and routing for the Binance spot venue.
type Config struct {
	APIKey    string `json:"apiKey" yaml:"-" jsonschema:"-" validate:"required"`
	SecretKey string `json:"secretKey" yaml:"-" jsonschema:"-" validate:"required"`
	// BaseURL takes precedence over Testnet when set.
	BaseURL string `json:"baseUrl,omitempty" yaml:"base_url" jsonschema:"title=Base URL,description=Override of the Binance REST endpoint"`
	Testnet bool   `json:"testnet" yaml:"testnet" jsonschema:"title=Testnet,description=Route orders to https://testnet.binance.vision"`
	// SettlementCurrency is the quote asset counted as cash.
	SettlementCurrency string `json:"settlementCurrency" yaml:"settlement_currency" jsonschema:"title=Settlement Currency,default=USDT" validate:"required"`
}

// Validate validates the Config struct.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid binance venue config", err)
	}

	return nil
}

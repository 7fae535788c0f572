// Package binance implements venue.Venue on the Binance spot REST API.
//
// Instrument ids are Binance symbols. One lot is one LOT_SIZE step of the
// base asset, so quantities are lots multiplied by the step size. Order ids
// carry their symbol ("BTCUSDT:12345") because every order endpoint needs it.
package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/adshao/go-binance/v2"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/rxtech-lab/argo-trader/internal/venue"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
	"github.com/shopspring/decimal"
)

// SpotAccountID is the only account a Binance key can trade.
const SpotAccountID = "spot"

const symbolStatusTrading = "TRADING"

type symbolInfo struct {
	baseAsset  string
	quoteAsset string
	lotSize    decimal.Decimal
	tickSize   decimal.Decimal
	trading    bool
}

// Venue talks to Binance spot.
type Venue struct {
	client     Client
	settlement string

	mu      sync.RWMutex
	symbols map[string]symbolInfo
}

// New creates a Binance venue.
// If cfg.Testnet is true, connects to Binance Testnet (https://testnet.binance.vision/).
// If cfg.BaseURL is set, it takes precedence over Testnet.
func New(cfg Config) (*Venue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Testnet {
		binance.UseTestnet = true
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)

	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}

	return newWithClient(&realClient{client: client}, cfg.SettlementCurrency), nil
}

// NewPublic creates a venue for the unauthenticated market data endpoints only:
// InstrumentBy and GetLastPrice. The paper venue uses it as its price source.
func NewPublic(baseURL string, testnet bool) *Venue {
	if testnet {
		binance.UseTestnet = true
	}

	client := binance.NewClient("", "")

	if baseURL != "" {
		client.BaseURL = baseURL
	}

	return newWithClient(&realClient{client: client}, "")
}

// newWithClient is used by tests with mock clients.
func newWithClient(client Client, settlement string) *Venue {
	return &Venue{
		client:     client,
		settlement: settlement,
		mu:         sync.RWMutex{},
		symbols:    make(map[string]symbolInfo),
	}
}

// ListAccounts returns the spot account when the key can trade.
func (v *Venue) ListAccounts(ctx context.Context) ([]venue.Account, error) {
	account, err := v.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, classify(err, errors.ErrCodeNoAccount, "failed to get account info from Binance")
	}

	if !account.CanTrade {
		return []venue.Account{}, nil
	}

	return []venue.Account{{ID: SpotAccountID, Name: account.AccountType}}, nil
}

// GetPositions reports the settlement balance as money and the base assets of known
// symbols as securities. Money includes the amount locked by open buys because the
// engine subtracts its own reservations.
func (v *Venue) GetPositions(ctx context.Context, _ string) (venue.Positions, error) {
	account, err := v.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return venue.Positions{}, classify(err, errors.ErrCodeReconcileFailed, "failed to get account info from Binance")
	}

	held := make(map[string]decimal.Decimal, len(account.Balances))
	money := make([]venue.MoneyBalance, 0, 1)

	for _, balance := range account.Balances {
		free := parseDecimal(balance.Free)
		locked := parseDecimal(balance.Locked)
		held[balance.Asset] = free.Add(locked)

		if balance.Asset == v.settlement {
			money = append(money, venue.MoneyBalance{Currency: balance.Asset, Amount: free.Add(locked)})
		}
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	securities := make([]venue.SecurityBalance, 0, len(v.symbols))

	for symbol, info := range v.symbols {
		units, ok := held[info.baseAsset]
		if !ok || !units.IsPositive() {
			continue
		}

		securities = append(securities, venue.SecurityBalance{InstrumentID: symbol, Units: units})
	}

	return venue.Positions{Money: money, Securities: securities}, nil
}

// GetOpenOrders lists working orders across all symbols.
func (v *Venue) GetOpenOrders(ctx context.Context, _ string) ([]venue.OpenOrder, error) {
	orders, err := v.client.NewListOpenOrdersService().Do(ctx)
	if err != nil {
		return nil, classify(err, errors.ErrCodeReconcileFailed, "failed to get open orders from Binance")
	}

	out := make([]venue.OpenOrder, 0, len(orders))

	for _, o := range orders {
		price := optional.None[decimal.Decimal]()
		if p := parseDecimal(o.Price); p.IsPositive() {
			price = optional.Some(p)
		}

		remaining := optional.None[int64]()
		if info, err := v.symbol(ctx, o.Symbol); err == nil {
			unit := types.InstrumentInfo{LotSize: info.lotSize}
			remaining = optional.Some(unit.UnitsToLots(parseDecimal(o.OrigQuantity).Sub(parseDecimal(o.ExecutedQuantity))))
		}

		out = append(out, venue.OpenOrder{
			OrderID:       formatOrderID(o.Symbol, o.OrderID),
			InstrumentID:  o.Symbol,
			Side:          mapSide(o.Side),
			ClientUID:     nonEmpty(o.ClientOrderID),
			Price:         price,
			RemainingLots: remaining,
		})
	}

	return out, nil
}

// SubmitLimitOrder places a GTC limit order. The idempotency key is sent as the client
// order id; when Binance reports it as a duplicate the existing order is returned.
func (v *Venue) SubmitLimitOrder(ctx context.Context, _ string, req venue.OrderRequest) (string, error) {
	if req.Lots <= 0 {
		return "", errors.Newf(errors.ErrCodeInvalidQuantity, "order lots must be positive, got %d", req.Lots)
	}

	info, err := v.symbol(ctx, req.InstrumentID)
	if err != nil {
		return "", err
	}

	var side binance.SideType

	switch req.Side {
	case types.SideBuy:
		side = binance.SideTypeBuy
	case types.SideSell:
		side = binance.SideTypeSell
	default:
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported order side: %s", req.Side)
	}

	quantity := info.lotSize.Mul(decimal.NewFromInt(req.Lots))

	resp, err := v.client.NewCreateOrderService().
		Symbol(req.InstrumentID).
		Side(side).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(quantity.String()).
		Price(req.Price.String()).
		NewClientOrderID(req.IdempotencyKey).
		Do(ctx)
	if err != nil {
		if isDuplicateOrder(err) {
			return v.orderByClientID(ctx, req.InstrumentID, req.IdempotencyKey)
		}

		return "", classify(err, errors.ErrCodeRejected, "failed to place order on Binance")
	}

	return formatOrderID(resp.Symbol, resp.OrderID), nil
}

func (v *Venue) orderByClientID(ctx context.Context, symbol, clientID string) (string, error) {
	order, err := v.client.NewGetOrderService().
		Symbol(symbol).
		OrigClientOrderID(clientID).
		Do(ctx)
	if err != nil {
		return "", classify(err, errors.ErrCodeOrderFailed, "failed to look up duplicate order on Binance")
	}

	return formatOrderID(order.Symbol, order.OrderID), nil
}

// CancelOrder cancels by venue order id.
func (v *Venue) CancelOrder(ctx context.Context, _ string, orderID string) error {
	symbol, id, err := parseOrderID(orderID)
	if err != nil {
		return err
	}

	_, err = v.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(id).
		Do(ctx)
	if err != nil {
		return classify(err, errors.ErrCodeCancelFailed, "failed to cancel order on Binance")
	}

	return nil
}

// GetOrderState queries one order and converts its quantities to lots.
func (v *Venue) GetOrderState(ctx context.Context, _ string, orderID string) (venue.OrderState, error) {
	symbol, id, err := parseOrderID(orderID)
	if err != nil {
		return venue.OrderState{}, err
	}

	order, err := v.client.NewGetOrderService().
		Symbol(symbol).
		OrderID(id).
		Do(ctx)
	if err != nil {
		return venue.OrderState{}, classify(err, errors.ErrCodePollFailed, "failed to get order from Binance")
	}

	info, err := v.symbol(ctx, symbol)
	if err != nil {
		return venue.OrderState{}, err
	}

	unit := types.InstrumentInfo{LotSize: info.lotSize}
	executed := parseDecimal(order.ExecutedQuantity)

	avg := optional.None[decimal.Decimal]()

	if executed.IsPositive() {
		quote := parseDecimal(order.CummulativeQuoteQuantity)
		if quote.IsPositive() {
			avg = optional.Some(quote.Div(executed))
		} else {
			avg = optional.Some(parseDecimal(order.Price))
		}
	}

	return venue.OrderState{
		OrderID:       orderID,
		Status:        mapOrderStatus(order.Status),
		Side:          mapSide(order.Side),
		RequestedLots: unit.UnitsToLots(parseDecimal(order.OrigQuantity)),
		ExecutedLots:  unit.UnitsToLots(executed),
		AvgPrice:      avg,
	}, nil
}

// GetLastPrice returns the latest ticker price of a symbol.
func (v *Venue) GetLastPrice(ctx context.Context, instrumentID string) (optional.Option[decimal.Decimal], error) {
	prices, err := v.client.NewListPricesService().Symbol(instrumentID).Do(ctx)
	if err != nil {
		return optional.None[decimal.Decimal](), classify(err, errors.ErrCodeNoLastPrice, "failed to get last price from Binance")
	}

	for _, p := range prices {
		if p.Symbol != instrumentID {
			continue
		}

		price, parseErr := decimal.NewFromString(p.Price)
		if parseErr != nil || !price.IsPositive() {
			return optional.None[decimal.Decimal](), nil
		}

		return optional.Some(price), nil
	}

	return optional.None[decimal.Decimal](), nil
}

// InstrumentBy resolves a symbol. A non-empty classCode must match the quote asset,
// which keeps "BTC" from resolving against an unexpected market.
func (v *Venue) InstrumentBy(ctx context.Context, ticker, classCode string) (venue.Instrument, error) {
	symbol := strings.ToUpper(ticker)

	info, err := v.fetchSymbol(ctx, symbol)
	if err != nil {
		return venue.Instrument{}, err
	}

	if classCode != "" && !strings.EqualFold(info.quoteAsset, classCode) {
		return venue.Instrument{}, errors.Newf(errors.ErrCodeInstrumentUnknown,
			"symbol %s is quoted in %s, expected %s", symbol, info.quoteAsset, classCode)
	}

	return venue.Instrument{
		Ticker:            ticker,
		InstrumentID:      symbol,
		ClassCode:         info.quoteAsset,
		LotSize:           info.lotSize,
		MinPriceIncrement: info.tickSize,
		Tradeable:         optional.Some(info.trading),
	}, nil
}

// symbol returns cached metadata, fetching it on first use.
func (v *Venue) symbol(ctx context.Context, symbol string) (symbolInfo, error) {
	v.mu.RLock()
	info, ok := v.symbols[symbol]
	v.mu.RUnlock()

	if ok {
		return info, nil
	}

	return v.fetchSymbol(ctx, symbol)
}

func (v *Venue) fetchSymbol(ctx context.Context, symbol string) (symbolInfo, error) {
	exchangeInfo, err := v.client.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		return symbolInfo{}, classify(err, errors.ErrCodeInstrumentUnknown, "failed to get exchange info from Binance")
	}

	for i := range exchangeInfo.Symbols {
		s := &exchangeInfo.Symbols[i]
		if s.Symbol != symbol {
			continue
		}

		info := symbolInfo{
			baseAsset:  s.BaseAsset,
			quoteAsset: s.QuoteAsset,
			lotSize:    decimal.Zero,
			tickSize:   decimal.Zero,
			trading:    s.Status == symbolStatusTrading,
		}

		if lot := s.LotSizeFilter(); lot != nil {
			info.lotSize = parseDecimal(lot.StepSize)
		}

		if price := s.PriceFilter(); price != nil {
			info.tickSize = parseDecimal(price.TickSize)
		}

		if !info.lotSize.IsPositive() {
			return symbolInfo{}, errors.Newf(errors.ErrCodeInstrumentUnknown, "symbol %s has no LOT_SIZE step", symbol)
		}

		v.mu.Lock()
		v.symbols[symbol] = info
		v.mu.Unlock()

		return info, nil
	}

	return symbolInfo{}, errors.Newf(errors.ErrCodeInstrumentUnknown, "symbol %s not listed", symbol)
}

func formatOrderID(symbol string, id int64) string {
	return fmt.Sprintf("%s:%d", symbol, id)
}

func parseOrderID(orderID string) (string, int64, error) {
	symbol, raw, ok := strings.Cut(orderID, ":")
	if !ok || symbol == "" {
		return "", 0, errors.Newf(errors.ErrCodeInvalidParameter, "invalid order ID format: %q", orderID)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", 0, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid order ID format", err)
	}

	return symbol, id, nil
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}

	return d
}

func nonEmpty(s string) optional.Option[string] {
	if s == "" {
		return optional.None[string]()
	}

	return optional.Some(s)
}

func mapSide(side binance.SideType) optional.Option[types.Side] {
	switch side {
	case binance.SideTypeBuy:
		return optional.Some(types.SideBuy)
	case binance.SideTypeSell:
		return optional.Some(types.SideSell)
	default:
		return optional.None[types.Side]()
	}
}

// mapOrderStatus maps Binance order status to our OrderStatus type.
// An order Binance expired is over without further fills, which the engine treats as a cancel.
func mapOrderStatus(status binance.OrderStatusType) types.OrderStatus {
	switch status {
	case binance.OrderStatusTypePartiallyFilled:
		return types.OrderStatusPartiallyFilled
	case binance.OrderStatusTypeFilled:
		return types.OrderStatusFilled
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypeExpired:
		return types.OrderStatusCancelled
	case binance.OrderStatusTypeRejected:
		return types.OrderStatusRejected
	default:
		return types.OrderStatusNew
	}
}

var _ venue.Venue = (*Venue)(nil)

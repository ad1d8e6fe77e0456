package exchange

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/astra-lab/astra-trading/internal/config"
	"github.com/astra-lab/astra-trading/internal/logger"
	"github.com/astra-lab/astra-trading/internal/types"
	"github.com/astra-lab/astra-trading/pkg/errors"
)

const (
	// minNotionalValue is the venue's minimum order value in base asset.
	// Orders whose projected stop-loss leg is worth less are rejected
	// locally instead of failing remotely.
	minNotionalValue = 10.0

	// Quantities sent to the venue are truncated to 4 decimal digits.
	quoteQuantityPrecision = 4

	// OCO submissions retry from the finest to the coarsest precision.
	maxOrderPrecision = 8
	minOrderPrecision = 3

	// executedQuantityHaircut shaves the buy fill before the OCO sell so
	// the sell never exceeds the actually-settled quantity.
	executedQuantityHaircut = 99.999

	// klineFetchesPerSecond paces historical fetches; the venue drops
	// connections when hammered.
	klineFetchesPerSecond = 16
)

// Service interfaces for mocking the Binance API

// ListPricesService interface for fetching ticker prices.
type ListPricesService interface {
	Symbol(symbol string) ListPricesService
	Do(ctx context.Context) ([]*binance.SymbolPrice, error)
}

// KlinesService interface for fetching historical candles.
type KlinesService interface {
	Symbol(symbol string) KlinesService
	Interval(interval string) KlinesService
	Limit(limit int) KlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

// GetAccountService interface for getting account info.
type GetAccountService interface {
	Do(ctx context.Context) (*binance.Account, error)
}

// ListOpenOrdersService interface for listing open orders.
type ListOpenOrdersService interface {
	Symbol(symbol string) ListOpenOrdersService
	Do(ctx context.Context) ([]*binance.Order, error)
}

// CreateOrderService interface for creating orders.
type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side binance.SideType) CreateOrderService
	Type(orderType binance.OrderType) CreateOrderService
	QuoteOrderQty(quantity string) CreateOrderService
	Do(ctx context.Context) (*binance.CreateOrderResponse, error)
}

// CreateOCOService interface for creating one-cancels-other exit orders.
type CreateOCOService interface {
	Symbol(symbol string) CreateOCOService
	Side(side binance.SideType) CreateOCOService
	Quantity(quantity string) CreateOCOService
	Price(price string) CreateOCOService
	StopPrice(price string) CreateOCOService
	StopLimitPrice(price string) CreateOCOService
	StopLimitTimeInForce(tif binance.TimeInForceType) CreateOCOService
	Do(ctx context.Context) (*binance.CreateOCOResponse, error)
}

// BinanceClient interface abstracts the Binance client for testing.
type BinanceClient interface {
	NewListPricesService() ListPricesService
	NewKlinesService() KlinesService
	NewGetAccountService() GetAccountService
	NewListOpenOrdersService() ListOpenOrdersService
	NewCreateOrderService() CreateOrderService
	NewCreateOCOService() CreateOCOService
}

// realBinanceClient wraps the actual binance.Client.
type realBinanceClient struct {
	client *binance.Client
}

func (r *realBinanceClient) NewListPricesService() ListPricesService {
	return &realListPricesService{service: r.client.NewListPricesService()}
}

func (r *realBinanceClient) NewKlinesService() KlinesService {
	return &realKlinesService{service: r.client.NewKlinesService()}
}

func (r *realBinanceClient) NewGetAccountService() GetAccountService {
	return &realGetAccountService{service: r.client.NewGetAccountService()}
}

func (r *realBinanceClient) NewListOpenOrdersService() ListOpenOrdersService {
	return &realListOpenOrdersService{service: r.client.NewListOpenOrdersService()}
}

func (r *realBinanceClient) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

func (r *realBinanceClient) NewCreateOCOService() CreateOCOService {
	return &realCreateOCOService{service: r.client.NewCreateOCOService()}
}

// Real service wrappers

type realListPricesService struct {
	service *binance.ListPricesService
}

func (s *realListPricesService) Symbol(symbol string) ListPricesService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realListPricesService) Do(ctx context.Context) ([]*binance.SymbolPrice, error) {
	return s.service.Do(ctx)
}

type realKlinesService struct {
	service *binance.KlinesService
}

func (s *realKlinesService) Symbol(symbol string) KlinesService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realKlinesService) Interval(interval string) KlinesService {
	s.service = s.service.Interval(interval)

	return s
}

func (s *realKlinesService) Limit(limit int) KlinesService {
	s.service = s.service.Limit(limit)

	return s
}

func (s *realKlinesService) Do(ctx context.Context) ([]*binance.Kline, error) {
	return s.service.Do(ctx)
}

type realGetAccountService struct {
	service *binance.GetAccountService
}

func (s *realGetAccountService) Do(ctx context.Context) (*binance.Account, error) {
	return s.service.Do(ctx)
}

type realListOpenOrdersService struct {
	service *binance.ListOpenOrdersService
}

func (s *realListOpenOrdersService) Symbol(symbol string) ListOpenOrdersService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realListOpenOrdersService) Do(ctx context.Context) ([]*binance.Order, error) {
	return s.service.Do(ctx)
}

type realCreateOrderService struct {
	service *binance.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCreateOrderService) Side(side binance.SideType) CreateOrderService {
	s.service = s.service.Side(side)

	return s
}

func (s *realCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)

	return s
}

func (s *realCreateOrderService) QuoteOrderQty(quantity string) CreateOrderService {
	s.service = s.service.QuoteOrderQty(quantity)

	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*binance.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

type realCreateOCOService struct {
	service *binance.CreateOCOService
}

func (s *realCreateOCOService) Symbol(symbol string) CreateOCOService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCreateOCOService) Side(side binance.SideType) CreateOCOService {
	s.service = s.service.Side(side)

	return s
}

func (s *realCreateOCOService) Quantity(quantity string) CreateOCOService {
	s.service = s.service.Quantity(quantity)

	return s
}

func (s *realCreateOCOService) Price(price string) CreateOCOService {
	s.service = s.service.Price(price)

	return s
}

func (s *realCreateOCOService) StopPrice(price string) CreateOCOService {
	s.service = s.service.StopPrice(price)

	return s
}

func (s *realCreateOCOService) StopLimitPrice(price string) CreateOCOService {
	s.service = s.service.StopLimitPrice(price)

	return s
}

func (s *realCreateOCOService) StopLimitTimeInForce(tif binance.TimeInForceType) CreateOCOService {
	s.service = s.service.StopLimitTimeInForce(tif)

	return s
}

func (s *realCreateOCOService) Do(ctx context.Context) (*binance.CreateOCOResponse, error) {
	return s.service.Do(ctx)
}

// Binance is the live venue gateway. It is shared between a driver loop and
// the cache refresher; mu guards the client handle that ResetClient swaps
// out while other calls are in flight.
type Binance struct {
	mu        sync.RWMutex
	client    BinanceClient
	newClient func() BinanceClient

	log     *logger.Logger
	limiter *rate.Limiter

	baseAsset string
	tax       float64

	// ocoDelay separates the buy fill from the OCO submission so the venue
	// UI shows them in history order.
	ocoDelay time.Duration
}

// NewBinance creates the live Binance gateway from the bot configuration.
func NewBinance(cfg *config.Config, baseAsset string, log *logger.Logger) *Binance {
	apiKey := cfg.Binance.API.Key
	apiSecret := cfg.Binance.API.Secret

	newClient := func() BinanceClient {
		return &realBinanceClient{client: binance.NewClient(apiKey, apiSecret)}
	}

	return &Binance{
		client:    newClient(),
		newClient: newClient,
		log:       log,
		limiter:   rate.NewLimiter(rate.Limit(klineFetchesPerSecond), 1),
		baseAsset: baseAsset,
		tax:       cfg.Binance.TaxPerTransaction,
		ocoDelay:  time.Second,
	}
}

// newBinanceWithClient creates a gateway with a custom client. Used for
// testing with mock clients.
func newBinanceWithClient(client BinanceClient, baseAsset string, tax float64, log *logger.Logger) *Binance {
	return &Binance{
		client:    client,
		newClient: func() BinanceClient { return client },
		log:       log,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		baseAsset: baseAsset,
		tax:       tax,
	}
}

// handle returns the current venue client under the read lock.
func (b *Binance) handle() BinanceClient {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.client
}

// GetTradingState implements Exchange. A symbol with open orders on the
// venue is Trading; otherwise it is Pending.
func (b *Binance) GetTradingState(assetToTrade string) (types.TradingState, error) {
	symbol := types.BuildSymbol(assetToTrade, b.baseAsset)

	orders, err := b.handle().NewListOpenOrdersService().Symbol(symbol).Do(context.Background())
	if err != nil {
		return "", errors.Wrapf(errors.ErrCodeOrderFailed, err, "failed to list open orders for %s", symbol)
	}

	if len(orders) == 0 {
		return types.TradingStatePending, nil
	}

	return types.TradingStateTrading, nil
}

// GetOngoingTrades implements Exchange.
func (b *Binance) GetOngoingTrades() ([]string, error) {
	orders, err := b.handle().NewListOpenOrdersService().Do(context.Background())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeOrderFailed, "failed to list open orders", err)
	}

	seen := make(map[string]bool)
	symbols := make([]string, 0, len(orders))

	for _, order := range orders {
		if seen[order.Symbol] {
			continue
		}

		seen[order.Symbol] = true

		symbols = append(symbols, order.Symbol)
	}

	return symbols, nil
}

// GetBaseAssetBalance implements Exchange.
func (b *Binance) GetBaseAssetBalance() (float64, error) {
	account, err := b.handle().NewGetAccountService().Do(context.Background())
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeBalanceFetchFailed, "failed to get account info", err)
	}

	for _, balance := range account.Balances {
		if balance.Asset != b.baseAsset {
			continue
		}

		free, parseErr := strconv.ParseFloat(balance.Free, 64)
		if parseErr != nil {
			return 0, errors.Wrapf(errors.ErrCodeBalanceFetchFailed, parseErr,
				"malformed balance for %s", b.baseAsset)
		}

		return free, nil
	}

	return 0, nil
}

// GetCurrentPrice implements Exchange.
func (b *Binance) GetCurrentPrice(assetToTrade string) (float64, error) {
	symbol := types.BuildSymbol(assetToTrade, b.baseAsset)

	prices, err := b.handle().NewListPricesService().Symbol(symbol).Do(context.Background())
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodePriceFetchFailed, err, "failed to fetch price for %s", symbol)
	}

	if len(prices) == 0 {
		return 0, errors.Newf(errors.ErrCodeSymbolNotFound, "no price for symbol %s", symbol)
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodePriceFetchFailed, err, "malformed price for %s", symbol)
	}

	return price, nil
}

// GetCurrentPrices implements Exchange.
func (b *Binance) GetCurrentPrices() ([]types.SymbolPrice, error) {
	prices, err := b.handle().NewListPricesService().Do(context.Background())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePriceFetchFailed, "failed to fetch ticker prices", err)
	}

	result := make([]types.SymbolPrice, 0, len(prices))

	for _, p := range prices {
		price, parseErr := strconv.ParseFloat(p.Price, 64)
		if parseErr != nil {
			continue // skip malformed entries
		}

		result = append(result, types.SymbolPrice{Symbol: p.Symbol, Price: price})
	}

	return result, nil
}

// GetHistoricalKlines implements Exchange. A fresh client handle is
// requested before every fetch to sidestep stale-connection failures.
func (b *Binance) GetHistoricalKlines(assetToTrade string, interval string, numIntervals int) ([]types.Candle, error) {
	if _, err := types.IntervalToSeconds(interval); err != nil {
		return nil, err
	}

	b.ResetClient()

	symbol := types.BuildSymbol(assetToTrade, b.baseAsset)

	if err := b.limiter.Wait(context.Background()); err != nil {
		return nil, errors.Wrap(errors.ErrCodeHistoricalDataFailed, "rate limiter interrupted", err)
	}

	klines, err := b.handle().NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(numIntervals).
		Do(context.Background())
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeHistoricalDataFailed, err, "failed to fetch klines for %s", symbol)
	}

	if len(klines) != numIntervals {
		return nil, errors.Newf(errors.ErrCodeInsufficientData,
			"short kline window for %s: requested %d, got %d", symbol, numIntervals, len(klines))
	}

	candles := make([]types.Candle, 0, len(klines))

	for _, kline := range klines {
		candle, parseErr := parseKline(kline)
		if parseErr != nil {
			return nil, parseErr
		}

		candles = append(candles, candle)
	}

	return candles, nil
}

// PlaceOrder implements Exchange. It submits a market buy for
// baseAssetAmount of base asset, then brackets the fill with an OCO sell at
// the derived stop-gain/stop-loss prices. The bracket prices include a
// two-sided transaction-tax buffer so a flat exit still covers fees.
func (b *Binance) PlaceOrder(assetToTrade string, baseAssetAmount, stopLossPercentage, stopGainPercentage float64) error {
	symbol := types.BuildSymbol(assetToTrade, b.baseAsset)

	currentPrice, err := b.GetCurrentPrice(assetToTrade)
	if err != nil {
		return err
	}

	projectedLossPrice := currentPrice * (100 - stopLossPercentage + 2*b.tax) / 100.0
	projectedLossNotional := baseAssetAmount / currentPrice * projectedLossPrice

	if projectedLossNotional < minNotionalValue {
		return errors.Newf(errors.ErrCodeBelowMinNotional,
			"projected stop-loss value %.4f below venue minimum %.1f for %s",
			projectedLossNotional, minNotionalValue, symbol)
	}

	buyOrder, err := b.handle().NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideTypeBuy).
		Type(binance.OrderTypeMarket).
		QuoteOrderQty(FixAssetPrecision(baseAssetAmount, quoteQuantityPrecision)).
		Do(context.Background())
	if err != nil {
		return errors.Wrapf(errors.ErrCodeOrderFailed, err, "failed to submit market buy for %s", symbol)
	}

	if len(buyOrder.Fills) == 0 {
		return errors.Newf(errors.ErrCodeOrderFailed, "market buy for %s returned no fills", symbol)
	}

	fillPrice, err := strconv.ParseFloat(buyOrder.Fills[0].Price, 64)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeOrderFailed, err, "malformed fill price for %s", symbol)
	}

	executedQty, err := strconv.ParseFloat(buyOrder.ExecutedQuantity, 64)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeOrderFailed, err, "malformed executed quantity for %s", symbol)
	}

	gainPrice := fillPrice * (100 + stopGainPercentage + 2*b.tax) / 100.0
	lossPrice := fillPrice * (100 - stopLossPercentage + 2*b.tax) / 100.0
	quantity := executedQty * (executedQuantityHaircut - b.tax) / 100.0

	b.log.Info("Buy order executed",
		zap.String("symbol", symbol),
		zap.Float64("fill_price", fillPrice),
		zap.Float64("executed_qty", executedQty),
		zap.Float64("gain_price", gainPrice),
		zap.Float64("loss_price", lossPrice),
	)

	time.Sleep(b.ocoDelay)

	return b.placeOCOSell(symbol, quantity, gainPrice, lossPrice)
}

// placeOCOSell submits the bracket exit, retrying with progressively
// coarser precision when the venue rejects the order's digits. On
// exhaustion the buy position remains open and must be handled externally.
func (b *Binance) placeOCOSell(symbol string, quantity, gainPrice, lossPrice float64) error {
	var lastErr error

	for precision := int32(maxOrderPrecision); precision >= minOrderPrecision; precision-- {
		_, err := b.handle().NewCreateOCOService().
			Symbol(symbol).
			Side(binance.SideTypeSell).
			Quantity(FixAssetPrecision(quantity, precision)).
			Price(FixAssetPrecision(gainPrice, precision)).
			StopPrice(FixAssetPrecision(lossPrice, precision)).
			StopLimitPrice(FixAssetPrecision(lossPrice, precision)).
			StopLimitTimeInForce(binance.TimeInForceTypeGTC).
			Do(context.Background())
		if err == nil {
			b.log.Info("Sell order (OCO) placed",
				zap.String("symbol", symbol),
				zap.Float64("quantity", quantity),
				zap.Float64("gain_price", gainPrice),
				zap.Float64("loss_price", lossPrice),
				zap.Int32("precision", precision),
			)

			return nil
		}

		lastErr = err

		b.log.Warn("OCO submission rejected, stepping down precision",
			zap.String("symbol", symbol),
			zap.Int32("precision", precision),
			zap.Error(err),
		)
	}

	return errors.Wrapf(errors.ErrCodePrecisionExhausted, lastErr,
		"OCO for %s rejected at every precision, buy position remains open", symbol)
}

// ResetClient implements Exchange.
func (b *Binance) ResetClient() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.client = b.newClient()
}

// parseKline converts a raw venue kline into a Candle.
func parseKline(kline *binance.Kline) (types.Candle, error) {
	open, err := strconv.ParseFloat(kline.Open, 64)
	if err != nil {
		return types.Candle{}, errors.Wrap(errors.ErrCodeKlineParseFailed, "malformed open price", err)
	}

	high, err := strconv.ParseFloat(kline.High, 64)
	if err != nil {
		return types.Candle{}, errors.Wrap(errors.ErrCodeKlineParseFailed, "malformed high price", err)
	}

	low, err := strconv.ParseFloat(kline.Low, 64)
	if err != nil {
		return types.Candle{}, errors.Wrap(errors.ErrCodeKlineParseFailed, "malformed low price", err)
	}

	closePrice, err := strconv.ParseFloat(kline.Close, 64)
	if err != nil {
		return types.Candle{}, errors.Wrap(errors.ErrCodeKlineParseFailed, "malformed close price", err)
	}

	volume, err := strconv.ParseFloat(kline.Volume, 64)
	if err != nil {
		return types.Candle{}, errors.Wrap(errors.ErrCodeKlineParseFailed, "malformed volume", err)
	}

	return types.Candle{
		OpenTime:   time.UnixMilli(kline.OpenTime),
		Open:       open,
		High:       high,
		Low:        low,
		Close:      closePrice,
		Volume:     volume,
		CloseTime:  time.UnixMilli(kline.CloseTime),
		TradeCount: kline.TradeNum,
	}, nil
}

// Ensure Binance implements Exchange.
var _ Exchange = (*Binance)(nil)

package exchange

import (
	"fmt"
	"sync"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/astra-lab/astra-trading/internal/config"
	"github.com/astra-lab/astra-trading/internal/logger"
	"github.com/astra-lab/astra-trading/internal/types"
	"github.com/astra-lab/astra-trading/pkg/errors"
)

const (
	// simulatorFrameSize is the trailing window handed to callers on every
	// fetch; the cursor starts at the last index of the first full frame.
	simulatorFrameSize = 210

	// simulatorInitialBalance is the base-asset balance a dry run starts
	// with.
	simulatorInitialBalance = 1.0

	defaultSimulatorAsset = "ADA"
)

// Simulator dry-runs the serial trader against real historical data for a
// single pair. Unlike Backtest, the clock advances on GetTradingState and
// at most one position exists at a time. mu serializes the driver loop
// against the cache refresher sharing the gateway.
type Simulator struct {
	mu     sync.Mutex
	data   []types.Candle
	cursor int
	tax    float64

	balance float64
	gains   int
	losses  int
	order   optional.Option[types.Order]

	log *logger.Logger

	baseAsset    string
	assetToTrade string
}

// NewSimulator prefetches the pair's history through the live gateway and
// returns a simulator positioned at the end of the first full frame.
func NewSimulator(cfg *config.Config, baseAsset, assetToTrade string,
	source Exchange, log *logger.Logger) (*Simulator, error) {
	if assetToTrade == "" {
		assetToTrade = defaultSimulatorAsset
	}

	interval := fmt.Sprintf("%dm", cfg.BinanceSimulator.IntervalInMinutes)

	data, err := source.GetHistoricalKlines(assetToTrade, interval, cfg.BinanceSimulator.NumberOfIntervals)
	if err != nil {
		return nil, err
	}

	if len(data) < simulatorFrameSize {
		return nil, errors.Newf(errors.ErrCodeInsufficientData,
			"simulator needs at least %d intervals, got %d", simulatorFrameSize, len(data))
	}

	return &Simulator{
		data:         data,
		cursor:       simulatorFrameSize - 1,
		tax:          cfg.Binance.TaxPerTransaction,
		balance:      simulatorInitialBalance,
		order:        optional.None[types.Order](),
		log:          log,
		baseAsset:    baseAsset,
		assetToTrade: assetToTrade,
	}, nil
}

// GetTradingState implements Exchange. Each call advances the clock by one
// interval, settles the open position if its bracket was crossed, and
// reports the resulting lifecycle state.
func (s *Simulator) GetTradingState(_ string) (types.TradingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursor++

	if s.cursor >= len(s.data) {
		return "", errors.Newf(errors.ErrCodeSimulationComplete,
			"simulation complete: losses=%d gains=%d balance=%.6f", s.losses, s.gains, s.balance)
	}

	if s.order.IsNone() {
		return types.TradingStatePending, nil
	}

	order := s.order.Unwrap()
	currentPrice := s.data[s.cursor].Close

	switch {
	case currentPrice >= order.GainPrice:
		s.settleLocked(order, order.GainPrice, types.SettlementGain)

		return types.TradingStatePending, nil

	case currentPrice <= order.LossPrice:
		s.settleLocked(order, order.LossPrice, types.SettlementLoss)

		return types.TradingStatePending, nil
	}

	return types.TradingStateTrading, nil
}

func (s *Simulator) settleLocked(order types.Order, settlePrice float64, outcome types.SettlementOutcome) {
	credit := order.Quantity * (settlePrice/order.EntryPrice - s.tax/100.0)
	s.balance += credit

	if outcome == types.SettlementGain {
		s.gains++
	} else {
		s.losses++
	}

	s.order = optional.None[types.Order]()

	s.log.Info("Simulated trade settled",
		zap.String("symbol", order.Symbol),
		zap.String("outcome", string(outcome)),
		zap.Float64("credit", credit),
		zap.Float64("balance", s.balance),
	)
}

// GetOngoingTrades implements Exchange. The simulator drives the serial
// lifecycle only.
func (s *Simulator) GetOngoingTrades() ([]string, error) {
	return []string{}, nil
}

// GetBaseAssetBalance implements Exchange.
func (s *Simulator) GetBaseAssetBalance() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.balance, nil
}

func (s *Simulator) currentPriceLocked() (float64, error) {
	if s.cursor >= len(s.data) {
		return 0, errors.Newf(errors.ErrCodeSimulationComplete,
			"simulation complete: losses=%d gains=%d balance=%.6f", s.losses, s.gains, s.balance)
	}

	return s.data[s.cursor].Close, nil
}

// GetCurrentPrice implements Exchange.
func (s *Simulator) GetCurrentPrice(_ string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.currentPriceLocked()
}

// GetCurrentPrices implements Exchange.
func (s *Simulator) GetCurrentPrices() ([]types.SymbolPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price, err := s.currentPriceLocked()
	if err != nil {
		return nil, err
	}

	return []types.SymbolPrice{
		{Symbol: types.BuildSymbol(s.assetToTrade, s.baseAsset), Price: price},
	}, nil
}

// GetHistoricalKlines implements Exchange. It returns the trailing frame
// ending at the cursor, inclusive. Walking past the dataset yields the
// simulation-complete signal.
func (s *Simulator) GetHistoricalKlines(_ string, _ string, numIntervals int) ([]types.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor >= len(s.data) {
		return nil, errors.Newf(errors.ErrCodeSimulationComplete,
			"simulation complete: losses=%d gains=%d balance=%.6f", s.losses, s.gains, s.balance)
	}

	if numIntervals > s.cursor+1 {
		return nil, errors.Newf(errors.ErrCodeWindowTooLarge,
			"window of %d intervals reaches before the dataset start (cursor %d)", numIntervals, s.cursor)
	}

	window := make([]types.Candle, numIntervals)
	copy(window, s.data[s.cursor-numIntervals+1:s.cursor+1])

	return window, nil
}

// PlaceOrder implements Exchange.
func (s *Simulator) PlaceOrder(assetToTrade string, baseAssetAmount, stopLossPercentage, stopGainPercentage float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.order.IsSome() {
		return errors.Newf(errors.ErrCodeTradeAlreadyOpen,
			"trade already open for %s", types.BuildSymbol(assetToTrade, s.baseAsset))
	}

	if baseAssetAmount > s.balance {
		return errors.Newf(errors.ErrCodeInsufficientFunds,
			"order of %.6f exceeds balance %.6f", baseAssetAmount, s.balance)
	}

	price, err := s.currentPriceLocked()
	if err != nil {
		return err
	}

	order := types.Order{
		Symbol:     types.BuildSymbol(assetToTrade, s.baseAsset),
		Quantity:   baseAssetAmount * (1.0 - s.tax/100.0),
		EntryPrice: price,
		GainPrice:  price * (100 + stopGainPercentage + 2*s.tax) / 100.0,
		LossPrice:  price * (100 - stopLossPercentage + 2*s.tax) / 100.0,
	}

	s.order = optional.Some(order)
	s.balance -= baseAssetAmount

	s.log.Debug("Simulated order placed",
		zap.String("symbol", order.Symbol),
		zap.Int("step", s.cursor),
		zap.Float64("entry_price", price),
		zap.Float64("gain_price", order.GainPrice),
		zap.Float64("loss_price", order.LossPrice),
	)

	return nil
}

// ResetClient implements Exchange. Dry runs have no remote client.
func (s *Simulator) ResetClient() {}

// Result returns the aggregate outcome of the dry run so far.
func (s *Simulator) Result() types.SimulationResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	return types.SimulationResult{Losses: s.losses, Gains: s.gains, Balance: s.balance}
}

// Ensure Simulator implements Exchange.
var _ Exchange = (*Simulator)(nil)

package exchange

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/astra-lab/astra-trading/internal/config"
	"github.com/astra-lab/astra-trading/internal/exchange/journal"
	"github.com/astra-lab/astra-trading/internal/logger"
	"github.com/astra-lab/astra-trading/internal/types"
	"github.com/astra-lab/astra-trading/pkg/errors"
)

const (
	// backtestInitialBalance is the base-asset balance every replay starts
	// with.
	backtestInitialBalance = 1000.0

	// stepLogInterval controls how often replay progress is logged.
	stepLogInterval = 100
)

// Backtest replays a prefetched historical dataset. All symbols share one
// cursor; every GetOngoingTrades call advances it by exactly one interval
// and settles any position whose bracket was crossed by the new close.
type Backtest struct {
	mu sync.Mutex

	data    map[string][]types.Candle
	cursor  int
	lastIdx int
	tax     float64

	balance       float64
	gains         int
	losses        int
	ongoingTrades map[string]types.Order

	journal *journal.Journal
	onStep  func(step int)
	log     *logger.Logger

	baseAsset string
}

// NewBacktest creates a replay gateway over the given dataset. journal and
// onStep may be nil.
func NewBacktest(cfg config.BacktestConfig, baseAsset string, data map[string][]types.Candle,
	jnl *journal.Journal, onStep func(step int), log *logger.Logger) *Backtest {
	return &Backtest{
		data:          data,
		cursor:        cfg.StartIntervalIndex,
		lastIdx:       cfg.TotalNumberOfIntervals,
		tax:           cfg.TaxPerTransaction,
		balance:       backtestInitialBalance,
		ongoingTrades: make(map[string]types.Order),
		journal:       jnl,
		onStep:        onStep,
		log:           log,
		baseAsset:     baseAsset,
	}
}

// GetTradingState implements Exchange. Unlike GetOngoingTrades it does not
// advance the cursor.
func (b *Backtest) GetTradingState(assetToTrade string) (types.TradingState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	symbol := types.BuildSymbol(assetToTrade, b.baseAsset)
	if _, open := b.ongoingTrades[symbol]; open {
		return types.TradingStateTrading, nil
	}

	return types.TradingStatePending, nil
}

// GetOngoingTrades implements Exchange. Each call advances the simulation by
// one interval, settles crossed brackets against the new close, and returns
// the symbols still holding a position. Once the cursor passes the last
// interval every subsequent call returns a simulation-complete error.
func (b *Backtest) GetOngoingTrades() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cursor++

	if b.cursor%stepLogInterval == 0 {
		b.log.Info("Simulation step", zap.Int("step", b.cursor))
	}

	if b.onStep != nil {
		b.onStep(b.cursor)
	}

	if b.cursor >= b.lastIdx {
		return nil, errors.Newf(errors.ErrCodeSimulationComplete,
			"simulation complete: losses=%d gains=%d balance=%.4f", b.losses, b.gains, b.balance)
	}

	for symbol, trade := range b.ongoingTrades {
		closePrice := b.data[symbol][b.cursor].Close

		switch {
		case closePrice >= trade.GainPrice:
			b.settleLocked(symbol, trade, trade.GainPrice, types.SettlementGain)
		case closePrice <= trade.LossPrice:
			b.settleLocked(symbol, trade, trade.LossPrice, types.SettlementLoss)
		}
	}

	symbols := make([]string, 0, len(b.ongoingTrades))
	for symbol := range b.ongoingTrades {
		symbols = append(symbols, symbol)
	}

	return symbols, nil
}

// settleLocked closes a position at the given bracket price. Callers hold
// b.mu.
func (b *Backtest) settleLocked(symbol string, trade types.Order, settlePrice float64, outcome types.SettlementOutcome) {
	credit := trade.Quantity * (settlePrice/trade.EntryPrice - b.tax/100.0)
	b.balance += credit

	if outcome == types.SettlementGain {
		b.gains++
	} else {
		b.losses++
	}

	delete(b.ongoingTrades, symbol)

	b.log.Info("Trade settled",
		zap.String("symbol", symbol),
		zap.String("outcome", string(outcome)),
		zap.Float64("credit", credit),
		zap.Float64("balance", b.balance),
	)

	if b.journal != nil {
		if err := b.journal.RecordSettlement(symbol, settlePrice, credit, outcome); err != nil {
			b.log.Warn("Failed to journal settlement", zap.String("symbol", symbol), zap.Error(err))
		}
	}
}

// GetBaseAssetBalance implements Exchange.
func (b *Backtest) GetBaseAssetBalance() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.balance, nil
}

// GetCurrentPrice implements Exchange. The current price is the close at
// the cursor.
func (b *Backtest) GetCurrentPrice(assetToTrade string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.currentPriceLocked(types.BuildSymbol(assetToTrade, b.baseAsset))
}

func (b *Backtest) currentPriceLocked(symbol string) (float64, error) {
	data, ok := b.data[symbol]
	if !ok {
		return 0, errors.Newf(errors.ErrCodeSymbolNotFound, "no historical data for symbol %s", symbol)
	}

	return data[b.cursor].Close, nil
}

// GetCurrentPrices implements Exchange.
func (b *Backtest) GetCurrentPrices() ([]types.SymbolPrice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prices := make([]types.SymbolPrice, 0, len(b.data))
	for symbol, data := range b.data {
		prices = append(prices, types.SymbolPrice{Symbol: symbol, Price: data[b.cursor].Close})
	}

	return prices, nil
}

// GetHistoricalKlines implements Exchange. It returns the numIntervals
// candles ending at the cursor, inclusive. Requesting a window reaching
// before the first interval is an error.
func (b *Backtest) GetHistoricalKlines(assetToTrade string, _ string, numIntervals int) ([]types.Candle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if numIntervals > b.cursor+1 {
		return nil, errors.Newf(errors.ErrCodeWindowTooLarge,
			"window of %d intervals reaches before the dataset start (cursor %d)", numIntervals, b.cursor)
	}

	symbol := types.BuildSymbol(assetToTrade, b.baseAsset)

	data, ok := b.data[symbol]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeSymbolNotFound, "no historical data for symbol %s", symbol)
	}

	window := make([]types.Candle, numIntervals)
	copy(window, data[b.cursor-numIntervals+1:b.cursor+1])

	return window, nil
}

// PlaceOrder implements Exchange. The fill is the close at the cursor; the
// invested amount is debited immediately and the position carries the
// post-tax quantity.
func (b *Backtest) PlaceOrder(assetToTrade string, baseAssetAmount, stopLossPercentage, stopGainPercentage float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	symbol := types.BuildSymbol(assetToTrade, b.baseAsset)

	if _, open := b.ongoingTrades[symbol]; open {
		return errors.Newf(errors.ErrCodeTradeAlreadyOpen, "trade already open for %s", symbol)
	}

	if baseAssetAmount > b.balance {
		return errors.Newf(errors.ErrCodeInsufficientFunds,
			"order of %.4f exceeds balance %.4f", baseAssetAmount, b.balance)
	}

	price, err := b.currentPriceLocked(symbol)
	if err != nil {
		return err
	}

	order := types.Order{
		Symbol:     symbol,
		Quantity:   baseAssetAmount * (1.0 - b.tax/100.0),
		EntryPrice: price,
		GainPrice:  price * (100 + stopGainPercentage + 2*b.tax) / 100.0,
		LossPrice:  price * (100 - stopLossPercentage + 2*b.tax) / 100.0,
	}

	b.ongoingTrades[symbol] = order
	b.balance -= baseAssetAmount

	b.log.Debug("Simulated order placed",
		zap.String("symbol", symbol),
		zap.Int("step", b.cursor),
		zap.Float64("entry_price", price),
		zap.Float64("gain_price", order.GainPrice),
		zap.Float64("loss_price", order.LossPrice),
	)

	if b.journal != nil {
		if err := b.journal.RecordEntry(order, baseAssetAmount); err != nil {
			b.log.Warn("Failed to journal entry", zap.String("symbol", symbol), zap.Error(err))
		}
	}

	return nil
}

// ResetClient implements Exchange. Replays have no remote client.
func (b *Backtest) ResetClient() {}

// Result returns the aggregate outcome of the replay so far.
func (b *Backtest) Result() types.SimulationResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	return types.SimulationResult{Losses: b.losses, Gains: b.gains, Balance: b.balance}
}

// Symbols returns the dataset's symbols, ordered deterministically.
func (b *Backtest) Symbols() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	symbols := make([]string, 0, len(b.data))
	for symbol := range b.data {
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	return symbols
}

// Ensure Backtest implements Exchange.
var _ Exchange = (*Backtest)(nil)

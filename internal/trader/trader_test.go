package trader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astra-lab/astra-trading/internal/config"
	"github.com/astra-lab/astra-trading/internal/indicator"
	"github.com/astra-lab/astra-trading/internal/logger"
	"github.com/astra-lab/astra-trading/internal/strategy"
	"github.com/astra-lab/astra-trading/internal/types"
	"github.com/astra-lab/astra-trading/pkg/errors"
)

type placedOrder struct {
	asset    string
	amount   float64
	stopLoss float64
	stopGain float64
}

// scriptedExchange plays back staged responses and records interactions.
type scriptedExchange struct {
	states    []types.TradingState
	stateErrs []error

	balance    float64
	balanceErr error

	price  float64
	prices []types.SymbolPrice

	candles   []types.Candle
	klinesErr error

	ongoing  []string
	placed   []placedOrder
	placeErr error

	resets      int
	pricesCalls int
}

func (e *scriptedExchange) GetTradingState(_ string) (types.TradingState, error) {
	var err error
	if len(e.stateErrs) > 0 {
		err, e.stateErrs = e.stateErrs[0], e.stateErrs[1:]
	}

	if err != nil {
		return "", err
	}

	state := types.TradingStatePending
	if len(e.states) > 0 {
		state, e.states = e.states[0], e.states[1:]
	}

	return state, nil
}

func (e *scriptedExchange) GetOngoingTrades() ([]string, error) {
	return e.ongoing, nil
}

func (e *scriptedExchange) GetBaseAssetBalance() (float64, error) {
	return e.balance, e.balanceErr
}

func (e *scriptedExchange) GetCurrentPrice(_ string) (float64, error) {
	return e.price, nil
}

func (e *scriptedExchange) GetCurrentPrices() ([]types.SymbolPrice, error) {
	e.pricesCalls++

	return e.prices, nil
}

func (e *scriptedExchange) GetHistoricalKlines(_ string, _ string, numIntervals int) ([]types.Candle, error) {
	if e.klinesErr != nil {
		return nil, e.klinesErr
	}

	if e.candles != nil {
		return e.candles, nil
	}

	candles := make([]types.Candle, numIntervals)
	for i := range candles {
		candles[i] = types.Candle{Open: 1, High: 1, Low: 1, Close: 1}
	}

	return candles, nil
}

func (e *scriptedExchange) PlaceOrder(asset string, amount, stopLoss, stopGain float64) error {
	if e.placeErr != nil {
		return e.placeErr
	}

	e.placed = append(e.placed, placedOrder{asset, amount, stopLoss, stopGain})

	return nil
}

func (e *scriptedExchange) ResetClient() {
	e.resets++
}

type fixedStrategy struct {
	signal  bool
	symbols []string
}

func (f *fixedStrategy) Name() string { return "fixed" }

func (f *fixedStrategy) ShouldPlaceOrder(_ *indicator.Series, _ float64, symbol string) (bool, error) {
	f.symbols = append(f.symbols, symbol)

	return f.signal, nil
}

func traderConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Binance.IntervalInMinutes = 1
	cfg.SerialTrader = config.SerialTraderConfig{
		AssetToTrade:             "ADA",
		BaseAsset:                "USDT",
		CycleTimeInSeconds:       0,
		StopLossPercentage:       2.0,
		StopGainPercentage:       5.0,
		BaseAssetUsagePercentage: 50.0,
	}
	cfg.ParallelTrader = config.ParallelTraderConfig{
		BaseAsset:               "USDT",
		CycleTimeInSeconds:      0,
		StopLossPercentage:      2.0,
		StopGainPercentage:      5.0,
		BaseAssetAmountPerTrade: 15.0,
	}

	return cfg
}

func TestSerialPlacesOrderOnSignal(t *testing.T) {
	exch := &scriptedExchange{balance: 200, price: 2.0}
	strat := &fixedStrategy{signal: true}

	s := NewSerial(traderConfig(), exch, []strategy.Strategy{strat}, logger.NewNopLogger())
	require.NoError(t, s.cycle())

	require.Len(t, exch.placed, 1)
	assert.Equal(t, "ADA", exch.placed[0].asset)
	assert.InDelta(t, 100.0, exch.placed[0].amount, 1e-9) // 50% of 200
	assert.InDelta(t, 2.0, exch.placed[0].stopLoss, 1e-9)
	assert.InDelta(t, 5.0, exch.placed[0].stopGain, 1e-9)
	assert.Equal(t, []string{"ADAUSDT"}, strat.symbols)
}

func TestSerialHoldsWithoutSignal(t *testing.T) {
	exch := &scriptedExchange{balance: 200, price: 2.0}

	s := NewSerial(traderConfig(), exch, []strategy.Strategy{&fixedStrategy{}}, logger.NewNopLogger())
	require.NoError(t, s.cycle())
	assert.Empty(t, exch.placed)
}

func TestSerialWaitsWhileTrading(t *testing.T) {
	exch := &scriptedExchange{states: []types.TradingState{types.TradingStateTrading}}
	strat := &fixedStrategy{signal: true}

	s := NewSerial(traderConfig(), exch, []strategy.Strategy{strat}, logger.NewNopLogger())
	require.NoError(t, s.cycle())
	assert.Empty(t, exch.placed)
	assert.Empty(t, strat.symbols)
}

func TestSerialRunStopsOnSimulationComplete(t *testing.T) {
	exch := &scriptedExchange{
		stateErrs: []error{errors.New(errors.ErrCodeSimulationComplete, "simulation complete")},
	}

	s := NewSerial(traderConfig(), exch, []strategy.Strategy{&fixedStrategy{}}, logger.NewNopLogger())

	err := s.Run()
	require.Error(t, err)
	assert.True(t, errors.IsSimulationComplete(err))
}

func TestSerialRunRecoversFromTransientErrors(t *testing.T) {
	exch := &scriptedExchange{
		states: []types.TradingState{types.TradingStateTrading, types.TradingStateTrading},
		stateErrs: []error{
			errors.New(errors.ErrCodeOrderFailed, "connection reset"),
			nil,
			errors.New(errors.ErrCodeSimulationComplete, "simulation complete"),
		},
	}

	s := NewSerial(traderConfig(), exch, []strategy.Strategy{&fixedStrategy{}}, logger.NewNopLogger())

	err := s.Run()
	require.Error(t, err)
	assert.True(t, errors.IsSimulationComplete(err))
	assert.Equal(t, 1, exch.resets)
}

func TestSerialRunStopsOnConfigurationError(t *testing.T) {
	exch := &scriptedExchange{
		stateErrs: []error{errors.New(errors.ErrCodeWindowTooLarge, "window too large")},
	}

	s := NewSerial(traderConfig(), exch, []strategy.Strategy{&fixedStrategy{}}, logger.NewNopLogger())

	err := s.Run()
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
	assert.Zero(t, exch.resets)
}

func TestParallelSkipsScanWhenUnderfunded(t *testing.T) {
	exch := &scriptedExchange{
		balance: 10, // below the 15 per-trade amount
		prices:  []types.SymbolPrice{{Symbol: "ADAUSDT", Price: 2.0}},
	}
	strat := &fixedStrategy{signal: true}

	p := NewParallel(traderConfig(), exch, []strategy.Strategy{strat}, logger.NewNopLogger())
	require.NoError(t, p.cycle())
	assert.Zero(t, exch.pricesCalls)
	assert.Empty(t, exch.placed)
}

func TestParallelPlacesOrdersPerSymbol(t *testing.T) {
	exch := &scriptedExchange{
		balance: 100,
		ongoing: []string{"SOLUSDT"},
		prices: []types.SymbolPrice{
			{Symbol: "ADAUSDT", Price: 2.0},
			{Symbol: "SOLUSDT", Price: 150.0}, // already in trade
			{Symbol: "ADABTC", Price: 0.0001}, // wrong quote asset
			{Symbol: "DOTUSDT", Price: 7.0},
		},
	}
	strat := &fixedStrategy{signal: true}

	p := NewParallel(traderConfig(), exch, []strategy.Strategy{strat}, logger.NewNopLogger())
	require.NoError(t, p.cycle())

	require.Len(t, exch.placed, 2)
	assert.Equal(t, "ADA", exch.placed[0].asset)
	assert.Equal(t, "DOT", exch.placed[1].asset)
	assert.InDelta(t, 15.0, exch.placed[0].amount, 1e-9)
	assert.Equal(t, []string{"ADAUSDT", "DOTUSDT"}, strat.symbols)
}

func TestParallelStopsWhenBudgetExhausted(t *testing.T) {
	exch := &scriptedExchange{
		balance: 20, // funds exactly one 15-unit trade
		prices: []types.SymbolPrice{
			{Symbol: "ADAUSDT", Price: 2.0},
			{Symbol: "DOTUSDT", Price: 7.0},
		},
	}
	strat := &fixedStrategy{signal: true}

	p := NewParallel(traderConfig(), exch, []strategy.Strategy{strat}, logger.NewNopLogger())
	require.NoError(t, p.cycle())

	require.Len(t, exch.placed, 1)
	assert.Equal(t, "ADA", exch.placed[0].asset)
}

func TestParallelSkipsSymbolsWithThinHistory(t *testing.T) {
	exch := &scriptedExchange{
		balance:   100,
		prices:    []types.SymbolPrice{{Symbol: "ADAUSDT", Price: 2.0}},
		klinesErr: errors.New(errors.ErrCodeInsufficientData, "short window"),
	}
	strat := &fixedStrategy{signal: true}

	p := NewParallel(traderConfig(), exch, []strategy.Strategy{strat}, logger.NewNopLogger())
	require.NoError(t, p.cycle())
	assert.Empty(t, exch.placed)
}

func TestParallelPropagatesSimulationComplete(t *testing.T) {
	exch := &scriptedExchange{
		balance:   100,
		prices:    []types.SymbolPrice{{Symbol: "ADAUSDT", Price: 2.0}},
		klinesErr: errors.New(errors.ErrCodeSimulationComplete, "simulation complete"),
	}

	p := NewParallel(traderConfig(), exch, []strategy.Strategy{&fixedStrategy{signal: true}}, logger.NewNopLogger())

	err := p.cycle()
	require.Error(t, err)
	assert.True(t, errors.IsSimulationComplete(err))
}

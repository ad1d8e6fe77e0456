package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astra-lab/astra-trading/internal/config"
	"github.com/astra-lab/astra-trading/internal/logger"
	"github.com/astra-lab/astra-trading/internal/types"
	"github.com/astra-lab/astra-trading/pkg/errors"
)

func candlesFromCloses(closes []float64) []types.Candle {
	candles := make([]types.Candle, len(closes))
	for i, c := range closes {
		candles[i] = types.Candle{Open: c, High: c, Low: c, Close: c}
	}

	return candles
}

func newTestBacktest(cfg config.BacktestConfig, data map[string][]types.Candle) *Backtest {
	return NewBacktest(cfg, "USDT", data, nil, nil, logger.NewNopLogger())
}

func TestBacktestTerminatesAfterLastInterval(t *testing.T) {
	cfg := config.BacktestConfig{
		TaxPerTransaction:      0.1,
		IntervalInMinutes:      1,
		TotalNumberOfIntervals: 10,
		StartIntervalIndex:     5,
	}
	data := map[string][]types.Candle{
		"ADAUSDT": candlesFromCloses(make([]float64, 10)),
	}

	b := newTestBacktest(cfg, data)

	// cursor walks 6..9, then the next advance passes the end
	for i := 0; i < 4; i++ {
		_, err := b.GetOngoingTrades()
		require.NoError(t, err, "step %d", i)
	}

	_, err := b.GetOngoingTrades()
	require.Error(t, err)
	assert.True(t, errors.IsSimulationComplete(err))

	// every later call keeps signalling completion
	_, err = b.GetOngoingTrades()
	require.Error(t, err)
	assert.True(t, errors.IsSimulationComplete(err))
}

func TestBacktestOnStepCallback(t *testing.T) {
	cfg := config.BacktestConfig{
		TaxPerTransaction:      0.1,
		IntervalInMinutes:      1,
		TotalNumberOfIntervals: 8,
		StartIntervalIndex:     5,
	}
	data := map[string][]types.Candle{
		"ADAUSDT": candlesFromCloses(make([]float64, 8)),
	}

	var steps []int

	b := NewBacktest(cfg, "USDT", data, nil, func(step int) { steps = append(steps, step) },
		logger.NewNopLogger())

	b.GetOngoingTrades()
	b.GetOngoingTrades()

	assert.Equal(t, []int{6, 7}, steps)
}

func TestBacktestSettlesGain(t *testing.T) {
	cfg := config.BacktestConfig{
		TaxPerTransaction:      0.1,
		IntervalInMinutes:      1,
		TotalNumberOfIntervals: 10,
		StartIntervalIndex:     2,
	}
	// entry at close 1.0; the next close jumps above the gain price
	closes := []float64{1, 1, 1, 2, 2, 2, 2, 2, 2, 2}
	data := map[string][]types.Candle{"ADAUSDT": candlesFromCloses(closes)}

	b := newTestBacktest(cfg, data)

	// stop gain 4.8% + two-sided tax 0.2% puts the gain price at 1.05
	require.NoError(t, b.PlaceOrder("ADA", 10.0, 2.0, 4.8))

	symbols, err := b.GetOngoingTrades()
	require.NoError(t, err)
	assert.Empty(t, symbols)

	result := b.Result()
	assert.Equal(t, 1, result.Gains)
	assert.Equal(t, 0, result.Losses)

	// credit = 10*(1-0.001) * (1.05/1.0 - 0.001)
	wantCredit := 9.99 * (1.05 - 0.001)
	assert.InDelta(t, backtestInitialBalance-10.0+wantCredit, result.Balance, 1e-9)
}

func TestBacktestSettlesLossAtExactBracket(t *testing.T) {
	cfg := config.BacktestConfig{
		TaxPerTransaction:      0.0,
		IntervalInMinutes:      1,
		TotalNumberOfIntervals: 10,
		StartIntervalIndex:     2,
	}
	// loss price with 2% stop loss and no tax is exactly 0.98; a close
	// touching the bracket settles
	closes := []float64{1, 1, 1, 0.98, 1, 1, 1, 1, 1, 1}
	data := map[string][]types.Candle{"ADAUSDT": candlesFromCloses(closes)}

	b := newTestBacktest(cfg, data)
	require.NoError(t, b.PlaceOrder("ADA", 10.0, 2.0, 5.0))

	_, err := b.GetOngoingTrades()
	require.NoError(t, err)

	result := b.Result()
	assert.Equal(t, 1, result.Losses)
	assert.InDelta(t, backtestInitialBalance-10.0+10.0*0.98, result.Balance, 1e-9)
}

func TestBacktestRejectsSecondOrderForSymbol(t *testing.T) {
	cfg := config.BacktestConfig{
		TaxPerTransaction:      0.1,
		IntervalInMinutes:      1,
		TotalNumberOfIntervals: 10,
		StartIntervalIndex:     2,
	}
	data := map[string][]types.Candle{"ADAUSDT": candlesFromCloses(make([]float64, 10))}
	for i := range data["ADAUSDT"] {
		data["ADAUSDT"][i].Close = 1
	}

	b := newTestBacktest(cfg, data)

	require.NoError(t, b.PlaceOrder("ADA", 10.0, 2.0, 5.0))

	state, err := b.GetTradingState("ADA")
	require.NoError(t, err)
	assert.Equal(t, types.TradingStateTrading, state)

	err = b.PlaceOrder("ADA", 10.0, 2.0, 5.0)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeTradeAlreadyOpen))
}

func TestBacktestRejectsOrderAboveBalance(t *testing.T) {
	cfg := config.BacktestConfig{
		TaxPerTransaction:      0.1,
		IntervalInMinutes:      1,
		TotalNumberOfIntervals: 10,
		StartIntervalIndex:     2,
	}
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 1
	}

	b := newTestBacktest(cfg, map[string][]types.Candle{"ADAUSDT": candlesFromCloses(closes)})

	err := b.PlaceOrder("ADA", backtestInitialBalance+1, 2.0, 5.0)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInsufficientFunds))
}

func TestBacktestHistoricalWindowEndsAtCursor(t *testing.T) {
	cfg := config.BacktestConfig{
		TaxPerTransaction:      0.1,
		IntervalInMinutes:      1,
		TotalNumberOfIntervals: 10,
		StartIntervalIndex:     4,
	}
	closes := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	b := newTestBacktest(cfg, map[string][]types.Candle{"ADAUSDT": candlesFromCloses(closes)})

	window, err := b.GetHistoricalKlines("ADA", "1m", 3)
	require.NoError(t, err)
	require.Len(t, window, 3)
	assert.InDelta(t, 2.0, window[0].Close, 1e-9)
	assert.InDelta(t, 4.0, window[2].Close, 1e-9)

	price, err := b.GetCurrentPrice("ADA")
	require.NoError(t, err)
	assert.InDelta(t, 4.0, price, 1e-9)
}

func TestBacktestHistoricalWindowTooLarge(t *testing.T) {
	cfg := config.BacktestConfig{
		TaxPerTransaction:      0.1,
		IntervalInMinutes:      1,
		TotalNumberOfIntervals: 10,
		StartIntervalIndex:     4,
	}
	closes := make([]float64, 10)

	b := newTestBacktest(cfg, map[string][]types.Candle{"ADAUSDT": candlesFromCloses(closes)})

	_, err := b.GetHistoricalKlines("ADA", "1m", 6)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeWindowTooLarge))
}

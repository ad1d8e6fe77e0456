package exchange

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astra-lab/astra-trading/internal/config"
	"github.com/astra-lab/astra-trading/internal/logger"
	"github.com/astra-lab/astra-trading/internal/types"
	"github.com/astra-lab/astra-trading/pkg/errors"
)

// stubSource serves canned klines to the simulator constructor.
type stubSource struct {
	Exchange

	candles []types.Candle
}

func (s *stubSource) GetHistoricalKlines(_ string, _ string, numIntervals int) ([]types.Candle, error) {
	if numIntervals > len(s.candles) {
		return nil, errors.Newf(errors.ErrCodeInsufficientData, "only %d candles staged", len(s.candles))
	}

	return s.candles[:numIntervals], nil
}

func simulatorConfig(numIntervals int) *config.Config {
	cfg := &config.Config{}
	cfg.Binance.TaxPerTransaction = 0.1
	cfg.BinanceSimulator.IntervalInMinutes = 1
	cfg.BinanceSimulator.NumberOfIntervals = numIntervals

	return cfg
}

func newTestSimulator(t *testing.T, closes []float64) *Simulator {
	t.Helper()

	source := &stubSource{candles: candlesFromCloses(closes)}

	sim, err := NewSimulator(simulatorConfig(len(closes)), "USDT", "ADA", source, logger.NewNopLogger())
	require.NoError(t, err)

	return sim
}

// flatThen returns frameSize+extra closes: a flat warmup frame followed by
// the given tail.
func flatThen(tail ...float64) []float64 {
	closes := make([]float64, simulatorFrameSize, simulatorFrameSize+len(tail))
	for i := range closes {
		closes[i] = 1.0
	}

	return append(closes, tail...)
}

func TestSimulatorRequiresFullFrame(t *testing.T) {
	source := &stubSource{candles: candlesFromCloses(make([]float64, simulatorFrameSize-1))}

	_, err := NewSimulator(simulatorConfig(simulatorFrameSize-1), "USDT", "ADA", source, logger.NewNopLogger())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInsufficientData))
}

func TestSimulatorPendingWithoutOrder(t *testing.T) {
	sim := newTestSimulator(t, flatThen(1, 1, 1))

	state, err := sim.GetTradingState("ADA")
	require.NoError(t, err)
	assert.Equal(t, types.TradingStatePending, state)
}

func TestSimulatorSettlesGain(t *testing.T) {
	// entry at 1.0; the next close clears the gain bracket
	sim := newTestSimulator(t, flatThen(2, 2, 2))

	// stop gain 4.8% + two-sided tax 0.2% puts the gain price at 1.05
	require.NoError(t, sim.PlaceOrder("ADA", 0.5, 2.0, 4.8))

	state, err := sim.GetTradingState("ADA")
	require.NoError(t, err)
	assert.Equal(t, types.TradingStatePending, state)

	result := sim.Result()
	assert.Equal(t, 1, result.Gains)
	assert.Equal(t, 0, result.Losses)

	// credit = 0.5*(1-0.001) * (1.05/1.0 - 0.001)
	wantCredit := 0.4995 * (1.05 - 0.001)
	assert.InDelta(t, simulatorInitialBalance-0.5+wantCredit, result.Balance, 1e-9)
}

func TestSimulatorHoldsWhileInsideBrackets(t *testing.T) {
	sim := newTestSimulator(t, flatThen(1.0, 1.0))

	require.NoError(t, sim.PlaceOrder("ADA", 0.5, 2.0, 5.0))

	state, err := sim.GetTradingState("ADA")
	require.NoError(t, err)
	assert.Equal(t, types.TradingStateTrading, state)
}

func TestSimulatorRejectsSecondOrder(t *testing.T) {
	sim := newTestSimulator(t, flatThen(1.0, 1.0))

	require.NoError(t, sim.PlaceOrder("ADA", 0.2, 2.0, 5.0))

	err := sim.PlaceOrder("ADA", 0.2, 2.0, 5.0)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeTradeAlreadyOpen))
}

func TestSimulatorSignalsCompletion(t *testing.T) {
	sim := newTestSimulator(t, flatThen(1.0, 1.0))

	// two spare intervals, then the clock walks off the dataset
	for i := 0; i < 2; i++ {
		_, err := sim.GetTradingState("ADA")
		require.NoError(t, err)
	}

	_, err := sim.GetTradingState("ADA")
	require.Error(t, err)
	assert.True(t, errors.IsSimulationComplete(err))

	_, err = sim.GetHistoricalKlines("ADA", "1m", 10)
	require.Error(t, err)
	assert.True(t, errors.IsSimulationComplete(err))
}

func TestSimulatorConcurrentRefresherAccess(t *testing.T) {
	sim := newTestSimulator(t, flatThen(make([]float64, 300)...))

	// the driver advances the clock while a refresher-style reader lists
	// prices and pulls trailing windows from the same gateway
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()

		for i := 0; i < 100; i++ {
			if _, err := sim.GetTradingState("ADA"); err != nil {
				assert.True(t, errors.IsSimulationComplete(err))
			}
		}
	}()

	go func() {
		defer wg.Done()

		for i := 0; i < 100; i++ {
			_, _ = sim.GetCurrentPrices()
			_, _ = sim.GetHistoricalKlines("ADA", "1d", 20)
		}
	}()

	wg.Wait()
}

func TestSimulatorFrameEndsAtCursor(t *testing.T) {
	closes := flatThen(7.0, 8.0)
	sim := newTestSimulator(t, closes)

	window, err := sim.GetHistoricalKlines("ADA", "1m", simulatorFrameSize)
	require.NoError(t, err)
	require.Len(t, window, simulatorFrameSize)
	assert.InDelta(t, 1.0, window[simulatorFrameSize-1].Close, 1e-9)

	_, err = sim.GetTradingState("ADA")
	require.NoError(t, err)

	window, err = sim.GetHistoricalKlines("ADA", "1m", simulatorFrameSize)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, window[simulatorFrameSize-1].Close, 1e-9)
}

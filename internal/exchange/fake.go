package exchange

import (
	"time"

	"github.com/astra-lab/astra-trading/internal/types"
)

// Fake is a canned-response gateway for wiring checks and local smoke runs.
// It never talks to a venue and accepts every order.
type Fake struct {
	baseAsset string
}

// NewFake creates the canned gateway.
func NewFake(baseAsset string) *Fake {
	return &Fake{baseAsset: baseAsset}
}

// GetTradingState implements Exchange.
func (f *Fake) GetTradingState(_ string) (types.TradingState, error) {
	return types.TradingStatePending, nil
}

// GetOngoingTrades implements Exchange.
func (f *Fake) GetOngoingTrades() ([]string, error) {
	return []string{}, nil
}

// GetBaseAssetBalance implements Exchange.
func (f *Fake) GetBaseAssetBalance() (float64, error) {
	return 136.76918981, nil
}

// GetCurrentPrice implements Exchange.
func (f *Fake) GetCurrentPrice(_ string) (float64, error) {
	return 47277.98, nil
}

// GetCurrentPrices implements Exchange.
func (f *Fake) GetCurrentPrices() ([]types.SymbolPrice, error) {
	return []types.SymbolPrice{
		{Symbol: types.BuildSymbol("ADA", f.baseAsset), Price: 47277.98},
	}, nil
}

// GetHistoricalKlines implements Exchange. The canned minute candles repeat
// until the requested window is filled.
func (f *Fake) GetHistoricalKlines(_ string, _ string, numIntervals int) ([]types.Candle, error) {
	canned := []types.Candle{
		{
			OpenTime:   time.UnixMilli(1621120500000),
			Open:       47677.72,
			High:       47781.79,
			Low:        47612.64,
			Close:      47768.35,
			Volume:     18.424904,
			CloseTime:  time.UnixMilli(1621120559999),
			TradeCount: 633,
		},
		{
			OpenTime:   time.UnixMilli(1621120560000),
			Open:       47768.52,
			High:       47848.76,
			Low:        47726.03,
			Close:      47734.10,
			Volume:     20.088727,
			CloseTime:  time.UnixMilli(1621120619999),
			TradeCount: 614,
		},
		{
			OpenTime:   time.UnixMilli(1621120620000),
			Open:       47727.49,
			High:       47762.15,
			Low:        47623.00,
			Close:      47670.98,
			Volume:     10.549324,
			CloseTime:  time.UnixMilli(1621120679999),
			TradeCount: 491,
		},
	}

	candles := make([]types.Candle, numIntervals)
	for i := range candles {
		candles[i] = canned[i%len(canned)]
	}

	return candles, nil
}

// PlaceOrder implements Exchange.
func (f *Fake) PlaceOrder(_ string, _, _, _ float64) error {
	return nil
}

// ResetClient implements Exchange.
func (f *Fake) ResetClient() {}

// Ensure Fake implements Exchange.
var _ Exchange = (*Fake)(nil)

// Package exchange abstracts a live or simulated trading venue. The
// gateways normalize order placement, balances, trading state, and
// historical-data retrieval, and own the precision/quantization rules.
package exchange

import (
	"github.com/astra-lab/astra-trading/internal/config"
	"github.com/astra-lab/astra-trading/internal/exchange/journal"
	"github.com/astra-lab/astra-trading/internal/logger"
	"github.com/astra-lab/astra-trading/internal/types"
	"github.com/astra-lab/astra-trading/pkg/errors"
)

// Exchange is the capability set the bot drivers rely on. None of the
// operations support cancellation; timeouts are delegated to the underlying
// transport.
type Exchange interface {
	// GetTradingState returns the trade lifecycle state for the asset pair.
	GetTradingState(assetToTrade string) (types.TradingState, error)
	// GetOngoingTrades returns the symbols with an open bracketed position.
	GetOngoingTrades() ([]string, error)
	// GetBaseAssetBalance returns the available base-asset funds.
	GetBaseAssetBalance() (float64, error)
	// GetCurrentPrice returns the latest price for the asset pair.
	GetCurrentPrice(assetToTrade string) (float64, error)
	// GetCurrentPrices returns the latest price for every symbol on the venue.
	GetCurrentPrices() ([]types.SymbolPrice, error)
	// GetHistoricalKlines returns exactly numIntervals candles of the given
	// interval, oldest first. Fewer candles than requested is a data
	// integrity error.
	GetHistoricalKlines(assetToTrade string, interval string, numIntervals int) ([]types.Candle, error)
	// PlaceOrder opens a bracketed position: a market buy of baseAssetAmount
	// worth of base asset, plus a linked stop-loss/take-profit exit.
	PlaceOrder(assetToTrade string, baseAssetAmount, stopLossPercentage, stopGainPercentage float64) error
	// ResetClient discards the underlying venue client and builds a fresh
	// one. Network instability is routine; this is the recovery primitive.
	ResetClient()
}

// Exchange names accepted by New.
const (
	ExchangeBinance   = "binance"
	ExchangeBacktest  = "backtest"
	ExchangeFake      = "fake"
	ExchangeSimulator = "simulator"
)

// Options carries the optional collaborators a gateway may need.
type Options struct {
	// BaseAsset is the quote asset all symbols are priced in.
	BaseAsset string
	// AssetToTrade restricts the simulator to a single pair.
	AssetToTrade string
	// Journal records simulated fills and settlements. May be nil.
	Journal *journal.Journal
	// OnStep is called after every backtest cursor advance. May be nil.
	OnStep func(step int)
}

// ValidateBotPairing rejects bot/exchange combinations whose replay clock
// can never advance: the backtest ticks on GetOngoingTrades, which only the
// parallel cycle calls, and the simulator ticks on GetTradingState, which
// only the serial cycle calls. The mismatched driver would replay a frozen
// candle forever.
func ValidateBotPairing(name string, serial bool) error {
	if serial && name == ExchangeBacktest {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"the serial trader cannot advance the backtest clock; use the parallel trader, or the simulator for a single pair")
	}

	if !serial && name == ExchangeSimulator {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"the parallel trader cannot advance the simulator clock; use the serial trader, or the backtest for many pairs")
	}

	return nil
}

// New builds the named exchange gateway. An unknown name is a configuration
// error. The backtest and simulator variants prefetch their historical
// dataset through a live Binance gateway before returning.
func New(name string, cfg *config.Config, log *logger.Logger, opts Options) (Exchange, error) {
	switch name {
	case ExchangeBinance:
		return NewBinance(cfg, opts.BaseAsset, log), nil

	case ExchangeBacktest:
		source := NewBinance(cfg, opts.BaseAsset, log)

		data, err := LoadHistoricalData(source, cfg.Backtest, opts.BaseAsset, nil, log)
		if err != nil {
			return nil, err
		}

		return NewBacktest(cfg.Backtest, opts.BaseAsset, data, opts.Journal, opts.OnStep, log), nil

	case ExchangeFake:
		return NewFake(opts.BaseAsset), nil

	case ExchangeSimulator:
		source := NewBinance(cfg, opts.BaseAsset, log)

		return NewSimulator(cfg, opts.BaseAsset, opts.AssetToTrade, source, log)

	default:
		return nil, errors.Newf(errors.ErrCodeUnknownExchange, "unknown exchange: %s", name)
	}
}

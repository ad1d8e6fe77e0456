package trader

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/astra-lab/astra-trading/internal/config"
	"github.com/astra-lab/astra-trading/internal/exchange"
	"github.com/astra-lab/astra-trading/internal/indicator"
	"github.com/astra-lab/astra-trading/internal/logger"
	"github.com/astra-lab/astra-trading/internal/strategy"
	"github.com/astra-lab/astra-trading/pkg/errors"
)

// Parallel trades every asset pair quoted in one base asset, at most one
// position per symbol, with a fixed base-asset amount per trade.
type Parallel struct {
	cfg        config.ParallelTraderConfig
	exchange   exchange.Exchange
	strategies []strategy.Strategy
	log        *logger.Logger
	interval   string
}

// NewParallel creates the parallel bot driver.
func NewParallel(cfg *config.Config, exch exchange.Exchange,
	strategies []strategy.Strategy, log *logger.Logger) *Parallel {
	return &Parallel{
		cfg:        cfg.ParallelTrader,
		exchange:   exch,
		strategies: strategies,
		log:        log,
		interval:   fmt.Sprintf("%dm", cfg.Binance.IntervalInMinutes),
	}
}

// Run drives the bot until a configuration error or the simulation-complete
// signal surfaces.
func (p *Parallel) Run() error {
	cycleTime := time.Duration(p.cfg.CycleTimeInSeconds) * time.Second

	return runLoop("parallel-trader", p.exchange, cycleTime, p.log, p.cycle)
}

func (p *Parallel) cycle() error {
	balance, err := p.exchange.GetBaseAssetBalance()
	if err != nil {
		return err
	}

	// the ongoing-trades call drives settlement; it runs even when the
	// balance cannot fund a new trade
	ongoing, err := p.exchange.GetOngoingTrades()
	if err != nil {
		return err
	}

	if balance < p.cfg.BaseAssetAmountPerTrade {
		return nil
	}

	inTrade := make(map[string]bool, len(ongoing))
	for _, symbol := range ongoing {
		inTrade[symbol] = true
	}

	prices, err := p.exchange.GetCurrentPrices()
	if err != nil {
		return err
	}

	remaining := balance

	for _, price := range prices {
		if !strings.HasSuffix(price.Symbol, p.cfg.BaseAsset) || inTrade[price.Symbol] {
			continue
		}

		if remaining < p.cfg.BaseAssetAmountPerTrade {
			return nil
		}

		asset := strings.TrimSuffix(price.Symbol, p.cfg.BaseAsset)

		candles, err := p.exchange.GetHistoricalKlines(asset, p.interval, historyWindow)
		if err != nil {
			if errors.IsSimulationComplete(err) || errors.IsConfiguration(err) {
				return err
			}

			// symbols with thin history are skipped, not fatal
			p.log.Debug("Skipping symbol",
				zap.String("symbol", price.Symbol), zap.Error(err))

			continue
		}

		series := indicator.Enrich(candles)

		shouldPlace, err := strategy.Evaluate(p.strategies, series, price.Price, price.Symbol)
		if err != nil {
			return err
		}

		if !shouldPlace {
			continue
		}

		if err := p.exchange.PlaceOrder(asset, p.cfg.BaseAssetAmountPerTrade,
			p.cfg.StopLossPercentage, p.cfg.StopGainPercentage); err != nil {
			return err
		}

		remaining -= p.cfg.BaseAssetAmountPerTrade

		p.log.Info("Order placed",
			zap.String("symbol", price.Symbol),
			zap.Float64("amount", p.cfg.BaseAssetAmountPerTrade),
			zap.Float64("price", price.Price),
		)
	}

	return nil
}

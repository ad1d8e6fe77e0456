package trader

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/astra-lab/astra-trading/internal/config"
	"github.com/astra-lab/astra-trading/internal/exchange"
	"github.com/astra-lab/astra-trading/internal/indicator"
	"github.com/astra-lab/astra-trading/internal/logger"
	"github.com/astra-lab/astra-trading/internal/strategy"
	"github.com/astra-lab/astra-trading/internal/types"
)

// Serial trades a single asset pair, holding at most one position at a
// time. The bot alternates between the Pending and Trading lifecycle
// states indefinitely.
type Serial struct {
	cfg        config.SerialTraderConfig
	exchange   exchange.Exchange
	strategies []strategy.Strategy
	log        *logger.Logger
	interval   string
}

// NewSerial creates the serial bot driver.
func NewSerial(cfg *config.Config, exch exchange.Exchange,
	strategies []strategy.Strategy, log *logger.Logger) *Serial {
	return &Serial{
		cfg:        cfg.SerialTrader,
		exchange:   exch,
		strategies: strategies,
		log:        log,
		interval:   fmt.Sprintf("%dm", cfg.Binance.IntervalInMinutes),
	}
}

// Run drives the bot until a configuration error or the simulation-complete
// signal surfaces.
func (s *Serial) Run() error {
	cycleTime := time.Duration(s.cfg.CycleTimeInSeconds) * time.Second

	return runLoop("serial-trader", s.exchange, cycleTime, s.log, s.cycle)
}

func (s *Serial) cycle() error {
	state, err := s.exchange.GetTradingState(s.cfg.AssetToTrade)
	if err != nil {
		return err
	}

	if state == types.TradingStateTrading {
		s.log.Info("Waiting for the open trade to complete")

		return nil
	}

	candles, err := s.exchange.GetHistoricalKlines(s.cfg.AssetToTrade, s.interval, historyWindow)
	if err != nil {
		return err
	}

	series := indicator.Enrich(candles)

	price, err := s.exchange.GetCurrentPrice(s.cfg.AssetToTrade)
	if err != nil {
		return err
	}

	symbol := types.BuildSymbol(s.cfg.AssetToTrade, s.cfg.BaseAsset)

	shouldPlace, err := strategy.Evaluate(s.strategies, series, price, symbol)
	if err != nil {
		return err
	}

	if !shouldPlace {
		return nil
	}

	balance, err := s.exchange.GetBaseAssetBalance()
	if err != nil {
		return err
	}

	amount := balance * s.cfg.BaseAssetUsagePercentage / 100.0

	if err := s.exchange.PlaceOrder(s.cfg.AssetToTrade, amount,
		s.cfg.StopLossPercentage, s.cfg.StopGainPercentage); err != nil {
		return err
	}

	s.log.Info("Order placed",
		zap.String("symbol", symbol),
		zap.Float64("amount", amount),
		zap.Float64("price", price),
	)

	return nil
}

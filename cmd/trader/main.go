package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/astra-lab/astra-trading/internal/cache"
	"github.com/astra-lab/astra-trading/internal/config"
	"github.com/astra-lab/astra-trading/internal/exchange"
	"github.com/astra-lab/astra-trading/internal/exchange/journal"
	"github.com/astra-lab/astra-trading/internal/logger"
	"github.com/astra-lab/astra-trading/internal/refresher"
	"github.com/astra-lab/astra-trading/internal/strategy"
	"github.com/astra-lab/astra-trading/internal/trader"
	"github.com/astra-lab/astra-trading/pkg/errors"
)

func main() {
	// a missing .env file is fine; real deployments use the environment
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "trader",
		Usage: "Autonomous crypto trading bots",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   "config/default.yaml",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug|info|warn|error); overrides logLevel from the config file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serial-trader",
				Usage: "Trade a single asset pair, one position at a time",
				Flags: botFlags(),
				Action: func(_ context.Context, cmd *cli.Command) error {
					return runBot(cmd, true)
				},
			},
			{
				Name:  "parallel-trader",
				Usage: "Trade every pair on one base asset, one position per symbol",
				Flags: botFlags(),
				Action: func(_ context.Context, cmd *cli.Command) error {
					return runBot(cmd, false)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func botFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "exchange",
			Aliases: []string{"e"},
			Usage: fmt.Sprintf("Exchange to trade on (%s|%s|%s|%s)",
				exchange.ExchangeBinance, exchange.ExchangeBacktest,
				exchange.ExchangeFake, exchange.ExchangeSimulator),
			Value: exchange.ExchangeBinance,
		},
		&cli.StringFlag{
			Name:    "strategies",
			Aliases: []string{"s"},
			Usage: fmt.Sprintf("Comma-separated strategy list (%s)",
				strings.Join(strategy.SupportedStrategies(), "|")),
			Value: strategy.NameBollinger,
		},
	}
}

func runBot(cmd *cli.Command, serial bool) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	log, err := logger.NewLoggerWithLevel(logLevel(cmd, cfg))
	if err != nil {
		return err
	}
	defer log.Sync()

	exchangeName := cmd.String("exchange")
	strategyList := cmd.String("strategies")

	if err := exchange.ValidateBotPairing(exchangeName, serial); err != nil {
		return err
	}

	baseAsset := cfg.ParallelTrader.BaseAsset
	assetToTrade := ""

	if serial {
		baseAsset = cfg.SerialTrader.BaseAsset
		assetToTrade = cfg.SerialTrader.AssetToTrade
	}

	// the live bot shares the period-max snapshot through redis; simulated
	// runs keep everything in process
	var store cache.Cache
	if exchangeName == exchange.ExchangeBinance {
		store = cache.NewRedis(cfg.Redis)
	} else {
		store = cache.NewMemory()
	}

	opts := exchange.Options{BaseAsset: baseAsset, AssetToTrade: assetToTrade}

	var jnl *journal.Journal

	if exchangeName == exchange.ExchangeBacktest {
		jnl, err = journal.New(log)
		if err != nil {
			return err
		}
		defer jnl.Close()

		steps := cfg.Backtest.TotalNumberOfIntervals - cfg.Backtest.StartIntervalIndex
		bar := progressbar.Default(int64(steps), "replaying")

		opts.Journal = jnl
		opts.OnStep = func(int) { _ = bar.Add(1) }
	}

	exch, err := exchange.New(exchangeName, cfg, log, opts)
	if err != nil {
		return err
	}

	strategies, err := strategy.New(strategyList, cfg, strategy.Dependencies{
		Cache:  store,
		Logger: log,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.Contains(strategyList, strategy.NamePeriodMax) {
		r := refresher.New(cfg, exch, store, baseAsset, log)
		go r.Run(ctx)
	}

	var runErr error
	if serial {
		runErr = trader.NewSerial(cfg, exch, strategies, log).Run()
	} else {
		runErr = trader.NewParallel(cfg, exch, strategies, log).Run()
	}

	if runErr != nil && errors.IsSimulationComplete(runErr) {
		report(exch, jnl, log)

		return nil
	}

	return runErr
}

// logLevel resolves the log level: the flag wins, then the config file,
// then info.
func logLevel(cmd *cli.Command, cfg *config.Config) string {
	if level := cmd.String("log-level"); level != "" {
		return level
	}

	if cfg.LogLevel != "" {
		return cfg.LogLevel
	}

	return "info"
}

// report prints the aggregate outcome of a finished simulation.
func report(exch exchange.Exchange, jnl *journal.Journal, log *logger.Logger) {
	switch e := exch.(type) {
	case *exchange.Backtest:
		result := e.Result()
		log.Info("Simulation complete",
			zap.Int("gains", result.Gains),
			zap.Int("losses", result.Losses),
			zap.Float64("balance", result.Balance),
		)

	case *exchange.Simulator:
		result := e.Result()
		log.Info("Simulation complete",
			zap.Int("gains", result.Gains),
			zap.Int("losses", result.Losses),
			zap.Float64("balance", result.Balance),
		)
	}

	if jnl == nil {
		return
	}

	summary, err := jnl.Summarize()
	if err != nil {
		log.Warn("Failed to summarize journal", zap.Error(err))

		return
	}

	log.Info("Trade journal summary",
		zap.Int("entries", summary.Entries),
		zap.Int("gains", summary.Gains),
		zap.Int("losses", summary.Losses),
		zap.Float64("total_debit", summary.TotalDebit),
		zap.Float64("total_credit", summary.TotalCredit),
		zap.String("best_symbol", summary.BestSymbol),
		zap.String("worst_symbol", summary.WorstSymbol),
	)
}

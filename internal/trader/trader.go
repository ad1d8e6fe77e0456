// Package trader holds the bot drivers: thin cycle-based loops that wire
// the exchange gateway, the indicator engine, and the strategies together.
package trader

import (
	"time"

	"go.uber.org/zap"

	"github.com/astra-lab/astra-trading/internal/exchange"
	"github.com/astra-lab/astra-trading/internal/logger"
	"github.com/astra-lab/astra-trading/pkg/errors"
)

// historyWindow is the number of candles fetched per decision; it covers
// the longest rolling indicator window with seed room to spare.
const historyWindow = 210

// runLoop drives a bot cycle until a non-recoverable condition surfaces.
// Configuration errors and the simulation-complete signal propagate to the
// caller; anything else is treated as transient: log, reset the venue
// client, sleep a full cycle, resume.
func runLoop(name string, exch exchange.Exchange, cycleTime time.Duration,
	log *logger.Logger, step func() error) error {
	log.Info("Bot started", zap.String("bot", name))

	for {
		if err := step(); err != nil {
			switch {
			case errors.IsConfiguration(err):
				return err

			case errors.IsSimulationComplete(err):
				return err

			default:
				log.Error("Cycle failed, resetting client",
					zap.String("bot", name), zap.Error(err))
				exch.ResetClient()
			}
		}

		time.Sleep(cycleTime)
	}
}

package strategy

import (
	"go.uber.org/zap"

	"github.com/astra-lab/astra-trading/internal/config"
	"github.com/astra-lab/astra-trading/internal/indicator"
	"github.com/astra-lab/astra-trading/internal/logger"
)

// DualMovingAverage signals an entry while the short-term trend (50-candle
// SMA) sits above the long-term trend (200-candle SMA).
type DualMovingAverage struct {
	log *logger.Logger
}

func newDualMovingAverage(_ *config.Config, deps Dependencies) (Strategy, error) {
	return &DualMovingAverage{log: deps.Logger}, nil
}

// Name implements Strategy.
func (d *DualMovingAverage) Name() string {
	return NameDualMovingAverage
}

// ShouldPlaceOrder implements Strategy.
func (d *DualMovingAverage) ShouldPlaceOrder(series *indicator.Series, currentPrice float64, symbol string) (bool, error) {
	row, err := series.Last()
	if err != nil {
		return false, err
	}

	d.log.Debug("DMA strategy params computed",
		zap.String("symbol", symbol),
		zap.Float64("price", currentPrice),
		zap.Float64("sma_50", row.SMA50),
		zap.Float64("sma_200", row.SMA200),
	)

	return row.SMA50 > row.SMA200, nil
}

var _ Strategy = (*DualMovingAverage)(nil)

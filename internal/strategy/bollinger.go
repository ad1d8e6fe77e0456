package strategy

import (
	"go.uber.org/zap"

	"github.com/astra-lab/astra-trading/internal/config"
	"github.com/astra-lab/astra-trading/internal/indicator"
	"github.com/astra-lab/astra-trading/internal/logger"
)

// Bollinger signals an entry when the current price drops below the lower
// Bollinger band while the bands are wide enough. The band-width guard
// rejects low-volatility regimes where a bounce below the lower band is
// statistical noise.
type Bollinger struct {
	// minRelativeBandsDelta is the minimum acceptable band delta as a
	// fraction of the typical price.
	minRelativeBandsDelta float64
	log                   *logger.Logger
}

func newBollinger(cfg *config.Config, deps Dependencies) (Strategy, error) {
	return &Bollinger{
		minRelativeBandsDelta: cfg.Bollinger.MinRelativeBandsDelta,
		log:                   deps.Logger,
	}, nil
}

// Name implements Strategy.
func (b *Bollinger) Name() string {
	return NameBollinger
}

// ShouldPlaceOrder implements Strategy.
func (b *Bollinger) ShouldPlaceOrder(series *indicator.Series, currentPrice float64, symbol string) (bool, error) {
	row, err := series.Last()
	if err != nil {
		return false, err
	}

	bandsDelta := row.BollingerUp - row.BollingerLow
	minBandsDelta := b.minRelativeBandsDelta * row.Typical

	b.log.Debug("Bollinger strategy params computed",
		zap.String("symbol", symbol),
		zap.Float64("price", currentPrice),
		zap.Float64("bollinger_up", row.BollingerUp),
		zap.Float64("bollinger_low", row.BollingerLow),
		zap.Float64("bands_delta", bandsDelta),
		zap.Float64("min_bands_delta", minBandsDelta),
	)

	return currentPrice < row.BollingerLow && bandsDelta > minBandsDelta, nil
}

var _ Strategy = (*Bollinger)(nil)

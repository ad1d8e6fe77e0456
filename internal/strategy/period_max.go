package strategy

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/astra-lab/astra-trading/internal/cache"
	"github.com/astra-lab/astra-trading/internal/config"
	"github.com/astra-lab/astra-trading/internal/indicator"
	"github.com/astra-lab/astra-trading/internal/logger"
	"github.com/astra-lab/astra-trading/pkg/errors"
)

// PeriodMax signals an entry when the current price breaks above the
// symbol's maximum high over a trailing period. The maxima are maintained
// in the shared cache by the background refresher; a symbol the refresher
// has not published yet is an expected cold-start condition and produces no
// signal rather than an error.
type PeriodMax struct {
	cache    cache.Cache
	cacheKey string
	log      *logger.Logger
}

func newPeriodMax(cfg *config.Config, deps Dependencies) (Strategy, error) {
	if deps.Cache == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "period_max strategy requires a cache")
	}

	return &PeriodMax{
		cache:    deps.Cache,
		cacheKey: cache.PeriodMaxKey(cfg.PeriodMax.PeriodUsedInDays),
		log:      deps.Logger,
	}, nil
}

// Name implements Strategy.
func (p *PeriodMax) Name() string {
	return NamePeriodMax
}

// ShouldPlaceOrder implements Strategy.
func (p *PeriodMax) ShouldPlaceOrder(_ *indicator.Series, currentPrice float64, symbol string) (bool, error) {
	entry, err := p.cache.HGet(context.Background(), p.cacheKey, symbol)
	if err != nil {
		return false, err
	}

	if entry.IsNone() {
		p.log.Debug("PeriodMax cache entry not published yet",
			zap.String("symbol", symbol),
			zap.String("cache_key", p.cacheKey),
		)

		return false, nil
	}

	periodMax, err := strconv.ParseFloat(entry.Unwrap(), 64)
	if err != nil {
		return false, errors.Wrapf(errors.ErrCodeCacheReadFailed, err,
			"malformed cache entry for %s", symbol)
	}

	p.log.Debug("PeriodMax strategy params computed",
		zap.String("symbol", symbol),
		zap.Float64("price", currentPrice),
		zap.Float64("period_max", periodMax),
	)

	return currentPrice > periodMax, nil
}

var _ Strategy = (*PeriodMax)(nil)

package exchange

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/astra-lab/astra-trading/internal/config"
	"github.com/astra-lab/astra-trading/internal/logger"
	"github.com/astra-lab/astra-trading/internal/types"
)

// LoadHistoricalData prefetches the full replay dataset through the given
// live gateway. When assets is nil every symbol quoted in baseAsset is
// loaded. Symbols whose history comes back short are skipped rather than
// failing the whole load; thinly traded pairs routinely lack depth.
func LoadHistoricalData(source Exchange, cfg config.BacktestConfig, baseAsset string,
	assets []string, log *logger.Logger) (map[string][]types.Candle, error) {
	if assets == nil {
		prices, err := source.GetCurrentPrices()
		if err != nil {
			return nil, err
		}

		for _, p := range prices {
			if !strings.HasSuffix(p.Symbol, baseAsset) {
				continue
			}

			assets = append(assets, strings.TrimSuffix(p.Symbol, baseAsset))
		}
	}

	interval := fmt.Sprintf("%dm", cfg.IntervalInMinutes)
	data := make(map[string][]types.Candle, len(assets))

	for i, asset := range assets {
		candles, err := source.GetHistoricalKlines(asset, interval, cfg.TotalNumberOfIntervals)
		if err != nil {
			log.Warn("Skipping symbol with incomplete history",
				zap.String("asset", asset), zap.Error(err))

			continue
		}

		data[types.BuildSymbol(asset, baseAsset)] = candles

		if (i+1)%stepLogInterval == 0 {
			log.Info("Loading historical data",
				zap.Int("loaded", i+1), zap.Int("total", len(assets)))
		}
	}

	return data, nil
}

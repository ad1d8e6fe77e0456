// Package refresher maintains the period-max cache: a background task that
// periodically recomputes, for every symbol quoted in the base asset, the
// maximum high over a trailing N-day window.
package refresher

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/astra-lab/astra-trading/internal/cache"
	"github.com/astra-lab/astra-trading/internal/config"
	"github.com/astra-lab/astra-trading/internal/exchange"
	"github.com/astra-lab/astra-trading/internal/logger"
	"github.com/astra-lab/astra-trading/internal/types"
	"github.com/astra-lab/astra-trading/pkg/errors"
)

const dailyInterval = "1d"

// Refresher owns the cache handle it publishes to. Nothing else writes the
// period-max key.
type Refresher struct {
	exchange exchange.Exchange
	cache    cache.Cache
	log      *logger.Logger

	baseAsset     string
	periodInDays  int
	fetchInterval string
	interval      time.Duration
	batchSize     int

	cycles chan struct{}
}

// New creates a refresher from the period-max configuration.
func New(cfg *config.Config, exch exchange.Exchange, store cache.Cache,
	baseAsset string, log *logger.Logger) *Refresher {
	return &Refresher{
		exchange:      exch,
		cache:         store,
		log:           log,
		baseAsset:     baseAsset,
		periodInDays:  cfg.PeriodMax.PeriodUsedInDays,
		fetchInterval: dailyInterval,
		interval:      time.Duration(cfg.PeriodMax.SecondsToUpdateCache) * time.Second,
		batchSize:     cfg.PeriodMax.MaxConcurrentFetches,
		cycles:        make(chan struct{}, 1),
	}
}

// Cycles signals after every completed refresh cycle, successful or not.
// The channel never blocks the refresher; a slow listener misses signals.
func (r *Refresher) Cycles() <-chan struct{} {
	return r.cycles
}

// Run refreshes on the configured cadence until ctx is cancelled. The first
// cycle runs immediately so the period_max strategy does not start blind.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.RefreshOnce(ctx); err != nil {
			r.log.Error("Cache refresh cycle failed", zap.Error(err))
		}

		select {
		case r.cycles <- struct{}{}:
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RefreshOnce runs one full refresh cycle: list symbols, fetch each
// symbol's trailing daily window in bounded batches, and publish the
// gathered maxima as one hash write. Per-symbol failures are logged and do
// not block publication of the rest; only a cycle with zero successes skips
// the write and leaves the previous snapshot intact.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	// the cache key promises day granularity; a sub-day fetch interval
	// would silently change what "period max" means
	whole, err := types.IntervalIsWholeDays(r.fetchInterval)
	if err != nil {
		return err
	}

	if !whole {
		return errors.Newf(errors.ErrCodeInvalidPeriod,
			"period-max fetch interval %s is not a whole number of days", r.fetchInterval)
	}

	prices, err := r.exchange.GetCurrentPrices()
	if err != nil {
		return errors.Wrap(errors.ErrCodeRefreshFailed, "failed to list symbols", err)
	}

	symbols := make([]string, 0, len(prices))

	for _, p := range prices {
		if strings.HasSuffix(p.Symbol, r.baseAsset) {
			symbols = append(symbols, p.Symbol)
		}
	}

	// Workers write key-disjoint entries: each owns exactly one symbol, so
	// concurrent map writes would still race on the map header. The mutex
	// stays; the disjointness is what keeps the values trustworthy.
	var (
		mu      sync.Mutex
		results = make(map[string]string, len(symbols))
		failed  []string
	)

	for start := 0; start < len(symbols); start += r.batchSize {
		end := start + r.batchSize
		if end > len(symbols) {
			end = len(symbols)
		}

		group, _ := errgroup.WithContext(ctx)

		// one full batch drains before the next one starts; the venue
		// drops connections above batchSize in-flight fetches
		for _, symbol := range symbols[start:end] {
			group.Go(func() error {
				max, fetchErr := r.fetchPeriodMax(symbol)

				mu.Lock()
				defer mu.Unlock()

				if fetchErr != nil {
					failed = append(failed, symbol)

					r.log.Debug("Period-max fetch failed",
						zap.String("symbol", symbol), zap.Error(fetchErr))

					return nil
				}

				results[symbol] = strconv.FormatFloat(max, 'f', -1, 64)

				return nil
			})
		}

		if err := group.Wait(); err != nil {
			return errors.Wrap(errors.ErrCodeRefreshFailed, "refresh batch aborted", err)
		}
	}

	if len(failed) > 0 {
		r.log.Warn("Refresh cycle completed with failures",
			zap.Int("failed", len(failed)),
			zap.Int("succeeded", len(results)),
		)
	}

	if len(results) == 0 {
		if len(failed) > 0 {
			return errors.Newf(errors.ErrCodeRefreshFailed,
				"all %d symbol fetches failed, keeping previous snapshot", len(failed))
		}

		return nil
	}

	key := cache.PeriodMaxKey(r.periodInDays)
	if err := r.cache.HSet(ctx, key, results); err != nil {
		return errors.Wrapf(errors.ErrCodeCacheWriteFailed, err, "failed to publish %s", key)
	}

	r.log.Info("Period-max cache refreshed",
		zap.String("key", key),
		zap.Int("symbols", len(results)),
	)

	return nil
}

// fetchPeriodMax returns the maximum high over the trailing daily window.
func (r *Refresher) fetchPeriodMax(symbol string) (float64, error) {
	asset := strings.TrimSuffix(symbol, r.baseAsset)

	candles, err := r.exchange.GetHistoricalKlines(asset, r.fetchInterval, r.periodInDays)
	if err != nil {
		return 0, err
	}

	if len(candles) == 0 {
		return 0, errors.Newf(errors.ErrCodeInsufficientData, "empty daily window for %s", symbol)
	}

	max := candles[0].High
	for _, c := range candles[1:] {
		if c.High > max {
			max = c.High
		}
	}

	return max, nil
}

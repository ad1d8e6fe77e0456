// Package strategy holds the trade-entry decision units. A strategy answers
// one question: given the enriched candle series and the current price,
// should the bot open a trade on this symbol right now?
package strategy

import (
	"sort"
	"strings"

	"github.com/astra-lab/astra-trading/internal/cache"
	"github.com/astra-lab/astra-trading/internal/config"
	"github.com/astra-lab/astra-trading/internal/indicator"
	"github.com/astra-lab/astra-trading/internal/logger"
	"github.com/astra-lab/astra-trading/pkg/errors"
)

// Strategy decides when to enter a trade. Implementations are pure with
// respect to series and currentPrice; the only sanctioned side effect is
// PeriodMax's cache read.
type Strategy interface {
	// Name returns the registry name of the strategy.
	Name() string
	// ShouldPlaceOrder reports whether a trade should be opened for symbol.
	ShouldPlaceOrder(series *indicator.Series, currentPrice float64, symbol string) (bool, error)
}

// Dependencies carries the collaborators a strategy constructor may need.
type Dependencies struct {
	Cache  cache.Cache
	Logger *logger.Logger
}

// Constructor builds a strategy from the bot configuration.
type Constructor func(cfg *config.Config, deps Dependencies) (Strategy, error)

var registry = map[string]Constructor{
	NameBollinger:         newBollinger,
	NameDualMovingAverage: newDualMovingAverage,
	NamePeriodMax:         newPeriodMax,
}

const (
	NameBollinger         = "bollinger"
	NameDualMovingAverage = "dma"
	NamePeriodMax         = "period_max"
)

// SupportedStrategies lists the registered strategy names, sorted.
func SupportedStrategies() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// New builds the strategies named in the comma-separated list, preserving
// the given priority order. An unknown name or an empty list is a
// configuration error.
func New(list string, cfg *config.Config, deps Dependencies) ([]Strategy, error) {
	var strategies []Strategy

	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		constructor, ok := registry[name]
		if !ok {
			return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "unknown strategy: %s", name)
		}

		s, err := constructor(cfg, deps)
		if err != nil {
			return nil, err
		}

		strategies = append(strategies, s)
	}

	if len(strategies) == 0 {
		return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "no valid strategy found in: %s", list)
	}

	return strategies, nil
}

// Evaluate runs the strategies in priority order and short-circuits on the
// first positive signal.
func Evaluate(strategies []Strategy, series *indicator.Series, currentPrice float64, symbol string) (bool, error) {
	for _, s := range strategies {
		ok, err := s.ShouldPlaceOrder(series, currentPrice, symbol)
		if err != nil {
			return false, errors.Wrapf(errors.ErrCodeStrategyFailed, err, "strategy %s failed", s.Name())
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}

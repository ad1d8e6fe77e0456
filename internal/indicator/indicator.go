// Package indicator computes rolling statistics over a fixed-size window of
// OHLCV candles. The enrichment is a pure function of its input: replaying
// the same window twice yields identical derived columns.
package indicator

import (
	"math"

	"github.com/astra-lab/astra-trading/internal/types"
	"github.com/astra-lab/astra-trading/pkg/errors"
)

const (
	// BollingerWindow is the rolling window used for the typical-price
	// standard deviation and moving average.
	BollingerWindow = 20
	// BollingerStdDevs is the number of standard deviations between the
	// middle and outer bands.
	BollingerStdDevs = 2.0
	// ShortSMAWindow and LongSMAWindow are the dual-moving-average windows.
	ShortSMAWindow = 50
	LongSMAWindow  = 200
)

// Series is a candle sequence enriched with derived columns. Rows whose
// index is below window-1 hold NaN for the corresponding column; only the
// final row is ever consulted by strategies, earlier rows exist solely to
// seed the rolling computation.
type Series struct {
	Candles      []types.Candle
	Typical      []float64
	Std          []float64
	SMA          []float64
	BollingerLow []float64
	BollingerUp  []float64
	SMA50        []float64
	SMA200       []float64
}

// Row is one enriched sample. Values below their window are NaN.
type Row struct {
	Close        float64
	Typical      float64
	Std          float64
	SMA          float64
	BollingerLow float64
	BollingerUp  float64
	SMA50        float64
	SMA200       float64
}

// Enrich derives the indicator columns from the candle sequence.
func Enrich(candles []types.Candle) *Series {
	n := len(candles)

	s := &Series{
		Candles:      candles,
		Typical:      make([]float64, n),
		Std:          make([]float64, n),
		SMA:          make([]float64, n),
		BollingerLow: make([]float64, n),
		BollingerUp:  make([]float64, n),
		SMA50:        make([]float64, n),
		SMA200:       make([]float64, n),
	}

	closes := make([]float64, n)

	for i, candle := range candles {
		s.Typical[i] = (candle.Close + candle.Low + candle.High) / 3
		closes[i] = candle.Close
	}

	rollingMean(s.Typical, BollingerWindow, s.SMA)
	rollingStd(s.Typical, s.SMA, BollingerWindow, s.Std)
	rollingMean(closes, ShortSMAWindow, s.SMA50)
	rollingMean(closes, LongSMAWindow, s.SMA200)

	for i := 0; i < n; i++ {
		s.BollingerLow[i] = s.SMA[i] - BollingerStdDevs*s.Std[i]
		s.BollingerUp[i] = s.SMA[i] + BollingerStdDevs*s.Std[i]
	}

	return s
}

// Len returns the number of rows in the series.
func (s *Series) Len() int {
	return len(s.Candles)
}

// Last returns the final enriched row. Strategies consult only this row.
// Returns an InsufficientDataError when the series is empty or when the
// final row is still inside the Bollinger seed window.
func (s *Series) Last() (Row, error) {
	n := s.Len()
	if n < BollingerWindow {
		return Row{}, errors.NewInsufficientDataErrorf(BollingerWindow, n, "",
			"insufficient candles for indicators: required %d, got %d", BollingerWindow, n)
	}

	i := n - 1

	return Row{
		Close:        s.Candles[i].Close,
		Typical:      s.Typical[i],
		Std:          s.Std[i],
		SMA:          s.SMA[i],
		BollingerLow: s.BollingerLow[i],
		BollingerUp:  s.BollingerUp[i],
		SMA50:        s.SMA50[i],
		SMA200:       s.SMA200[i],
	}, nil
}

// rollingMean fills out with the trailing mean over window samples.
// Leading rows without a full window are NaN.
func rollingMean(values []float64, window int, out []float64) {
	var sum float64

	for i := range values {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}

		if i < window-1 {
			out[i] = math.NaN()

			continue
		}

		out[i] = sum / float64(window)
	}
}

// rollingStd fills out with the trailing population standard deviation over
// window samples, using the precomputed rolling mean.
func rollingStd(values, means []float64, window int, out []float64) {
	for i := range values {
		if i < window-1 {
			out[i] = math.NaN()

			continue
		}

		mean := means[i]

		var squaredDiffSum float64

		for j := i - window + 1; j <= i; j++ {
			diff := values[j] - mean
			squaredDiffSum += diff * diff
		}

		out[i] = math.Sqrt(squaredDiffSum / float64(window))
	}
}

package types

import (
	"testing"

	"github.com/astra-lab/astra-trading/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalToSeconds(t *testing.T) {
	tests := []struct {
		interval string
		want     int
	}{
		{"1s", 1},
		{"1m", 60},
		{"15m", 900},
		{"2h", 7200},
		{"1d", 86400},
		{"1w", 604800},
	}

	for _, tt := range tests {
		t.Run(tt.interval, func(t *testing.T) {
			got, err := IntervalToSeconds(tt.interval)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntervalToSecondsInvalid(t *testing.T) {
	for _, interval := range []string{"", "m", "10x", "m1", "1.5m"} {
		t.Run(interval, func(t *testing.T) {
			_, err := IntervalToSeconds(interval)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInterval))
		})
	}
}

func TestIntervalIsWholeDays(t *testing.T) {
	whole, err := IntervalIsWholeDays("1d")
	require.NoError(t, err)
	assert.True(t, whole)

	whole, err = IntervalIsWholeDays("48h")
	require.NoError(t, err)
	assert.True(t, whole)

	whole, err = IntervalIsWholeDays("90m")
	require.NoError(t, err)
	assert.False(t, whole)
}

func TestBuildSymbol(t *testing.T) {
	assert.Equal(t, "ADAUSDT", BuildSymbol("ADA", "USDT"))
	assert.Equal(t, "BTCUSDT", BuildSymbol("BTC", "USDT"))
}

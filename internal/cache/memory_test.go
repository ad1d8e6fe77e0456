package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHGetMissIsNone(t *testing.T) {
	m := NewMemory()

	value, err := m.HGet(context.Background(), "max-high-20d", "ADAUSDT")
	require.NoError(t, err)
	assert.True(t, value.IsNone())
}

func TestMemoryHSetThenHGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.HSet(ctx, "max-high-20d", map[string]string{
		"ADAUSDT": "2.31",
		"BTCUSDT": "47294.02",
	}))

	value, err := m.HGet(ctx, "max-high-20d", "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "47294.02", value.Unwrap())
}

func TestMemoryHSetMergesFields(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.HSet(ctx, "max-high-20d", map[string]string{
		"ADAUSDT": "2.31",
		"BTCUSDT": "47294.02",
	}))

	// A partial refresh keeps the previous value for symbols it misses.
	require.NoError(t, m.HSet(ctx, "max-high-20d", map[string]string{
		"ADAUSDT": "2.40",
	}))

	ada, err := m.HGet(ctx, "max-high-20d", "ADAUSDT")
	require.NoError(t, err)
	assert.Equal(t, "2.40", ada.Unwrap())

	btc, err := m.HGet(ctx, "max-high-20d", "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "47294.02", btc.Unwrap())
}

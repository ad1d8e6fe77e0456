package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astra-lab/astra-trading/pkg/errors"
)

func TestValidateBotPairing(t *testing.T) {
	assert.NoError(t, ValidateBotPairing(ExchangeBinance, true))
	assert.NoError(t, ValidateBotPairing(ExchangeBinance, false))
	assert.NoError(t, ValidateBotPairing(ExchangeFake, true))
	assert.NoError(t, ValidateBotPairing(ExchangeFake, false))
	assert.NoError(t, ValidateBotPairing(ExchangeSimulator, true))
	assert.NoError(t, ValidateBotPairing(ExchangeBacktest, false))
}

func TestValidateBotPairingRejectsFrozenClocks(t *testing.T) {
	// the serial cycle never calls GetOngoingTrades, so the backtest
	// cursor would never move
	err := ValidateBotPairing(ExchangeBacktest, true)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))

	// the parallel cycle never calls GetTradingState, so the simulator
	// cursor would never move
	err = ValidateBotPairing(ExchangeSimulator, false)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

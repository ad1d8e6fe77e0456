package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199)
	ErrCodeInvalidConfiguration ErrorCode = 100
	ErrCodeInvalidInterval      ErrorCode = 101
	ErrCodeUnknownExchange      ErrorCode = 102
	ErrCodeUnknownStrategy      ErrorCode = 103
	ErrCodeInvalidParameter     ErrorCode = 104
	ErrCodeInvalidPeriod        ErrorCode = 105
	// a historical window reaching before the dataset start fails fast
	ErrCodeWindowTooLarge ErrorCode = 106

	// Data integrity errors (200-299)
	ErrCodeInsufficientData     ErrorCode = 200
	ErrCodeHistoricalDataFailed ErrorCode = 201
	ErrCodeSymbolNotFound       ErrorCode = 202
	ErrCodeKlineParseFailed     ErrorCode = 203
	ErrCodePriceFetchFailed     ErrorCode = 204
	ErrCodeJournalFailed        ErrorCode = 205

	// Strategy errors (400-499)
	ErrCodeStrategyFailed ErrorCode = 400

	// Trading errors (500-599)
	ErrCodeOrderFailed        ErrorCode = 500
	ErrCodeBelowMinNotional   ErrorCode = 501
	ErrCodePrecisionExhausted ErrorCode = 502
	ErrCodeInsufficientFunds  ErrorCode = 503
	ErrCodeTradeAlreadyOpen   ErrorCode = 504
	ErrCodeBalanceFetchFailed ErrorCode = 505

	// Simulation signals (600-699)
	ErrCodeSimulationComplete ErrorCode = 600

	// Cache errors (700-799)
	ErrCodeCacheWriteFailed ErrorCode = 700
	ErrCodeCacheReadFailed  ErrorCode = 701
	ErrCodeRefreshFailed    ErrorCode = 702
)

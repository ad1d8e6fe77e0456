package exchange

import (
	"github.com/shopspring/decimal"
)

// FixAssetPrecision renders value with at most precision decimal digits,
// truncating toward zero. Never rounding up keeps quantities inside the
// available balance and prices inside the venue's filters.
func FixAssetPrecision(value float64, precision int32) string {
	return decimal.NewFromFloat(value).Truncate(precision).String()
}

// TruncateToPrecision truncates value toward zero at the given number of
// decimal digits.
func TruncateToPrecision(value float64, precision int32) float64 {
	truncated, _ := decimal.NewFromFloat(value).Truncate(precision).Float64()

	return truncated
}

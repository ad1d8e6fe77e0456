package types

import (
	"strconv"

	"github.com/astra-lab/astra-trading/pkg/errors"
)

var secondsPerUnit = map[byte]int{
	's': 1,
	'm': 60,
	'h': 60 * 60,
	'd': 60 * 60 * 24,
	'w': 60 * 60 * 24 * 7,
}

// IntervalToSeconds converts a venue interval string such as "1m", "15m",
// "1d" into seconds. An unknown unit or a missing numeric part is a
// configuration error.
func IntervalToSeconds(interval string) (int, error) {
	if len(interval) < 2 {
		return 0, errors.Newf(errors.ErrCodeInvalidInterval, "invalid interval: %q", interval)
	}

	unit := interval[len(interval)-1]

	perUnit, ok := secondsPerUnit[unit]
	if !ok {
		return 0, errors.Newf(errors.ErrCodeInvalidInterval, "invalid interval unit: %q", string(unit))
	}

	count, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeInvalidInterval, err, "invalid interval: %q", interval)
	}

	return count * perUnit, nil
}

// IntervalIsWholeDays reports whether the interval spans an exact number
// of days. The period-max refresher only accepts whole-day periods.
func IntervalIsWholeDays(interval string) (bool, error) {
	seconds, err := IntervalToSeconds(interval)
	if err != nil {
		return false, err
	}

	const secondsPerDay = 60 * 60 * 24

	return seconds%secondsPerDay == 0, nil
}

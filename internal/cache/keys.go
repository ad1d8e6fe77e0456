package cache

import "fmt"

// PeriodMaxKey is the hash name under which the refresher publishes the
// per-symbol maximum high over a trailing period. The period length is part
// of the name so that runs with different periods never mix snapshots.
func PeriodMaxKey(periodInDays int) string {
	return fmt.Sprintf("max-high-%dd", periodInDays)
}

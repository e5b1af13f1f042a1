package auth

import "time"

// withinCooldown reports whether last falls inside the period that ends at
// now. period is a time.ParseDuration expression such as CoolDownPeriod.
func withinCooldown(now, last time.Time, period string) (bool, error) {
	window, err := time.ParseDuration(period)
	if err != nil {
		return false, err
	}

	return last.After(now.Add(-window)), nil
}

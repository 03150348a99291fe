package detector

import (
	"time"

	"rebaltrader/internal/config"
)

// TargetDate computes the rebalance date a strategy should look for in the
// feed, given the rule and today's UTC date.
//
// weekly-monday: the current or most recent Monday.
// monthly-1st-15th: the 1st (before the 15th) or the 15th, rolled forward to
// Monday when it lands on a weekend.
//
// No holiday calendar is consulted; a Monday bank holiday shifts the real
// publish date and this function does not know that. Known limitation.
func TargetDate(rule string, today time.Time) time.Time {
	today = truncateToDay(today)

	switch rule {
	case config.RuleWeeklyMonday:
		daysSinceMonday := (int(today.Weekday()) + 6) % 7
		return today.AddDate(0, 0, -daysSinceMonday)

	case config.RuleMonthly1st15th:
		day := 1
		if today.Day() >= 15 {
			day = 15
		}
		virtual := time.Date(today.Year(), today.Month(), day, 0, 0, 0, 0, time.UTC)
		switch virtual.Weekday() {
		case time.Saturday:
			return virtual.AddDate(0, 0, 2)
		case time.Sunday:
			return virtual.AddDate(0, 0, 1)
		}
		return virtual
	}

	// Unknown rules are rejected at config load; returning today keeps this
	// total for callers anyway.
	return today
}

// IsRunDay reports whether today is the computed rebalance date itself.
func IsRunDay(rule string, today time.Time) bool {
	return truncateToDay(today).Equal(TargetDate(rule, today))
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

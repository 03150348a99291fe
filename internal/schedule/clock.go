package schedule

import (
	"fmt"
	"log"
	"time"
)

// TimeOfDay is a wall-clock time with no date attached, local to some timezone.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay parses "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
}

func (t TimeOfDay) secondsIntoDay() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// NextOccurrence returns the next UTC instant at which the given wall-clock
// time occurs in loc: today if the target is still strictly ahead of the local
// clock, otherwise tomorrow. An exact match at the trigger second counts as
// already passed and yields tomorrow.
func NextOccurrence(loc *time.Location, target TimeOfDay) time.Time {
	return NextOccurrenceAfter(time.Now(), loc, target)
}

// NextOccurrenceAfter is NextOccurrence evaluated at an explicit "now".
//
// A local target that falls inside a DST spring-forward gap does not exist;
// time.Date then normalizes to a real instant on one side of the gap, which is
// the earliest valid interpretation we can get. An ambiguous fall-back time
// resolves to one of its two offsets the same way. Should normalization ever
// land the result at or before now, we log it and return it anyway, so the
// caller treats the task as immediately due rather than stalling.
func NextOccurrenceAfter(now time.Time, loc *time.Location, target TimeOfDay) time.Time {
	local := now.In(loc)

	day := local
	localSecs := local.Hour()*3600 + local.Minute()*60 + local.Second()
	if localSecs < target.secondsIntoDay() {
		// target is still ahead today
	} else {
		day = local.AddDate(0, 0, 1)
	}

	next := time.Date(day.Year(), day.Month(), day.Day(), target.Hour, target.Minute, target.Second, 0, loc)
	if !next.After(now) {
		log.Printf("schedule: occurrence of %s in %s normalized to %s, not in the future; treating as immediately due", target, loc, next)
	}
	return next.UTC()
}

// EarliestOf returns the minimum of the given instants, or the zero time for
// an empty slice.
func EarliestOf(times []time.Time) time.Time {
	var earliest time.Time
	for _, t := range times {
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}
	return earliest
}

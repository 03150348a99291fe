package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nyLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("11:59:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{11, 59, 30}, tod)

	_, err = ParseTimeOfDay("25:00:00")
	assert.Error(t, err)
}

func TestNextOccurrence_TodayWhenAhead(t *testing.T) {
	loc := nyLoc(t)
	// 2026-01-15 is a Thursday, no DST anywhere near. Now = 10:00 local.
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, loc)

	got := NextOccurrenceAfter(now, loc, TimeOfDay{11, 59, 30})

	want := time.Date(2026, 1, 15, 11, 59, 30, 0, loc).UTC()
	assert.Equal(t, want, got)
	assert.True(t, got.After(now))
}

func TestNextOccurrence_TomorrowWhenPassed(t *testing.T) {
	loc := nyLoc(t)
	now := time.Date(2026, 1, 15, 13, 0, 0, 0, loc)

	got := NextOccurrenceAfter(now, loc, TimeOfDay{11, 59, 30})

	want := time.Date(2026, 1, 16, 11, 59, 30, 0, loc).UTC()
	assert.Equal(t, want, got)
}

func TestNextOccurrence_ExactMatchYieldsTomorrow(t *testing.T) {
	loc := nyLoc(t)
	// The comparison is strict less-than: hitting the trigger second exactly
	// schedules the next day, not an immediate re-fire.
	now := time.Date(2026, 1, 15, 11, 59, 30, 0, loc)

	got := NextOccurrenceAfter(now, loc, TimeOfDay{11, 59, 30})

	want := time.Date(2026, 1, 16, 11, 59, 30, 0, loc).UTC()
	assert.Equal(t, want, got)
}

func TestNextOccurrence_SpringForwardGap(t *testing.T) {
	loc := nyLoc(t)
	// 2026-03-08: US clocks jump 02:00 EST -> 03:00 EDT, so 02:30 local does
	// not exist that day. The result must be a real instant strictly in the
	// future, not an error.
	now := time.Date(2026, 3, 8, 1, 0, 0, 0, loc)

	got := NextOccurrenceAfter(now, loc, TimeOfDay{2, 30, 0})

	assert.False(t, got.IsZero())
	assert.True(t, got.After(now))
	// The normalized instant sits within the hour surrounding the gap.
	gapStart := time.Date(2026, 3, 8, 2, 0, 0, 0, loc)
	assert.True(t, got.Sub(gapStart) <= time.Hour, "normalized occurrence drifted past the gap hour: %s", got)
}

func TestEarliestOf(t *testing.T) {
	a := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	b := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	c := time.Date(2026, 1, 16, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, b, EarliestOf([]time.Time{a, b, c}))
	assert.True(t, EarliestOf(nil).IsZero())
}

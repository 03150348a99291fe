package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rebaltrader/internal/broker"
	"rebaltrader/internal/config"
	"rebaltrader/internal/detector"
	"rebaltrader/internal/models"
)

// fakeSource scripts what Detect returns on each attempt; the last entry
// repeats forever. An empty script always returns no events.
type fakeSource struct {
	runDay  bool
	forced  bool
	script  [][]models.RebalanceEvent
	errs    []error
	detects int
}

func (f *fakeSource) TargetDate() string { return "2026-01-05" }
func (f *fakeSource) IsRunDay() bool     { return f.runDay || f.forced }
func (f *fakeSource) ForceRunDay()       { f.forced = true }

func (f *fakeSource) Detect(_ context.Context, _ detector.RunLogger) ([]models.RebalanceEvent, error) {
	i := f.detects
	f.detects++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if len(f.script) == 0 {
		return nil, err
	}
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	return f.script[i], err
}

type fakeSubmitter struct {
	calls       int
	orders      []models.Order
	simulations []bool
}

func (f *fakeSubmitter) Submit(_ context.Context, orders []models.Order, simulation bool, rl broker.RunLogger) int {
	f.calls++
	f.orders = append(f.orders, orders...)
	f.simulations = append(f.simulations, simulation)
	return len(orders)
}

type fakeNotifier struct {
	subjects []string
	bodies   []string
}

func (f *fakeNotifier) Notify(subject, body string) {
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, body)
}

func testProfile() config.Strategy {
	return config.Strategy{
		Name:             "us-weekly",
		Rule:             config.RuleWeeklyMonday,
		TriggerTimes:     []string{"11:59:45"},
		LiveCheckpoint:   "12:00:00",
		LiveWindowSecs:   55,
		LiveDeadlineSecs: 270,
		SimDeadlineSecs:  30,
		SimSleepMs:       3750,
		LiveSleepMs:      250,
		BuyCapital:       70000,
		SellCapital:      70000,
		MaxEvents:        14,
	}
}

func sampleEvents() []models.RebalanceEvent {
	return []models.RebalanceEvent{
		{TransactionID: "t1", Side: models.SideBuy, ActionDate: "2026-01-05", Ticker: "AAPL", CompanyName: "Apple Inc.", KnownPrice: "182.50"},
		{TransactionID: "t2", Side: models.SideSell, ActionDate: "2026-01-05", Ticker: "MSFT", CompanyName: "Microsoft", KnownPrice: "410.00"},
	}
}

// newTestExecutor wires an executor to fakes and a fake clock. Sleeping
// advances the clock so deadline behavior is testable without real waits.
func newTestExecutor(t *testing.T, src *fakeSource, sub *fakeSubmitter, nfy *fakeNotifier, start time.Time) *Executor {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	e := New(testProfile(), config.Settings{}, sub, nfy, loc)
	clock := start
	e.newSource = func(time.Time) EventSource { return src }
	e.now = func() time.Time { return clock }
	e.sleep = func(d time.Duration) { clock = clock.Add(d) }
	return e
}

func nyTime(t *testing.T, hour, minute, sec int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return time.Date(2026, time.January, 5, hour, minute, sec, 0, loc)
}

func TestRunOnceSubmitsExactlyOnce(t *testing.T) {
	src := &fakeSource{runDay: true, script: [][]models.RebalanceEvent{
		sampleEvents(), sampleEvents(), sampleEvents(),
	}}
	sub := &fakeSubmitter{}
	nfy := &fakeNotifier{}
	e := newTestExecutor(t, src, sub, nfy, nyTime(t, 9, 30, 0))

	e.RunOnce(context.Background(), false)

	assert.Equal(t, 1, sub.calls, "events on every tick must still submit once")
	assert.Len(t, sub.orders, 2)
	require.Len(t, nfy.subjects, 1)
	assert.Contains(t, nfy.subjects[0], "us-weekly")
}

func TestRunOnceDeadlineTerminates(t *testing.T) {
	src := &fakeSource{runDay: true}
	sub := &fakeSubmitter{}
	nfy := &fakeNotifier{}
	e := newTestExecutor(t, src, sub, nfy, nyTime(t, 9, 30, 0))

	e.RunOnce(context.Background(), false)

	assert.Zero(t, sub.calls)
	// 30s deadline / 3.75s sleeps: a handful of attempts, then out.
	assert.GreaterOrEqual(t, src.detects, 2)
	assert.LessOrEqual(t, src.detects, 10)
	require.Len(t, nfy.bodies, 1)
	assert.Contains(t, nfy.bodies[0], "Deadline reached")
}

func TestRunOnceForcedSinglePassSimulated(t *testing.T) {
	// Saturday: not a run day, events available immediately.
	src := &fakeSource{runDay: false, script: [][]models.RebalanceEvent{sampleEvents()}}
	sub := &fakeSubmitter{}
	nfy := &fakeNotifier{}
	// Inside the live window on purpose: forced must still simulate.
	e := newTestExecutor(t, src, sub, nfy, nyTime(t, 12, 0, 10))

	e.RunOnce(context.Background(), true)

	assert.True(t, src.forced, "forced run must bypass the calendar gate")
	require.Equal(t, 1, sub.calls)
	assert.True(t, sub.simulations[0], "forced runs never trade for real")
	assert.Equal(t, 1, src.detects, "forced runs poll exactly once")
}

func TestRunOnceForcedEmptySinglePass(t *testing.T) {
	src := &fakeSource{}
	sub := &fakeSubmitter{}
	nfy := &fakeNotifier{}
	e := newTestExecutor(t, src, sub, nfy, nyTime(t, 15, 0, 0))

	e.RunOnce(context.Background(), true)

	assert.Equal(t, 1, src.detects)
	assert.Zero(t, sub.calls)
	require.Len(t, nfy.bodies, 1)
	assert.Contains(t, nfy.bodies[0], "single pass")
}

func TestRunOnceSkipsOffCalendarDay(t *testing.T) {
	src := &fakeSource{runDay: false}
	sub := &fakeSubmitter{}
	nfy := &fakeNotifier{}
	e := newTestExecutor(t, src, sub, nfy, nyTime(t, 9, 30, 0))

	e.RunOnce(context.Background(), false)

	assert.Zero(t, src.detects, "off-day runs must not touch the source")
	assert.Empty(t, nfy.subjects, "off-day runs send no notification")
}

func TestRunOnceLiveWindow(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		live bool
	}{
		{"just before checkpoint", nyTime(t, 11, 59, 10), true},
		{"just after checkpoint", nyTime(t, 12, 0, 50), true},
		{"window edge", nyTime(t, 12, 0, 55), false},
		{"mid morning", nyTime(t, 9, 30, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := &fakeSource{runDay: true, script: [][]models.RebalanceEvent{sampleEvents()}}
			sub := &fakeSubmitter{}
			e := newTestExecutor(t, src, sub, &fakeNotifier{}, tc.at)

			e.RunOnce(context.Background(), false)

			require.Equal(t, 1, sub.calls)
			assert.Equal(t, !tc.live, sub.simulations[0])
		})
	}
}

func TestRunOnceRefusesTooManyEvents(t *testing.T) {
	many := make([]models.RebalanceEvent, 15)
	for i := range many {
		many[i] = models.RebalanceEvent{Side: models.SideBuy, Ticker: "T", KnownPrice: "10"}
	}
	src := &fakeSource{runDay: true, script: [][]models.RebalanceEvent{many}}
	sub := &fakeSubmitter{}
	nfy := &fakeNotifier{}
	e := newTestExecutor(t, src, sub, nfy, nyTime(t, 9, 30, 0))

	e.RunOnce(context.Background(), false)

	assert.Zero(t, sub.calls)
	require.Len(t, nfy.bodies, 1)
	assert.Contains(t, nfy.bodies[0], "refusing to trade")
}

func TestRunOnceDetectErrorsAreRetried(t *testing.T) {
	src := &fakeSource{
		runDay: true,
		errs:   []error{detector.ErrAuthExpired, detector.ErrBlocked},
		script: [][]models.RebalanceEvent{nil, nil, sampleEvents()},
	}
	sub := &fakeSubmitter{}
	nfy := &fakeNotifier{}
	e := newTestExecutor(t, src, sub, nfy, nyTime(t, 9, 30, 0))

	e.RunOnce(context.Background(), false)

	assert.Equal(t, 1, sub.calls, "classified failures are retryable within the run")
	assert.Equal(t, 3, src.detects)
}

func TestRebalanceTaskTriggerTimes(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	profile := testProfile()
	profile.TriggerTimes = []string{"11:59:45", "23:30:00"}
	task, err := NewRebalanceTask(context.Background(), profile, nil, loc)
	require.NoError(t, err)

	next := task.NextTriggerTime()
	assert.True(t, next.After(time.Now().Add(-time.Second)))
	sec := next.In(loc).Hour()*3600 + next.In(loc).Minute()*60 + next.In(loc).Second()
	assert.Contains(t, []int{11*3600 + 59*60 + 45, 23*3600 + 30*60}, sec)

	_, err = NewRebalanceTask(context.Background(), config.Strategy{Name: "bad", TriggerTimes: []string{"25:00:00"}}, nil, loc)
	assert.Error(t, err)
}

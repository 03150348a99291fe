package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rebaltrader/internal/config"
	"rebaltrader/internal/schedule"
)

// RebalanceTask adapts an Executor to the scheduler. One task per strategy;
// the next trigger is the earliest of the strategy's configured times of day.
type RebalanceTask struct {
	name     string
	executor *Executor
	loc      *time.Location
	times    []schedule.TimeOfDay
	ctx      context.Context

	mu   sync.Mutex
	next time.Time
}

func NewRebalanceTask(ctx context.Context, profile config.Strategy, exec *Executor, loc *time.Location) (*RebalanceTask, error) {
	t := &RebalanceTask{
		name:     profile.Name,
		executor: exec,
		loc:      loc,
		ctx:      ctx,
	}
	for _, s := range profile.TriggerTimes {
		tod, err := schedule.ParseTimeOfDay(s)
		if err != nil {
			return nil, fmt.Errorf("strategy %s: trigger time %q: %w", profile.Name, s, err)
		}
		t.times = append(t.times, tod)
	}
	t.UpdateNextTriggerTime()
	return t, nil
}

func (t *RebalanceTask) Name() string { return t.name }

func (t *RebalanceTask) NextTriggerTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next
}

func (t *RebalanceTask) UpdateNextTriggerTime() {
	candidates := make([]time.Time, 0, len(t.times))
	for _, tod := range t.times {
		candidates = append(candidates, schedule.NextOccurrence(t.loc, tod))
	}
	next := schedule.EarliestOf(candidates)
	t.mu.Lock()
	t.next = next
	t.mu.Unlock()
}

func (t *RebalanceTask) Run() {
	t.executor.RunOnce(t.ctx, false)
}

// ForceRun performs an immediate simulated pass regardless of the calendar.
// Called from the operator command listener, on its goroutine.
func (t *RebalanceTask) ForceRun() {
	t.executor.RunOnce(t.ctx, true)
}

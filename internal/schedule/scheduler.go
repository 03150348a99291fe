package schedule

import (
	"context"
	"log"
	"sync"
	"time"
)

// Task is a unit of scheduled work. NextTriggerTime and UpdateNextTriggerTime
// are called from the scheduler loop; Run is called on its own goroutine. A
// task must tolerate running concurrently with other tasks, but the scheduler
// never runs one task concurrently with itself: the trigger time is moved into
// the future before the task is handed off, so the next scan cannot pick it up
// again.
type Task interface {
	Name() string
	NextTriggerTime() time.Time
	UpdateNextTriggerTime()
	Run()
}

// idleSleep is how long the loop waits when no tasks are registered.
const idleSleep = 60 * time.Second

// Scheduler owns a private task list and wakes exactly at the earliest
// next-trigger time across all tasks. Due tasks are handed off through a
// dispatch channel and executed fire-and-forget.
type Scheduler struct {
	mu       sync.Mutex
	tasks    []Task
	dispatch chan Task
}

func New() *Scheduler {
	return &Scheduler{dispatch: make(chan Task)}
}

// Register adds a task. This is the only way the task list is mutated.
func (s *Scheduler) Register(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, t)
}

// Find returns the registered task with the given name, or nil.
func (s *Scheduler) Find(name string) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

// TriggerTimes reports each task's next trigger, for operator display.
func (s *Scheduler) TriggerTimes() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.tasks))
	for _, t := range s.tasks {
		out[t.Name()] = t.NextTriggerTime()
	}
	return out
}

// Start runs the scheduling loop until ctx is cancelled. It blocks; callers
// that need it in the background run it on a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	log.Println("Scheduler started")
	go s.dispatchLoop(ctx)

	for {
		now := time.Now()

		for _, t := range s.collectDue(now) {
			// Move the trigger forward before handing the task off, so a
			// long-running task is not rescanned as due on the next pass.
			t.UpdateNextTriggerTime()
			select {
			case s.dispatch <- t:
			case <-ctx.Done():
				return
			}
		}

		timer := time.NewTimer(s.untilNext(time.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// collectDue snapshots the tasks whose trigger time is at or before now. The
// lock is held only for the scan, never across a task's Run.
func (s *Scheduler) collectDue(now time.Time) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []Task
	for _, t := range s.tasks {
		if !t.NextTriggerTime().After(now) {
			due = append(due, t)
		}
	}
	return due
}

func (s *Scheduler) untilNext(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var soonest time.Time
	for _, t := range s.tasks {
		trigger := t.NextTriggerTime()
		if soonest.IsZero() || trigger.Before(soonest) {
			soonest = trigger
		}
	}
	if soonest.IsZero() {
		return idleSleep
	}
	if d := soonest.Sub(now); d > 0 {
		return d
	}
	return 0
}

// dispatchLoop receives due tasks and runs each on its own goroutine. Two
// tasks due at the same tick run in parallel; a panicking task is contained
// here instead of taking the scheduler down.
func (s *Scheduler) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-s.dispatch:
			go func(t Task) {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("Task %s panicked: %v", t.Name(), r)
					}
				}()
				t.Run()
			}(t)
		}
	}
}

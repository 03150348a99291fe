package executor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"rebaltrader/internal/broker"
	"rebaltrader/internal/config"
	"rebaltrader/internal/detector"
	"rebaltrader/internal/models"
	"rebaltrader/internal/schedule"
	"rebaltrader/internal/sizer"
)

// EventSource is what the executor needs from a detector. *detector.Detector
// satisfies it; tests substitute a scripted source.
type EventSource interface {
	TargetDate() string
	IsRunDay() bool
	ForceRunDay()
	Detect(ctx context.Context, rl detector.RunLogger) ([]models.RebalanceEvent, error)
}

// Submitter is what the executor needs from the order gateway.
type Submitter interface {
	Submit(ctx context.Context, orders []models.Order, simulation bool, rl broker.RunLogger) int
}

// Notifier delivers the end-of-run report.
type Notifier interface {
	Notify(subject, body string)
}

// Executor drives one strategy: gate on the scheduled day, poll the source
// until the deadline, and trade at most once per run.
type Executor struct {
	profile  config.Strategy
	gateway  Submitter
	notifier Notifier
	loc      *time.Location

	newSource func(today time.Time) EventSource
	now       func() time.Time
	sleep     func(time.Duration)
}

func New(profile config.Strategy, settings config.Settings, gateway Submitter, notifier Notifier, loc *time.Location) *Executor {
	return &Executor{
		profile:  profile,
		gateway:  gateway,
		notifier: notifier,
		loc:      loc,
		newSource: func(today time.Time) EventSource {
			return detector.New(profile, settings.DataDir, settings.CookieFile, today)
		},
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// RunOnce performs one complete run. forced bypasses the run-day gate, forces
// simulation and limits the loop to a single pass; it exists for operator
// dry runs.
func (e *Executor) RunOnce(ctx context.Context, forced bool) {
	now := e.now().In(e.loc)
	src := e.newSource(now)
	if forced {
		src.ForceRunDay()
	}
	if !src.IsRunDay() {
		// Not a scheduled day: no session, no notification.
		log.Printf("%s: %s is not a rebalance day, nothing to do", e.profile.Name, now.Format("2006-01-02"))
		return
	}

	live := !forced && e.withinLiveWindow(now)
	session := NewSession(!live, src.TargetDate())
	session.Logf("Run started: strategy %s, target date %s, live %v, forced %v",
		e.profile.Name, src.TargetDate(), live, forced)

	deadlineSecs := e.profile.SimDeadlineSecs
	pollSleep := time.Duration(e.profile.SimSleepMs) * time.Millisecond
	if live {
		deadlineSecs = e.profile.LiveDeadlineSecs
		pollSleep = time.Duration(e.profile.LiveSleepMs) * time.Millisecond
	}
	deadline := now.Add(time.Duration(deadlineSecs) * time.Second)

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			session.Logf("Run cancelled")
			break
		}

		events, err := src.Detect(ctx, session)
		if err != nil {
			// Classified failures are all retryable within the run; an
			// operator fixes the cookie out-of-band.
			session.Logf("Detect attempt %d failed: %v", attempt, err)
		}

		if len(events) > 0 && !session.HasTraded() {
			if len(events) > e.profile.MaxEvents {
				session.Logf("%d events exceeds the cap of %d, refusing to trade", len(events), e.profile.MaxEvents)
				break
			}
			sizer.SizeEvents(events,
				decimal.NewFromFloat(e.profile.BuyCapital),
				decimal.NewFromFloat(e.profile.SellCapital))
			orders := sizer.BuildOrders(events)

			session.MarkTraded()
			n := e.gateway.Submit(ctx, orders, session.Simulation, session)
			session.Logf("Run complete: %d event(s), %d order(s) placed", len(events), n)
			break
		}

		if forced {
			session.Logf("Forced run, single pass done")
			break
		}
		if !e.now().In(e.loc).Before(deadline) {
			session.Logf("Deadline reached after %d attempt(s), no events detected", attempt)
			break
		}
		e.sleep(pollSleep)
	}

	e.notifier.Notify(fmt.Sprintf("%s run %s", e.profile.Name, session.ID), session.Summary())
}

// withinLiveWindow reports whether now is close enough to the strategy's
// publish checkpoint to trade for real. Everything outside the window is a
// rehearsal.
func (e *Executor) withinLiveWindow(now time.Time) bool {
	cp, err := schedule.ParseTimeOfDay(e.profile.LiveCheckpoint)
	if err != nil {
		log.Printf("%s: bad live checkpoint %q: %v", e.profile.Name, e.profile.LiveCheckpoint, err)
		return false
	}
	y, m, d := now.Date()
	at := time.Date(y, m, d, cp.Hour, cp.Minute, cp.Second, 0, e.loc)
	diff := now.Sub(at)
	if diff < 0 {
		diff = -diff
	}
	return diff < time.Duration(e.profile.LiveWindowSecs)*time.Second
}

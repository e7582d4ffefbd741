// Package schedule drives time-based workflow runs. It watches every cron
// spec declared across the loaded workflows, sleeps until the earliest next
// fire time, and hands a synthetic schedule event to its callback.
package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vk/matrixflow/internal/config"
	"github.com/vk/matrixflow/internal/ctxlog"
	"github.com/vk/matrixflow/internal/trigger"
)

// FireFunc is invoked once per schedule fire with the synthetic event.
type FireFunc func(ctx context.Context, ev trigger.Event)

// Loop owns the parsed schedules of one loaded model.
type Loop struct {
	schedules []cron.Schedule
	fire      FireFunc
	// now is swappable for tests.
	now func() time.Time
}

// New builds a loop from every schedule declared in the model. The loader
// has already validated the specs, so a parse failure here is a programmer
// error and panics.
func New(model *config.Model, fire FireFunc) *Loop {
	l := &Loop{fire: fire, now: time.Now}
	for _, wf := range model.Workflows {
		if wf.On == nil {
			continue
		}
		for _, spec := range wf.On.Schedules {
			sched, err := trigger.ParseCron(spec)
			if err != nil {
				panic(err)
			}
			l.schedules = append(l.schedules, sched)
		}
	}
	return l
}

// HasSchedules reports whether there is anything to wait for.
func (l *Loop) HasSchedules() bool {
	return len(l.schedules) > 0
}

// Next returns the earliest fire time strictly after t across all
// schedules. The zero time means no schedule will ever fire again; cron
// reports an unreachable spec (like Feb 30) the same way.
func (l *Loop) Next(t time.Time) time.Time {
	var earliest time.Time
	for _, sched := range l.schedules {
		next := sched.Next(t)
		if next.IsZero() {
			continue
		}
		if earliest.IsZero() || next.Before(earliest) {
			earliest = next
		}
	}
	return earliest
}

// Run blocks, firing schedule events until the context is cancelled. It
// returns the context error on cancellation, nil when no schedule exists
// or none will ever fire again.
func (l *Loop) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	if !l.HasSchedules() {
		logger.Warn("No schedules declared, nothing to watch.")
		return nil
	}

	for {
		next := l.Next(l.now())
		if next.IsZero() {
			logger.Warn("No schedule will ever fire again, stopping watch.")
			return nil
		}
		logger.Info("⏰ Waiting for next scheduled run.", "at", next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Debug("Schedule loop cancelled.")
			return ctx.Err()
		case <-timer.C:
			l.fire(ctx, trigger.Event{Kind: trigger.KindSchedule, Time: next})
		}
	}
}

package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/moodpulse/internal/logger"
	"github.com/seenimoa/moodpulse/pkg/models"
	"github.com/seenimoa/moodpulse/pkg/utils"
)

// Runner performs one pipeline run. *Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context) (*models.RunReport, error)
}

// Listener receives every finished run report.
type Listener func(report *models.RunReport)

// Scheduler triggers a run at every schedule boundary. Runs never overlap:
// the next boundary is computed only after the previous run returns, and a
// run that overran a boundary is followed at once by a run for the slot it
// overran into.
type Scheduler struct {
	runner     Runner
	hours      []int
	runOnStart bool
	listeners  []Listener
	now        func() time.Time
	wait       func(ctx context.Context, d time.Duration) error
	lastSlot   string // slot label of the latest run, "" before the first
}

// SchedulerOption configures the scheduler.
type SchedulerOption func(*Scheduler)

// WithRunOnStart runs once immediately before waiting for the first boundary.
func WithRunOnStart(on bool) SchedulerOption {
	return func(s *Scheduler) { s.runOnStart = on }
}

// WithListener registers a callback for finished runs.
func WithListener(l Listener) SchedulerOption {
	return func(s *Scheduler) { s.listeners = append(s.listeners, l) }
}

// WithClock replaces the clock and wait function, for tests.
func WithClock(now func() time.Time, wait func(ctx context.Context, d time.Duration) error) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
		s.wait = wait
	}
}

// NewScheduler creates a scheduler for runner.
func NewScheduler(runner Runner, hours []int, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		runner: runner,
		hours:  hours,
		now:    time.Now,
		wait:   sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next returns the boundary the scheduler will fire at next.
func (s *Scheduler) Next() utils.Slot {
	return utils.NextSlot(s.now(), s.hours)
}

// Run blocks until ctx is cancelled. A cancelled context is not an error.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.runOnStart {
		s.runOnce(ctx)
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		if cur := utils.AlignSlot(s.now(), s.hours); s.lastSlot != "" && cur.Label != s.lastSlot {
			logger.Log.WithFields(logrus.Fields{"previous": s.lastSlot, "slot": cur.Label}).
				Warn("run overran a slot boundary, running again now")
			s.runOnce(ctx)
			continue
		}

		next := s.Next()
		d := next.Time.Sub(s.now())
		logger.Log.WithField("next", next.Label).Infof("next run in %s", d.Round(time.Second))

		if err := s.wait(ctx, d); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		s.runOnce(ctx)
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	s.lastSlot = utils.AlignSlot(s.now(), s.hours).Label
	report, err := s.runner.Run(ctx)
	if err != nil {
		logger.Log.WithError(err).Error("scheduled run failed")
	}
	if report == nil {
		return
	}
	for _, l := range s.listeners {
		l(report)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package source

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "evcal/internal/log"
)

// Hook runs after each scheduled refresh, whether or not every source
// succeeded.
type Hook func(ctx context.Context)

// Scheduler triggers Feeder.RefreshAll on a cron spec. Runs never overlap;
// a tick that fires while the previous run is busy is dropped.
type Scheduler struct {
	cron   *cron.Cron
	feeder *Feeder
	hooks  []Hook
}

// NewScheduler validates spec (standard five-field cron or descriptors such
// as "@every 15m") and evaluates it in loc.
func NewScheduler(ctx context.Context, spec string, loc *time.Location, feeder *Feeder, hooks ...Hook) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	logger := cronLogger{}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		feeder: feeder,
		hooks:  hooks,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.run(ctx) }); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

// RunOnce refreshes immediately and then runs the hooks.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	_, err := s.feeder.RefreshAll(ctx)
	for _, h := range s.hooks {
		if ctx.Err() != nil {
			break
		}
		h(ctx)
	}
	return err
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.RunOnce(ctx); err != nil {
		appLog.Warn("scheduled refresh finished with errors", "error", err)
	}
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops the schedule and returns a context that is done once a
// running refresh has finished.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

// Next reports when the next refresh fires; zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// cronLogger routes cron's internal logging through the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}

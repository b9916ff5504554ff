package worker

import (
	"context"
	"fmt"

	rcron "github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler triggers refresh job runs on cron schedules.
type Scheduler struct {
	job    *RefreshJob
	logger zerolog.Logger
	cron   *rcron.Cron
}

// NewScheduler registers one entry per non-empty schedule. Each entry runs
// only the task with the matching name.
func NewScheduler(job *RefreshJob, schedules ScheduleConfig, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		job:    job,
		logger: logger,
		cron:   rcron.New(rcron.WithSeconds(), rcron.WithChain(rcron.SkipIfStillRunning(rcron.DiscardLogger))),
	}

	entries := []struct {
		task string
		expr string
	}{
		{"weather", schedules.Weather},
		{"origin_health", schedules.Health},
	}

	for _, e := range entries {
		if e.expr == "" {
			continue
		}
		task := e.task
		if _, err := s.cron.AddFunc(e.expr, func() {
			s.job.Run(context.Background(), task)
		}); err != nil {
			return nil, fmt.Errorf("scheduling %s (%q): %w", task, e.expr, err)
		}
		s.logger.Debug().Str("task", task).Str("schedule", e.expr).Msg("scheduled refresh task")
	}

	return s, nil
}

// Entries returns the number of scheduled entries.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Run runs every task once, then starts the schedule and blocks until ctx
// is done. Running tasks finish before it returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.job.Run(ctx)

	s.cron.Start()
	s.logger.Info().Int("entries", s.Entries()).Msg("refresh scheduler started")

	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.logger.Info().Msg("refresh scheduler stopped")
	return ctx.Err()
}

package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/microsafety/microsafety/internal/upstream"
	"github.com/microsafety/microsafety/internal/weather"
)

// Task is one named unit of refresh work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// WeatherTask refetches the weather summary, bypassing the cache.
func WeatherTask(svc *weather.Service) Task {
	return Task{
		Name: "weather",
		Run: func(ctx context.Context) error {
			_, err := svc.Refresh(ctx)
			return err
		},
	}
}

// HealthChecker probes the feed origin.
type HealthChecker interface {
	Health(ctx context.Context) (upstream.Health, error)
}

// HealthTask probes the feed origin and logs the running scenario. The
// resilience registry behind the upstream client records the outcome.
func HealthTask(checker HealthChecker, logger zerolog.Logger) Task {
	return Task{
		Name: "origin_health",
		Run: func(ctx context.Context) error {
			h, err := checker.Health(ctx)
			if err != nil {
				return err
			}
			logger.Debug().
				Str("status", h.Status).
				Str("scenario", string(h.Scenario)).
				Int64("tick", h.Tick).
				Msg("feed origin healthy")
			return nil
		},
	}
}

// RefreshJob runs a set of tasks on a small worker pool.
type RefreshJob struct {
	config RefreshConfig
	logger zerolog.Logger
	tasks  []Task

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRuns      int64
	SuccessfulRuns int64
	FailedTasks    int64
	TaskRuns       map[string]int64

	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config RefreshConfig
	Logger zerolog.Logger
	Tasks  []Task
}

// NewRefreshJob creates a refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	defaults := DefaultRefreshConfig()
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &RefreshJob{
		config:  config,
		logger:  cfg.Logger,
		tasks:   cfg.Tasks,
		metrics: &RefreshMetrics{TaskRuns: make(map[string]int64)},
	}
}

// RefreshResult contains the result of a refresh run.
type RefreshResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	TotalTasks int
	Successful int
	Failed     int
	Errors     []RefreshError
}

// RefreshError records one failed task.
type RefreshError struct {
	Task  string
	Error string
}

// Run executes every task, or only the named ones when names is non-empty.
func (j *RefreshJob) Run(ctx context.Context, names ...string) *RefreshResult {
	tasks := j.selectTasks(names)

	startTime := time.Now()
	result := &RefreshResult{
		StartTime:  startTime,
		TotalTasks: len(tasks),
	}

	j.logger.Debug().
		Int("tasks", len(tasks)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting refresh job")

	taskChan := make(chan Task, len(tasks))
	resultsChan := make(chan taskResult, len(tasks))

	var wg sync.WaitGroup
	for range j.config.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, taskChan, resultsChan)
		}()
	}

	for _, t := range tasks {
		taskChan <- t
	}
	close(taskChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for tr := range resultsChan {
		if tr.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, RefreshError{Task: tr.name, Error: tr.err.Error()})
			continue
		}
		result.Successful++
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result, tasks)

	event := j.logger.Info()
	if result.Failed > 0 {
		event = j.logger.Warn()
	}
	event.
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("refresh job completed")

	return result
}

type taskResult struct {
	name string
	err  error
}

func (j *RefreshJob) refreshWorker(ctx context.Context, tasks <-chan Task, results chan<- taskResult) {
	for t := range tasks {
		if err := ctx.Err(); err != nil {
			results <- taskResult{name: t.Name, err: err}
			continue
		}

		taskCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
		err := t.Run(taskCtx)
		cancel()

		if err != nil {
			j.logger.Error().Err(err).Str("task", t.Name).Msg("refresh task failed")
		}
		results <- taskResult{name: t.Name, err: err}
	}
}

func (j *RefreshJob) selectTasks(names []string) []Task {
	if len(names) == 0 {
		return j.tasks
	}
	var out []Task
	for _, t := range j.tasks {
		for _, n := range names {
			if t.Name == n {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

func (j *RefreshJob) updateMetrics(result *RefreshResult, tasks []Task) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	if result.Failed == 0 {
		j.metrics.SuccessfulRuns++
	}
	j.metrics.FailedTasks += int64(result.Failed)
	for _, t := range tasks {
		j.metrics.TaskRuns[t.Name]++
	}
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
}

// MetricsSnapshot returns the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]any {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	runs := make(map[string]int64, len(j.metrics.TaskRuns))
	for k, v := range j.metrics.TaskRuns {
		runs[k] = v
	}

	return map[string]any{
		"total_runs":            j.metrics.TotalRuns,
		"successful_runs":       j.metrics.SuccessfulRuns,
		"failed_tasks":          j.metrics.FailedTasks,
		"task_runs":             runs,
		"last_refresh_at":       j.metrics.LastRefreshAt,
		"last_refresh_duration": j.metrics.LastRefreshDuration.String(),
	}
}

package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsafety/microsafety/internal/upstream"
	"github.com/microsafety/microsafety/internal/weather"
	"github.com/microsafety/microsafety/internal/worker"
)

func countingTask(name string, calls *atomic.Int32, err error) worker.Task {
	return worker.Task{
		Name: name,
		Run: func(context.Context) error {
			calls.Add(1)
			return err
		},
	}
}

func TestDefaultConfigs(t *testing.T) {
	cfg := worker.DefaultRefreshConfig()
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)

	sched := worker.DefaultScheduleConfig()
	assert.Equal(t, worker.DefaultWeatherSchedule, sched.Weather)
	assert.Equal(t, worker.DefaultHealthSchedule, sched.Health)
}

func TestRefreshJob_Run_NoTasks(t *testing.T) {
	job := worker.NewRefreshJob(worker.RefreshJobConfig{Logger: zerolog.Nop()})

	result := job.Run(context.Background())
	assert.Equal(t, 0, result.TotalTasks)
	assert.Equal(t, 0, result.Failed)
}

func TestRefreshJob_Run(t *testing.T) {
	var ok, bad atomic.Int32
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Logger: zerolog.Nop(),
		Tasks: []worker.Task{
			countingTask("weather", &ok, nil),
			countingTask("origin_health", &bad, errors.New("origin down")),
		},
	})

	result := job.Run(context.Background())
	assert.Equal(t, 2, result.TotalTasks)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, worker.RefreshError{Task: "origin_health", Error: "origin down"}, result.Errors[0])
	assert.False(t, result.EndTime.Before(result.StartTime))

	m := job.MetricsSnapshot()
	assert.Equal(t, int64(1), m["total_runs"])
	assert.Equal(t, int64(0), m["successful_runs"])
	assert.Equal(t, int64(1), m["failed_tasks"])
}

func TestRefreshJob_RunNamedTasks(t *testing.T) {
	var a, b atomic.Int32
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Logger: zerolog.Nop(),
		Tasks:  []worker.Task{countingTask("weather", &a, nil), countingTask("origin_health", &b, nil)},
	})

	result := job.Run(context.Background(), "weather", "nope")
	assert.Equal(t, 1, result.TotalTasks)
	assert.Equal(t, int32(1), a.Load())
	assert.Equal(t, int32(0), b.Load())
}

func TestRefreshJob_TaskTimeout(t *testing.T) {
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{Concurrency: 1, Timeout: 10 * time.Millisecond},
		Logger: zerolog.Nop(),
		Tasks: []worker.Task{{
			Name: "slow",
			Run: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		}},
	})

	result := job.Run(context.Background())
	require.Equal(t, 1, result.Failed)
	assert.Equal(t, context.DeadlineExceeded.Error(), result.Errors[0].Error)
}

func TestRefreshJob_CancelledContext(t *testing.T) {
	var calls atomic.Int32
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Logger: zerolog.Nop(),
		Tasks:  []worker.Task{countingTask("weather", &calls, nil)},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := job.Run(ctx)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, int32(0), calls.Load())
}

func TestWeatherTask(t *testing.T) {
	var calls atomic.Int32
	svc := weather.NewService(weather.ServiceConfig{
		Source: weather.SourceFunc(func(context.Context) (upstream.Weather, error) {
			calls.Add(1)
			return upstream.Weather{Available: true, TempF: 88}, nil
		}),
		Logger: zerolog.Nop(),
	})

	task := worker.WeatherTask(svc)
	assert.Equal(t, "weather", task.Name)
	require.NoError(t, task.Run(context.Background()))
	require.NoError(t, task.Run(context.Background()))
	assert.Equal(t, int32(2), calls.Load(), "refresh bypasses the cache")
	assert.InDelta(t, 88, svc.Current(context.Background()).TempF, 0)
}

type healthFunc func(ctx context.Context) (upstream.Health, error)

func (f healthFunc) Health(ctx context.Context) (upstream.Health, error) { return f(ctx) }

func TestHealthTask(t *testing.T) {
	task := worker.HealthTask(healthFunc(func(context.Context) (upstream.Health, error) {
		return upstream.Health{Status: "ok", Tick: 3}, nil
	}), zerolog.Nop())
	assert.Equal(t, "origin_health", task.Name)
	assert.NoError(t, task.Run(context.Background()))

	failing := worker.HealthTask(healthFunc(func(context.Context) (upstream.Health, error) {
		return upstream.Health{}, errors.New("refused")
	}), zerolog.Nop())
	assert.Error(t, failing.Run(context.Background()))
}

func TestScheduler(t *testing.T) {
	var calls atomic.Int32
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Logger: zerolog.Nop(),
		Tasks:  []worker.Task{countingTask("weather", &calls, nil)},
	})

	t.Run("rejects bad expressions", func(t *testing.T) {
		_, err := worker.NewScheduler(job, worker.ScheduleConfig{Weather: "every tuesday"}, zerolog.Nop())
		assert.ErrorContains(t, err, "scheduling weather")
	})

	t.Run("empty schedules are skipped", func(t *testing.T) {
		s, err := worker.NewScheduler(job, worker.ScheduleConfig{Health: worker.DefaultHealthSchedule}, zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, 1, s.Entries())
	})

	t.Run("runs once at start and stops with ctx", func(t *testing.T) {
		s, err := worker.NewScheduler(job, worker.ScheduleConfig{Weather: "0 0 0 1 1 *"}, zerolog.Nop())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Run(ctx) }()

		require.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("scheduler did not stop")
		}
	})
}

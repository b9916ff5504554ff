// Package worker runs the scheduled background refreshes: the weather cache
// and the feed origin health probe.
package worker

import (
	"time"
)

// Default cron schedules, with a leading seconds field.
const (
	DefaultWeatherSchedule = "0 */5 * * * *"
	DefaultHealthSchedule  = "*/30 * * * * *"
)

// RefreshConfig holds configuration for the refresh job.
type RefreshConfig struct {
	// Concurrency is the number of tasks run at once.
	// Default: 2
	Concurrency int

	// Timeout bounds each task.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Concurrency: 2,
		Timeout:     30 * time.Second,
	}
}

// ScheduleConfig holds the cron expression of each scheduled run.
type ScheduleConfig struct {
	// Weather is when the weather cache is refreshed.
	// Default: DefaultWeatherSchedule
	Weather string

	// Health is when the feed origin is probed.
	// Default: DefaultHealthSchedule
	Health string
}

// DefaultScheduleConfig returns the default schedules.
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		Weather: DefaultWeatherSchedule,
		Health:  DefaultHealthSchedule,
	}
}

// Package weather caches the live observation summary served by the feed
// origin so dashboard reads never wait on the upstream call.
package weather

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/microsafety/microsafety/internal/upstream"
)

// ErrProviderUnavailable is returned by Refresh when the source failed and no
// usable cached summary exists.
var ErrProviderUnavailable = errors.New("weather provider unavailable")

// Source fetches the current observation summary.
type Source interface {
	Weather(ctx context.Context) (upstream.Weather, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (upstream.Weather, error)

// Weather calls f(ctx).
func (f SourceFunc) Weather(ctx context.Context) (upstream.Weather, error) {
	return f(ctx)
}

// Summary is the cached observation plus its freshness.
type Summary struct {
	upstream.Weather
	FetchedAt time.Time `json:"fetched_at,omitzero"`
	Stale     bool      `json:"stale,omitempty"`
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Source of observations. Required.
	Source Source

	Logger zerolog.Logger

	// Clock drives cache expiry.
	// Default: real clock
	Clock clockwork.Clock

	// CacheTTL is how long a fetched summary is served without refetching.
	// Default: 10 minutes
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving an expired summary when the source fails.
	// Default: 1 hour
	StaleIfErrorTTL time.Duration
}

// DefaultServiceConfig returns the cache defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		CacheTTL:        10 * time.Minute,
		StaleIfErrorTTL: time.Hour,
	}
}

// Service serves the observation summary with caching.
type Service struct {
	source          Source
	logger          zerolog.Logger
	clock           clockwork.Clock
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration

	mu        sync.Mutex
	cached    *upstream.Weather
	fetchedAt time.Time
}

// NewService creates a weather service.
func NewService(cfg ServiceConfig) *Service {
	defaults := DefaultServiceConfig()
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}
	if cfg.StaleIfErrorTTL <= 0 {
		cfg.StaleIfErrorTTL = defaults.StaleIfErrorTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Service{
		source:          cfg.Source,
		logger:          cfg.Logger,
		clock:           cfg.Clock,
		cacheTTL:        cfg.CacheTTL,
		staleIfErrorTTL: cfg.StaleIfErrorTTL,
	}
}

// Current returns the cached summary, refetching once it has expired.
// When the source is down and nothing usable is cached the summary reports
// Available=false.
func (s *Service) Current(ctx context.Context) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.clock.Since(s.fetchedAt) < s.cacheTTL {
		return Summary{Weather: *s.cached, FetchedAt: s.fetchedAt}
	}

	summary, err := s.fetchLocked(ctx)
	if err != nil {
		return Summary{}
	}
	return summary
}

// Refresh fetches unconditionally. A failed fetch keeps the previous summary.
func (s *Service) Refresh(ctx context.Context) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchLocked(ctx)
}

// Invalidate drops the cached summary.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
	s.fetchedAt = time.Time{}
}

func (s *Service) fetchLocked(ctx context.Context) (Summary, error) {
	w, err := s.source.Weather(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch weather")

		if s.cached != nil && s.clock.Since(s.fetchedAt) < s.staleIfErrorTTL {
			s.logger.Warn().
				Time("fetched_at", s.fetchedAt).
				Msg("serving stale weather data due to provider error")
			return Summary{Weather: *s.cached, FetchedAt: s.fetchedAt, Stale: true}, nil
		}
		return Summary{}, errors.Join(ErrProviderUnavailable, err)
	}

	// An unavailable report is cached like any other so a down observation
	// provider is not hammered every read.
	s.cached = &w
	s.fetchedAt = s.clock.Now()

	s.logger.Debug().
		Bool("available", w.Available).
		Msg("weather refreshed")

	return Summary{Weather: w, FetchedAt: s.fetchedAt}, nil
}

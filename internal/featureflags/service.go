package featureflags

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger

	// CacheTTL is how long a full read of the repository is reused.
	// Default: 30 seconds
	CacheTTL time.Duration

	// Clock drives cache expiry and update stamps.
	// Default: real clock
	Clock clockwork.Clock
}

// Service evaluates flags with a short-lived cache. Repository failures fall
// back to the last cached value, then to the defaults, so a flag store outage
// never turns a switch on.
type Service struct {
	repo     Repository
	logger   zerolog.Logger
	cacheTTL time.Duration
	clock    clockwork.Clock

	mu          sync.RWMutex
	cache       map[string]*Flag
	cacheExpiry time.Time
}

// NewService creates a new feature flag service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Service{
		repo:     cfg.Repository,
		logger:   cfg.Logger,
		cacheTTL: cfg.CacheTTL,
		clock:    cfg.Clock,
	}
}

// IsEnabled reports whether the flag is on.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	return s.flags(ctx)[key].On()
}

// All returns every well-known flag, sorted by key.
func (s *Service) All(ctx context.Context) []Flag {
	flags := s.flags(ctx)
	out := make([]Flag, 0, len(flags))
	for _, f := range flags {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Set stores a flag and drops the cache so the change applies on the next read.
func (s *Service) Set(ctx context.Context, key string, enabled bool) error {
	if !Known(key) {
		return fmt.Errorf("%w: %s", ErrFlagNotFound, key)
	}

	flag := &Flag{Key: key, Enabled: enabled, UpdatedAt: s.clock.Now().UTC()}
	if err := s.repo.SetFlag(ctx, flag); err != nil {
		return fmt.Errorf("storing feature flag %s: %w", key, err)
	}

	s.mu.Lock()
	s.cacheExpiry = time.Time{}
	s.mu.Unlock()

	s.logger.Info().Str("flag", key).Bool("enabled", enabled).Msg("feature flag changed")
	return nil
}

// Apply stores each override. It is used at startup to seed the repository.
func (s *Service) Apply(ctx context.Context, overrides map[string]bool) error {
	var errs []error
	for key, enabled := range overrides {
		if err := s.Set(ctx, key, enabled); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) flags(ctx context.Context) map[string]*Flag {
	now := s.clock.Now()

	s.mu.RLock()
	if s.cache != nil && now.Before(s.cacheExpiry) {
		cached := s.cache
		s.mu.RUnlock()
		return cached
	}
	s.mu.RUnlock()

	stored, err := s.repo.GetAllFlags(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load feature flags, using last known values")
		if s.cache != nil {
			return s.cache
		}
		return DefaultFlags()
	}

	merged := DefaultFlags()
	for k, f := range stored {
		if Known(k) {
			merged[k] = f
		}
	}
	s.cache = merged
	s.cacheExpiry = now.Add(s.cacheTTL)
	return merged
}

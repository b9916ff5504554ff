package alerting

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/microsafety/microsafety/internal/featureflags"
	"github.com/microsafety/microsafety/internal/feed"
	"github.com/microsafety/microsafety/internal/observability"
)

// DispatcherConfig holds configuration for the alert dispatcher.
type DispatcherConfig struct {
	// Sink receives new alerts. Required.
	Sink Sink

	Logger  zerolog.Logger
	Metrics *observability.Metrics

	// Flags can pause fan-out at runtime. Optional.
	Flags *featureflags.Service

	// PublishTimeout bounds one Publish call.
	// Default: 10 seconds
	PublishTimeout time.Duration
}

// Dispatcher publishes each active alert id once. An id that drops out of
// the feed and later reappears is published again.
type Dispatcher struct {
	sink    Sink
	logger  zerolog.Logger
	metrics *observability.Metrics
	flags   *featureflags.Service
	timeout time.Duration

	// Owned by the goroutine calling Observe.
	seen map[string]struct{}
}

// NewDispatcher creates an alert dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 10 * time.Second
	}
	return &Dispatcher{
		sink:    cfg.Sink,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		flags:   cfg.Flags,
		timeout: cfg.PublishTimeout,
		seen:    make(map[string]struct{}),
	}
}

// Observe publishes the snapshot's alerts that are active and not yet
// published. It returns how many were published. On a sink error or while
// fan-out is paused nothing is marked published, so the next snapshot retries.
func (d *Dispatcher) Observe(ctx context.Context, snap *feed.Snapshot) (int, error) {
	if snap == nil {
		return 0, nil
	}

	present := make(map[string]struct{}, len(snap.Alerts))
	var fresh []feed.Alert
	for _, a := range snap.Alerts {
		present[a.ID] = struct{}{}
		if !a.Active {
			continue
		}
		if _, ok := d.seen[a.ID]; ok {
			continue
		}
		fresh = append(fresh, a)
	}

	for id := range d.seen {
		if _, ok := present[id]; !ok {
			delete(d.seen, id)
		}
	}

	if len(fresh) == 0 {
		return 0, nil
	}
	if d.flags != nil && d.flags.IsEnabled(ctx, featureflags.FlagPauseAlertFanout) {
		d.logger.Debug().Int("alerts", len(fresh)).Msg("alert fan-out paused")
		return 0, nil
	}

	pctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.sink.Publish(pctx, fresh); err != nil {
		d.logger.Error().Err(err).Int("alerts", len(fresh)).Msg("failed to publish alerts")
		return 0, err
	}

	for _, a := range fresh {
		d.seen[a.ID] = struct{}{}
		if d.metrics != nil {
			d.metrics.AlertsPublished.WithLabelValues(string(a.Severity)).Inc()
		}
	}

	d.logger.Info().Int("alerts", len(fresh)).Int64("tick", snap.Tick).Msg("published new alerts")
	return len(fresh), nil
}

// Run observes every state update until the channel closes or ctx is done.
func (d *Dispatcher) Run(ctx context.Context, updates <-chan feed.State) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st, ok := <-updates:
			if !ok {
				return nil
			}
			_, _ = d.Observe(ctx, st.Snapshot)
		}
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/microsafety/microsafety/internal/alerting"
	"github.com/microsafety/microsafety/internal/config"
	"github.com/microsafety/microsafety/internal/database"
	"github.com/microsafety/microsafety/internal/featureflags"
	"github.com/microsafety/microsafety/internal/feed"
	"github.com/microsafety/microsafety/internal/feed/kafkafeed"
	"github.com/microsafety/microsafety/internal/feed/pubsubfeed"
	"github.com/microsafety/microsafety/internal/feed/wsfeed"
	"github.com/microsafety/microsafety/internal/observability"
	"github.com/microsafety/microsafety/internal/provider/resilience"
	"github.com/microsafety/microsafety/internal/session"
	"github.com/microsafety/microsafety/internal/upstream"
)

// loadConfig reads the environment and applies any flags that were set.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	if flags.transport != "" {
		_ = os.Setenv("FEED_TRANSPORT", flags.transport)
	}
	if flags.feedURL != "" {
		_ = os.Setenv("FEED_URL", flags.feedURL)
	}
	if flags.upstreamURL != "" {
		_ = os.Setenv("UPSTREAM_BASE_URL", flags.upstreamURL)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.LogFormat = flags.logFormat
	}
	return cfg, nil
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	if strings.EqualFold(cfg.LogFormat, "console") {
		w = zerolog.ConsoleWriter{Out: w}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()
}

// newDialer builds the feed dialer for the configured transport. The returned
// closer releases transport clients and is never nil.
func newDialer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (feed.Dialer, io.Closer, error) {
	switch cfg.Feed.Transport {
	case config.TransportWebSocket:
		d, err := wsfeed.NewDialer(wsfeed.Config{
			URL:        cfg.Feed.URL,
			HTTPClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("url", d.URL()).Msg("using websocket feed")
		return d, nopCloser{}, nil

	case config.TransportKafka:
		d, err := kafkafeed.NewDialer(kafkafeed.Config{
			Brokers: cfg.Feed.KafkaBrokers,
			Topic:   cfg.Feed.KafkaTopic,
			GroupID: cfg.Feed.KafkaGroupID,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Strs("brokers", cfg.Feed.KafkaBrokers).Str("topic", cfg.Feed.KafkaTopic).Msg("using kafka feed")
		return d, nopCloser{}, nil

	case config.TransportPubSub:
		d, err := pubsubfeed.NewDialer(ctx, pubsubfeed.Config{
			ProjectID:        cfg.Feed.PubSubProjectID,
			SubscriptionName: cfg.Feed.PubSubSubscription,
			Logger:           logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return d, d, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", config.ErrInvalidTransport, cfg.Feed.Transport)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newUpstream builds the origin REST client. Endpoint health lands in
// registry when it is non-nil.
func newUpstream(cfg *config.Config, registry *resilience.Registry, metrics *observability.Metrics, logger zerolog.Logger) (*upstream.Client, error) {
	return upstream.NewClient(upstream.Config{
		BaseURL:   cfg.Upstream.BaseURL,
		Timeout:   cfg.Upstream.Timeout,
		Registry:  registry,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Logger:    logger,
		Metrics:   metrics,
	})
}

// stores holds the session and feature flag stores selected by the config.
type stores struct {
	sessions session.Repository
	flags    featureflags.Repository
	close    func()
}

// openStores opens the configured session store. Flags share the postgres
// pool when there is one and live in memory otherwise.
func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		logger.Warn().Msg("using in-memory session store - answers are lost on restart")
		return &stores{
			sessions: session.NewInMemoryRepository(),
			flags:    featureflags.NewInMemoryRepository(),
			close:    func() {},
		}, nil

	case config.StoreSQLite:
		repo, err := session.OpenSQLite(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", cfg.Store.SQLitePath).Msg("sqlite session store opened")
		return &stores{
			sessions: repo,
			flags:    featureflags.NewInMemoryRepository(),
			close: func() {
				if err := repo.Close(); err != nil {
					logger.Error().Err(err).Msg("closing sqlite session store")
				}
			},
		}, nil

	case config.StorePostgres:
		pool, err := database.Connect(ctx, cfg.Store.Database)
		if err != nil {
			return nil, err
		}
		repo := session.NewPostgresRepository(pool)
		flags := featureflags.NewPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		if err := flags.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info().
			Str("host", cfg.Store.Database.Host).
			Str("database", cfg.Store.Database.Database).
			Msg("postgres session store connected")
		return &stores{sessions: repo, flags: flags, close: pool.Close}, nil
	}
	return nil, fmt.Errorf("%w: %q", config.ErrInvalidStore, cfg.Store.Driver)
}

// errNoSink is returned by newAlertSink when alert fan-out is disabled.
var errNoSink = errors.New("alert sink disabled")

func newAlertSink(cfg *config.Config, logger zerolog.Logger) (alerting.Sink, error) {
	switch cfg.Alerts.Sink {
	case config.AlertSinkNone:
		return nil, errNoSink
	case config.AlertSinkLog:
		return alerting.NewLogSink(logger), nil
	case config.AlertSinkKafka:
		return alerting.NewKafkaSink(alerting.KafkaConfig{
			Brokers: cfg.Alerts.Brokers,
			Topic:   cfg.Alerts.Topic,
		})
	}
	return nil, fmt.Errorf("%w: %q", config.ErrInvalidAlertSink, cfg.Alerts.Sink)
}

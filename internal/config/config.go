// Package config loads service configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/microsafety/microsafety/internal/database"
	"github.com/microsafety/microsafety/internal/featureflags"
	"github.com/microsafety/microsafety/internal/feed"
	"github.com/microsafety/microsafety/internal/worker"
)

// Feed transports.
const (
	TransportWebSocket = "ws"
	TransportKafka     = "kafka"
	TransportPubSub    = "pubsub"
)

// Session store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Alert sinks.
const (
	AlertSinkNone  = "none"
	AlertSinkLog   = "log"
	AlertSinkKafka = "kafka"
)

var (
	ErrInvalidTransport = errors.New("invalid feed transport")
	ErrInvalidStore     = errors.New("invalid session store driver")
	ErrInvalidAlertSink = errors.New("invalid alert sink")
	ErrMissingSetting   = errors.New("missing required setting")
)

// Config is the complete service configuration.
type Config struct {
	Environment string
	LogLevel    string
	LogFormat   string
	HTTPPort    string
	JWTSecret   string
	RequireTLS  bool

	// TriggerSubscription is the Pub/Sub subscription carrying on-demand
	// refresh triggers. Empty disables the trigger handler.
	TriggerSubscription string

	// FeatureFlags are applied to the flag store at startup, from
	// FEATURE_FLAGS as comma-separated key[=bool] pairs.
	FeatureFlags map[string]bool

	Feed      FeedConfig
	Upstream  UpstreamConfig
	Store     StoreConfig
	Alerts    AlertConfig
	Schedules worker.ScheduleConfig
	Telemetry TelemetryConfig
}

// FeedConfig selects and configures the live feed transport.
type FeedConfig struct {
	// Transport is one of ws, kafka or pubsub.
	// Default: ws
	Transport string

	// URL is the origin base or /ws/live URL for the ws transport.
	// Default: ws://localhost:8000/ws/live
	URL string

	// ReconnectDelay is the wait between a disconnect and the next dial.
	// Default: 2 seconds
	ReconnectDelay time.Duration

	KafkaBrokers []string
	// Default: microsafety.snapshots
	KafkaTopic   string
	KafkaGroupID string

	PubSubProjectID    string
	PubSubSubscription string
}

// UpstreamConfig configures the origin REST client.
type UpstreamConfig struct {
	// Default: http://localhost:8000
	BaseURL string
	// Default: 10 seconds
	Timeout time.Duration
}

// StoreConfig selects the session store.
type StoreConfig struct {
	// Driver is one of memory, sqlite or postgres.
	// Default: memory
	Driver string
	// Default: microsafety.db
	SQLitePath string
	Database   database.Config
}

// AlertConfig selects where newly active alerts are published.
type AlertConfig struct {
	// Sink is one of none, log or kafka.
	// Default: log
	Sink    string
	Brokers []string
	// Default: microsafety.alerts
	Topic string
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled bool
	// Default: localhost:4317
	OTLPEndpoint string
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	overrides, err := featureflags.ParseOverrides(getEnvList("FEATURE_FLAGS"))
	if err != nil {
		return nil, fmt.Errorf("FEATURE_FLAGS: %w", err)
	}

	cfg := &Config{
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:   getEnvOrDefault("LOG_FORMAT", "json"),
		HTTPPort:    getEnvOrDefault("HTTP_PORT", "8080"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		RequireTLS:  getEnvBool("REQUIRE_TLS", false),

		TriggerSubscription: os.Getenv("WORKER_TRIGGER_SUBSCRIPTION"),
		FeatureFlags:        overrides,

		Feed: FeedConfig{
			Transport:          strings.ToLower(getEnvOrDefault("FEED_TRANSPORT", TransportWebSocket)),
			URL:                getEnvOrDefault("FEED_URL", "ws://localhost:8000/ws/live"),
			ReconnectDelay:     getEnvDuration("FEED_RECONNECT_DELAY", feed.DefaultReconnectDelay),
			KafkaBrokers:       getEnvList("KAFKA_BROKERS"),
			KafkaTopic:         getEnvOrDefault("KAFKA_TOPIC", "microsafety.snapshots"),
			KafkaGroupID:       os.Getenv("KAFKA_GROUP_ID"),
			PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
			PubSubSubscription: os.Getenv("PUBSUB_SUBSCRIPTION"),
		},

		Upstream: UpstreamConfig{
			BaseURL: getEnvOrDefault("UPSTREAM_BASE_URL", "http://localhost:8000"),
			Timeout: getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		},

		Store: StoreConfig{
			Driver:     strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreMemory)),
			SQLitePath: getEnvOrDefault("SQLITE_PATH", "microsafety.db"),
			Database:   databaseFromEnv(),
		},

		Alerts: AlertConfig{
			Sink:    strings.ToLower(getEnvOrDefault("ALERT_SINK", AlertSinkLog)),
			Brokers: getEnvList("KAFKA_BROKERS"),
			Topic:   getEnvOrDefault("ALERT_TOPIC", "microsafety.alerts"),
		},

		Schedules: worker.ScheduleConfig{
			Weather: getEnvOrDefault("WEATHER_REFRESH_SCHEDULE", worker.DefaultWeatherSchedule),
			Health:  getEnvOrDefault("HEALTH_CHECK_SCHEDULE", worker.DefaultHealthSchedule),
		},

		Telemetry: TelemetryConfig{
			Enabled:      getEnvBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the enumerated settings and the settings each choice requires.
func (c *Config) Validate() error {
	switch c.Feed.Transport {
	case TransportWebSocket:
		if c.Feed.URL == "" {
			return fmt.Errorf("%w: FEED_URL", ErrMissingSetting)
		}
	case TransportKafka:
		if len(c.Feed.KafkaBrokers) == 0 {
			return fmt.Errorf("%w: KAFKA_BROKERS", ErrMissingSetting)
		}
	case TransportPubSub:
		if c.Feed.PubSubProjectID == "" || c.Feed.PubSubSubscription == "" {
			return fmt.Errorf("%w: PUBSUB_PROJECT_ID and PUBSUB_SUBSCRIPTION", ErrMissingSetting)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTransport, c.Feed.Transport)
	}

	if c.TriggerSubscription != "" && c.Feed.PubSubProjectID == "" {
		return fmt.Errorf("%w: PUBSUB_PROJECT_ID", ErrMissingSetting)
	}

	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("%w: JWT_SECRET", ErrMissingSetting)
	}

	switch c.Store.Driver {
	case StoreMemory, StoreSQLite, StorePostgres:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStore, c.Store.Driver)
	}

	switch c.Alerts.Sink {
	case AlertSinkNone, AlertSinkLog:
	case AlertSinkKafka:
		if len(c.Alerts.Brokers) == 0 {
			return fmt.Errorf("%w: KAFKA_BROKERS", ErrMissingSetting)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAlertSink, c.Alerts.Sink)
	}

	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func databaseFromEnv() database.Config {
	def := database.DefaultConfig()
	return database.Config{
		URL:             os.Getenv("DATABASE_URL"),
		Host:            getEnvOrDefault("DB_HOST", def.Host),
		Port:            getEnvInt("DB_PORT", def.Port),
		User:            getEnvOrDefault("DB_USER", def.User),
		Password:        getEnvOrDefault("DB_PASSWORD", def.Password),
		Database:        getEnvOrDefault("DB_NAME", def.Database),
		SSLMode:         getEnvOrDefault("DB_SSL_MODE", def.SSLMode),
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", def.MaxOpenConns),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", def.MaxIdleConns),
		ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", def.ConnMaxLifetime),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Package upstream is the request/response client for the feed origin's REST
// endpoints: point-in-time lists, weather, atmospheric data and scenario control.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/microsafety/microsafety/internal/feed"
	"github.com/microsafety/microsafety/internal/observability"
	"github.com/microsafety/microsafety/internal/provider/resilience"
	"github.com/microsafety/microsafety/internal/telemetry"
)

const (
	// DefaultTopRiskLimit is used when the caller passes a non-positive limit.
	DefaultTopRiskLimit = 5
	// MaxTopRiskLimit is the largest limit the origin accepts.
	MaxTopRiskLimit = 15

	maxResponseBytes = 8 << 20
	tracerName       = "github.com/microsafety/microsafety/internal/upstream"
)

var (
	// ErrUnexpectedStatus wraps non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected upstream status")

	// ErrScenarioRejected is returned when the origin refuses a preset.
	ErrScenarioRejected = errors.New("scenario rejected by feed origin")
)

// StatusError carries the status of a failed call.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s: %d", e.Op, ErrUnexpectedStatus, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// Config holds configuration for the upstream client.
type Config struct {
	// BaseURL of the feed origin, e.g. http://localhost:8000. Required.
	BaseURL string

	// Timeout bounds each attempt.
	// Default: 10 seconds
	Timeout time.Duration

	// NoRetries sends every request exactly once.
	NoRetries bool

	// Registry receives endpoint health. Optional.
	Registry *resilience.Registry

	// Transport overrides the HTTP transport.
	Transport http.RoundTripper

	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// Client calls the feed origin.
type Client struct {
	baseURL *url.URL
	http    *resilience.Client
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewClient creates an upstream client.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid upstream base url %q", cfg.BaseURL)
	}

	rc := resilience.DefaultClientConfig("feed-rest")
	if cfg.Timeout > 0 {
		rc.Timeout = cfg.Timeout
	}
	rc.NoRetries = cfg.NoRetries
	rc.Registry = cfg.Registry
	rc.Transport = cfg.Transport

	return &Client{
		baseURL: base,
		http:    resilience.NewClient(rc),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}, nil
}

// Sensors returns the latest reading of every sensor.
func (c *Client) Sensors(ctx context.Context) ([]feed.Sensor, error) {
	var out []feed.Sensor
	if err := c.call(ctx, "sensors", http.MethodGet, "/api/sensors", &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// RiskMap returns every hazard record.
func (c *Client) RiskMap(ctx context.Context) ([]feed.HazardRecord, error) {
	var out []feed.HazardRecord
	if err := c.call(ctx, "risk_map", http.MethodGet, "/api/risk-map", &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// ClampTopRiskLimit maps a requested limit onto 1..15, defaulting non-positive values to 5.
func ClampTopRiskLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultTopRiskLimit
	case limit > MaxTopRiskLimit:
		return MaxTopRiskLimit
	default:
		return limit
	}
}

// TopRisk returns the highest combined-risk records, at most limit of them.
func (c *Client) TopRisk(ctx context.Context, limit int) ([]feed.HazardRecord, error) {
	q := url.Values{"limit": {strconv.Itoa(ClampTopRiskLimit(limit))}}

	var out []feed.HazardRecord
	if err := c.call(ctx, "top_risk", http.MethodGet, "/api/top-risk?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// Alerts returns the current alert list.
func (c *Client) Alerts(ctx context.Context) ([]feed.Alert, error) {
	var out []feed.Alert
	if err := c.call(ctx, "alerts", http.MethodGet, "/api/alerts", &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// ClearAlerts asks the origin to clear its alerts and returns the list left afterwards.
func (c *Client) ClearAlerts(ctx context.Context) ([]feed.Alert, error) {
	var out []feed.Alert
	if err := c.call(ctx, "clear_alerts", http.MethodPost, "/api/alerts/clear", &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// Weather is the live observation summary. Only Available is meaningful
// when the observation provider is down.
type Weather struct {
	Available  bool    `json:"available"`
	TempF      float64 `json:"temp_f,omitempty"`
	FeelsLikeF float64 `json:"feelslike_f,omitempty"`
	Humidity   float64 `json:"humidity,omitempty"`
	WindMph    float64 `json:"wind_mph,omitempty"`
	VisFt      float64 `json:"vis_ft,omitempty"`
}

// Weather returns the live observation summary.
func (c *Client) Weather(ctx context.Context) (Weather, error) {
	var out Weather
	if err := c.call(ctx, "weather", http.MethodGet, "/api/weather", &out); err != nil {
		return Weather{}, err
	}
	return out, nil
}

// Atmospheric returns the boundary layer conditions, or nil when the origin
// has none yet.
func (c *Client) Atmospheric(ctx context.Context) (*feed.Atmospheric, error) {
	var raw json.RawMessage
	if err := c.call(ctx, "atmospheric", http.MethodGet, "/api/sorcerer", &raw); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("{}")) || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var atm feed.Atmospheric
	if err := json.Unmarshal(trimmed, &atm); err != nil {
		return nil, fmt.Errorf("decoding atmospheric: %w", err)
	}
	return &atm, nil
}

// ScenarioResult is the origin's confirmation of a preset change.
type ScenarioResult struct {
	Scenario    feed.Scenario `json:"scenario"`
	Description string        `json:"description"`
}

// SetScenario switches the origin to a preset. Unknown names are rejected
// locally with feed.ErrUnknownScenario.
func (c *Client) SetScenario(ctx context.Context, preset feed.Scenario) (ScenarioResult, error) {
	if !preset.Valid() {
		return ScenarioResult{}, fmt.Errorf("%w: %q", feed.ErrUnknownScenario, preset)
	}

	var out struct {
		ScenarioResult
		Error string `json:"error"`
	}
	path := "/api/scenario/" + url.PathEscape(string(preset))
	if err := c.call(ctx, "set_scenario", http.MethodPost, path, &out); err != nil {
		return ScenarioResult{}, err
	}
	if out.Error != "" {
		return ScenarioResult{}, fmt.Errorf("%w: %s", ErrScenarioRejected, out.Error)
	}
	if out.Description == "" {
		out.Description = preset.Description()
	}
	return out.ScenarioResult, nil
}

// Health is the origin's liveness report.
type Health struct {
	Status   string        `json:"status"`
	Scenario feed.Scenario `json:"scenario"`
	Tick     int64         `json:"tick"`
}

// Health returns the origin's liveness report.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	if err := c.call(ctx, "health", http.MethodGet, "/api/health", &out); err != nil {
		return Health{}, err
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, op, method, path string, out any) (err error) {
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "upstream."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.request.method", method)),
	)
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		c.observe(op, err)
		c.logger.Debug().
			Str("op", op).
			Dur("duration", time.Since(start)).
			Err(err).
			Msg("upstream call")
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		var serverErr *resilience.ServerError
		if errors.As(err, &serverErr) {
			return &StatusError{Op: op, StatusCode: serverErr.StatusCode}
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}

func (c *Client) observe(op string, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.metrics.UpstreamRequests.WithLabelValues(op, outcome).Inc()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

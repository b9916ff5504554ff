package middleware

import (
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Surfaces group routes by who they serve. Viewer and control routes carry
// a session token; the rest are public.
const (
	SurfaceOps       = "ops"
	SurfaceSession   = "session"
	SurfaceLive      = "live"
	SurfaceControl   = "control"
	SurfaceViewer    = "viewer"
	SurfaceUnmatched = "unmatched"
)

// Surface classifies a chi route pattern.
func Surface(route string) string {
	switch {
	case route == "/healthz", route == "/readyz", route == "/metrics", route == "/v1/status":
		return SurfaceOps
	case route == "/v1/sessions":
		return SurfaceSession
	case route == "/v1/alerts/clear", strings.HasPrefix(route, "/v1/scenario/"):
		return SurfaceControl
	case route == "/v1/me", strings.HasPrefix(route, "/v1/me/"):
		return SurfaceViewer
	case strings.HasPrefix(route, "/v1/"):
		return SurfaceLive
	default:
		return SurfaceUnmatched
	}
}

// Metrics holds the OpenTelemetry HTTP server instruments.
type Metrics struct {
	duration metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
	size     metric.Int64Histogram
}

// NewMetrics creates the HTTP server instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(instrumentationName)

	duration, err := meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of dashboard API requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	inFlight, err := meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("Dashboard API requests being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	size, err := meter.Int64Histogram("http.server.response.body.size",
		metric.WithDescription("Size of dashboard API response bodies"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{duration: duration, inFlight: inFlight, size: size}, nil
}

// Middleware records duration and body size per route and surface. The
// duration histogram's count doubles as the request total.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()
			method := metric.WithAttributes(attribute.String("http.request.method", r.Method))

			m.inFlight.Add(ctx, 1, method)
			defer m.inFlight.Add(ctx, -1, method)

			wrapped := newStatusRecorder(w)
			next.ServeHTTP(wrapped, r)

			route := routePattern(r)
			attrs := metric.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("microsafety.surface", Surface(route)),
				attribute.Int("http.response.status_code", wrapped.statusCode),
			)
			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			m.size.Record(ctx, wrapped.written, attrs)
		})
	}
}

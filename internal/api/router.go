// Package api provides the HTTP API of the microsafety dashboard.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/microsafety/microsafety/internal/api/handler"
	"github.com/microsafety/microsafety/internal/api/middleware"
	"github.com/microsafety/microsafety/internal/auth"
	"github.com/microsafety/microsafety/internal/dashboard"
	"github.com/microsafety/microsafety/internal/featureflags"
	"github.com/microsafety/microsafety/internal/observability"
	"github.com/microsafety/microsafety/internal/provider/resilience"
)

// DefaultServiceName names the server in traces.
const DefaultServiceName = "microsafety-api"

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string

	// Metrics records OTel HTTP metrics. Optional.
	Metrics *middleware.Metrics
	// Prom backs GET /metrics. The route is not mounted when nil.
	Prom *observability.Metrics

	AuthService *auth.Service
	Controller  *dashboard.Controller

	// Feed reports connectivity for the ops endpoints.
	Feed      handler.FeedState
	Transport string
	Providers *resilience.Registry
	Jobs      handler.JobStats

	// Flags switches features off at runtime. Optional.
	Flags *featureflags.Service

	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))

	opsCfg := handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Feed:      cfg.Feed,
		Transport: cfg.Transport,
		Providers: cfg.Providers,
		Jobs:      cfg.Jobs,
	}
	var flags middleware.FlagChecker
	if cfg.Flags != nil {
		opsCfg.Flags = cfg.Flags
		flags = cfg.Flags
	}
	opsHandler := handler.NewOpsHandler(opsCfg)
	sessionHandler := handler.NewSessionHandler(cfg.AuthService, cfg.Logger)
	meHandler := handler.NewMeHandler(cfg.Controller, cfg.Logger)
	liveHandler := handler.NewLiveHandler(cfg.Controller, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.AuthService)

	sessionRateLimit := middleware.RateLimitByIP(middleware.SessionRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)
	ownerRateLimit := middleware.RateLimitByOwner(middleware.StandardRateLimit)
	controlRateLimit := middleware.RateLimitByOwner(middleware.ControlRateLimit)

	controlsGate := middleware.DisabledBy(flags, featureflags.FlagDisableOriginControls, "origin controls are switched off")
	assistantGate := middleware.DisabledBy(flags, featureflags.FlagDisableAssistant, "the assistant is switched off")

	// Probes stay outside /v1 and skip rate limiting.
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Get("/healthz", opsHandler.HealthCheck)
		r.Get("/readyz", opsHandler.ReadinessCheck)
	})
	if cfg.Prom != nil {
		r.Handle("/metrics", cfg.Prom.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)

		r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)

		r.With(sessionRateLimit).Post("/sessions", sessionHandler.StartSession)

		// Shared live state (public)
		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/questions", handler.Questions)
			r.Get("/scenarios", handler.Scenarios)
			r.Get("/live", liveHandler.Live)
			r.Get("/live/top-risk", liveHandler.TopRisk)
			r.Get("/live/banner", liveHandler.Banner)
			r.Get("/alerts", liveHandler.Alerts)
			r.Get("/weather", liveHandler.Weather)
		})

		// Origin controls change what every viewer sees.
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(controlRateLimit)
			r.Use(controlsGate)
			r.Post("/alerts/clear", liveHandler.ClearAlerts)
			r.Post("/scenario/{preset}", liveHandler.SetScenario)
		})

		r.Route("/me", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(ownerRateLimit)

			r.Get("/dashboard", meHandler.Dashboard)

			r.Route("/answers", func(r chi.Router) {
				r.Get("/", meHandler.GetAnswers)
				r.With(middleware.RequireJSON).Put("/", meHandler.PutAnswers)
				r.Delete("/", meHandler.ResetAnswers)
				r.With(middleware.RequireJSON).Put("/{questionId}", meHandler.PutAnswer)
			})

			r.Get("/profile", meHandler.GetProfile)
			r.Get("/transcript", meHandler.GetTranscript)
			r.With(assistantGate).Post("/insights", meHandler.GenerateInsights)
			r.With(assistantGate, middleware.RequireJSON).Post("/assistant", meHandler.Ask)
		})
	})

	return r
}

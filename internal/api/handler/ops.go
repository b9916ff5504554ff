package handler

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/microsafety/microsafety/internal/api/models"
	"github.com/microsafety/microsafety/internal/api/response"
	"github.com/microsafety/microsafety/internal/featureflags"
	"github.com/microsafety/microsafety/internal/feed"
	"github.com/microsafety/microsafety/internal/provider/resilience"
)

// FeedState reports the live feed connection.
type FeedState interface {
	State() feed.State
}

// JobStats reports background job counters.
type JobStats interface {
	MetricsSnapshot() map[string]any
}

// FlagLister lists the runtime feature flags.
type FlagLister interface {
	All(ctx context.Context) []featureflags.Flag
}

// OpsConfig holds the dependencies of the operational endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Feed is required.
	Feed FeedState
	// Transport names the feed transport in status output.
	Transport string

	// Providers is optional.
	Providers *resilience.Registry
	// Jobs is optional.
	Jobs JobStats
	// Flags is optional.
	Flags FlagLister

	// Clock stamps responses.
	// Default: real clock
	Clock clockwork.Clock
}

// OpsHandler serves liveness, readiness and status.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &OpsHandler{cfg: cfg}
}

func (h *OpsHandler) now() models.Timestamp {
	return models.Timestamp(h.cfg.Clock.Now())
}

// HealthCheck handles GET /healthz. The process is live while it answers.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, r, models.Health{
		Status: models.HealthStatusOK,
		Time:   h.now(),
		Details: map[string]any{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /readyz. The service is ready once it holds a
// snapshot; a dropped connection alone does not make it unready because the
// last snapshot keeps being served.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	st := h.cfg.Feed.State()
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   h.now(),
		Details: map[string]any{
			"feedConnected": st.Connected,
			"hasSnapshot":   st.Snapshot != nil,
		},
	}
	if st.Snapshot == nil {
		health.Status = models.HealthStatusFail
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}
	response.OK(w, r, health)
}

// SystemStatus handles GET /v1/status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	st := h.cfg.Feed.State()

	status := models.SystemStatus{
		Status:  models.HealthStatusOK,
		Time:    h.now(),
		Version: h.cfg.Version,
		Feed: models.FeedStatus{
			Transport: h.cfg.Transport,
			Connected: st.Connected,
			State:     st.Conn,
		},
		Providers: []resilience.Health{},
	}
	if st.Snapshot != nil {
		tick := st.Snapshot.Tick
		status.Feed.Scenario = st.Snapshot.Scenario
		status.Feed.Tick = &tick
	}
	if !st.Connected {
		status.Status = models.HealthStatusDegraded
	}

	if h.cfg.Providers != nil {
		status.Providers = h.cfg.Providers.All()
		for _, p := range status.Providers {
			if !p.Healthy() {
				status.Status = models.HealthStatusDegraded
			}
		}
	}
	if h.cfg.Jobs != nil {
		status.Jobs = h.cfg.Jobs.MetricsSnapshot()
	}
	if h.cfg.Flags != nil {
		status.Flags = make(map[string]bool)
		for _, f := range h.cfg.Flags.All(r.Context()) {
			status.Flags[f.Key] = f.Enabled
		}
	}

	response.OK(w, r, status)
}

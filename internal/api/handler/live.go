package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/microsafety/microsafety/internal/api/models"
	"github.com/microsafety/microsafety/internal/api/response"
	"github.com/microsafety/microsafety/internal/dashboard"
	"github.com/microsafety/microsafety/internal/feed"
	"github.com/microsafety/microsafety/internal/upstream"
)

// LiveHandler serves the shared live state and the origin controls.
type LiveHandler struct {
	dash   *dashboard.Controller
	logger zerolog.Logger
}

// NewLiveHandler creates a new LiveHandler.
func NewLiveHandler(dash *dashboard.Controller, logger zerolog.Logger) *LiveHandler {
	return &LiveHandler{dash: dash, logger: logger}
}

// Live handles GET /v1/live.
func (h *LiveHandler) Live(w http.ResponseWriter, r *http.Request) {
	response.OK(w, r, h.dash.Live())
}

// TopRisk handles GET /v1/live/top-risk?limit=N. Missing or non-numeric
// limits use the default; the rest are clamped to 1..15.
func (h *LiveHandler) TopRisk(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	limit = upstream.ClampTopRiskLimit(limit)

	response.OK(w, r, models.TopRiskResponse{
		Limit: limit,
		Risks: h.dash.TopRisks(limit),
	})
}

// Banner handles GET /v1/live/banner.
func (h *LiveHandler) Banner(w http.ResponseWriter, r *http.Request) {
	live := h.dash.Live()
	response.OK(w, r, models.BannerResponse{Active: live.Banner != nil, Banner: live.Banner})
}

// Alerts handles GET /v1/alerts.
func (h *LiveHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	alerts := h.dash.Live().Alerts
	if alerts == nil {
		alerts = []feed.Alert{}
	}
	response.OK(w, r, models.AlertsResponse{Alerts: alerts})
}

// ClearAlerts handles POST /v1/alerts/clear.
func (h *LiveHandler) ClearAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.dash.ClearAlerts(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, r, models.AlertsResponse{Alerts: alerts})
}

// Weather handles GET /v1/weather.
func (h *LiveHandler) Weather(w http.ResponseWriter, r *http.Request) {
	response.OK(w, r, models.NewWeatherResponse(h.dash.Weather(r.Context())))
}

// SetScenario handles POST /v1/scenario/{preset}.
func (h *LiveHandler) SetScenario(w http.ResponseWriter, r *http.Request) {
	preset, err := feed.ParseScenario(chi.URLParam(r, "preset"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.dash.SetScenario(r.Context(), preset)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, r, res)
}

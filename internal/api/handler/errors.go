// Package handler holds the HTTP handlers of the dashboard API.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/microsafety/microsafety/internal/api/middleware"
	"github.com/microsafety/microsafety/internal/api/models"
	"github.com/microsafety/microsafety/internal/api/response"
	"github.com/microsafety/microsafety/internal/dashboard"
	"github.com/microsafety/microsafety/internal/feed"
	"github.com/microsafety/microsafety/internal/provider/resilience"
	"github.com/microsafety/microsafety/internal/risk"
	"github.com/microsafety/microsafety/internal/upstream"
)

// writeError maps domain errors to problem responses. Anything unmapped is
// logged and reported as a 500 without its message.
func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, dashboard.ErrEmptyPrompt):
		response.BadRequest(w, r, "prompt must not be empty", []models.FieldError{
			{Field: "prompt", Message: "must not be empty", Code: "REQUIRED"},
		})
	case errors.Is(err, risk.ErrInvalidAnswer):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, feed.ErrUnknownScenario):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, risk.ErrUnknownQuestion):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, dashboard.ErrProfileIncomplete):
		response.Conflict(w, r, err.Error())
	case errors.Is(err, dashboard.ErrUpstreamNotEnabled),
		errors.Is(err, resilience.ErrCircuitOpen):
		response.ServiceUnavailable(w, r, err.Error())
	case errors.Is(err, upstream.ErrScenarioRejected),
		errors.Is(err, upstream.ErrUnexpectedStatus),
		errors.Is(err, context.DeadlineExceeded):
		log.Warn().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("feed origin call failed")
		response.BadGateway(w, r, "feed origin request failed")
	default:
		log.Error().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("request failed")
		response.InternalError(w, r, "internal server error")
	}
}

// ownerOrReject returns the authenticated owner, writing a 401 when the
// route was mounted without the auth middleware.
func ownerOrReject(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := middleware.GetOwnerID(r.Context())
	if owner == "" {
		response.Unauthorized(w, r, "session required")
		return "", false
	}
	return owner, true
}

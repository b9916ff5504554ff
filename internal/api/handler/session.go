package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/microsafety/microsafety/internal/api/middleware"
	"github.com/microsafety/microsafety/internal/api/response"
	"github.com/microsafety/microsafety/internal/auth"
)

// SessionHandler issues anonymous session tokens.
type SessionHandler struct {
	auth   *auth.Service
	logger zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(authService *auth.Service, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{auth: authService, logger: logger}
}

// StartSession handles POST /v1/sessions. A bearer token of an earlier
// session, even an expired one, is renewed for the same owner (200);
// otherwise a new owner is created (201).
func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	existing, _ := middleware.BearerToken(r)

	session, err := h.auth.StartSession(existing)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if session.Renewed {
		response.OK(w, r, session)
		return
	}
	h.logger.Info().Str("owner_id", session.OwnerID).Msg("session started")
	response.Created(w, r, session)
}

package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/microsafety/microsafety/internal/advisor"
	"github.com/microsafety/microsafety/internal/api/models"
	"github.com/microsafety/microsafety/internal/api/response"
	"github.com/microsafety/microsafety/internal/dashboard"
	"github.com/microsafety/microsafety/internal/risk"
)

// MeHandler serves the owner-scoped endpoints: answers, profile and the
// advisory transcript.
type MeHandler struct {
	dash   *dashboard.Controller
	logger zerolog.Logger
}

// NewMeHandler creates a new MeHandler.
func NewMeHandler(dash *dashboard.Controller, logger zerolog.Logger) *MeHandler {
	return &MeHandler{dash: dash, logger: logger}
}

// Dashboard handles GET /v1/me/dashboard - the complete owner view.
func (h *MeHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOrReject(w, r)
	if !ok {
		return
	}
	response.OK(w, r, h.dash.View(r.Context(), owner))
}

// GetAnswers handles GET /v1/me/answers.
func (h *MeHandler) GetAnswers(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOrReject(w, r)
	if !ok {
		return
	}
	response.OK(w, r, models.NewAnswersResponse(h.dash.Answers(r.Context(), owner)))
}

// PutAnswers handles PUT /v1/me/answers. The body is the full answer
// object; ids it leaves out become unknown.
func (h *MeHandler) PutAnswers(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOrReject(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, response.MaxBodyBytes))
	if err != nil {
		response.BadRequest(w, r, "request body too large", nil)
		return
	}
	answers, err := risk.ParseAnswersStrict(body)
	if err != nil {
		writeDecodeError(w, r, err)
		return
	}

	saved := h.dash.SetAnswers(r.Context(), owner, answers)
	response.OK(w, r, models.NewAnswersResponse(saved))
}

// PutAnswer handles PUT /v1/me/answers/{questionId}.
func (h *MeHandler) PutAnswer(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOrReject(w, r)
	if !ok {
		return
	}

	var req models.AnswerRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	id := risk.QuestionID(chi.URLParam(r, "questionId"))
	saved, err := h.dash.SetAnswer(r.Context(), owner, id, req.Answer)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, r, models.NewAnswersResponse(saved))
}

// ResetAnswers handles DELETE /v1/me/answers.
func (h *MeHandler) ResetAnswers(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOrReject(w, r)
	if !ok {
		return
	}
	response.OK(w, r, models.NewAnswersResponse(h.dash.ResetAnswers(r.Context(), owner)))
}

// GetProfile handles GET /v1/me/profile.
func (h *MeHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOrReject(w, r)
	if !ok {
		return
	}

	v := h.dash.View(r.Context(), owner)
	response.OK(w, r, models.ProfileResponse{
		Profile:  v.Profile,
		Heat:     v.Heat,
		Fog:      v.Fog,
		Dominant: v.Dominant,
		Advice:   v.Advice,
	})
}

// GetTranscript handles GET /v1/me/transcript.
func (h *MeHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOrReject(w, r)
	if !ok {
		return
	}

	messages := h.dash.Transcript(r.Context(), owner)
	response.OK(w, r, models.TranscriptResponse{
		Messages:      messages,
		LatestInsight: advisor.LatestInsight(messages),
	})
}

// GenerateInsights handles POST /v1/me/insights.
func (h *MeHandler) GenerateInsights(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOrReject(w, r)
	if !ok {
		return
	}

	insights, err := h.dash.GenerateInsights(r.Context(), owner)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, r, models.InsightsResponse{Insights: insights})
}

// Ask handles POST /v1/me/assistant.
func (h *MeHandler) Ask(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOrReject(w, r)
	if !ok {
		return
	}

	var req models.AssistantRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	reply, err := h.dash.Ask(r.Context(), owner, req.Prompt)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, r, models.AssistantResponse{Reply: reply})
}

// writeDecodeError reports a request body that failed to decode.
// Unknown question ids in a body are a validation error, not a missing
// resource.
func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		response.BadRequest(w, r, "invalid JSON body", nil)
	default:
		response.BadRequest(w, r, err.Error(), nil)
	}
}

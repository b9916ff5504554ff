package handler

import (
	"net/http"

	"github.com/microsafety/microsafety/internal/api/models"
	"github.com/microsafety/microsafety/internal/api/response"
	"github.com/microsafety/microsafety/internal/feed"
	"github.com/microsafety/microsafety/internal/risk"
)

// Questions handles GET /v1/questions.
func Questions(w http.ResponseWriter, r *http.Request) {
	response.OK(w, r, models.QuestionsResponse{Questions: risk.QuestionSet()})
}

// Scenarios handles GET /v1/scenarios.
func Scenarios(w http.ResponseWriter, r *http.Request) {
	presets := feed.Scenarios()
	out := models.ScenariosResponse{Scenarios: make([]models.ScenarioInfo, 0, len(presets))}
	for _, s := range presets {
		out.Scenarios = append(out.Scenarios, models.ScenarioInfo{Name: s, Description: s.Description()})
	}
	response.OK(w, r, out)
}

// Package models holds the request and response bodies of the dashboard API.
package models

import (
	"github.com/microsafety/microsafety/internal/advisor"
	"github.com/microsafety/microsafety/internal/display"
	"github.com/microsafety/microsafety/internal/feed"
	"github.com/microsafety/microsafety/internal/risk"
	"github.com/microsafety/microsafety/internal/weather"
)

// QuestionsResponse lists the profile questionnaire.
type QuestionsResponse struct {
	Questions []risk.Question `json:"questions"`
}

// AnswerRequest is the body of PUT /v1/me/answers/{questionId}.
// A null answer resets the question to unknown.
type AnswerRequest struct {
	Answer risk.Answer `json:"answer"`
}

// AnswersResponse carries the owner's full answer set.
type AnswersResponse struct {
	Answers  risk.Answers `json:"answers"`
	Complete bool         `json:"complete"`
}

// NewAnswersResponse wraps an answer set.
func NewAnswersResponse(a risk.Answers) AnswersResponse {
	return AnswersResponse{Answers: a, Complete: a.Complete()}
}

// ProfileResponse is the owner's personal risk profile with its labels.
type ProfileResponse struct {
	risk.Profile
	Heat     risk.Classification `json:"heat"`
	Fog      risk.Classification `json:"fog"`
	Dominant risk.Hazard         `json:"dominant"`
	Advice   *risk.RouteAdvice   `json:"advice,omitempty"`
}

// TranscriptResponse is the owner's chat transcript.
type TranscriptResponse struct {
	Messages      []advisor.Message `json:"messages"`
	LatestInsight string            `json:"latestInsight"`
}

// InsightsResponse lists the messages appended by POST /v1/me/insights.
type InsightsResponse struct {
	Insights []advisor.Message `json:"insights"`
}

// AssistantRequest is the body of POST /v1/me/assistant.
type AssistantRequest struct {
	Prompt string `json:"prompt"`
}

// AssistantResponse carries the assistant's reply.
type AssistantResponse struct {
	Reply advisor.Message `json:"reply"`
}

// TopRiskResponse lists the highest combined-risk intersections.
type TopRiskResponse struct {
	Limit int                 `json:"limit"`
	Risks []feed.HazardRecord `json:"risks"`
}

// BannerResponse is the emergency banner, if any.
type BannerResponse struct {
	Active bool            `json:"active"`
	Banner *display.Banner `json:"banner,omitempty"`
}

// AlertsResponse lists the effective alerts.
type AlertsResponse struct {
	Alerts []feed.Alert `json:"alerts"`
}

// WeatherResponse is the cached weather summary with display strings.
type WeatherResponse struct {
	weather.Summary
	Display *WeatherDisplay `json:"display,omitempty"`
}

// WeatherDisplay holds the summary formatted for the dashboard.
type WeatherDisplay struct {
	Temp       string `json:"temp"`
	FeelsLike  string `json:"feelsLike"`
	Visibility string `json:"visibility"`
}

// NewWeatherResponse formats s. Display is omitted while unavailable.
func NewWeatherResponse(s weather.Summary) WeatherResponse {
	resp := WeatherResponse{Summary: s}
	if s.Available {
		resp.Display = &WeatherDisplay{
			Temp:       display.FormatTemp(s.TempF),
			FeelsLike:  display.FormatTemp(s.FeelsLikeF),
			Visibility: display.FormatVisibility(s.VisFt),
		}
	}
	return resp
}

// ScenarioInfo describes one preset.
type ScenarioInfo struct {
	Name        feed.Scenario `json:"name"`
	Description string        `json:"description"`
}

// ScenariosResponse lists the presets the origin accepts.
type ScenariosResponse struct {
	Scenarios []ScenarioInfo `json:"scenarios"`
}

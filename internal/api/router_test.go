package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsafety/microsafety/internal/api"
	"github.com/microsafety/microsafety/internal/api/models"
	"github.com/microsafety/microsafety/internal/auth"
	"github.com/microsafety/microsafety/internal/dashboard"
	"github.com/microsafety/microsafety/internal/featureflags"
	"github.com/microsafety/microsafety/internal/feed"
	"github.com/microsafety/microsafety/internal/observability"
	"github.com/microsafety/microsafety/internal/risk"
	"github.com/microsafety/microsafety/internal/session"
	"github.com/microsafety/microsafety/internal/upstream"
	"github.com/microsafety/microsafety/internal/weather"
)

type fakeFeed struct {
	mu    sync.Mutex
	state feed.State
}

func (f *fakeFeed) State() feed.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state
	s.Snapshot = s.Snapshot.Clone()
	return s
}

func (f *fakeFeed) Subscribe() (<-chan feed.State, func()) {
	ch := make(chan feed.State, 1)
	ch <- f.State()
	return ch, func() {}
}

func (f *fakeFeed) publish(snap *feed.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = feed.State{Snapshot: snap, Connected: true, Conn: feed.StateConnected}
}

type fakeOrigin struct {
	mu       sync.Mutex
	cleared  []feed.Alert
	err      error
	scenario feed.Scenario
}

func (o *fakeOrigin) ClearAlerts(context.Context) ([]feed.Alert, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cleared, o.err
}

func (o *fakeOrigin) SetScenario(_ context.Context, preset feed.Scenario) (upstream.ScenarioResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return upstream.ScenarioResult{}, o.err
	}
	o.scenario = preset
	return upstream.ScenarioResult{Scenario: preset, Description: preset.Description()}, nil
}

type fixedWeather weather.Summary

func (w fixedWeather) Current(context.Context) weather.Summary { return weather.Summary(w) }

type testServer struct {
	handler http.Handler
	feed    *fakeFeed
	origin  *fakeOrigin
	prom    *observability.Metrics
	flags   *featureflags.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := zerolog.New(io.Discard)
	ts := &testServer{
		feed:   &fakeFeed{state: feed.State{Conn: feed.StateDisconnected}},
		origin: &fakeOrigin{},
		prom:   observability.NewMetricsForTesting(),
		flags: featureflags.NewService(featureflags.ServiceConfig{
			Repository: featureflags.NewInMemoryRepository(),
			Logger:     logger,
		}),
	}

	store := session.NewService(session.ServiceConfig{
		Repository: session.NewInMemoryRepository(),
		Logger:     logger,
		Metrics:    ts.prom,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = store.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	ctrl := dashboard.New(dashboard.Config{
		Feed:    ts.feed,
		Store:   store,
		Origin:  ts.origin,
		Weather: fixedWeather{Weather: upstream.Weather{Available: true, TempF: 101.4, FeelsLikeF: 108, VisFt: 7920}},
		Logger:  logger,
	})

	authService := auth.NewService(auth.ServiceConfig{
		JWTService: auth.NewJWTService(auth.JWTConfig{
			SigningKey: "test-secret-key-for-testing-only",
			Issuer:     "microsafety-test",
			Audience:   "microsafety-api",
		}),
	})

	ts.handler = api.NewRouter(api.RouterConfig{
		Version:     "test",
		BuildTime:   "2026-01-01T00:00:00Z",
		Logger:      logger,
		Prom:        ts.prom,
		AuthService: authService,
		Controller:  ctrl,
		Feed:        ts.feed,
		Transport:   "ws",
		Flags:       ts.flags,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) session(t *testing.T) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/v1/sessions", "", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var tok auth.TokenResponse
	decode(t, rec, &tok)
	return tok.AccessToken
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func hazards(n int) []feed.HazardRecord {
	out := make([]feed.HazardRecord, 0, n)
	for i := range n {
		out = append(out, feed.HazardRecord{
			NodeID:              fmt.Sprintf("n%02d", i),
			Name:                fmt.Sprintf("Node %d", i),
			Zone:                "central",
			HeatRisk:            float64(30 + i),
			FogRisk:             float64(60 - i),
			CombinedRisk:        float64(10 + 3*i),
			RiskLevel:           feed.RiskLevelModerate,
			ContributingFactors: []string{},
		})
	}
	return out
}

func warningAlert(id, msg string) feed.Alert {
	return feed.Alert{ID: id, Severity: feed.SeverityWarning, Message: msg, Active: true, Timestamp: time.Unix(0, 0).UTC()}
}

func allAnswered() string {
	parts := make([]string, 0, len(risk.QuestionSet()))
	for _, q := range risk.QuestionSet() {
		parts = append(parts, fmt.Sprintf("%q:%t", q.ID, q.ID == risk.QuestionDehydrateFast))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var health models.Health
	decode(t, rec, &health)
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestReadyz_RequiresSnapshot(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ts.feed.publish(&feed.Snapshot{Scenario: feed.ScenarioClearDay, Tick: 1})
	rec = ts.do(t, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.prom.FeedConnects.Inc()

	rec := ts.do(t, http.MethodGet, "/metrics", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "microsafety_feed_connects_total 1")
}

func TestSystemStatus(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status models.SystemStatus
	decode(t, rec, &status)
	assert.Equal(t, models.HealthStatusDegraded, status.Status)
	assert.Equal(t, "ws", status.Feed.Transport)
	assert.Nil(t, status.Feed.Tick)

	ts.feed.publish(&feed.Snapshot{Scenario: feed.ScenarioDenseTuleFog, Tick: 42})
	rec = ts.do(t, http.MethodGet, "/v1/status", "", "")
	decode(t, rec, &status)
	assert.Equal(t, models.HealthStatusOK, status.Status)
	assert.Equal(t, feed.ScenarioDenseTuleFog, status.Feed.Scenario)
	require.NotNil(t, status.Feed.Tick)
	assert.Equal(t, int64(42), *status.Feed.Tick)
}

func TestSessions(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/sessions", "", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var first auth.TokenResponse
	decode(t, rec, &first)
	assert.NotEmpty(t, first.AccessToken)
	assert.Equal(t, "Bearer", first.TokenType)
	assert.True(t, strings.HasPrefix(first.OwnerID, auth.OwnerIDPrefix))
	assert.False(t, first.Renewed)

	rec = ts.do(t, http.MethodPost, "/v1/sessions", first.AccessToken, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var renewed auth.TokenResponse
	decode(t, rec, &renewed)
	assert.True(t, renewed.Renewed)
	assert.Equal(t, first.OwnerID, renewed.OwnerID)

	rec = ts.do(t, http.MethodPost, "/v1/sessions", "garbage", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var fresh auth.TokenResponse
	decode(t, rec, &fresh)
	assert.NotEqual(t, first.OwnerID, fresh.OwnerID)
}

func TestMe_RequiresSession(t *testing.T) {
	ts := newTestServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v1/me/answers"},
		{http.MethodGet, "/v1/me/profile"},
		{http.MethodGet, "/v1/me/transcript"},
		{http.MethodPost, "/v1/me/insights"},
		{http.MethodPost, "/v1/alerts/clear"},
		{http.MethodPost, "/v1/scenario/dense_tule_fog"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			rec := ts.do(t, p.method, p.path, "", "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestQuestions(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/questions", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.QuestionsResponse
	decode(t, rec, &resp)
	assert.Len(t, resp.Questions, len(risk.QuestionSet()))
}

func TestScenarios(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/scenarios", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ScenariosResponse
	decode(t, rec, &resp)
	require.Len(t, resp.Scenarios, len(feed.Scenarios()))
	for _, s := range resp.Scenarios {
		assert.NotEmpty(t, s.Description, s.Name)
	}
}

func TestAnswers_Flow(t *testing.T) {
	ts := newTestServer(t)
	token := ts.session(t)

	rec := ts.do(t, http.MethodGet, "/v1/me/answers", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var answers models.AnswersResponse
	decode(t, rec, &answers)
	assert.False(t, answers.Complete)
	assert.Equal(t, risk.DefaultAnswers(), answers.Answers)

	rec = ts.do(t, http.MethodPut, "/v1/me/answers", token, allAnswered())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &answers)
	assert.True(t, answers.Complete)
	assert.Equal(t, risk.AnswerYes, answers.Answers[risk.QuestionDehydrateFast])

	rec = ts.do(t, http.MethodPut, "/v1/me/answers/night_vision", token, `{"answer":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &answers)
	assert.False(t, answers.Complete)
	assert.Equal(t, risk.AnswerUnknown, answers.Answers[risk.QuestionNightVision])

	rec = ts.do(t, http.MethodGet, "/v1/me/answers", token, "")
	decode(t, rec, &answers)
	assert.Equal(t, risk.AnswerYes, answers.Answers[risk.QuestionDehydrateFast])
	assert.Equal(t, risk.AnswerUnknown, answers.Answers[risk.QuestionNightVision])

	rec = ts.do(t, http.MethodDelete, "/v1/me/answers", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &answers)
	assert.Equal(t, risk.DefaultAnswers(), answers.Answers)
}

func TestAnswers_OwnersAreIsolated(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.session(t)
	bob := ts.session(t)

	rec := ts.do(t, http.MethodPut, "/v1/me/answers/heat_medical", alice, `{"answer":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var answers models.AnswersResponse
	rec = ts.do(t, http.MethodGet, "/v1/me/answers", bob, "")
	decode(t, rec, &answers)
	assert.Equal(t, risk.AnswerUnknown, answers.Answers[risk.QuestionHeatMedical])
}

func TestAnswers_Rejected(t *testing.T) {
	ts := newTestServer(t)
	token := ts.session(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown id in body", http.MethodPut, "/v1/me/answers", `{"wears_hat":true}`, http.StatusBadRequest},
		{"non-boolean value", http.MethodPut, "/v1/me/answers", `{"dehydrate_fast":"yes"}`, http.StatusBadRequest},
		{"not an object", http.MethodPut, "/v1/me/answers", `[true]`, http.StatusBadRequest},
		{"malformed JSON", http.MethodPut, "/v1/me/answers", `{`, http.StatusBadRequest},
		{"unknown question", http.MethodPut, "/v1/me/answers/wears_hat", `{"answer":true}`, http.StatusNotFound},
		{"bad single answer", http.MethodPut, "/v1/me/answers/heat_medical", `{"answer":1}`, http.StatusBadRequest},
		{"unknown field", http.MethodPut, "/v1/me/answers/heat_medical", `{"answer":true,"x":1}`, http.StatusBadRequest},
		{"empty body", http.MethodPut, "/v1/me/answers/heat_medical", ``, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, token, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestAnswers_RequiresJSONContentType(t *testing.T) {
	ts := newTestServer(t)
	token := ts.session(t)

	req := httptest.NewRequest(http.MethodPut, "/v1/me/answers", strings.NewReader(allAnswered()))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestProfile(t *testing.T) {
	ts := newTestServer(t)
	token := ts.session(t)
	ts.feed.publish(&feed.Snapshot{Scenario: feed.ScenarioMildHeat, Tick: 3, Risks: hazards(6)})

	rec := ts.do(t, http.MethodGet, "/v1/me/profile", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var profile models.ProfileResponse
	decode(t, rec, &profile)
	assert.True(t, profile.Unanswered)

	ts.do(t, http.MethodPut, "/v1/me/answers", token, allAnswered())

	rec = ts.do(t, http.MethodGet, "/v1/me/profile", token, "")
	decode(t, rec, &profile)
	assert.False(t, profile.Unanswered)
	assert.NotEmpty(t, profile.Reasons)
	assert.NotEmpty(t, profile.Heat.Level)
	assert.NotEmpty(t, profile.Dominant)
	assert.NotNil(t, profile.Advice)
}

func TestInsightsAndAssistant(t *testing.T) {
	ts := newTestServer(t)
	token := ts.session(t)
	ts.feed.publish(&feed.Snapshot{Scenario: feed.ScenarioMildHeat, Tick: 3, Risks: hazards(6)})

	rec := ts.do(t, http.MethodPost, "/v1/me/insights", token, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/me/assistant", token, `{"prompt":"which route?"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	ts.do(t, http.MethodPut, "/v1/me/answers", token, allAnswered())

	rec = ts.do(t, http.MethodPost, "/v1/me/insights", token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var insights models.InsightsResponse
	decode(t, rec, &insights)
	assert.NotEmpty(t, insights.Insights)

	rec = ts.do(t, http.MethodPost, "/v1/me/assistant", token, `{"prompt":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/me/assistant", token, `{"prompt":"which route should I take?"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reply models.AssistantResponse
	decode(t, rec, &reply)
	assert.NotEmpty(t, reply.Reply.Text)

	rec = ts.do(t, http.MethodGet, "/v1/me/transcript", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var transcript models.TranscriptResponse
	decode(t, rec, &transcript)
	assert.Len(t, transcript.Messages, 1+len(insights.Insights)+2)
	assert.Equal(t, reply.Reply.Text, transcript.LatestInsight)
}

func TestTranscript_Fresh(t *testing.T) {
	ts := newTestServer(t)
	token := ts.session(t)

	rec := ts.do(t, http.MethodGet, "/v1/me/transcript", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var transcript models.TranscriptResponse
	decode(t, rec, &transcript)
	require.Len(t, transcript.Messages, 1)
	assert.Equal(t, "Waiting for live risk data to compute route-level recommendations.", transcript.LatestInsight)
}

func TestDashboardView(t *testing.T) {
	ts := newTestServer(t)
	token := ts.session(t)
	ts.feed.publish(&feed.Snapshot{Scenario: feed.ScenarioMildHeat, Tick: 8, Risks: hazards(8)})

	rec := ts.do(t, http.MethodGet, "/v1/me/dashboard", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view dashboard.View
	decode(t, rec, &view)
	assert.True(t, view.Connected)
	assert.Len(t, view.Top, dashboard.DefaultTopRiskCount)
	require.NotNil(t, view.Weather)
	assert.True(t, view.Weather.Available)
}

func TestLive(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/live", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var live dashboard.Live
	decode(t, rec, &live)
	assert.False(t, live.Connected)
	assert.Nil(t, live.Snapshot)

	ts.feed.publish(&feed.Snapshot{Scenario: feed.ScenarioLightFog, Tick: 5, Risks: hazards(2)})
	rec = ts.do(t, http.MethodGet, "/v1/live", "", "")
	decode(t, rec, &live)
	assert.True(t, live.Connected)
	require.NotNil(t, live.Snapshot)
	assert.Equal(t, int64(5), live.Snapshot.Tick)
}

func TestTopRisk_Limit(t *testing.T) {
	ts := newTestServer(t)
	ts.feed.publish(&feed.Snapshot{Scenario: feed.ScenarioMildHeat, Tick: 1, Risks: hazards(20)})

	tests := []struct {
		query string
		want  int
	}{
		{"", 5},
		{"?limit=2", 2},
		{"?limit=0", 5},
		{"?limit=-3", 5},
		{"?limit=99", 15},
		{"?limit=abc", 5},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/v1/live/top-risk"+tt.query, "", "")
			require.Equal(t, http.StatusOK, rec.Code)

			var resp models.TopRiskResponse
			decode(t, rec, &resp)
			assert.Equal(t, tt.want, resp.Limit)
			require.Len(t, resp.Risks, tt.want)
			for i := 1; i < len(resp.Risks); i++ {
				assert.GreaterOrEqual(t, resp.Risks[i-1].CombinedRisk, resp.Risks[i].CombinedRisk)
			}
		})
	}
}

func TestBanner(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/live/banner", "", "")
	var banner models.BannerResponse
	decode(t, rec, &banner)
	assert.False(t, banner.Active)
	assert.Nil(t, banner.Banner)

	ts.feed.publish(&feed.Snapshot{
		Scenario: feed.ScenarioHeatWave,
		Tick:     2,
		Alerts: []feed.Alert{
			warningAlert("a1", "Extreme heat at Fulton Mall"),
			warningAlert("a2", "Extreme heat at Shaw"),
		},
	})

	rec = ts.do(t, http.MethodGet, "/v1/live/banner", "", "")
	decode(t, rec, &banner)
	assert.True(t, banner.Active)
	require.NotNil(t, banner.Banner)
	assert.Equal(t, "Extreme heat at Fulton Mall (+1 more intersections)", banner.Banner.Text)
}

func TestAlerts_Clear(t *testing.T) {
	ts := newTestServer(t)
	token := ts.session(t)
	ts.feed.publish(&feed.Snapshot{
		Scenario: feed.ScenarioHeatWave,
		Tick:     2,
		Alerts:   []feed.Alert{warningAlert("a1", "hot"), warningAlert("a2", "hotter")},
	})
	ts.origin.cleared = []feed.Alert{}

	var alerts models.AlertsResponse
	rec := ts.do(t, http.MethodGet, "/v1/alerts", "", "")
	decode(t, rec, &alerts)
	assert.Len(t, alerts.Alerts, 2)

	rec = ts.do(t, http.MethodPost, "/v1/alerts/clear", token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &alerts)
	assert.Empty(t, alerts.Alerts)

	rec = ts.do(t, http.MethodGet, "/v1/alerts", "", "")
	decode(t, rec, &alerts)
	assert.NotNil(t, alerts.Alerts)
	assert.Empty(t, alerts.Alerts)
}

func TestAlerts_ClearOriginFailure(t *testing.T) {
	ts := newTestServer(t)
	token := ts.session(t)
	ts.origin.err = fmt.Errorf("clearing alerts: %w", upstream.ErrUnexpectedStatus)

	rec := ts.do(t, http.MethodPost, "/v1/alerts/clear", token, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestScenario(t *testing.T) {
	ts := newTestServer(t)
	token := ts.session(t)

	rec := ts.do(t, http.MethodPost, "/v1/scenario/blizzard", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, ts.origin.scenario)

	rec = ts.do(t, http.MethodPost, "/v1/scenario/dense_tule_fog", token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res upstream.ScenarioResult
	decode(t, rec, &res)
	assert.Equal(t, feed.ScenarioDenseTuleFog, res.Scenario)
	assert.Equal(t, feed.ScenarioDenseTuleFog, ts.origin.scenario)

	ts.origin.err = upstream.ErrScenarioRejected
	rec = ts.do(t, http.MethodPost, "/v1/scenario/heat_wave", token, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestWeather(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/weather", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.WeatherResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Available)
	require.NotNil(t, resp.Display)
	assert.Equal(t, "101°F", resp.Display.Temp)
	assert.Equal(t, "1.5 mi", resp.Display.Visibility)
}

func TestNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeatureFlags_SwitchOffControlsAndAssistant(t *testing.T) {
	ts := newTestServer(t)
	ts.feed.publish(&feed.Snapshot{Scenario: feed.ScenarioHeatWave, Tick: 1, Risks: hazards(3)})
	token := ts.session(t)
	ctx := context.Background()

	require.NoError(t, ts.flags.Set(ctx, featureflags.FlagDisableOriginControls, true))
	require.NoError(t, ts.flags.Set(ctx, featureflags.FlagDisableAssistant, true))

	rec := ts.do(t, http.MethodPost, "/v1/scenario/light_fog", token, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, ts.origin.scenario, "origin never called")

	rec = ts.do(t, http.MethodPost, "/v1/alerts/clear", token, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/me/assistant", token, `{"prompt":"is it safe?"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status models.SystemStatus
	decode(t, rec, &status)
	assert.Equal(t, map[string]bool{
		featureflags.FlagDisableAssistant:      true,
		featureflags.FlagDisableOriginControls: true,
		featureflags.FlagPauseAlertFanout:      false,
	}, status.Flags)

	require.NoError(t, ts.flags.Set(ctx, featureflags.FlagDisableOriginControls, false))
	rec = ts.do(t, http.MethodPost, "/v1/scenario/light_fog", token, "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

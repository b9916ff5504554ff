// Package dashboard owns the per-owner view of the live feed: answers,
// transcript, derived profile, the effective alert list and the weather
// summary. Readers get immutable View copies; every change goes through an
// action method.
package dashboard

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/microsafety/microsafety/internal/advisor"
	"github.com/microsafety/microsafety/internal/display"
	"github.com/microsafety/microsafety/internal/feed"
	"github.com/microsafety/microsafety/internal/risk"
	"github.com/microsafety/microsafety/internal/upstream"
	"github.com/microsafety/microsafety/internal/weather"
)

// Controller errors.
var (
	ErrEmptyPrompt        = errors.New("prompt is empty")
	ErrProfileIncomplete  = errors.New("answer every profile question first")
	ErrUpstreamNotEnabled = errors.New("feed origin actions are not configured")
)

// DefaultTopRiskCount is how many records View.TopRisks holds.
const DefaultTopRiskCount = 5

// FeedSource is the live feed as seen by the controller.
type FeedSource interface {
	State() feed.State
	Subscribe() (<-chan feed.State, func())
}

// Store persists answers and transcripts per owner.
type Store interface {
	LoadAnswers(ctx context.Context, owner string) risk.Answers
	SaveAnswers(owner string, answers risk.Answers)
	LoadTranscript(ctx context.Context, owner string) []advisor.Message
	SaveTranscript(owner string, messages []advisor.Message)
}

// Origin is the feed origin's request/response surface.
type Origin interface {
	ClearAlerts(ctx context.Context) ([]feed.Alert, error)
	SetScenario(ctx context.Context, preset feed.Scenario) (upstream.ScenarioResult, error)
}

// WeatherSource serves the cached observation summary.
type WeatherSource interface {
	Current(ctx context.Context) weather.Summary
}

// Config holds the controller's collaborators.
type Config struct {
	// Feed is required.
	Feed FeedSource
	// Store is required.
	Store Store

	// Origin enables ClearAlerts and SetScenario. Optional.
	Origin Origin
	// Weather enables the weather summary. Optional.
	Weather WeatherSource

	Logger zerolog.Logger
}

// Controller is safe for concurrent use.
type Controller struct {
	feed    FeedSource
	store   Store
	origin  Origin
	weather WeatherSource
	logger  zerolog.Logger

	// ownerMu serializes read-modify-write of owner records.
	ownerMu sync.Mutex

	mu       sync.RWMutex
	override *alertOverride
}

// alertOverride replaces the snapshot's alerts after a clear until the feed
// delivers a different alert set.
type alertOverride struct {
	alerts []feed.Alert
	base   string
}

// New creates a controller.
func New(cfg Config) *Controller {
	return &Controller{
		feed:    cfg.Feed,
		store:   cfg.Store,
		origin:  cfg.Origin,
		weather: cfg.Weather,
		logger:  cfg.Logger,
	}
}

// View is everything the dashboard renders for one owner.
type View struct {
	Owner     string         `json:"owner"`
	Connected bool           `json:"connected"`
	ConnState feed.ConnState `json:"state"`
	Snapshot  *feed.Snapshot `json:"snapshot"`

	Alerts []feed.Alert        `json:"alerts"`
	Banner *display.Banner     `json:"banner,omitempty"`
	Top    []feed.HazardRecord `json:"top_risks"`

	Answers  risk.Answers        `json:"answers"`
	Profile  risk.Profile        `json:"profile"`
	Heat     risk.Classification `json:"heat"`
	Fog      risk.Classification `json:"fog"`
	Dominant risk.Hazard         `json:"dominant"`
	Advice   *risk.RouteAdvice   `json:"advice,omitempty"`

	Transcript    []advisor.Message `json:"transcript"`
	LatestInsight string            `json:"latest_insight"`

	Weather *weather.Summary `json:"weather,omitempty"`
}

// Live is the owner-independent part of the view.
type Live struct {
	Connected bool            `json:"connected"`
	ConnState feed.ConnState  `json:"state"`
	Snapshot  *feed.Snapshot  `json:"snapshot"`
	Alerts    []feed.Alert    `json:"alerts"`
	Banner    *display.Banner `json:"banner,omitempty"`
}

// Live returns the latest snapshot with the effective alert list.
func (c *Controller) Live() Live {
	st := c.feed.State()
	alerts := c.effectiveAlerts(st.Snapshot)

	live := Live{
		Connected: st.Connected,
		ConnState: st.Conn,
		Snapshot:  st.Snapshot,
		Alerts:    alerts,
	}
	if b, ok := display.EmergencyBanner(alerts); ok {
		live.Banner = &b
	}
	return live
}

// Risks returns the latest hazard records, empty before the first snapshot.
func (c *Controller) Risks() []feed.HazardRecord {
	if snap := c.feed.State().Snapshot; snap != nil {
		return snap.Risks
	}
	return []feed.HazardRecord{}
}

// TopRisks returns the n records with the highest combined risk.
func (c *Controller) TopRisks(n int) []feed.HazardRecord {
	return risk.TopRisks(c.Risks(), n)
}

// View builds the full view for owner.
func (c *Controller) View(ctx context.Context, owner string) View {
	live := c.Live()

	var risks []feed.HazardRecord
	if live.Snapshot != nil {
		risks = live.Snapshot.Risks
	}

	answers := c.store.LoadAnswers(ctx, owner)
	transcript := c.store.LoadTranscript(ctx, owner)
	profile := risk.ComputeProfile(answers, risks)
	dominant := risk.DominantHazard(profile)

	v := View{
		Owner:         owner,
		Connected:     live.Connected,
		ConnState:     live.ConnState,
		Snapshot:      live.Snapshot,
		Alerts:        live.Alerts,
		Banner:        live.Banner,
		Top:           risk.TopRisks(risks, DefaultTopRiskCount),
		Answers:       answers,
		Profile:       profile,
		Heat:          risk.Classify(profile.HeatScore),
		Fog:           risk.Classify(profile.FogScore),
		Dominant:      dominant,
		Transcript:    transcript,
		LatestInsight: advisor.LatestInsight(transcript),
	}
	if advice, ok := risk.PickRouteAdvice(risks, dominant); ok {
		v.Advice = &advice
	}
	if c.weather != nil {
		w := c.weather.Current(ctx)
		v.Weather = &w
	}
	return v
}

// Profile computes the owner's profile against the latest hazard records.
func (c *Controller) Profile(ctx context.Context, owner string) risk.Profile {
	return risk.ComputeProfile(c.store.LoadAnswers(ctx, owner), c.Risks())
}

// Answers returns the owner's stored answers.
func (c *Controller) Answers(ctx context.Context, owner string) risk.Answers {
	return c.store.LoadAnswers(ctx, owner)
}

// SetAnswer records one answer.
func (c *Controller) SetAnswer(ctx context.Context, owner string, id risk.QuestionID, answer risk.Answer) (risk.Answers, error) {
	c.ownerMu.Lock()
	defer c.ownerMu.Unlock()

	next, err := c.store.LoadAnswers(ctx, owner).With(id, answer)
	if err != nil {
		return nil, err
	}
	c.store.SaveAnswers(owner, next)
	return next, nil
}

// SetAnswers replaces every answer. Unknown ids are dropped.
func (c *Controller) SetAnswers(_ context.Context, owner string, answers risk.Answers) risk.Answers {
	c.ownerMu.Lock()
	defer c.ownerMu.Unlock()

	next := risk.NormalizeAnswers(answers)
	c.store.SaveAnswers(owner, next)
	return next
}

// ResetAnswers sets every answer back to unknown.
func (c *Controller) ResetAnswers(_ context.Context, owner string) risk.Answers {
	c.ownerMu.Lock()
	defer c.ownerMu.Unlock()

	next := risk.DefaultAnswers()
	c.store.SaveAnswers(owner, next)
	return next
}

// Transcript returns the owner's chat transcript.
func (c *Controller) Transcript(ctx context.Context, owner string) []advisor.Message {
	return c.store.LoadTranscript(ctx, owner)
}

// GenerateInsights appends the profile insights to the transcript and returns
// the appended messages. Nothing is appended while the profile is incomplete.
func (c *Controller) GenerateInsights(ctx context.Context, owner string) ([]advisor.Message, error) {
	c.ownerMu.Lock()
	defer c.ownerMu.Unlock()

	risks := c.Risks()
	profile := risk.ComputeProfile(c.store.LoadAnswers(ctx, owner), risks)
	if profile.Unanswered {
		return nil, ErrProfileIncomplete
	}

	insights := advisor.BuildInitialInsights(profile, risks)
	transcript := append(c.store.LoadTranscript(ctx, owner), insights...)
	c.store.SaveTranscript(owner, transcript)
	return insights, nil
}

// Ask appends the prompt and the assistant's reply to the transcript and
// returns the reply.
func (c *Controller) Ask(ctx context.Context, owner, prompt string) (advisor.Message, error) {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return advisor.Message{}, ErrEmptyPrompt
	}

	c.ownerMu.Lock()
	defer c.ownerMu.Unlock()

	risks := c.Risks()
	profile := risk.ComputeProfile(c.store.LoadAnswers(ctx, owner), risks)
	if profile.Unanswered {
		return advisor.Message{}, ErrProfileIncomplete
	}

	reply := advisor.Message{
		Role: advisor.RoleAssistant,
		Text: advisor.GenerateAssistantReply(trimmed, profile, risks),
	}
	transcript := append(c.store.LoadTranscript(ctx, owner),
		advisor.Message{Role: advisor.RoleUser, Text: trimmed},
		reply,
	)
	c.store.SaveTranscript(owner, transcript)
	return reply, nil
}

// ClearAlerts asks the origin to clear its alerts and shows the returned
// list until the feed's alert set changes.
func (c *Controller) ClearAlerts(ctx context.Context) ([]feed.Alert, error) {
	if c.origin == nil {
		return nil, ErrUpstreamNotEnabled
	}

	alerts, err := c.origin.ClearAlerts(ctx)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []feed.Alert{}
	}

	base := alertSignature(nil)
	if snap := c.feed.State().Snapshot; snap != nil {
		base = alertSignature(snap.Alerts)
	}

	c.mu.Lock()
	c.override = &alertOverride{alerts: slices.Clone(alerts), base: base}
	c.mu.Unlock()

	c.logger.Info().Int("remaining", len(alerts)).Msg("alerts cleared")
	return alerts, nil
}

// SetScenario switches the origin's preset.
func (c *Controller) SetScenario(ctx context.Context, preset feed.Scenario) (upstream.ScenarioResult, error) {
	if c.origin == nil {
		return upstream.ScenarioResult{}, ErrUpstreamNotEnabled
	}
	res, err := c.origin.SetScenario(ctx, preset)
	if err != nil {
		return upstream.ScenarioResult{}, err
	}
	c.logger.Info().Str("scenario", string(res.Scenario)).Msg("scenario changed")
	return res, nil
}

// Weather returns the cached observation summary.
func (c *Controller) Weather(ctx context.Context) weather.Summary {
	if c.weather == nil {
		return weather.Summary{}
	}
	return c.weather.Current(ctx)
}

// Run drops the alert override as soon as the feed's alert set changes. It
// returns when ctx is done or the feed is torn down.
func (c *Controller) Run(ctx context.Context) error {
	updates, cancel := c.feed.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st, ok := <-updates:
			if !ok {
				return nil
			}
			c.effectiveAlerts(st.Snapshot)
		}
	}
}

// effectiveAlerts returns the override while it still applies, otherwise the
// snapshot's alerts. A stale override is dropped.
func (c *Controller) effectiveAlerts(snap *feed.Snapshot) []feed.Alert {
	var current []feed.Alert
	if snap != nil {
		current = snap.Alerts
	}

	c.mu.RLock()
	o := c.override
	c.mu.RUnlock()

	if o != nil {
		if o.base == alertSignature(current) {
			return slices.Clone(o.alerts)
		}
		c.mu.Lock()
		if c.override == o {
			c.override = nil
		}
		c.mu.Unlock()
	}

	if current == nil {
		return []feed.Alert{}
	}
	return current
}

// alertSignature identifies an alert set by id and active flag, in order.
func alertSignature(alerts []feed.Alert) string {
	var b strings.Builder
	for _, a := range alerts {
		b.WriteString(a.ID)
		if a.Active {
			b.WriteString("+")
		} else {
			b.WriteString("-")
		}
		b.WriteByte(0)
	}
	return b.String()
}

package risk_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsafety/microsafety/internal/feed"
	"github.com/microsafety/microsafety/internal/risk"
)

func allAnswers(a risk.Answer) risk.Answers {
	out := risk.DefaultAnswers()
	for id := range out {
		out[id] = a
	}
	return out
}

func record(id, zone string, heat, fog, combined float64) feed.HazardRecord {
	return feed.HazardRecord{
		NodeID:       id,
		Name:         "Node " + id,
		Zone:         zone,
		HeatRisk:     heat,
		FogRisk:      fog,
		CombinedRisk: combined,
		RiskLevel:    feed.RiskLevelLow,
	}
}

func TestComputeProfile_AllYesNoRiskData(t *testing.T) {
	p := risk.ComputeProfile(allAnswers(risk.AnswerYes), nil)

	assert.False(t, p.Unanswered)
	assert.Equal(t, 81, p.PersonalHeat)
	assert.Equal(t, 86, p.PersonalFog)
	assert.Equal(t, 53, p.HeatScore)
	assert.Equal(t, 56, p.FogScore)
	assert.Equal(t, risk.HazardFog, risk.DominantHazard(p))
	assert.Equal(t, []string{
		"you reported dehydration sensitivity",
		"your medical profile increases heat strain",
		"your exposure time is longer than average",
		"you flagged reduced low-visibility tolerance",
		"you are prone to visual obstruction in fog",
		"you are in a higher exposure mobility mode",
	}, p.Reasons)
}

func TestComputeProfile_AllNo(t *testing.T) {
	p := risk.ComputeProfile(allAnswers(risk.AnswerNo), nil)

	assert.False(t, p.Unanswered)
	assert.Empty(t, p.Reasons)
	assert.NotNil(t, p.Reasons)
	assert.Equal(t, 10, p.PersonalHeat)
	assert.Equal(t, 10, p.PersonalFog)
	assert.Equal(t, 7, p.HeatScore)
	assert.Equal(t, 7, p.FogScore)
	assert.Equal(t, risk.HazardHeat, risk.DominantHazard(p), "ties favor heat")
	assert.Equal(t, "your self-reported sensitivity", p.PrimaryReason())
}

func TestComputeProfile_Unanswered(t *testing.T) {
	for _, q := range risk.QuestionSet() {
		t.Run(string(q.ID), func(t *testing.T) {
			answers := allAnswers(risk.AnswerYes)
			answers[q.ID] = risk.AnswerUnknown

			p := risk.ComputeProfile(answers, nil)
			assert.True(t, p.Unanswered)
			assert.NotContains(t, p.Reasons, q.Reason)
		})
	}

	assert.True(t, risk.ComputeProfile(risk.Answers{}, nil).Unanswered, "missing ids count as unknown")
}

func TestComputeProfile_BlendsWorstLiveHazard(t *testing.T) {
	risks := []feed.HazardRecord{
		record("a", "z1", 40, 10, 30),
		record("b", "z1", 90, 20, 60),
		record("c", "z2", 15, 70, 50),
	}

	p := risk.ComputeProfile(allAnswers(risk.AnswerNo), risks)

	// 10*0.65 + 90*0.35 = 38
	assert.Equal(t, 38, p.HeatScore)
	// 10*0.65 + 70*0.35 = 31
	assert.Equal(t, 31, p.FogScore)
}

func TestComputeProfile_Bounds(t *testing.T) {
	extremes := []feed.HazardRecord{record("a", "z", 100, 100, 100)}

	for _, answers := range []risk.Answers{
		allAnswers(risk.AnswerYes),
		allAnswers(risk.AnswerNo),
		risk.DefaultAnswers(),
	} {
		for _, risks := range [][]feed.HazardRecord{nil, extremes} {
			p := risk.ComputeProfile(answers, risks)
			for _, v := range []int{p.PersonalHeat, p.PersonalFog, p.HeatScore, p.FogScore} {
				assert.GreaterOrEqual(t, v, 0)
				assert.LessOrEqual(t, v, 100)
			}
		}
	}

	p := risk.ComputeProfile(allAnswers(risk.AnswerYes), extremes)
	assert.Equal(t, 88, p.HeatScore)
	assert.Equal(t, 91, p.FogScore)
}

func TestComputeProfile_Idempotent(t *testing.T) {
	answers := allAnswers(risk.AnswerYes)
	answers[risk.QuestionLensFogging] = risk.AnswerNo
	risks := []feed.HazardRecord{record("a", "z", 33.3, 66.6, 50)}

	first := risk.ComputeProfile(answers, risks)
	second := risk.ComputeProfile(answers, risks)
	assert.Equal(t, first, second)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		score int
		level feed.RiskLevel
		color string
	}{
		{0, feed.RiskLevelLow, "green"},
		{34, feed.RiskLevelLow, "green"},
		{35, feed.RiskLevelModerate, "yellow"},
		{54, feed.RiskLevelModerate, "yellow"},
		{55, feed.RiskLevelHigh, "orange"},
		{74, feed.RiskLevelHigh, "orange"},
		{75, feed.RiskLevelExtreme, "red"},
		{100, feed.RiskLevelExtreme, "red"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.score), func(t *testing.T) {
			got := risk.Classify(tt.score)
			assert.Equal(t, tt.level, got.Level)
			assert.Equal(t, tt.color, got.Color)
		})
	}
}

func TestClassify_Monotonic(t *testing.T) {
	rank := map[feed.RiskLevel]int{
		feed.RiskLevelLow:      0,
		feed.RiskLevelModerate: 1,
		feed.RiskLevelHigh:     2,
		feed.RiskLevelExtreme:  3,
	}

	prev := rank[risk.Classify(0).Level]
	for s := 1; s <= 100; s++ {
		cur := rank[risk.Classify(s).Level]
		require.GreaterOrEqual(t, cur, prev, "score %d", s)
		prev = cur
	}
}

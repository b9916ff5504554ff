// Package risk computes personal heat and fog risk from questionnaire answers
// and live hazard records. Everything here is pure and safe for concurrent use.
package risk

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownQuestion is returned when an answer names a question outside the set.
	ErrUnknownQuestion = errors.New("unknown question")

	// ErrInvalidAnswer is returned when an answer is not true, false or null.
	ErrInvalidAnswer = errors.New("answer must be true, false or null")
)

// QuestionID identifies one of the fixed profile questions.
type QuestionID string

const (
	QuestionDehydrateFast   QuestionID = "dehydrate_fast"
	QuestionHeatMedical     QuestionID = "heat_medical"
	QuestionOutdoorDuration QuestionID = "outdoor_duration"
	QuestionNightVision     QuestionID = "night_vision"
	QuestionLensFogging     QuestionID = "lens_fogging"
	QuestionBikeOrWalk      QuestionID = "bike_or_walk"
)

// Question is one yes/no profile question. A "yes" adds its weights to the
// personal bases and contributes its reason to the profile.
type Question struct {
	ID         QuestionID `json:"id"`
	Prompt     string     `json:"prompt"`
	HeatWeight int        `json:"heat_weight"`
	FogWeight  int        `json:"fog_weight"`
	Reason     string     `json:"reason"`
}

var questions = []Question{
	{
		ID:         QuestionDehydrateFast,
		Prompt:     "Do you dehydrate quickly or use medication that increases dehydration risk?",
		HeatWeight: 28,
		FogWeight:  0,
		Reason:     "you reported dehydration sensitivity",
	},
	{
		ID:         QuestionHeatMedical,
		Prompt:     "Do you have a heart, kidney, or respiratory condition that can worsen in heat?",
		HeatWeight: 24,
		FogWeight:  6,
		Reason:     "your medical profile increases heat strain",
	},
	{
		ID:         QuestionOutdoorDuration,
		Prompt:     "Will you be outside for more than 20 minutes this trip?",
		HeatWeight: 14,
		FogWeight:  8,
		Reason:     "your exposure time is longer than average",
	},
	{
		ID:         QuestionNightVision,
		Prompt:     "Do low-light conditions make driving or walking harder for you?",
		HeatWeight: 0,
		FogWeight:  26,
		Reason:     "you flagged reduced low-visibility tolerance",
	},
	{
		ID:         QuestionLensFogging,
		Prompt:     "Do your glasses/helmet visor fog up easily?",
		HeatWeight: 0,
		FogWeight:  22,
		Reason:     "you are prone to visual obstruction in fog",
	},
	{
		ID:         QuestionBikeOrWalk,
		Prompt:     "Are you biking or walking near vehicle traffic today?",
		HeatWeight: 5,
		FogWeight:  14,
		Reason:     "you are in a higher exposure mobility mode",
	},
}

// QuestionSet returns the profile questions in their fixed order.
func QuestionSet() []Question {
	out := make([]Question, len(questions))
	copy(out, questions)
	return out
}

// LookupQuestion finds a question by id.
func LookupQuestion(id QuestionID) (Question, bool) {
	for _, q := range questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Answer is a tri-state reply: unknown until the user picks yes or no.
type Answer uint8

const (
	AnswerUnknown Answer = iota
	AnswerYes
	AnswerNo
)

// AnswerOf converts a bool to a known answer.
func AnswerOf(b bool) Answer {
	if b {
		return AnswerYes
	}
	return AnswerNo
}

// Known reports whether the question has been answered.
func (a Answer) Known() bool {
	return a == AnswerYes || a == AnswerNo
}

func (a Answer) String() string {
	switch a {
	case AnswerYes:
		return "yes"
	case AnswerNo:
		return "no"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the answer as true, false or null.
func (a Answer) MarshalJSON() ([]byte, error) {
	switch a {
	case AnswerYes:
		return []byte("true"), nil
	case AnswerNo:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts only true, false and null.
func (a *Answer) UnmarshalJSON(data []byte) error {
	v, ok := parseAnswer(data)
	if !ok {
		return fmt.Errorf("%w: got %s", ErrInvalidAnswer, data)
	}
	*a = v
	return nil
}

func parseAnswer(data []byte) (Answer, bool) {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		return AnswerYes, true
	case "false":
		return AnswerNo, true
	case "null":
		return AnswerUnknown, true
	}
	return AnswerUnknown, false
}

// Answers maps every question id to its answer. A missing id counts as unknown.
type Answers map[QuestionID]Answer

// DefaultAnswers returns an answer set with every question unknown.
func DefaultAnswers() Answers {
	out := make(Answers, len(questions))
	for _, q := range questions {
		out[q.ID] = AnswerUnknown
	}
	return out
}

// Complete reports whether every question has a yes or no.
func (a Answers) Complete() bool {
	for _, q := range questions {
		if !a[q.ID].Known() {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// With returns a copy with one answer replaced.
func (a Answers) With(id QuestionID, answer Answer) (Answers, error) {
	if _, ok := LookupQuestion(id); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuestion, id)
	}
	out := NormalizeAnswers(a)
	out[id] = answer
	return out, nil
}

// NormalizeAnswers returns a full answer set: every known question is present
// and ids outside the question set are dropped.
func NormalizeAnswers(a Answers) Answers {
	out := DefaultAnswers()
	for _, q := range questions {
		if v, ok := a[q.ID]; ok && v <= AnswerNo {
			out[q.ID] = v
		}
	}
	return out
}

// ParseAnswers decodes a stored or submitted answer object leniently. Values
// other than true, false or null are ignored, unknown ids are dropped, and
// anything that is not a JSON object yields the default answers.
func ParseAnswers(data []byte) Answers {
	out := DefaultAnswers()

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return out
	}

	for _, q := range questions {
		v, ok := raw[string(q.ID)]
		if !ok {
			continue
		}
		if answer, ok := parseAnswer(v); ok {
			out[q.ID] = answer
		}
	}
	return out
}

// ParseAnswersStrict decodes an answer object and rejects unknown ids and
// non-boolean values. Missing ids are unknown.
func ParseAnswersStrict(data []byte) (Answers, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding answers: %w", err)
	}

	out := DefaultAnswers()
	for key, v := range raw {
		id := QuestionID(key)
		if _, ok := LookupQuestion(id); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownQuestion, key)
		}
		answer, ok := parseAnswer(v)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidAnswer, key)
		}
		out[id] = answer
	}
	return out, nil
}

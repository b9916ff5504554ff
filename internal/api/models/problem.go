package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 error body, served as application/problem+json.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// TraceID echoes the request ID so viewers can quote it in reports.
	TraceID string `json:"traceId"`

	Errors []FieldError `json:"errors,omitempty"`

	// Flag names the runtime switch behind a switched-off problem.
	Flag string `json:"flag,omitempty"`
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const problemBase = "https://microsafety.dev/problems/"

// Problem types.
const (
	ProblemTypeValidation           = problemBase + "validation-error"
	ProblemTypeUnauthorized         = problemBase + "unauthorized"
	ProblemTypeNotFound             = problemBase + "not-found"
	ProblemTypeConflict             = problemBase + "conflict"
	ProblemTypeUnsupportedMediaType = problemBase + "unsupported-media-type"
	ProblemTypeTooManyRequests      = problemBase + "too-many-requests"
	ProblemTypeInternal             = problemBase + "internal-error"
	ProblemTypeBadGateway           = problemBase + "origin-unreachable"
	ProblemTypeUnavailable          = problemBase + "service-unavailable"
	ProblemTypeSwitchedOff          = problemBase + "switched-off"
	ProblemTypeTLSRequired          = problemBase + "tls-required"
)

type problemKind struct {
	typ   string
	title string
}

var kinds = map[int]problemKind{
	http.StatusBadRequest:           {ProblemTypeValidation, "Validation error"},
	http.StatusUnauthorized:         {ProblemTypeUnauthorized, "Unauthorized"},
	http.StatusNotFound:             {ProblemTypeNotFound, "Not found"},
	http.StatusConflict:             {ProblemTypeConflict, "Conflict"},
	http.StatusUnsupportedMediaType: {ProblemTypeUnsupportedMediaType, "Unsupported media type"},
	http.StatusTooManyRequests:      {ProblemTypeTooManyRequests, "Too many requests"},
	http.StatusInternalServerError:  {ProblemTypeInternal, "Internal server error"},
	http.StatusBadGateway:           {ProblemTypeBadGateway, "Bad gateway"},
	http.StatusServiceUnavailable:   {ProblemTypeUnavailable, "Service unavailable"},
}

// NewProblem creates a new Problem with the given parameters.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{Type: problemType, Title: title, Status: status, TraceID: traceID}
}

func newStatus(status int, traceID, detail string) *Problem {
	k := kinds[status]
	return NewProblem(k.typ, k.title, status, traceID).WithDetail(detail)
}

// WithDetail adds a detail message to the Problem.
func (p *Problem) WithDetail(detail string) *Problem {
	p.Detail = detail
	return p
}

// WithInstance adds the request path to the Problem.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors adds field errors to the Problem.
func (p *Problem) WithErrors(errors []FieldError) *Problem {
	p.Errors = errors
	return p
}

// Write writes the Problem as JSON to the ResponseWriter.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		w.Header().Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewBadRequest creates a 400 validation problem.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	return newStatus(http.StatusBadRequest, traceID, detail).WithErrors(errors)
}

func NewUnauthorized(traceID, detail string) *Problem {
	return newStatus(http.StatusUnauthorized, traceID, detail)
}

func NewNotFound(traceID, detail string) *Problem {
	return newStatus(http.StatusNotFound, traceID, detail)
}

func NewConflict(traceID, detail string) *Problem {
	return newStatus(http.StatusConflict, traceID, detail)
}

func NewUnsupportedMediaType(traceID, detail string) *Problem {
	return newStatus(http.StatusUnsupportedMediaType, traceID, detail)
}

func NewTooManyRequests(traceID, detail string) *Problem {
	return newStatus(http.StatusTooManyRequests, traceID, detail)
}

func NewInternalError(traceID, detail string) *Problem {
	return newStatus(http.StatusInternalServerError, traceID, detail)
}

// NewBadGateway reports a failed call to the feed origin.
func NewBadGateway(traceID, detail string) *Problem {
	return newStatus(http.StatusBadGateway, traceID, detail)
}

// NewServiceUnavailable is used while the live feed has not delivered a
// snapshot yet.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return newStatus(http.StatusServiceUnavailable, traceID, detail)
}

// NewSwitchedOff creates a 503 for a feature an operator turned off with flag.
func NewSwitchedOff(traceID, flag, detail string) *Problem {
	p := NewProblem(ProblemTypeSwitchedOff, "Switched off", http.StatusServiceUnavailable, traceID).WithDetail(detail)
	p.Flag = flag
	return p
}

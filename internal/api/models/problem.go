package models

import (
	"encoding/json"
	"net/http"
)

// Kind classifies an API error. Each kind has a fixed problem type URI,
// title and HTTP status.
type Kind int

const (
	KindValidation Kind = iota
	KindMissingConfig
	KindUnauthorized
	KindTLSRequired
	KindNotFound
	KindConflict
	KindUnsupportedMedia
	KindTooManyRequests
	KindUpstream
	KindInternal
	KindUnavailable
)

const problemBase = "https://windforecast.dev/problems/"

var kinds = [...]struct {
	slug   string
	title  string
	status int
}{
	KindValidation:       {"validation-error", "Validation error", http.StatusBadRequest},
	KindMissingConfig:    {"missing-configuration", "Missing configuration", http.StatusBadRequest},
	KindUnauthorized:     {"unauthorized", "Unauthorized", http.StatusUnauthorized},
	KindTLSRequired:      {"tls-required", "TLS required", http.StatusForbidden},
	KindNotFound:         {"not-found", "Not found", http.StatusNotFound},
	KindConflict:         {"conflict", "Conflict", http.StatusConflict},
	KindUnsupportedMedia: {"unsupported-media-type", "Unsupported media type", http.StatusUnsupportedMediaType},
	KindTooManyRequests:  {"too-many-requests", "Too many requests", http.StatusTooManyRequests},
	// A station whose forecasts could not be fetched is reported as a 500.
	KindUpstream:    {"upstream-failure", "Upstream failure", http.StatusInternalServerError},
	KindInternal:    {"internal-error", "Internal server error", http.StatusInternalServerError},
	KindUnavailable: {"service-unavailable", "Service unavailable", http.StatusServiceUnavailable},
}

// URI returns the problem type URI of k.
func (k Kind) URI() string { return problemBase + kinds[k].slug }

// Title returns the short summary shared by every problem of kind k.
func (k Kind) Title() string { return kinds[k].title }

// Status returns the HTTP status of k.
func (k Kind) Status() int { return kinds[k].status }

// Problem is an application/problem+json body (RFC 7807).
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError is one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// NewProblem creates a problem of kind k for the request traced by traceID.
func NewProblem(k Kind, traceID, detail string) *Problem {
	return &Problem{
		Type:    k.URI(),
		Title:   k.Title(),
		Status:  k.Status(),
		Detail:  detail,
		TraceID: traceID,
	}
}

// At sets the request path the problem occurred on.
func (p *Problem) At(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors attaches field errors.
func (p *Problem) WithErrors(errs []FieldError) *Problem {
	p.Errors = errs
	return p
}

// Write sends the problem with its status and echoes the trace ID as
// X-Request-Id.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		w.Header().Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

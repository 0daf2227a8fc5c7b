// Package problem writes RFC 7807 problem+json error bodies.
package problem

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
)

const contentType = "application/problem+json"

const typeBase = "https://togather.events/problems/"

// Problem types returned by the API. Clients branch on these, not on titles.
const (
	TypeValidation       = typeBase + "validation-error"
	TypePayloadTooLarge  = typeBase + "payload-too-large"
	TypeUnauthorized     = typeBase + "unauthorized"
	TypeForbidden        = typeBase + "forbidden"
	TypeNotFound         = typeBase + "not-found"
	TypeConflict         = typeBase + "conflict"
	TypeCapacityExceeded = typeBase + "capacity-exceeded"
	TypeRateLimited      = typeBase + "rate-limited"
	TypeUnavailable      = typeBase + "service-unavailable"
	TypeServerError      = typeBase + "server-error"
)

// ErrUnauthorized is logged when a protected route has no token validator.
var ErrUnauthorized = errors.New("unauthorized")

type ProblemDetails struct {
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Status   int                    `json:"status"`
	Detail   string                 `json:"detail,omitempty"`
	Instance string                 `json:"instance,omitempty"`
	Errors   map[string]interface{} `json:"errors,omitempty"`
}

type Option func(*ProblemDetails)

func WithDetail(detail string) Option {
	return func(p *ProblemDetails) { p.Detail = detail }
}

func WithInstance(instance string) Option {
	return func(p *ProblemDetails) { p.Instance = instance }
}

// WithErrors attaches per-field messages, keyed by JSON field name.
func WithErrors(errs map[string]interface{}) Option {
	return func(p *ProblemDetails) { p.Errors = errs }
}

// exposesErrors reports whether raw error text may reach clients.
func exposesErrors(env string) bool {
	return env == "development" || env == "test"
}

// Write logs err on the request logger and sends the problem body. Without a
// WithDetail option the detail is err's text outside production-like
// environments and the generic status text otherwise.
func Write(w http.ResponseWriter, r *http.Request, status int, typ, title string, err error, env string, opts ...Option) {
	p := ProblemDetails{Type: typ, Title: title, Status: status}
	for _, opt := range opts {
		opt(&p)
	}

	if p.Detail == "" && err != nil {
		p.Detail = http.StatusText(status)
		if exposesErrors(env) {
			p.Detail = err.Error()
		}
	}
	if p.Instance == "" && r != nil {
		p.Instance = r.URL.Path
	}

	if err != nil && r != nil {
		logger := zerolog.Ctx(r.Context())
		entry := logger.Warn()
		if status >= http.StatusInternalServerError {
			entry = logger.Error()
		}
		entry.Err(err).
			Int("status", status).
			Str("type", typ).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg(title)
	}

	WriteProblem(w, p)
}

// WriteProblem encodes p with its own status code.
func WriteProblem(w http.ResponseWriter, p ProblemDetails) {
	payload, err := json.Marshal(p)
	if err != nil {
		p = ProblemDetails{Type: TypeServerError, Title: "Server error", Status: http.StatusInternalServerError}
		payload, _ = json.Marshal(p)
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(p.Status)
	_, _ = w.Write(payload)
}

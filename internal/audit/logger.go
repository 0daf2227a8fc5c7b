package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Audit actions recorded by the services.
const (
	ActionUserRegistered = "user.registered"
	ActionEventCreated   = "event.created"
	ActionEventUpdated   = "event.updated"
	ActionEventDeleted   = "event.deleted"
	ActionEventReserved  = "event.reserved"
)

// Entry represents a single audit log entry with structured fields
type Entry struct {
	Timestamp    time.Time         `json:"timestamp"`
	Action       string            `json:"action"`
	ActorID      string            `json:"actor_id"`
	ResourceType string            `json:"resource_type,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty"`
	RequestID    string            `json:"request_id,omitempty"`
	Status       string            `json:"status"` // "success" or "failure"
	Details      map[string]string `json:"details,omitempty"`
}

// Logger provides structured audit logging for state-changing operations
type Logger struct {
	output zerolog.Logger
}

// NewLogger creates an audit logger on top of the global zerolog logger.
func NewLogger() *Logger {
	return NewLoggerWithZerolog(log.Logger)
}

func NewLoggerWithZerolog(logger zerolog.Logger) *Logger {
	return &Logger{output: logger.With().Str("component", "audit").Logger()}
}

// Log writes an audit entry to the log output
func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	l.output.Info().Interface("audit", entry).Msg("audit")
}

// LogSuccess logs a successful operation. The request id is taken from ctx
// when the correlation middleware put one there.
func (l *Logger) LogSuccess(ctx context.Context, action, actorID, resourceType, resourceID string, details map[string]string) {
	l.Log(Entry{
		Action:       action,
		ActorID:      actorID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    RequestIDFromContext(ctx),
		Status:       "success",
		Details:      details,
	})
}

// LogFailure logs a rejected operation
func (l *Logger) LogFailure(ctx context.Context, action, actorID, resourceType, resourceID string, details map[string]string) {
	l.Log(Entry{
		Action:       action,
		ActorID:      actorID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    RequestIDFromContext(ctx),
		Status:       "failure",
		Details:      details,
	})
}

type contextKey string

const requestIDKey contextKey = "auditRequestID"

// WithRequestID stores the request id used to correlate audit entries.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

package middleware

import (
	"context"
	"net/http"

	"github.com/Togather-Foundation/rsvp/internal/audit"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 128
)

// CorrelationID assigns each request an id, echoes it in X-Request-ID and
// puts a logger carrying it (and the trace id, when traced) in the context.
// An id supplied by a proxy is kept if it is short printable ASCII.
func CorrelationID(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(requestIDHeader)
			if !acceptableRequestID(requestID) {
				requestID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, requestID)

			fields := logger.With().Str("request_id", requestID)
			span := trace.SpanFromContext(r.Context())
			if sc := span.SpanContext(); sc.IsValid() {
				fields = fields.Str("trace_id", sc.TraceID().String())
				span.SetAttributes(attribute.String("request_id", requestID))
			}
			reqLogger := fields.Logger()

			ctx := audit.WithRequestID(r.Context(), requestID)
			ctx = reqLogger.WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID returns the id CorrelationID assigned, or "".
func GetRequestID(ctx context.Context) string {
	return audit.RequestIDFromContext(ctx)
}

func acceptableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

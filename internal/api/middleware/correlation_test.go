package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Togather-Foundation/rsvp/internal/audit"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationID_GeneratesAndPropagates(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	var ctxID, auditID string
	handler := CorrelationID(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = GetRequestID(r.Context())
		auditID = audit.RequestIDFromContext(r.Context())
		zerolog.Ctx(r.Context()).Info().Msg("inside")
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))

	header := res.Header().Get("X-Request-ID")
	require.NotEmpty(t, header)
	assert.Equal(t, header, ctxID)
	assert.Equal(t, header, auditID)
	assert.Contains(t, buf.String(), `"request_id":"`+header+`"`)
}

func TestCorrelationID_KeepsIncomingHeader(t *testing.T) {
	handler := CorrelationID(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-123", GetRequestID(r.Context()))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	assert.Equal(t, "req-123", res.Header().Get("X-Request-ID"))
}

func TestCorrelationID_ReplacesUnusableHeader(t *testing.T) {
	for _, incoming := range []string{"has space", "line\nbreak", strings.Repeat("a", 129)} {
		var seen string
		handler := CorrelationID(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", incoming)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)

		assert.NotEqual(t, incoming, seen)
		assert.NoError(t, uuid.Validate(seen))
		assert.Equal(t, seen, res.Header().Get("X-Request-ID"))
	}
}

func TestCorrelationID_TagsActiveSpan(t *testing.T) {
	exporter := withRecorder(t)
	var buf bytes.Buffer

	handler := Tracing(CorrelationID(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside")
	})))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("X-Request-ID", "req-span")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "req-span", spanAttrs(spans[0])["request_id"].AsString())
	assert.Contains(t, buf.String(), `"trace_id":"`+spans[0].SpanContext.TraceID().String()+`"`)
}

func TestRequestLogging_UsesRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := CorrelationID(logger)(RequestLogging(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("done"))
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", nil)
	req.Header.Set("X-Request-ID", "req-log")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-log"`)
	assert.Contains(t, out, `"status":201`)
	assert.Contains(t, out, `"bytes":4`)
	assert.Contains(t, out, `"message":"request"`)
}

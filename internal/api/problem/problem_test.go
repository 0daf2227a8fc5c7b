package problem

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, res *httptest.ResponseRecorder) ProblemDetails {
	t.Helper()
	var body ProblemDetails
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return body
}

func TestWrite_DevIncludesDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/events", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusBadRequest, TypeValidation, "Invalid request", errors.New("boom"), "development")

	assert.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))
	body := decode(t, res)
	assert.Equal(t, "boom", body.Detail)
	assert.Equal(t, "/api/v1/events", body.Instance)
	assert.Equal(t, http.StatusBadRequest, body.Status)
	assert.Equal(t, TypeValidation, body.Type)
}

func TestWrite_ProdSanitizesDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/events", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusInternalServerError, TypeServerError, "Server error", errors.New("pq: relation missing"), "production")

	body := decode(t, res)
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), body.Detail)
}

func TestWrite_OptionsWin(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusBadRequest, TypeValidation, "Invalid request", errors.New("internal"), "production",
		WithDetail("title is required"),
		WithErrors(map[string]interface{}{"title": "required"}),
		WithInstance("/custom"))

	body := decode(t, res)
	assert.Equal(t, "title is required", body.Detail)
	assert.Equal(t, "/custom", body.Instance)
	assert.Equal(t, "required", body.Errors["title"])
}

func TestWrite_LogsByStatusClass(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/x", nil)
	req = req.WithContext(logger.WithContext(req.Context()))

	Write(httptest.NewRecorder(), req, http.StatusNotFound, TypeNotFound, "Not found", errors.New("event not found"), "test")
	assert.Contains(t, buf.String(), `"level":"warn"`)

	buf.Reset()
	Write(httptest.NewRecorder(), req, http.StatusServiceUnavailable, TypeUnavailable, "Service unavailable", errors.New("timeout"), "test")
	assert.Contains(t, buf.String(), `"level":"error"`)
}

func TestWriteProblem_UnencodableErrors(t *testing.T) {
	res := httptest.NewRecorder()

	WriteProblem(res, ProblemDetails{
		Type:   TypeValidation,
		Status: http.StatusBadRequest,
		Errors: map[string]interface{}{"bad": make(chan int)},
	})

	assert.Equal(t, http.StatusInternalServerError, res.Code)
	body := decode(t, res)
	assert.Equal(t, TypeServerError, body.Type)
}

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Togather-Foundation/rsvp/internal/api/middleware"
	"github.com/Togather-Foundation/rsvp/internal/api/problem"
	"github.com/Togather-Foundation/rsvp/internal/assets"
	"github.com/Togather-Foundation/rsvp/internal/auth"
	"github.com/Togather-Foundation/rsvp/internal/domain/events"
	"github.com/Togather-Foundation/rsvp/internal/domain/users"
	"github.com/Togather-Foundation/rsvp/internal/storage"
)

// errMalformedBody is reported when a request body cannot be decoded.
var errMalformedBody = errors.New("malformed request body")

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads a single JSON value from the body. An empty body decodes
// to the zero value.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return nil
}

func pathParam(r *http.Request, key string) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.PathValue(key))
}

func actorID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// writeError maps domain errors onto problem responses. Messages of client
// errors are safe to show; server errors only expose detail in development.
func writeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	var (
		eventValidation events.ValidationError
		userValidation  users.ValidationError
		maxBytes        *http.MaxBytesError
	)

	switch {
	case errors.As(err, &eventValidation):
		writeValidation(w, r, err, eventValidation.Field, eventValidation.Message, env)
	case errors.As(err, &userValidation):
		writeValidation(w, r, err, userValidation.Field, userValidation.Message, env)
	case errors.Is(err, errMalformedBody), errors.Is(err, assets.ErrUnsupportedType):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env,
			problem.WithDetail(clientMessage(err)))
	case errors.Is(err, events.ErrSpotsBelowAttendance):
		writeValidation(w, r, err, "availableSpots", err.Error(), env)
	case errors.Is(err, assets.ErrTooLarge), errors.As(err, &maxBytes):
		problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypePayloadTooLarge, "Payload too large", err, env,
			problem.WithDetail(assets.ErrTooLarge.Error()))
	case errors.Is(err, users.ErrInvalidCredentials), errors.Is(err, events.ErrUnauthenticated),
		errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", err, env,
			problem.WithDetail(clientMessage(err)))
	case errors.Is(err, events.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Forbidden", err, env,
			problem.WithDetail(err.Error()))
	case errors.Is(err, events.ErrNotFound), errors.Is(err, users.ErrUserNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, env,
			problem.WithDetail(clientMessage(err)))
	case errors.Is(err, events.ErrCapacityExceeded):
		problem.Write(w, r, http.StatusConflict, problem.TypeCapacityExceeded, "Event is full", err, env,
			problem.WithDetail(err.Error()))
	case errors.Is(err, events.ErrAlreadyReserved), errors.Is(err, users.ErrEmailTaken):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Conflict", err, env,
			problem.WithDetail(clientMessage(err)))
	case errors.Is(err, storage.ErrUnavailable):
		w.Header().Set("Retry-After", "1")
		problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeUnavailable, "Service unavailable", err, env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, env)
	}
}

func writeValidation(w http.ResponseWriter, r *http.Request, err error, field, message, env string) {
	opts := []problem.Option{problem.WithDetail(err.Error())}
	if field != "" {
		opts = append(opts, problem.WithErrors(map[string]interface{}{field: message}))
	}
	problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env, opts...)
}

// clientMessage returns the outermost sentinel message without wrapped
// internals.
func clientMessage(err error) string {
	for _, sentinel := range []error{
		errMalformedBody, assets.ErrUnsupportedType,
		users.ErrInvalidCredentials, events.ErrUnauthenticated, auth.ErrMissingToken, auth.ErrInvalidToken,
		events.ErrNotFound, users.ErrUserNotFound,
		events.ErrAlreadyReserved, users.ErrEmailTaken,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

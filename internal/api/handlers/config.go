package handlers

import (
	"errors"
	"net/http"

	"github.com/Togather-Foundation/rsvp/internal/api/problem"
)

var errMapsKeyUnset = errors.New("maps api key is not configured")

// MapsKey exposes the browser maps key. It is meant for client-side map
// widgets only and answers 500 when no key is configured.
func MapsKey(apiKey, env string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiKey == "" {
			problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Maps API key not configured", errMapsKeyUnset, env,
				problem.WithDetail(errMapsKeyUnset.Error()))
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, struct {
			APIKey string `json:"apiKey"`
		}{APIKey: apiKey})
	})
}

package handlers

import (
	"net/http"

	"github.com/Togather-Foundation/rsvp/internal/domain/events"
)

// UserEventsHandler lists a user's own events. The service enforces that the
// path user is the caller.
type UserEventsHandler struct {
	Events *events.Service
	Env    string
}

func NewUserEventsHandler(service *events.Service, env string) *UserEventsHandler {
	return &UserEventsHandler{Events: service, Env: env}
}

func (h *UserEventsHandler) Created(w http.ResponseWriter, r *http.Request) {
	list, err := h.Events.ListCreatedBy(r.Context(), actorID(r), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, newEventList(list))
}

func (h *UserEventsHandler) Attending(w http.ResponseWriter, r *http.Request) {
	list, err := h.Events.ListAttendedBy(r.Context(), actorID(r), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, newEventList(list))
}

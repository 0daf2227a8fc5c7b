package handlers

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Togather-Foundation/rsvp/internal/assets"
	"github.com/Togather-Foundation/rsvp/internal/domain/events"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temp files.
const multipartMemory = 8 << 20

type EventsHandler struct {
	Service *events.Service
	Env     string
}

func NewEventsHandler(service *events.Service, env string) *EventsHandler {
	return &EventsHandler{Service: service, Env: env}
}

type creatorResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type eventResponse struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Date           string          `json:"date"`
	Time           string          `json:"time"`
	Location       string          `json:"location"`
	AvailableSpots int             `json:"availableSpots"`
	AttendeeCount  int             `json:"attendeeCount"`
	SpotsRemaining int             `json:"spotsRemaining"`
	Attendees      []string        `json:"attendees"`
	Creator        creatorResponse `json:"creator"`
	ImageURL       string          `json:"imageUrl"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func newEventResponse(e events.Event) eventResponse {
	attendees := e.Attendees
	if attendees == nil {
		attendees = []string{}
	}
	return eventResponse{
		ID:             e.ID,
		Title:          e.Title,
		Description:    e.Description,
		Date:           e.Date.Format("2006-01-02"),
		Time:           e.Time,
		Location:       e.Location,
		AvailableSpots: e.AvailableSpots,
		AttendeeCount:  e.AttendeeCount,
		SpotsRemaining: e.SpotsRemaining(),
		Attendees:      attendees,
		Creator: creatorResponse{
			ID:    e.Creator.ID,
			Name:  e.Creator.Name,
			Email: e.Creator.Email,
		},
		ImageURL:  e.ImageURL,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func newEventList(list []events.Event) []eventResponse {
	out := make([]eventResponse, 0, len(list))
	for _, e := range list {
		out = append(out, newEventResponse(e))
	}
	return out
}

type messageResponse struct {
	Message string `json:"message"`
}

type reserveResponse struct {
	Message       string `json:"message"`
	AttendeeCount int    `json:"attendeeCount"`
}

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context(), events.ParseListQuery(r.URL.Query()))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, newEventList(list))
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.Service.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, newEventResponse(*event))
}

func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var (
		draft  events.Draft
		upload *assets.Upload
	)

	if isMultipart(r) {
		form, err := parseMultipart(r)
		if err != nil {
			writeError(w, r, err, h.Env)
			return
		}
		defer func() { _ = form.RemoveAll() }()

		draft = events.Draft{
			Title:       formValue(form, "title"),
			Description: formValue(form, "description"),
			Date:        formValue(form, "date"),
			Time:        formValue(form, "time"),
			Location:    formValue(form, "location"),
		}
		if draft.AvailableSpots, err = formInt(form, "availableSpots"); err != nil {
			writeError(w, r, err, h.Env)
			return
		}
		upload, err = formUpload(form)
		if err != nil {
			writeError(w, r, err, h.Env)
			return
		}
		if upload != nil {
			defer closeUpload(upload)
		}
	} else if err := decodeJSON(r, &draft); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	event, err := h.Service.Create(r.Context(), actorID(r), draft, upload)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	w.Header().Set("Location", "/api/v1/events/"+event.ID)
	writeJSON(w, http.StatusCreated, newEventResponse(*event))
}

// updateRequest is the JSON update body. ClearImage drops the current image
// unless a new one is uploaded in the same request.
type updateRequest struct {
	events.Patch
	ClearImage bool `json:"clearImage"`
}

func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var (
		patch events.Patch
		image events.ImageChange
	)

	if isMultipart(r) {
		form, err := parseMultipart(r)
		if err != nil {
			writeError(w, r, err, h.Env)
			return
		}
		defer func() { _ = form.RemoveAll() }()

		patch = events.Patch{
			Title:       formPtr(form, "title"),
			Description: formPtr(form, "description"),
			Date:        formPtr(form, "date"),
			Time:        formPtr(form, "time"),
			Location:    formPtr(form, "location"),
		}
		if patch.AvailableSpots, err = formInt(form, "availableSpots"); err != nil {
			writeError(w, r, err, h.Env)
			return
		}
		image.Clear, _ = strconv.ParseBool(formValue(form, "clearImage"))
		image.Upload, err = formUpload(form)
		if err != nil {
			writeError(w, r, err, h.Env)
			return
		}
		if image.Upload != nil {
			defer closeUpload(image.Upload)
		}
	} else {
		var req updateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, h.Env)
			return
		}
		patch = req.Patch
		image.Clear = req.ClearImage
	}

	event, err := h.Service.Update(r.Context(), actorID(r), pathParam(r, "id"), patch, image)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, newEventResponse(*event))
}

func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), actorID(r), pathParam(r, "id")); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Event deleted"})
}

func (h *EventsHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	count, err := h.Service.Reserve(r.Context(), actorID(r), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, reserveResponse{Message: "RSVP successful", AttendeeCount: count})
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func parseMultipart(r *http.Request) (*multipart.Form, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, maxErr
		}
		return nil, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return r.MultipartForm, nil
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// formPtr distinguishes an absent field (nil) from a present one.
func formPtr(form *multipart.Form, key string) *string {
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

func formInt(form *multipart.Form, key string) (*int, error) {
	raw := strings.TrimSpace(formValue(form, key))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, events.ValidationError{Field: key, Message: "must be a whole number"}
	}
	return &n, nil
}

func formUpload(form *multipart.Form) (*assets.Upload, error) {
	files := form.File[assets.FieldName]
	if len(files) == 0 {
		return nil, nil
	}
	header := files[0]
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	return &assets.Upload{Filename: header.Filename, Content: file}, nil
}

func closeUpload(upload *assets.Upload) {
	if c, ok := upload.Content.(multipart.File); ok {
		_ = c.Close()
	}
}

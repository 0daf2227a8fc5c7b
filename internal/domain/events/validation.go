package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/Togather-Foundation/rsvp/internal/domain/validate"
	"github.com/Togather-Foundation/rsvp/internal/sanitize"
	"github.com/go-playground/validator/v10"
	"github.com/markusmobius/go-dateparser"
)

// Draft is the client input for a new event.
type Draft struct {
	Title          string `json:"title" validate:"required,max=200"`
	Description    string `json:"description" validate:"required,max=5000"`
	Date           string `json:"date" validate:"required"`
	Time           string `json:"time" validate:"required,max=50"`
	Location       string `json:"location" validate:"required,max=300"`
	AvailableSpots *int   `json:"availableSpots" validate:"required,min=1"`
}

// Patch is the client input for an update. Nil or blank text fields leave the
// stored value unchanged.
type Patch struct {
	Title          *string `json:"title" validate:"omitempty,max=200"`
	Description    *string `json:"description" validate:"omitempty,max=5000"`
	Date           *string `json:"date"`
	Time           *string `json:"time" validate:"omitempty,max=50"`
	Location       *string `json:"location" validate:"omitempty,max=300"`
	AvailableSpots *int    `json:"availableSpots" validate:"omitempty,min=1"`
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseDate parses an event date and returns it as midnight UTC of that
// calendar day. ISO forms are tried first; anything else goes through
// go-dateparser ("March 3, 2026", "3 mars 2026").
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ValidationError{Field: "date", Message: "required"}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return calendarDay(t), nil
		}
	}
	parsed, err := dateparser.Parse(nil, value)
	if err != nil || parsed.Time.IsZero() {
		return time.Time{}, ValidationError{Field: "date", Message: fmt.Sprintf("unrecognised date %q", value)}
	}
	return calendarDay(parsed.Time), nil
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func checkStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	if field, msg, ok := validate.FirstFailure(err); ok {
		return ValidationError{Field: field, Message: msg}
	}
	return fmt.Errorf("validate: %w", err)
}

// buildCreateParams sanitizes and validates a draft.
func buildCreateParams(v *validator.Validate, draft Draft) (EventCreateParams, error) {
	draft.Title = sanitize.Text(draft.Title)
	draft.Description = sanitize.Text(draft.Description)
	draft.Time = sanitize.Text(draft.Time)
	draft.Location = sanitize.Text(draft.Location)

	if err := checkStruct(v, draft); err != nil {
		return EventCreateParams{}, err
	}
	date, err := ParseDate(draft.Date)
	if err != nil {
		return EventCreateParams{}, err
	}
	return EventCreateParams{
		Title:          draft.Title,
		Description:    draft.Description,
		Date:           date,
		Time:           draft.Time,
		Location:       draft.Location,
		AvailableSpots: *draft.AvailableSpots,
	}, nil
}

// buildUpdateParams sanitizes and validates a patch. Blank text collapses to
// nil so the merge keeps the stored value.
func buildUpdateParams(v *validator.Validate, patch Patch) (EventUpdateParams, error) {
	patch.Title = blankToNil(sanitize.TextPtr(patch.Title))
	patch.Description = blankToNil(sanitize.TextPtr(patch.Description))
	patch.Time = blankToNil(sanitize.TextPtr(patch.Time))
	patch.Location = blankToNil(sanitize.TextPtr(patch.Location))
	patch.Date = blankToNil(patch.Date)

	if err := checkStruct(v, patch); err != nil {
		return EventUpdateParams{}, err
	}
	if patch.AvailableSpots != nil && *patch.AvailableSpots < 1 {
		return EventUpdateParams{}, ValidationError{Field: "availableSpots", Message: "must be at least 1"}
	}

	params := EventUpdateParams{
		Title:          patch.Title,
		Description:    patch.Description,
		Time:           patch.Time,
		Location:       patch.Location,
		AvailableSpots: patch.AvailableSpots,
	}
	if patch.Date != nil {
		date, err := ParseDate(*patch.Date)
		if err != nil {
			return EventUpdateParams{}, err
		}
		params.Date = &date
	}
	return params, nil
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

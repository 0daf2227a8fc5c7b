package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/Togather-Foundation/rsvp/internal/assets"
	"github.com/Togather-Foundation/rsvp/internal/audit"
	"github.com/Togather-Foundation/rsvp/internal/domain/ids"
	"github.com/Togather-Foundation/rsvp/internal/domain/validate"
	"github.com/Togather-Foundation/rsvp/internal/metrics"
	"github.com/Togather-Foundation/rsvp/internal/telemetry"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AssetStore persists uploaded images and releases them again. Refs are the
// opaque strings stored in Event.ImageURL.
type AssetStore interface {
	Save(ctx context.Context, upload *assets.Upload) (string, error)
	Release(ctx context.Context, ref string) error
}

// ImageChange describes what an update does to the event image. An upload
// wins over Clear when both are set.
type ImageChange struct {
	Upload *assets.Upload
	Clear  bool
}

type Service struct {
	repo        Repository
	assets      AssetStore
	authz       Authorizer
	auditLogger *audit.Logger
	logger      zerolog.Logger
	validator   *validator.Validate
	tracer      trace.Tracer
}

type Option func(*Service)

// WithAuthorizer replaces the default OwnershipAuthorizer.
func WithAuthorizer(a Authorizer) Option {
	return func(s *Service) { s.authz = a }
}

func NewService(repo Repository, store AssetStore, auditLogger *audit.Logger, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		assets:      store,
		authz:       OwnershipAuthorizer{},
		auditLogger: auditLogger,
		logger:      logger.With().Str("component", "events").Logger(),
		validator:   validate.New(),
		tracer:      telemetry.GetTracer("github.com/Togather-Foundation/rsvp/internal/domain/events"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the draft, stores the optional image and inserts the
// event with actorID as creator. The image is released again if the insert
// fails.
func (s *Service) Create(ctx context.Context, actorID string, draft Draft, upload *assets.Upload) (*Event, error) {
	ctx, span := s.tracer.Start(ctx, "events.Create")
	defer span.End()

	if actorID == "" {
		return nil, ErrUnauthenticated
	}
	params, err := buildCreateParams(s.validator, draft)
	if err != nil {
		return nil, err
	}
	params.CreatorID = actorID
	params.ULID, err = ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}

	if upload != nil {
		ref, err := s.saveAsset(ctx, upload)
		if err != nil {
			return nil, err
		}
		params.ImageURL = ref
	}

	event, err := s.repo.Create(ctx, params)
	if err != nil {
		s.releaseAsset(ctx, params.ImageURL)
		recordSpanError(span, err)
		return nil, fmt.Errorf("create event: %w", err)
	}

	span.SetAttributes(attribute.String("event.id", event.ID))
	metrics.EventMutationsTotal.WithLabelValues("create").Inc()
	s.auditLogger.LogSuccess(ctx, audit.ActionEventCreated, actorID, "event", event.ID, nil)
	return event, nil
}

// Get returns a single event. Malformed ids are reported as ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*Event, error) {
	if ids.ValidateULID(id) != nil {
		return nil, ErrNotFound
	}
	event, err := s.repo.GetByULID(ctx, ids.NormalizeULID(id))
	if err != nil {
		return nil, wrapRepoErr("get event", err)
	}
	if err := s.authz.AuthorizeRead(event, ""); err != nil {
		return nil, err
	}
	return event, nil
}

// Update merges patch into the event and applies the image change. Only the
// creator may update.
func (s *Service) Update(ctx context.Context, actorID, id string, patch Patch, image ImageChange) (*Event, error) {
	ctx, span := s.tracer.Start(ctx, "events.Update", trace.WithAttributes(attribute.String("event.id", id)))
	defer span.End()

	params, err := buildUpdateParams(s.validator, patch)
	if err != nil {
		return nil, err
	}

	var updated *Event
	err = s.mutate(ctx, actorID, id, func(ctx context.Context, current *Event) error {
		if params.AvailableSpots != nil && *params.AvailableSpots < current.AttendeeCount {
			return ValidationError{Field: "availableSpots", Message: ErrSpotsBelowAttendance.Error()}
		}

		var newRef string
		switch {
		case image.Upload != nil:
			ref, saveErr := s.saveAsset(ctx, image.Upload)
			if saveErr != nil {
				return saveErr
			}
			newRef = ref
			params.ImageURL = &newRef
		case image.Clear:
			empty := ""
			params.ImageURL = &empty
		}

		if params.IsEmpty() {
			updated = current
			return nil
		}

		event, updateErr := s.repo.Update(ctx, current.ID, params)
		if updateErr != nil {
			s.releaseAsset(ctx, newRef)
			if errors.Is(updateErr, ErrSpotsBelowAttendance) {
				return ValidationError{Field: "availableSpots", Message: updateErr.Error()}
			}
			return wrapRepoErr("update event", updateErr)
		}
		updated = event

		if params.ImageURL != nil && current.ImageURL != "" && current.ImageURL != *params.ImageURL {
			s.releaseAsset(ctx, current.ImageURL)
		}
		return nil
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	metrics.EventMutationsTotal.WithLabelValues("update").Inc()
	s.auditLogger.LogSuccess(ctx, audit.ActionEventUpdated, actorID, "event", updated.ID, nil)
	return updated, nil
}

// Delete removes the event and then releases its image. Only the creator may
// delete.
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	ctx, span := s.tracer.Start(ctx, "events.Delete", trace.WithAttributes(attribute.String("event.id", id)))
	defer span.End()

	var deleted *Event
	err := s.mutate(ctx, actorID, id, func(ctx context.Context, current *Event) error {
		if err := s.repo.Delete(ctx, current.ID); err != nil {
			return wrapRepoErr("delete event", err)
		}
		deleted = current
		s.releaseAsset(ctx, current.ImageURL)
		return nil
	})
	if err != nil {
		recordSpanError(span, err)
		return err
	}

	metrics.EventMutationsTotal.WithLabelValues("delete").Inc()
	s.auditLogger.LogSuccess(ctx, audit.ActionEventDeleted, actorID, "event", deleted.ID, nil)
	return nil
}

// mutate is the single authorization gate for writes: it loads the event,
// asks the Authorizer, and only then runs fn.
func (s *Service) mutate(ctx context.Context, actorID, id string, fn func(ctx context.Context, current *Event) error) error {
	if actorID == "" {
		return ErrUnauthenticated
	}
	if ids.ValidateULID(id) != nil {
		return ErrNotFound
	}
	current, err := s.repo.GetByULID(ctx, ids.NormalizeULID(id))
	if err != nil {
		return wrapRepoErr("load event", err)
	}
	if err := s.authz.AuthorizeMutation(current, actorID); err != nil {
		s.logger.Warn().Str("event_id", current.ID).Str("actor_id", actorID).Msg("mutation rejected")
		return err
	}
	return fn(ctx, current)
}

func (s *Service) saveAsset(ctx context.Context, upload *assets.Upload) (string, error) {
	if s.assets == nil {
		return "", fmt.Errorf("asset store not configured")
	}
	ref, err := s.assets.Save(ctx, upload)
	if err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	return ref, nil
}

// releaseAsset is best effort: a failed release leaves an orphan for the
// sweep job and never fails the request.
func (s *Service) releaseAsset(ctx context.Context, ref string) {
	if ref == "" || s.assets == nil {
		return
	}
	if err := s.assets.Release(ctx, ref); err != nil {
		s.logger.Error().Err(err).Str("asset", ref).Msg("release image")
	}
}

// wrapRepoErr keeps domain sentinels unwrapped and adds context to others.
func wrapRepoErr(op string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrAlreadyReserved), errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, ErrSpotsBelowAttendance), errors.Is(err, ErrUnauthenticated):
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

package events

import (
	"context"
	"errors"
	"strconv"

	"github.com/Togather-Foundation/rsvp/internal/audit"
	"github.com/Togather-Foundation/rsvp/internal/domain/ids"
	"github.com/Togather-Foundation/rsvp/internal/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Reserve takes one spot of the event for actorID and returns the new
// attendee count.
//
// Errors: ErrUnauthenticated, ErrNotFound, ErrAlreadyReserved (also for an
// attendee of a full event) and ErrCapacityExceeded. The check and the append
// are a single conditional write in the repository, so concurrent callers can
// never push the attendee count past AvailableSpots.
func (s *Service) Reserve(ctx context.Context, actorID, id string) (int, error) {
	ctx, span := s.tracer.Start(ctx, "events.Reserve", trace.WithAttributes(attribute.String("event.id", id)))
	defer span.End()

	if actorID == "" {
		return 0, ErrUnauthenticated
	}
	if ids.ValidateULID(id) != nil {
		metrics.RecordReservation(metrics.OutcomeNotFound)
		return 0, ErrNotFound
	}
	eventID := ids.NormalizeULID(id)

	count, err := s.repo.Reserve(ctx, eventID, actorID)
	if err != nil {
		outcome := reservationOutcome(err)
		metrics.RecordReservation(outcome)
		span.SetAttributes(attribute.String("rsvp.outcome", outcome))
		switch outcome {
		case metrics.OutcomeAlreadyReserved, metrics.OutcomeCapacityExceeded:
			s.auditLogger.LogFailure(ctx, audit.ActionEventReserved, actorID, "event", eventID,
				map[string]string{"reason": outcome})
		case metrics.OutcomeError:
			recordSpanError(span, err)
		}
		return 0, wrapRepoErr("reserve", err)
	}

	metrics.RecordReservation(metrics.OutcomeReserved)
	span.SetAttributes(attribute.Int("rsvp.attendee_count", count))
	s.auditLogger.LogSuccess(ctx, audit.ActionEventReserved, actorID, "event", eventID,
		map[string]string{"attendee_count": strconv.Itoa(count)})
	return count, nil
}

func reservationOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeReserved
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrAlreadyReserved):
		return metrics.OutcomeAlreadyReserved
	case errors.Is(err, ErrCapacityExceeded):
		return metrics.OutcomeCapacityExceeded
	default:
		return metrics.OutcomeError
	}
}

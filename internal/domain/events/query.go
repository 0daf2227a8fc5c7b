package events

import (
	"context"
	"net/url"
	"strings"
)

// List returns events matching q. Results are read fresh from storage on
// every call.
func (s *Service) List(ctx context.Context, q ListQuery) ([]Event, error) {
	ctx, span := s.tracer.Start(ctx, "events.List")
	defer span.End()

	q.Search = strings.TrimSpace(q.Search)
	q.Sort = NormalizeSort(string(q.Sort))
	events, err := s.repo.List(ctx, q)
	if err != nil {
		recordSpanError(span, err)
		return nil, wrapRepoErr("list events", err)
	}
	if events == nil {
		events = []Event{}
	}
	return events, nil
}

// ListCreatedBy lists the events targetUserID created. Users may only list
// their own events.
func (s *Service) ListCreatedBy(ctx context.Context, actorID, targetUserID string) ([]Event, error) {
	if err := s.authz.AuthorizeSelfAccess(targetUserID, actorID); err != nil {
		return nil, err
	}
	return s.List(ctx, ListQuery{CreatorID: targetUserID, Sort: SortDateAsc})
}

// ListAttendedBy lists the events targetUserID reserved a spot for. Users may
// only list their own reservations.
func (s *Service) ListAttendedBy(ctx context.Context, actorID, targetUserID string) ([]Event, error) {
	if err := s.authz.AuthorizeSelfAccess(targetUserID, actorID); err != nil {
		return nil, err
	}
	return s.List(ctx, ListQuery{AttendeeID: targetUserID, Sort: SortDateAsc})
}

// NormalizeSort maps a client sort key to a Sort. Unknown keys fall back to
// SortDateAsc.
func NormalizeSort(value string) Sort {
	switch Sort(strings.ToLower(strings.TrimSpace(value))) {
	case SortDateDesc:
		return SortDateDesc
	case SortAttendeesAsc:
		return SortAttendeesAsc
	case SortAttendeesDesc:
		return SortAttendeesDesc
	default:
		return SortDateAsc
	}
}

// ParseListQuery reads search (alias q) and sortBy (alias sort) from a query
// string.
func ParseListQuery(values url.Values) ListQuery {
	search := values.Get("search")
	if search == "" {
		search = values.Get("q")
	}
	sort := values.Get("sortBy")
	if sort == "" {
		sort = values.Get("sort")
	}
	return ListQuery{
		Search: strings.TrimSpace(search),
		Sort:   NormalizeSort(sort),
	}
}

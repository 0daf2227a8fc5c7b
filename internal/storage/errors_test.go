package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Togather-Foundation/rsvp/internal/domain/events"
	"github.com/Togather-Foundation/rsvp/internal/domain/users"
	"github.com/stretchr/testify/require"
)

func TestErrUnavailableSurvivesWrapping(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("reserve: %w", fmt.Errorf("%w: %w", ErrUnavailable, cause))

	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, err, cause)
}

func TestIsDomainOutcome(t *testing.T) {
	require.True(t, IsDomainOutcome(fmt.Errorf("reserve: %w", events.ErrCapacityExceeded)))
	require.True(t, IsDomainOutcome(users.ErrEmailTaken))
	require.False(t, IsDomainOutcome(ErrUnavailable))
	require.False(t, IsDomainOutcome(nil))
}

package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Togather-Foundation/rsvp/internal/storage"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))

	timeout := fmt.Errorf("query: %w", context.DeadlineExceeded)
	assert.ErrorIs(t, classify(timeout), storage.ErrUnavailable)
	assert.ErrorIs(t, classify(timeout), context.DeadlineExceeded)

	plain := errors.New("no such table: events")
	assert.Equal(t, plain, classify(plain))
}

func TestConstraintMessagesFallback(t *testing.T) {
	assert.True(t, isUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)")))
	assert.True(t, isForeignKeyViolation(errors.New("FOREIGN KEY constraint failed (787)")))
	assert.True(t, isCheckViolation(errors.New("CHECK constraint failed: available_spots >= 1")))
	assert.False(t, isUniqueViolation(errors.New("disk I/O error")))
	assert.False(t, isUniqueViolation(nil))
}

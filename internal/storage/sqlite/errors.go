package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Togather-Foundation/rsvp/internal/metrics"
	"github.com/Togather-Foundation/rsvp/internal/storage"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// classify marks lock contention and timeouts with storage.ErrUnavailable.
func classify(err error) error {
	if err == nil || !isTransient(err) {
		return err
	}
	return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		// Extended codes keep the primary code in the low byte.
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	return hasCode(err, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY) ||
		hasMessage(err, "unique constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return hasCode(err, sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY) ||
		hasMessage(err, "foreign key constraint failed")
}

func isCheckViolation(err error) bool {
	return hasCode(err, sqlite3lib.SQLITE_CONSTRAINT_CHECK) ||
		hasMessage(err, "check constraint failed")
}

func hasCode(err error, codes ...int) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	for _, code := range codes {
		if sqliteErr.Code() == code {
			return true
		}
	}
	return false
}

func hasMessage(err error, fragment string) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), fragment)
}

func observe(operation string, start time.Time, err *error) {
	recorded := *err
	if storage.IsDomainOutcome(recorded) {
		recorded = nil
	}
	metrics.RecordQuery("sqlite."+operation, start, recorded)
}

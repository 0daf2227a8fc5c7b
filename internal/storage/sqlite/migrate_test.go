package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateUpIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rsvp.db")
	require.NoError(t, MigrateUp(path))
	require.NoError(t, MigrateUp(path))
}

func TestMigrateDownDropsTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rsvp.db")
	require.NoError(t, MigrateUp(path))
	require.NoError(t, MigrateDown(path, 1))

	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	err = db.QueryRowContext(context.Background(),
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN ('users', 'events', 'event_attendees')`,
	).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMigrateDownRejectsZeroSteps(t *testing.T) {
	assert.Error(t, MigrateDown(filepath.Join(t.TempDir(), "rsvp.db"), 0))
}

func TestOpenEnablesForeignKeys(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "rsvp.db"))
	require.NoError(t, err)
	defer db.Close()

	var enabled int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&enabled))
	assert.Equal(t, 1, enabled)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

// Reserve depends on BEGIN taking the write lock immediately.
func TestDSNTakesWriteLockOnBegin(t *testing.T) {
	assert.Contains(t, strings.Split(dsnParams, "&"), "_txlock=immediate")
}

func TestCasefoldFunction(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "rsvp.db"))
	require.NoError(t, err)
	defer db.Close()

	var folded string
	require.NoError(t, db.QueryRow(`SELECT casefold(?)`, "CAFÉ ÉVASION").Scan(&folded))
	assert.Equal(t, "café évasion", folded)

	var matched bool
	require.NoError(t, db.QueryRow(`SELECT casefold(?) LIKE casefold(?)`, "Crème Brûlée", "%BRÛLÉE%").Scan(&matched))
	assert.True(t, matched)

	var null sql.NullString
	require.NoError(t, db.QueryRow(`SELECT casefold(NULL)`).Scan(&null))
	assert.False(t, null.Valid)
}

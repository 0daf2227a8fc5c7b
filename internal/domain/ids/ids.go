// Package ids generates and checks the two identifier shapes the service
// uses: ULIDs for events and UUIDs for users.
package ids

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/oklog/ulid/v2"
)

var (
	ErrInvalidULID = errors.New("invalid ULID")
	ErrInvalidUUID = errors.New("invalid UUID")
)

// NewULID returns a fresh ULID. Ids minted in the same millisecond by this
// process still sort in creation order.
func NewULID() (string, error) {
	id, err := ulid.New(ulid.Now(), ulid.DefaultEntropy())
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// IsULID reports whether value (ignoring surrounding space and case) is a
// well-formed ULID.
func IsULID(value string) bool {
	_, err := ulid.ParseStrict(strings.TrimSpace(value))
	return err == nil
}

func ValidateULID(value string) error {
	if !IsULID(value) {
		return ErrInvalidULID
	}
	return nil
}

// NormalizeULID returns the canonical upper-case form stored in the database.
func NormalizeULID(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

func NewUUID() string {
	return uuid.NewString()
}

func ValidateUUID(value string) error {
	if _, err := uuid.Parse(strings.TrimSpace(value)); err != nil {
		return ErrInvalidUUID
	}
	return nil
}

// UUIDToString formats a Postgres uuid column; NULL becomes "".
func UUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

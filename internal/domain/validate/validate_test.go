package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required,max=5"`
	Spots *int   `json:"availableSpots" validate:"required,min=1"`
}

func TestFirstFailure_UsesJSONNames(t *testing.T) {
	v := New()
	spots := 2

	field, msg, ok := FirstFailure(v.Struct(sample{Email: "nope", Name: "ok", Spots: &spots}))
	require.True(t, ok)
	require.Equal(t, "email", field)
	require.Equal(t, "must be a valid email address", msg)

	field, msg, ok = FirstFailure(v.Struct(sample{Email: "a@b.co", Name: "toolong", Spots: &spots}))
	require.True(t, ok)
	require.Equal(t, "name", field)
	require.Equal(t, "must be at most 5 characters", msg)
}

func TestFirstFailure_PointerNumbers(t *testing.T) {
	v := New()

	field, msg, ok := FirstFailure(v.Struct(sample{Email: "a@b.co", Name: "ok"}))
	require.True(t, ok)
	require.Equal(t, "availableSpots", field)
	require.Equal(t, "required", msg)

	zero := 0
	field, msg, ok = FirstFailure(v.Struct(sample{Email: "a@b.co", Name: "ok", Spots: &zero}))
	require.True(t, ok)
	require.Equal(t, "availableSpots", field)
	require.Equal(t, "must be at least 1", msg)
}

func TestFirstFailure_NotValidationError(t *testing.T) {
	_, _, ok := FirstFailure(errors.New("boom"))
	require.False(t, ok)
	_, _, ok = FirstFailure(nil)
	require.False(t, ok)
}

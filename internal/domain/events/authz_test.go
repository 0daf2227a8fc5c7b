package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOwnershipAuthorizer(t *testing.T) {
	authz := OwnershipAuthorizer{}
	event := &Event{ID: "01HYX3KQW7ERTV9XNBM2P8QJZF", CreatorID: "creator"}

	t.Run("reads are public", func(t *testing.T) {
		require.NoError(t, authz.AuthorizeRead(event, ""))
		require.NoError(t, authz.AuthorizeRead(event, "someone"))
	})

	t.Run("creator may mutate", func(t *testing.T) {
		require.NoError(t, authz.AuthorizeMutation(event, "creator"))
	})

	t.Run("others are forbidden", func(t *testing.T) {
		require.ErrorIs(t, authz.AuthorizeMutation(event, "intruder"), ErrForbidden)
		require.ErrorIs(t, authz.AuthorizeMutation(nil, "creator"), ErrForbidden)
	})

	t.Run("anonymous is unauthenticated", func(t *testing.T) {
		require.ErrorIs(t, authz.AuthorizeMutation(event, ""), ErrUnauthenticated)
		require.ErrorIs(t, authz.AuthorizeSelfAccess("u1", ""), ErrUnauthenticated)
	})

	t.Run("self access", func(t *testing.T) {
		require.NoError(t, authz.AuthorizeSelfAccess("u1", "u1"))
		require.ErrorIs(t, authz.AuthorizeSelfAccess("u1", "u2"), ErrForbidden)
	})
}

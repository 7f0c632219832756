// Package storetest exercises any credstore.Store implementation against the
// behaviour every backend must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richsynapse/synapsehub-client/internal/credstore"
)

// Run executes the shared store cases. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) credstore.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("empty_load", func(t *testing.T) {
		s := newStore(t)
		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("save_then_load", func(t *testing.T) {
		s := newStore(t)
		at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
		want := credstore.Session{
			Token:     "tok-1",
			User:      credstore.User{ID: 42, Username: "ada", Avatar: "https://example.invalid/a.png"},
			UpdatedAt: at,
		}
		require.NoError(t, s.Save(ctx, want))
		got, err := s.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want.Token, got.Token)
		assert.Equal(t, want.User, got.User)
		assert.True(t, got.UpdatedAt.Equal(at), "updated_at %v", got.UpdatedAt)
	})

	t.Run("save_replaces", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, credstore.Session{Token: "old", User: credstore.User{ID: 1}}))
		require.NoError(t, s.Save(ctx, credstore.Session{Token: "new", User: credstore.User{ID: 2, Username: "bob"}}))
		got, err := s.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "new", got.Token)
		assert.Equal(t, int64(2), got.User.ID)
		assert.False(t, got.UpdatedAt.IsZero())
	})

	t.Run("clear", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, credstore.Session{Token: "tok"}))
		require.NoError(t, s.Clear(ctx))
		require.NoError(t, s.Clear(ctx))
		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("rejects_blank_token", func(t *testing.T) {
		s := newStore(t)
		err := s.Save(ctx, credstore.Session{Token: "  "})
		assert.ErrorIs(t, err, credstore.ErrEmptyToken)
	})
}

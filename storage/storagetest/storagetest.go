// Package storagetest holds the behaviour every storage.Store driver must have.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/storage"
)

// Run exercises a fresh store returned by newStore.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, storage.KeyToken)
		assert.Equal(t, storage.ErrNotFound, err)
		assert.Equal(t, "", storage.GetString(ctx, s, storage.KeyToken))
	})

	t.Run("set then get", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, storage.KeyToken, "tok-1"))
		require.NoError(t, s.Set(ctx, storage.KeySchoolID, "42"))

		v, err := s.Get(ctx, storage.KeyToken)
		require.NoError(t, err)
		assert.Equal(t, "tok-1", v)
		assert.Equal(t, "42", storage.GetString(ctx, s, storage.KeySchoolID))
	})

	t.Run("overwrite", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, storage.KeyUser, `{"name":"a"}`))
		require.NoError(t, s.Set(ctx, storage.KeyUser, `{"name":"b"}`))
		assert.Equal(t, `{"name":"b"}`, storage.GetString(ctx, s, storage.KeyUser))
	})

	t.Run("delete session keys", func(t *testing.T) {
		s := newStore(t)
		for _, k := range storage.SessionKeys {
			require.NoError(t, s.Set(ctx, k, "v-"+k))
		}
		require.NoError(t, s.Set(ctx, "other", "kept"))

		require.NoError(t, s.Delete(ctx, storage.SessionKeys...))
		for _, k := range storage.SessionKeys {
			_, err := s.Get(ctx, k)
			assert.Equal(t, storage.ErrNotFound, err, k)
		}
		assert.Equal(t, "kept", storage.GetString(ctx, s, "other"))
	})

	t.Run("delete missing keys", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Delete(ctx, "nope"))
		assert.NoError(t, s.Delete(ctx))
	})
}

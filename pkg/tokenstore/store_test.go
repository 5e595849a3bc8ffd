package tokenstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/genvid/genvid/pkg/tokenstore"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	t.Run("Should report a missing token", func(t *testing.T) {
		store := tokenstore.New(afero.NewMemMapFs(), "/cfg")
		_, err := store.Load(t.Context())
		assert.ErrorIs(t, err, tokenstore.ErrNotFound)
	})

	t.Run("Should round-trip and clear the token", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		store := tokenstore.New(fs, "/cfg")

		require.NoError(t, store.Save(t.Context(), "abc"))
		token, err := store.Load(t.Context())
		require.NoError(t, err)
		assert.Equal(t, "abc", token)

		raw, err := afero.ReadFile(fs, store.Path())
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"genvid_token": "abc"`)

		require.NoError(t, store.Clear(t.Context()))
		_, err = store.Load(t.Context())
		assert.ErrorIs(t, err, tokenstore.ErrNotFound)
		exists, err := afero.Exists(fs, store.Path())
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Should keep unrelated entries when clearing", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		store := tokenstore.New(fs, "/cfg")
		require.NoError(t, afero.WriteFile(fs, store.Path(), []byte(`{"theme":"dark","genvid_token":"x"}`), 0o600))

		require.NoError(t, store.Clear(t.Context()))
		raw, err := afero.ReadFile(fs, store.Path())
		require.NoError(t, err)
		assert.JSONEq(t, `{"theme":"dark"}`, string(raw))
	})

	t.Run("Should refuse empty tokens and corrupt files", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		store := tokenstore.New(fs, "/cfg")
		assert.Error(t, store.Save(t.Context(), ""))

		require.NoError(t, afero.WriteFile(fs, store.Path(), []byte(`{not json`), 0o600))
		_, err := store.Load(t.Context())
		assert.ErrorContains(t, err, "parse credentials")
	})

	t.Run("Should persist on disk under a lock", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "genvid")
		store, err := tokenstore.NewOS(dir)
		require.NoError(t, err)

		require.NoError(t, store.Save(t.Context(), "disk-token"))
		info, err := os.Stat(store.Path())
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		again, err := tokenstore.NewOS(dir)
		require.NoError(t, err)
		token, err := again.Load(t.Context())
		require.NoError(t, err)
		assert.Equal(t, "disk-token", token)
	})
}

package storage

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_StoreAndDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), "/files/")
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := store.Store(ctx, []byte("%PDF-1.4"), "application/pdf", "invoices")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ref.Key, "invoices/"))
	assert.True(t, strings.HasSuffix(ref.Key, ".pdf"))
	assert.Equal(t, "/files/"+ref.Key, ref.URL)
	assert.True(t, store.Exists(ref.Key))

	full, err := store.SafeFullPath(ref.Key)
	require.NoError(t, err)
	data, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	require.NoError(t, store.Delete(ctx, ref.Key))
	assert.False(t, store.Exists(ref.Key))

	// deleting twice is harmless
	assert.NoError(t, store.Delete(ctx, ref.Key))
}

func TestLocalStorage_Rejections(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), "/files")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Store(ctx, []byte("x"), "text/html", "costs")
	assert.ErrorIs(t, err, ErrInvalidContentType)

	_, err = store.Store(ctx, make([]byte, MaxFileSize()+1), "image/png", "costs")
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = store.SafeFullPath("../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, store.Delete(ctx, ""), ErrInvalidKey)
}

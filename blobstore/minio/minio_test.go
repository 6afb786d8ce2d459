package minio

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/geotile/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStore_Integration requires a running MinIO instance on localhost:9000
// and is skipped otherwise.
func TestStore_Integration(t *testing.T) {
	ctx := context.Background()
	store, err := Dial(ctx, "localhost:9000", "minioadmin", "minioadmin", "test-geotile", false)
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	var _ blobstore.Store = store

	require.NoError(t, store.Put(ctx, "00/index", []byte("root")))
	data, err := blobstore.ReadAll(ctx, store, "00/index")
	require.NoError(t, err)
	assert.Equal(t, "root", string(data))

	names, err := store.List(ctx, "00/")
	require.NoError(t, err)
	assert.Contains(t, names, "00/index")

	require.NoError(t, store.Delete(ctx, "00/index"))
	_, err = store.Open(ctx, "00/index")
	assert.True(t, errors.Is(err, blobstore.ErrNotFound))
}

func TestStore_Key(t *testing.T) {
	s := NewStore(nil, "b", "charts/")
	assert.Equal(t, "charts/00/index", s.key("00/index"))

	s = NewStore(nil, "b", "")
	assert.Equal(t, "00/index", s.key("00/index"))
}

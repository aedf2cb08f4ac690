package blobstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGetRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data := []byte("jpeg-bytes")
	require.NoError(t, store.Put(ctx, BucketPhotos, "a.jpg", data, "image/jpeg"))

	got, err := store.Get(ctx, BucketPhotos, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestMemoryStoreGetMissingReturnsErrNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), BucketPhotos, "missing.jpg")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStoreGetFromMissingBucketReturnsErrNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "no-such-bucket", "a.jpg")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStorePutOwnsItsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data := []byte("original")
	require.NoError(t, store.Put(ctx, BucketPhotos, "a.jpg", data, ""))
	data[0] = 'X'

	got, err := store.Get(ctx, BucketPhotos, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got, "mutating the caller's slice after Put must not affect stored data")
}

func TestMemoryStoreGetReturnsIndependentCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, BucketPhotos, "a.jpg", []byte("original"), ""))

	got, err := store.Get(ctx, BucketPhotos, "a.jpg")
	require.NoError(t, err)
	got[0] = 'X'

	got2, err := store.Get(ctx, BucketPhotos, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got2, "mutating a returned slice must not affect stored data")
}

func TestMemoryStoreDeleteRemovesKey(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, BucketPhotos, "a.jpg", []byte("x"), ""))

	require.NoError(t, store.Delete(ctx, BucketPhotos, "a.jpg"))

	_, err := store.Get(ctx, BucketPhotos, "a.jpg")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStoreDeleteOfMissingKeyIsNoop(t *testing.T) {
	store := NewMemoryStore()
	assert.NoError(t, store.Delete(context.Background(), BucketPhotos, "never-existed.jpg"))
}

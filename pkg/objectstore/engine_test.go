package objectstore

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/objectcore/pkg/config"
	"github.com/cuemby/objectcore/pkg/diskio"
)

func newTestEngine(t *testing.T, k, m, numSets int) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.DefaultECK = k
	cfg.DefaultECM = m
	cfg.InlineThreshold = 64

	e := NewEngine(cfg, diskio.NewLocal(), "deployment-1")
	for s := 0; s < numSets; s++ {
		disks := make([]diskio.DiskHandle, k+m)
		for i := range disks {
			disks[i] = diskio.DiskHandle{DiskUUID: string(rune('a' + i)), MountPath: t.TempDir()}
		}
		require.NoError(t, e.AddSet(setName(s), disks))
	}
	return e
}

func setName(i int) string {
	return "set-" + string(rune('0'+i))
}

// single-set K=4/M=2 put/get/head round trip.
func TestPutGetHeadRoundTrip(t *testing.T) {
	e := newTestEngine(t, 4, 2, 1)
	ctx := context.Background()

	require.NoError(t, e.CreateBucket(ctx, "bkt"))

	body := bytes.Repeat([]byte("x"), 5000)
	put, err := e.Put(ctx, "bkt", "obj", bytes.NewReader(body), int64(len(body)), "application/octet-stream", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, put.VersionID)
	assert.NotEmpty(t, put.ETag)

	got, err := e.Get(ctx, "bkt", "obj", put.VersionID, nil)
	require.NoError(t, err)
	assert.Equal(t, body, got.Data)
	assert.Equal(t, put.ETag, got.ETag)

	meta, err := e.Head(ctx, "bkt", "obj", put.VersionID)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), meta.Size)
}

func TestPutInlineSmallObject(t *testing.T) {
	e := newTestEngine(t, 4, 2, 1)
	ctx := context.Background()
	require.NoError(t, e.CreateBucket(ctx, "bkt"))

	body := []byte("tiny")
	put, err := e.Put(ctx, "bkt", "small", bytes.NewReader(body), int64(len(body)), "text/plain", nil)
	require.NoError(t, err)

	got, err := e.Get(ctx, "bkt", "small", put.VersionID, nil)
	require.NoError(t, err)
	assert.Equal(t, body, got.Data)
}

func TestGetLatestResolvesNewestVersion(t *testing.T) {
	e := newTestEngine(t, 4, 2, 1)
	ctx := context.Background()
	require.NoError(t, e.CreateBucket(ctx, "bkt"))

	_, err := e.Put(ctx, "bkt", "obj", bytes.NewReader([]byte("v1 body")), 7, "text/plain", nil)
	require.NoError(t, err)
	second, err := e.Put(ctx, "bkt", "obj", bytes.NewReader([]byte("v2 body is newer")), 17, "text/plain", nil)
	require.NoError(t, err)

	got, err := e.Get(ctx, "bkt", "obj", "", nil)
	require.NoError(t, err)
	assert.Equal(t, second.VersionID, got.VersionID)
	assert.Equal(t, []byte("v2 body is newer"), got.Data)
}

func TestDeleteThenGetLatestIsNotFound(t *testing.T) {
	e := newTestEngine(t, 4, 2, 1)
	ctx := context.Background()
	require.NoError(t, e.CreateBucket(ctx, "bkt"))

	put, err := e.Put(ctx, "bkt", "obj", bytes.NewReader([]byte("body")), 4, "text/plain", nil)
	require.NoError(t, err)

	_, err = e.Delete(ctx, "bkt", "obj", put.VersionID)
	require.NoError(t, err)

	_, err = e.Get(ctx, "bkt", "obj", "", nil)
	require.Error(t, err)
}

func TestListReturnsKeysWithPrefix(t *testing.T) {
	e := newTestEngine(t, 4, 2, 1)
	ctx := context.Background()
	require.NoError(t, e.CreateBucket(ctx, "bkt"))

	for _, key := range []string{"a/1", "a/2", "b/1"} {
		_, err := e.Put(ctx, "bkt", key, bytes.NewReader([]byte("x")), 1, "text/plain", nil)
		require.NoError(t, err)
	}

	res, err := e.List(ctx, "bkt", "a/", "", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a/1", "a/2"}, res.Keys)
}

func TestGetByteRange(t *testing.T) {
	e := newTestEngine(t, 4, 2, 1)
	ctx := context.Background()
	require.NoError(t, e.CreateBucket(ctx, "bkt"))

	body := []byte("0123456789")
	put, err := e.Put(ctx, "bkt", "obj", bytes.NewReader(body), int64(len(body)), "text/plain", nil)
	require.NoError(t, err)

	got, err := e.Get(ctx, "bkt", "obj", put.VersionID, &ByteRange{Start: 2, End: 5})
	require.NoError(t, err)
	assert.Equal(t, []byte("2345"), got.Data)
}

// multiple sets spread objects across the ring.
func TestMultiSetDistributesObjects(t *testing.T) {
	e := newTestEngine(t, 2, 1, 3)
	ctx := context.Background()
	require.NoError(t, e.CreateBucket(ctx, "bkt"))

	for i := 0; i < 20; i++ {
		key := setName(i)
		_, err := e.Put(ctx, "bkt", key+"-key", bytes.NewReader([]byte("payload")), 7, "text/plain", nil)
		require.NoError(t, err)
	}

	res, err := e.List(ctx, "bkt", "", "", 100)
	require.NoError(t, err)
	assert.Len(t, res.Keys, 20)
}

func TestCreateDeleteListBuckets(t *testing.T) {
	e := newTestEngine(t, 2, 1, 1)
	ctx := context.Background()

	require.NoError(t, e.CreateBucket(ctx, "one"))
	require.NoError(t, e.CreateBucket(ctx, "two"))
	require.Error(t, e.CreateBucket(ctx, "one"))

	buckets, err := e.ListBuckets(ctx)
	require.NoError(t, err)
	assert.Len(t, buckets, 2)

	require.NoError(t, e.DeleteBucket(ctx, "one"))
	buckets, err = e.ListBuckets(ctx)
	require.NoError(t, err)
	assert.Len(t, buckets, 1)
}

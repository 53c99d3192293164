package chunkstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/objectcore/pkg/diskio"
	"github.com/cuemby/objectcore/pkg/errs"
)

func newTestStore(t *testing.T) (*Store, diskio.DiskHandle) {
	t.Helper()
	dio := diskio.NewLocal()
	disk := diskio.DiskHandle{DiskUUID: "disk-0", MountPath: t.TempDir()}
	return New(dio, "deployment-1"), disk
}

func TestWriteReadVersionRoundTrip(t *testing.T) {
	store, disk := newTestStore(t)
	ctx := context.Background()

	chunks := map[int][]byte{
		0: []byte("data-shard-0-padded"),
		1: []byte("data-shard-1-padded"),
	}
	sc := &Sidecar{
		Version:   SidecarSchemaVersion,
		VersionID: "v1",
		ModTime:   time.Now(),
		Size:      38,
		ECK:       2,
		ECM:       1,
		Chunks: []ChunkDigest{
			{Index: 0, Size: int64(len(chunks[0])), Blake2b256: Blake2b256Hex(chunks[0])},
			{Index: 1, Size: int64(len(chunks[1])), Blake2b256: Blake2b256Hex(chunks[1])},
		},
		ETag: ComputeETag([]string{Blake2b256Hex(chunks[0]), Blake2b256Hex(chunks[1])}, nil),
	}

	require.NoError(t, store.WriteVersion(ctx, disk, "bkt", "obj/key", "v1", sc, chunks))

	got, err := store.ReadSidecar(ctx, disk, "bkt", "obj/key", "v1")
	require.NoError(t, err)
	assert.Equal(t, sc.ETag, got.ETag)
	assert.Equal(t, sc.VersionID, got.VersionID)

	c0, err := store.ReadChunk(ctx, disk, "bkt", "obj/key", "v1", got, 0)
	require.NoError(t, err)
	assert.Equal(t, chunks[0], c0)
}

func TestReadChunkChecksumMismatch(t *testing.T) {
	store, disk := newTestStore(t)
	ctx := context.Background()

	chunks := map[int][]byte{0: []byte("original")}
	sc := &Sidecar{
		VersionID: "v1",
		ModTime:   time.Now(),
		Chunks:    []ChunkDigest{{Index: 0, Blake2b256: Blake2b256Hex(chunks[0])}},
	}
	require.NoError(t, store.WriteVersion(ctx, disk, "bkt", "key", "v1", sc, chunks))

	corrupt := map[int][]byte{0: []byte("corrupted")}
	require.NoError(t, store.WriteVersion(ctx, disk, "bkt", "key", "v1", sc, corrupt))

	_, err := store.ReadChunk(ctx, disk, "bkt", "key", "v1", sc, 0)
	require.Error(t, err)
	assert.Equal(t, errs.ChecksumMismatch, errs.CodeOf(err))
}

func TestListAndDeleteVersions(t *testing.T) {
	store, disk := newTestStore(t)
	ctx := context.Background()

	for _, v := range []string{"v1", "v2"} {
		sc := &Sidecar{VersionID: v, ModTime: time.Now()}
		require.NoError(t, store.WriteVersion(ctx, disk, "bkt", "key", v, sc, nil))
	}

	versions, err := store.ListVersions(ctx, disk, "bkt", "key")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"v1", "v2"}, versions)

	require.NoError(t, store.DeleteVersion(ctx, disk, "bkt", "key", "v1", 0))
	versions, err = store.ListVersions(ctx, disk, "bkt", "key")
	require.NoError(t, err)
	assert.Equal(t, []string{"v2"}, versions)
}

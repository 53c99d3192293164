package registry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/objectcore/pkg/chunkstore"
	"github.com/cuemby/objectcore/pkg/diskio"
	"github.com/cuemby/objectcore/pkg/erasure"
	"github.com/cuemby/objectcore/pkg/metrics"
	"github.com/cuemby/objectcore/pkg/quorum"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	codec, err := erasure.New(2, 1)
	require.NoError(t, err)

	dio := diskio.NewLocal()
	disks := make([]diskio.DiskHandle, 3)
	for i := range disks {
		disks[i] = diskio.DiskHandle{DiskUUID: string(rune('a' + i)), MountPath: t.TempDir()}
	}
	store := chunkstore.New(dio, "deployment-1")
	qe := quorum.New(quorum.Set{Disks: disks, Codec: codec}, store)

	e, err := New(qe, 100, time.Minute)
	require.NoError(t, err)
	return e
}

func TestRecordAndLookupRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	loc := Location{Bucket: "bkt", Key: "obj", VersionID: "v1", SetIndex: 2, Size: 1234}
	require.NoError(t, e.Record(ctx, loc))

	got, err := e.Lookup(ctx, "bkt", "obj", "v1")
	require.NoError(t, err)
	assert.Equal(t, loc.SetIndex, got.SetIndex)
	assert.Equal(t, loc.Size, got.Size)
}

func TestLookupServesFromCacheOnSecondCall(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	loc := Location{Bucket: "bkt", Key: "obj", VersionID: "v1"}
	require.NoError(t, e.Record(ctx, loc))

	_, err := e.Lookup(ctx, "bkt", "obj", "v1")
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.RegistryCacheHits)
	_, err = e.Lookup(ctx, "bkt", "obj", "v1")
	require.NoError(t, err)
	after := testutil.ToFloat64(metrics.RegistryCacheHits)
	assert.Greater(t, after, before)
}

func TestDeleteInvalidatesCache(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	loc := Location{Bucket: "bkt", Key: "obj", VersionID: "v1"}
	require.NoError(t, e.Record(ctx, loc))
	_, err := e.Lookup(ctx, "bkt", "obj", "v1")
	require.NoError(t, err)

	require.NoError(t, e.Delete(ctx, "bkt", "obj", "v1"))
	_, ok := e.cache.Get(recordKey("bkt", "obj", "v1"))
	assert.False(t, ok)

	_, err = e.Lookup(ctx, "bkt", "obj", "v1")
	assert.Error(t, err)
}

func TestRecordBatchCountsSuccesses(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	locs := []Location{
		{Bucket: "bkt", Key: "a", VersionID: "v1"},
		{Bucket: "bkt", Key: "b", VersionID: "v1"},
	}
	n := e.RecordBatch(ctx, locs)
	assert.Equal(t, 2, n)
}

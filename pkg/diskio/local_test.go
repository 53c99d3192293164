package diskio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAtomicReadRoundTrip(t *testing.T) {
	l := NewLocal()
	disk := DiskHandle{DiskUUID: "d1", MountPath: t.TempDir()}
	ctx := context.Background()

	err := l.WriteAtomic(ctx, disk, "a/b/sidecar", []byte("hello"))
	require.NoError(t, err)

	got, err := l.ReadFile(ctx, disk, "a/b/sidecar")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestWriteAtomicOverwritesInPlace(t *testing.T) {
	l := NewLocal()
	disk := DiskHandle{DiskUUID: "d1", MountPath: t.TempDir()}
	ctx := context.Background()

	require.NoError(t, l.WriteAtomic(ctx, disk, "f", []byte("v1")))
	require.NoError(t, l.WriteAtomic(ctx, disk, "f", []byte("v2")))

	got, err := l.ReadFile(ctx, disk, "f")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestReadFileNotFound(t *testing.T) {
	l := NewLocal()
	disk := DiskHandle{DiskUUID: "d1", MountPath: t.TempDir()}
	_, err := l.ReadFile(context.Background(), disk, "missing")
	require.Error(t, err)
}

func TestEnumerate(t *testing.T) {
	l := NewLocal()
	disk := DiskHandle{DiskUUID: "d1", MountPath: t.TempDir()}
	ctx := context.Background()

	require.NoError(t, l.WriteAtomic(ctx, disk, "dir/one", []byte("1")))
	require.NoError(t, l.WriteAtomic(ctx, disk, "dir/two", []byte("2")))

	names, err := l.Enumerate(ctx, disk, "dir")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one", "two"}, names)
}

func TestEnumerateMissingDirReturnsEmpty(t *testing.T) {
	l := NewLocal()
	disk := DiskHandle{DiskUUID: "d1", MountPath: t.TempDir()}
	names, err := l.Enumerate(context.Background(), disk, "nope")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestRemoveFileIdempotent(t *testing.T) {
	l := NewLocal()
	disk := DiskHandle{DiskUUID: "d1", MountPath: t.TempDir()}
	ctx := context.Background()

	require.NoError(t, l.WriteAtomic(ctx, disk, "x", []byte("1")))
	require.NoError(t, l.RemoveFile(ctx, disk, "x"))
	require.NoError(t, l.RemoveFile(ctx, disk, "x"))

	_, err := l.ReadFile(ctx, disk, "x")
	require.Error(t, err)
}

func TestRenameFile(t *testing.T) {
	l := NewLocal()
	disk := DiskHandle{DiskUUID: "d1", MountPath: t.TempDir()}
	ctx := context.Background()

	require.NoError(t, l.WriteAtomic(ctx, disk, "old", []byte("payload")))
	require.NoError(t, l.RenameFile(ctx, disk, "old", "sub/new"))

	got, err := l.ReadFile(ctx, disk, "sub/new")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestStat(t *testing.T) {
	l := NewLocal()
	disk := DiskHandle{DiskUUID: "d1", MountPath: t.TempDir()}
	ctx := context.Background()

	require.NoError(t, l.WriteAtomic(ctx, disk, "f", []byte("12345")))
	info, err := l.Stat(ctx, disk, "f")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.False(t, info.IsDir)
}

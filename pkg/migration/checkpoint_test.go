package migration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/objectcore/pkg/diskio"
)

func TestCheckpointSaveAndLoadRoundTrip(t *testing.T) {
	dio := diskio.NewLocal()
	disk := diskio.DiskHandle{DiskUUID: "d0", MountPath: t.TempDir()}
	store := NewCheckpointStore(dio, disk)

	ck := Checkpoint{
		JobID:          "job-1",
		GenerationFrom: 4,
		GenerationTo:   5,
		State:          StateMigrating,
		Counters:       Counters{Completed: 10, Failed: 1},
		SavedAt:        time.Now().UTC(),
	}
	require.NoError(t, store.Save(context.Background(), ck))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ck.JobID, got.JobID)
	assert.Equal(t, ck.GenerationTo, got.GenerationTo)
	assert.Equal(t, ck.Counters.Completed, got.Counters.Completed)
}

func TestCheckpointLoadMissingReturnsError(t *testing.T) {
	dio := diskio.NewLocal()
	disk := diskio.DiskHandle{DiskUUID: "d0", MountPath: t.TempDir()}
	store := NewCheckpointStore(dio, disk)

	_, err := store.Load(context.Background())
	require.Error(t, err)
}

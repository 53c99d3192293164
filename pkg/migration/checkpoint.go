package migration

import (
	"context"
	"encoding/json"

	"github.com/cuemby/objectcore/pkg/diskio"
	"github.com/cuemby/objectcore/pkg/errs"
)

const checkpointFileName = ".objectcore/migration-checkpoint.json"

// CheckpointStore persists and loads a Checkpoint through the same
// temp+fsync+rename discipline pkg/chunkstore uses for sidecars: the
// orchestrator's own state file is just another file committed via
// diskio.DiskIO, so a crash mid-write never leaves a torn checkpoint.
type CheckpointStore struct {
	dio  diskio.DiskIO
	disk diskio.DiskHandle
}

// NewCheckpointStore constructs a CheckpointStore writing to disk via dio.
func NewCheckpointStore(dio diskio.DiskIO, disk diskio.DiskHandle) *CheckpointStore {
	return &CheckpointStore{dio: dio, disk: disk}
}

// Save marshals and atomically commits ck.
func (c *CheckpointStore) Save(ctx context.Context, ck Checkpoint) error {
	data, err := json.Marshal(ck)
	if err != nil {
		return errs.Wrap(errs.Internal, "migration.CheckpointStore.Save.marshal", err)
	}
	return c.dio.WriteAtomic(ctx, c.disk, checkpointFileName, data)
}

// Load reads and decodes the most recent checkpoint, if any. Returns
// errs.NotFound if no checkpoint has ever been saved.
func (c *CheckpointStore) Load(ctx context.Context) (Checkpoint, error) {
	data, err := c.dio.ReadFile(ctx, c.disk, checkpointFileName)
	if err != nil {
		return Checkpoint{}, err
	}
	var ck Checkpoint
	if err := json.Unmarshal(data, &ck); err != nil {
		return Checkpoint{}, errs.Wrap(errs.Internal, "migration.CheckpointStore.Load.unmarshal", err)
	}
	return ck, nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/objectcore/pkg/chunkstore"
	"github.com/cuemby/objectcore/pkg/diskio"
	"github.com/cuemby/objectcore/pkg/erasure"
	"github.com/cuemby/objectcore/pkg/log"
	"github.com/cuemby/objectcore/pkg/migration"
	"github.com/cuemby/objectcore/pkg/quorum"
	"github.com/cuemby/objectcore/pkg/registry"
)

// manifestTask is the on-disk shape of one entry in a migration manifest:
// an operator-supplied list of objects known to move between two named
// sets, produced by comparing ring lookups under the old and new topology.
type manifestTask struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	VersionID string `json:"version_id"`
	Size      int64  `json:"size"`
	OldSet    string `json:"old_set"`
	NewSet    string `json:"new_set"`
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run a migration job moving objects between topology sets",
	Long: `migrate reads a manifest of objects affected by a topology
change (one JSON array of {bucket,key,version_id,size,old_set,new_set})
and moves each one from --old-disk to --new-disk: write the destination
version, update the location registry at --registry-disk to point at it,
then delete the source version, checkpointing progress to
--checkpoint-disk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		manifestPath, _ := cmd.Flags().GetString("manifest")
		oldDiskSpecs, _ := cmd.Flags().GetStringSlice("old-disk")
		newDiskSpecs, _ := cmd.Flags().GetStringSlice("new-disk")
		registryDiskSpecs, _ := cmd.Flags().GetStringSlice("registry-disk")
		checkpointDiskSpec, _ := cmd.Flags().GetString("checkpoint-disk")
		ecK, _ := cmd.Flags().GetInt("ec-k")
		ecM, _ := cmd.Flags().GetInt("ec-m")
		workerCount, _ := cmd.Flags().GetInt("workers")
		throttleRateBps, _ := cmd.Flags().GetFloat64("throttle-bps")
		resumeFlag, _ := cmd.Flags().GetBool("resume")

		tasks, err := loadManifest(manifestPath)
		if err != nil {
			return err
		}

		oldDisks, err := parseDiskSpecs(oldDiskSpecs)
		if err != nil {
			return err
		}
		newDisks, err := parseDiskSpecs(newDiskSpecs)
		if err != nil {
			return err
		}
		registryDisks, err := parseDiskSpecs(registryDiskSpecs)
		if err != nil {
			return err
		}
		checkpointDisks, err := parseDiskSpecs([]string{checkpointDiskSpec})
		if err != nil {
			return err
		}

		dio := diskio.NewLocal()
		ctx := context.Background()
		store := chunkstore.New(dio, "migration")

		codec, err := erasure.New(ecK, ecM)
		if err != nil {
			return err
		}
		oldEngine := quorum.New(quorum.Set{Disks: oldDisks, Codec: codec}, store)
		newEngine := quorum.New(quorum.Set{Disks: newDisks, Codec: codec}, store)
		registryQuorum := quorum.New(quorum.Set{Disks: registryDisks, Codec: codec}, store)
		reg, err := registry.New(registryQuorum, 0, 0)
		if err != nil {
			return fmt.Errorf("constructing registry: %w", err)
		}
		ckStore := migration.NewCheckpointStore(dio, checkpointDisks[0])

		move := func(ctx context.Context, task migration.Task) error {
			data, sidecar, err := oldEngine.Read(ctx, task.Bucket, task.Key, task.VersionID)
			if err != nil {
				return err
			}
			sidecar.Chunks = nil
			if sidecar.InlineData != nil || int64(len(data)) <= 0 {
				_, err = newEngine.WriteInline(ctx, task.Bucket, task.Key, task.VersionID, sidecar)
			} else {
				_, err = newEngine.Write(ctx, task.Bucket, task.Key, task.VersionID, sidecar, data)
			}
			if err != nil {
				return err
			}

			newSetIndex, _ := strconv.Atoi(task.NewSet)
			if err := reg.Record(ctx, registry.Location{
				Bucket:    task.Bucket,
				Key:       task.Key,
				VersionID: task.VersionID,
				SetIndex:  newSetIndex,
				ModTime:   sidecar.ModTime,
				Size:      sidecar.Size,
			}); err != nil {
				return err
			}

			return oldEngine.Delete(ctx, task.Bucket, task.Key, task.VersionID)
		}

		jobID := fmt.Sprintf("migrate-%d", time.Now().Unix())
		orch := migration.NewOrchestrator(migration.Config{
			JobID:           jobID,
			Move:            move,
			WorkerCount:     workerCount,
			ThrottleRateBps: throttleRateBps,
			CheckpointFn:    func(ck migration.Checkpoint) error { return ckStore.Save(ctx, ck) },
			CheckpointEvery: 100,
		})

		if resumeFlag {
			ck, err := ckStore.Load(ctx)
			if err != nil {
				return fmt.Errorf("loading checkpoint: %w", err)
			}
			orch.Resume(ck)
			log.WithJob(ck.JobID).Info().Msg("resuming migration from checkpoint")
		}

		taskCh := make(chan migration.Task, len(tasks))
		for _, t := range tasks {
			taskCh <- migration.Task{
				Bucket: t.Bucket, Key: t.Key, VersionID: t.VersionID,
				Size: t.Size, OldSet: t.OldSet, NewSet: t.NewSet,
			}
		}
		close(taskCh)
		orch.RecordScan(int64(len(tasks)), int64(len(tasks)))

		fmt.Printf("Starting migration job %s: %d objects\n", jobID, len(tasks))
		if err := orch.Run(ctx, taskCh); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		fmt.Printf("✓ Migration job %s finished: %s\n", jobID, orch.State())
		return nil
	},
}

func loadManifest(path string) ([]manifestTask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var tasks []manifestTask
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return tasks, nil
}

func init() {
	migrateCmd.Flags().String("manifest", "", "Path to migration manifest JSON (required)")
	migrateCmd.Flags().StringSlice("old-disk", nil, "Disk spec uuid:mountpath for the source set, repeatable")
	migrateCmd.Flags().StringSlice("new-disk", nil, "Disk spec uuid:mountpath for the destination set, repeatable")
	migrateCmd.Flags().StringSlice("registry-disk", nil, "Disk spec uuid:mountpath for the location registry's set, repeatable")
	migrateCmd.Flags().String("checkpoint-disk", "", "Disk spec uuid:mountpath to store migration checkpoints on")
	migrateCmd.Flags().Int("ec-k", 4, "Erasure data shard count")
	migrateCmd.Flags().Int("ec-m", 2, "Erasure parity shard count")
	migrateCmd.Flags().Int("workers", migration.DefaultWorkerCount, "Number of concurrent migration workers")
	migrateCmd.Flags().Float64("throttle-bps", 0, "Throttle migration to this many bytes/sec (0 = unthrottled)")
	migrateCmd.Flags().Bool("resume", false, "Resume from the last saved checkpoint")
	_ = migrateCmd.MarkFlagRequired("manifest")
	_ = migrateCmd.MarkFlagRequired("old-disk")
	_ = migrateCmd.MarkFlagRequired("new-disk")
	_ = migrateCmd.MarkFlagRequired("registry-disk")
	_ = migrateCmd.MarkFlagRequired("checkpoint-disk")
}

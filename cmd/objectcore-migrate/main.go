package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/cuemby/objectcore/pkg/diskio"
	"github.com/cuemby/objectcore/pkg/migration"
)

var (
	checkpointDisk = flag.String("checkpoint-disk", "", "Disk spec uuid:mountpath holding the migration checkpoint")
	showOnly       = flag.Bool("show", false, "Print the checkpoint and exit without modifying it")
	resetState     = flag.String("reset-state", "", "Rewrite the checkpoint's state field (idle, scanning, migrating, complete, failed) and exit")
)

// objectcore-migrate is a standalone checkpoint inspection/repair tool for
// a migration job that was interrupted mid-run: it never moves data
// itself, only reads or rewrites the checkpoint file a migration
// orchestrator periodically saves.
func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags)
	log.Println("objectcore-migrate - migration checkpoint tool")
	log.Println("===============================================")

	if *checkpointDisk == "" {
		log.Fatal("--checkpoint-disk is required")
	}

	parts := strings.SplitN(*checkpointDisk, ":", 2)
	if len(parts) != 2 {
		log.Fatalf("invalid --checkpoint-disk %q, want uuid:mountpath", *checkpointDisk)
	}
	disk := diskio.DiskHandle{DiskUUID: parts[0], MountPath: parts[1]}

	dio := diskio.NewLocal()
	store := migration.NewCheckpointStore(dio, disk)
	ctx := context.Background()

	ck, err := store.Load(ctx)
	if err != nil {
		if diskio.IsNotExist(err) {
			log.Fatalf("no checkpoint found on disk %s", disk.DiskUUID)
		}
		log.Fatalf("failed to load checkpoint: %v", err)
	}

	printCheckpoint(ck)

	if *showOnly {
		return
	}

	if *resetState != "" {
		ck.State = migration.State(*resetState)
		if err := store.Save(ctx, ck); err != nil {
			log.Fatalf("failed to save checkpoint: %v", err)
		}
		log.Printf("✓ checkpoint state rewritten to %q", ck.State)
	}
}

func printCheckpoint(ck migration.Checkpoint) {
	data, err := json.MarshalIndent(ck, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to render checkpoint: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

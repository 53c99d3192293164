package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/objectcore/pkg/diskio"
	"github.com/cuemby/objectcore/pkg/log"
	"github.com/cuemby/objectcore/pkg/topology"
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Initialize a new deployment's topology across a set of disks",
	Long: `format writes the initial topology.json to every disk in a set,
establishing generation 1 of the deployment. Re-running format against
disks that already carry a topology is refused.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deploymentID, _ := cmd.Flags().GetString("deployment-id")
		ecK, _ := cmd.Flags().GetInt("ec-k")
		ecM, _ := cmd.Flags().GetInt("ec-m")
		diskSpecs, _ := cmd.Flags().GetStringSlice("disk")

		if deploymentID == "" {
			return fmt.Errorf("--deployment-id is required")
		}
		if len(diskSpecs) < ecK+ecM {
			return fmt.Errorf("need at least %d disks (ec-k + ec-m), got %d", ecK+ecM, len(diskSpecs))
		}

		disks, err := parseDiskSpecs(diskSpecs)
		if err != nil {
			return err
		}

		set := topology.Set{
			SetIndex: 0,
			State:    topology.SetActive,
			ECK:      ecK,
			ECM:      ecM,
		}
		for _, d := range disks {
			set.Disks = append(set.Disks, topology.Disk{DiskUUID: d.DiskUUID, MountPath: d.MountPath, Online: true})
		}

		initial := &topology.Topology{
			DeploymentID: deploymentID,
			Generation:   1,
			Pools:        []topology.Pool{{PoolIndex: 0, Sets: []topology.Set{set}}},
			UpdatedAt:    time.Now(),
		}

		dio := diskio.NewLocal()
		ctx := context.Background()
		data, err := initial.Marshal()
		if err != nil {
			return err
		}
		for _, d := range disks {
			_, err := dio.Stat(ctx, d, ".objectcore/topology.json")
			if err == nil {
				return fmt.Errorf("disk %s already carries a topology; refusing to re-format", d.DiskUUID)
			}
			if !diskio.IsNotExist(err) {
				return fmt.Errorf("checking disk %s for an existing topology: %w", d.DiskUUID, err)
			}
		}
		for _, d := range disks {
			if err := dio.WriteAtomic(ctx, d, ".objectcore/topology.json", data); err != nil {
				return fmt.Errorf("writing topology to disk %s: %w", d.DiskUUID, err)
			}
		}

		log.WithComponent("format").Info().
			Str("deployment_id", deploymentID).
			Int("disks", len(disks)).
			Int("ec_k", ecK).
			Int("ec_m", ecM).
			Msg("deployment formatted")
		fmt.Printf("✓ Deployment %s formatted across %d disks (K=%d, M=%d)\n", deploymentID, len(disks), ecK, ecM)
		return nil
	},
}

func init() {
	formatCmd.Flags().String("deployment-id", "", "Deployment identifier (required)")
	formatCmd.Flags().Int("ec-k", 4, "Erasure data shard count")
	formatCmd.Flags().Int("ec-m", 2, "Erasure parity shard count")
	formatCmd.Flags().StringSlice("disk", nil, "Disk spec uuid:mountpath, repeatable")
	_ = formatCmd.MarkFlagRequired("deployment-id")
	_ = formatCmd.MarkFlagRequired("disk")
}

// parseDiskSpecs parses "uuid:mountpath" flag values into DiskHandles.
func parseDiskSpecs(specs []string) ([]diskio.DiskHandle, error) {
	disks := make([]diskio.DiskHandle, 0, len(specs))
	for _, s := range specs {
		parts := strings.SplitN(s, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid disk spec %q, want uuid:mountpath", s)
		}
		disks = append(disks, diskio.DiskHandle{DiskUUID: parts[0], MountPath: parts[1]})
	}
	return disks, nil
}

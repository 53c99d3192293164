package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/objectcore/pkg/config"
	"github.com/cuemby/objectcore/pkg/diskio"
	"github.com/cuemby/objectcore/pkg/log"
	"github.com/cuemby/objectcore/pkg/metrics"
	"github.com/cuemby/objectcore/pkg/objectstore"
	"github.com/cuemby/objectcore/pkg/topology"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the object storage node process",
	Long: `serve loads the deployment's topology by reading a consensus
majority of topology.json copies from the configured disks, builds the
placement ring and per-set quorum engines, and serves metrics over HTTP
until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := loadConfigFlag(cmd)
		diskSpecs, _ := cmd.Flags().GetStringSlice("disk")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		cfg := config.Default()
		if cfgPath != "" {
			loaded, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg = loaded
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		disks, err := parseDiskSpecs(diskSpecs)
		if err != nil {
			return err
		}

		dio := diskio.NewLocal()
		ctx := context.Background()

		topo, err := topology.LoadConsensus(ctx, dio, disks)
		if err != nil {
			return fmt.Errorf("loading topology consensus: %w", err)
		}

		log.WithComponent("serve").Info().
			Str("deployment_id", topo.DeploymentID).
			Uint64("generation", topo.Generation).
			Msg("topology loaded")

		engine := objectstore.NewEngine(cfg, dio, topo.DeploymentID)
		diskByUUID := make(map[string]diskio.DiskHandle, len(disks))
		for _, d := range disks {
			diskByUUID[d.DiskUUID] = d
		}

		metrics.SetVersion(Version)
		metrics.RegisterComponent("topology", true, "")

		for _, pool := range topo.Pools {
			for _, set := range pool.Sets {
				if set.State == topology.SetRemoved {
					continue
				}
				setDisks := make([]diskio.DiskHandle, 0, len(set.Disks))
				for _, d := range set.Disks {
					if handle, ok := diskByUUID[d.DiskUUID]; ok {
						setDisks = append(setDisks, handle)
					} else {
						setDisks = append(setDisks, diskio.DiskHandle{DiskUUID: d.DiskUUID, MountPath: d.MountPath})
					}
				}
				setID := strconv.Itoa(pool.PoolIndex) + "-" + strconv.Itoa(set.SetIndex)
				if err := engine.AddSet(setID, setDisks); err != nil {
					metrics.RegisterComponent("set:"+setID, false, err.Error())
					return fmt.Errorf("registering set %s: %w", setID, err)
				}
				metrics.RegisterComponent("set:"+setID, true, "")
			}
		}
		metrics.RegisterComponent("registry", true, "")

		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			mux.Handle("/health", metrics.HealthHandler())
			mux.Handle("/ready", metrics.ReadyHandler())
			mux.Handle("/live", metrics.LivenessHandler())
			log.WithComponent("serve").Info().Str("addr", metricsAddr).Msg("metrics and health endpoints listening")
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Errorf("metrics server error: %v", err)
			}
		}()

		fmt.Printf("✓ objectcored serving deployment %s (generation %d) across %d pool(s)\n",
			topo.DeploymentID, topo.Generation, len(topo.Pools))
		fmt.Printf("✓ metrics endpoint: http://%s/metrics\n", metricsAddr)
		fmt.Printf("✓ health endpoint: http://%s/health\n", metricsAddr)
		fmt.Println("Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("\nShutting down...")
		_ = engine
		return nil
	},
}

func init() {
	serveCmd.Flags().StringSlice("disk", nil, "Disk spec uuid:mountpath, repeatable")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address to serve Prometheus metrics on")
	_ = serveCmd.MarkFlagRequired("disk")
}

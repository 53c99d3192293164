package topology

import (
	"context"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/cuemby/objectcore/pkg/diskio"
	"github.com/cuemby/objectcore/pkg/errs"
)

const topologyFileName = ".objectcore/topology.json"

type candidate struct {
	topology *Topology
	hash     uint64
	disks    []int
}

// LoadConsensus reads topology.json from every disk, buckets the
// candidates by content hash, and returns the bucket whose count is
// >= floor(D/2)+1. If no majority exists, it falls back to the candidate
// with the highest generation; if that is tied too, startup aborts with
// NoTopologyConsensus.
func LoadConsensus(ctx context.Context, dio diskio.DiskIO, disks []diskio.DiskHandle) (*Topology, error) {
	type read struct {
		diskIndex int
		data      []byte
		err       error
	}
	reads := make([]read, len(disks))
	g, gctx := errgroup.WithContext(ctx)
	for i, disk := range disks {
		i, disk := i, disk
		g.Go(func() error {
			data, err := dio.ReadFile(gctx, disk, topologyFileName)
			reads[i] = read{diskIndex: i, data: data, err: err}
			return nil
		})
	}
	_ = g.Wait()

	buckets := map[uint64]*candidate{}
	for _, r := range reads {
		if r.err != nil || r.data == nil {
			continue
		}
		t, err := Unmarshal(r.data)
		if err != nil {
			continue
		}
		h := xxhash.Sum64(r.data)
		c, ok := buckets[h]
		if !ok {
			c = &candidate{topology: t, hash: h}
			buckets[h] = c
		}
		c.disks = append(c.disks, r.diskIndex)
	}

	if len(buckets) == 0 {
		return nil, errs.New(errs.NoTopologyConsensus, "topology.LoadConsensus: no readable candidates")
	}

	majority := len(disks)/2 + 1
	var best *candidate
	tie := false
	for _, c := range buckets {
		if len(c.disks) >= majority {
			if best == nil || len(c.disks) > len(best.disks) {
				best, tie = c, false
			} else if len(c.disks) == len(best.disks) {
				tie = true
			}
		}
	}
	if best != nil && !tie {
		healLagging(ctx, dio, disks, best)
		return best.topology, nil
	}

	// No majority: fall back to highest generation, aborting on a tie.
	best, tie = nil, false
	for _, c := range buckets {
		if best == nil || c.topology.Generation > best.topology.Generation {
			best, tie = c, false
		} else if c.topology.Generation == best.topology.Generation {
			tie = true
		}
	}
	if best == nil || tie {
		return nil, errs.New(errs.NoTopologyConsensus, "topology.LoadConsensus: tied candidates, no majority")
	}
	healLagging(ctx, dio, disks, best)
	return best.topology, nil
}

// healLagging brings every disk not already carrying best's content up to
// date, writing best.topology to each in parallel. A disk whose write
// fails here simply stays lagging and will lose the next consensus vote
// too, so failures are not retried or surfaced to the caller.
func healLagging(ctx context.Context, dio diskio.DiskIO, disks []diskio.DiskHandle, best *candidate) {
	agree := make(map[int]bool, len(best.disks))
	for _, d := range best.disks {
		agree[d] = true
	}

	data, err := best.topology.Marshal()
	if err != nil {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, disk := range disks {
		if agree[i] {
			continue
		}
		disk := disk
		g.Go(func() error {
			_ = dio.WriteAtomic(gctx, disk, topologyFileName, data)
			return nil
		})
	}
	_ = g.Wait()
}

package migration

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cuemby/objectcore/pkg/diskio"
	"github.com/cuemby/objectcore/pkg/placement"
)

// ObjectLister enumerates the object names present on one disk column of
// a source set, returning the whole column in one call.
type ObjectLister interface {
	ListColumn(ctx context.Context, disk diskio.DiskHandle) ([]ObjectRef, error)
}

// ObjectRef names one object discovered by the scanner, carrying its
// size so tasks can later be sorted size-ascending.
type ObjectRef struct {
	Bucket string
	Key    string
	Size   int64
}

// Scanner enumerates objects across all disk columns of the source sets
// in parallel, computing old_set = ringFrom.lookup(name) and
// new_set = ringTo.lookup(name), and appends a Task for every object
// whose set assignment changed.
type Scanner struct {
	lister  ObjectLister
	disks   []diskio.DiskHandle
	ringFrom *placement.Ring
	ringTo   *placement.Ring
}

// NewScanner constructs a Scanner over the given source disks, comparing
// placement between ringFrom (the prior generation) and ringTo (the new
// generation).
func NewScanner(lister ObjectLister, disks []diskio.DiskHandle, ringFrom, ringTo *placement.Ring) *Scanner {
	return &Scanner{lister: lister, disks: disks, ringFrom: ringFrom, ringTo: ringTo}
}

// Scan runs one task-per-disk-column enumeration in parallel and returns
// the tasks for objects whose placement changed, sorted by size ascending
// so many small migrations can progress in parallel before the few large
// ones dominate the tail. The second return value is the total number of
// objects examined (not just the ones that moved), for the caller to feed
// into its checkpoint counters.
func (s *Scanner) Scan(ctx context.Context) ([]Task, int64, error) {
	var mu sync.Mutex
	var tasks []Task
	var scanned int64

	g, gctx := errgroup.WithContext(ctx)
	for _, disk := range s.disks {
		disk := disk
		g.Go(func() error {
			refs, err := s.lister.ListColumn(gctx, disk)
			if err != nil {
				return err
			}
			for _, ref := range refs {
				mu.Lock()
				scanned++
				mu.Unlock()

				oldNode, newNode, affected, err := affectedByGenerationChange(ref.Bucket+"/"+ref.Key, s.ringFrom, s.ringTo)
				if err != nil || !affected {
					continue
				}
				task := Task{
					Bucket: ref.Bucket,
					Key:    ref.Key,
					Size:   ref.Size,
					OldSet: oldNode,
					NewSet: newNode,
				}
				mu.Lock()
				tasks = append(tasks, task)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Size < tasks[j].Size })
	return tasks, scanned, nil
}

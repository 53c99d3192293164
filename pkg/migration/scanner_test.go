package migration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/objectcore/pkg/diskio"
	"github.com/cuemby/objectcore/pkg/placement"
)

type fakeLister struct {
	refs map[string][]ObjectRef
}

func (f *fakeLister) ListColumn(ctx context.Context, disk diskio.DiskHandle) ([]ObjectRef, error) {
	return f.refs[disk.DiskUUID], nil
}

func TestScanFindsOnlyRemappedObjects(t *testing.T) {
	ringFrom := placement.NewRing(10)
	ringFrom.AddNode("setA", "setA")
	ringFrom.AddNode("setB", "setB")

	ringTo := placement.NewRing(10)
	ringTo.AddNode("setA", "setA")
	ringTo.AddNode("setB", "setB")
	ringTo.AddNode("setC", "setC")

	lister := &fakeLister{refs: map[string][]ObjectRef{
		"d0": {
			{Bucket: "bkt", Key: "obj1", Size: 100},
			{Bucket: "bkt", Key: "obj2", Size: 50},
			{Bucket: "bkt", Key: "obj3", Size: 10},
		},
	}}
	disks := []diskio.DiskHandle{{DiskUUID: "d0"}}

	scanner := NewScanner(lister, disks, ringFrom, ringTo)
	tasks, scanned, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, scanned)

	for i := 1; i < len(tasks); i++ {
		assert.LessOrEqual(t, tasks[i-1].Size, tasks[i].Size)
	}
	for _, task := range tasks {
		assert.NotEqual(t, task.OldSet, task.NewSet)
	}
}

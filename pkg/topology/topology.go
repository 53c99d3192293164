// Package topology holds the in-memory authoritative topology (pools,
// sets, disks), mediates mutations through a
// clone-before-swap discipline, and resolves startup consensus by
// content-voting over topology.json candidates read from every disk.
package topology

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/cuemby/objectcore/pkg/errs"
	"github.com/cuemby/objectcore/pkg/log"
	"github.com/cuemby/objectcore/pkg/metrics"
)

// SetState is a set's lifecycle state.
type SetState string

const (
	SetActive   SetState = "active"
	SetDraining SetState = "draining"
	SetRemoved  SetState = "removed"
)

// Disk is one mount point participating in a set.
type Disk struct {
	DiskUUID  string `json:"disk_uuid"`
	MountPath string `json:"mount_path"`
	Online    bool   `json:"online"`
}

// Set is a fixed-width group of disks sharing one erasure-coded stripe.
type Set struct {
	SetIndex int      `json:"set_index"`
	State    SetState `json:"state"`
	Disks    []Disk   `json:"disks"`
	ECK      int      `json:"ec_k"`
	ECM      int      `json:"ec_m"`
}

// Pool is a homogeneous group of sets of identical shape.
type Pool struct {
	PoolIndex int   `json:"pool_index"`
	Sets      []Set `json:"sets"`
}

// Topology is the full pools→sets→disks map at a given generation. Every
// mutation yields a new *Topology value; existing values are never
// mutated in place, so a reader holding one always sees a consistent
// snapshot.
type Topology struct {
	DeploymentID string    `json:"deployment_id"`
	Generation   uint64    `json:"generation"`
	Pools        []Pool    `json:"pools"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (t *Topology) clone() *Topology {
	cp := *t
	cp.Pools = make([]Pool, len(t.Pools))
	for i, p := range t.Pools {
		cp.Pools[i] = p
		cp.Pools[i].Sets = make([]Set, len(p.Sets))
		for j, s := range p.Sets {
			cp.Pools[i].Sets[j] = s
			cp.Pools[i].Sets[j].Disks = append([]Disk(nil), s.Disks...)
		}
	}
	return &cp
}

// Marshal encodes the topology as topology.json content.
func (t *Topology) Marshal() ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "topology.Marshal", err)
	}
	return data, nil
}

// Unmarshal decodes topology.json content.
func Unmarshal(data []byte) (*Topology, error) {
	var t Topology
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errs.Wrap(errs.Internal, "topology.Unmarshal", err)
	}
	return &t, nil
}

// Subscriber is notified after a mutation has been persisted by quorum.
type Subscriber func(old, new *Topology)

// Manager holds the authoritative in-memory topology behind an
// atomic.Pointer, using a clone-before-swap value swap: readers via
// Current() always see either the old or the new topology, never a
// partial one.
type Manager struct {
	current     atomic.Pointer[Topology]
	persist     func(t *Topology) error
	subscribers []Subscriber
}

// NewManager constructs a Manager seeded with initial, calling persist to
// make every subsequent mutation durable (the caller wires persist to a
// quorum-write across every disk in the deployment).
func NewManager(initial *Topology, persist func(t *Topology) error) *Manager {
	m := &Manager{persist: persist}
	m.current.Store(initial)
	metrics.TopologyGeneration.Set(float64(initial.Generation))
	return m
}

// Current returns the current topology snapshot. Safe for concurrent use
// with Mutate.
func (m *Manager) Current() *Topology {
	return m.current.Load()
}

// Subscribe registers a callback invoked after a mutation is persisted.
func (m *Manager) Subscribe(s Subscriber) {
	m.subscribers = append(m.subscribers, s)
}

// Mutate clones the current topology, applies mutate to the clone, bumps
// generation, persists the clone by quorum, swaps it in atomically, and
// notifies subscribers only after persistence succeeds.
func (m *Manager) Mutate(mutate func(clone *Topology)) (*Topology, error) {
	old := m.current.Load()
	clone := old.clone()
	mutate(clone)
	clone.Generation = old.Generation + 1
	clone.UpdatedAt = time.Now()

	if err := m.persist(clone); err != nil {
		return nil, errs.Wrap(errs.QuorumUnavailable, "topology.Mutate", err)
	}

	m.current.Store(clone)
	metrics.TopologyGeneration.Set(float64(clone.Generation))
	metrics.TopologyMutationsTotal.Inc()

	for _, s := range m.subscribers {
		s(old, clone)
	}
	log.WithComponent("topology").Info().Uint64("generation", clone.Generation).Msg("topology mutated")
	return clone, nil
}

// AddPool appends a new, empty pool.
func (m *Manager) AddPool(poolIndex int) (*Topology, error) {
	return m.Mutate(func(clone *Topology) {
		clone.Pools = append(clone.Pools, Pool{PoolIndex: poolIndex})
	})
}

// AddSet appends set to the pool identified by poolIndex.
func (m *Manager) AddSet(poolIndex int, set Set) (*Topology, error) {
	return m.Mutate(func(clone *Topology) {
		for i := range clone.Pools {
			if clone.Pools[i].PoolIndex == poolIndex {
				clone.Pools[i].Sets = append(clone.Pools[i].Sets, set)
				return
			}
		}
	})
}

// MarkSetDraining transitions a set to Draining.
func (m *Manager) MarkSetDraining(poolIndex, setIndex int) (*Topology, error) {
	return m.Mutate(func(clone *Topology) {
		setState(clone, poolIndex, setIndex, SetDraining)
	})
}

// MarkSetRemoved transitions a set to Removed.
func (m *Manager) MarkSetRemoved(poolIndex, setIndex int) (*Topology, error) {
	return m.Mutate(func(clone *Topology) {
		setState(clone, poolIndex, setIndex, SetRemoved)
	})
}

// ReplaceDisk swaps the disk at position diskPos within a set for
// replacement.
func (m *Manager) ReplaceDisk(poolIndex, setIndex, diskPos int, replacement Disk) (*Topology, error) {
	return m.Mutate(func(clone *Topology) {
		for i := range clone.Pools {
			if clone.Pools[i].PoolIndex != poolIndex {
				continue
			}
			for j := range clone.Pools[i].Sets {
				if clone.Pools[i].Sets[j].SetIndex != setIndex {
					continue
				}
				if diskPos >= 0 && diskPos < len(clone.Pools[i].Sets[j].Disks) {
					clone.Pools[i].Sets[j].Disks[diskPos] = replacement
				}
				return
			}
		}
	})
}

func setState(t *Topology, poolIndex, setIndex int, state SetState) {
	for i := range t.Pools {
		if t.Pools[i].PoolIndex != poolIndex {
			continue
		}
		for j := range t.Pools[i].Sets {
			if t.Pools[i].Sets[j].SetIndex == setIndex {
				t.Pools[i].Sets[j].State = state
				return
			}
		}
	}
}

// Package placement implements the deterministic object→set mapping
// described here: a consistent hash ring of virtual nodes over
// physical nodes (pools/sets in the caller's vocabulary), plus a
// stateless jump-consistent-hash alternative for callers that know the
// bucket count ahead of time.
package placement

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultVnodesPerNode is the number of virtual nodes each physical node
// contributes to the ring.
const DefaultVnodesPerNode = 150

type vnode struct {
	hash uint64
	node string // physical node id
}

// Ring is a sorted consistent-hash ring over physical node ids. It is safe
// for concurrent use: many readers (lookup/successors) may run alongside
// one writer (add_node/remove_node), guarded by a sync.RWMutex the same
// way the rest of this codebase guards its in-memory maps.
type Ring struct {
	mu     sync.RWMutex
	vnodes []vnode          // sorted ascending by hash
	nodes  map[string]bool  // physical node ids currently present
	perNode int
}

// NewRing creates an empty ring. vnodesPerNode <= 0 selects
// DefaultVnodesPerNode.
func NewRing(vnodesPerNode int) *Ring {
	if vnodesPerNode <= 0 {
		vnodesPerNode = DefaultVnodesPerNode
	}
	return &Ring{
		nodes:   make(map[string]bool),
		perNode: vnodesPerNode,
	}
}

// ErrNoNodes is returned by Lookup/Successors when the ring is empty.
var ErrNoNodes = fmt.Errorf("placement: no nodes")

func vnodeHash(nodeName string, idx int) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(nodeName)
	_, _ = h.WriteString("#")
	_, _ = h.WriteString(strconv.Itoa(idx))
	return h.Sum64()
}

func keyHash(key string) uint64 {
	return xxhash.Sum64String(key)
}

// AddNode inserts a physical node (identified by id, hashed by name) into
// the ring, contributing perNode virtual nodes. The vnode array is kept
// sorted by hash so lookups remain O(log N).
func (r *Ring) AddNode(id, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.nodes[id] {
		return
	}
	r.nodes[id] = true

	for i := 0; i < r.perNode; i++ {
		r.vnodes = append(r.vnodes, vnode{hash: vnodeHash(name, i), node: id})
	}
	sort.Slice(r.vnodes, func(i, j int) bool { return r.vnodes[i].hash < r.vnodes[j].hash })
}

// RemoveNode deletes all virtual nodes belonging to id.
func (r *Ring) RemoveNode(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.nodes[id] {
		return
	}
	delete(r.nodes, id)

	filtered := r.vnodes[:0]
	for _, v := range r.vnodes {
		if v.node != id {
			filtered = append(filtered, v)
		}
	}
	r.vnodes = filtered
}

// NodeCount returns the number of distinct physical nodes currently on the ring.
func (r *Ring) NodeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Lookup returns the physical node id responsible for key: the node whose
// vnode hash is the smallest hash >= hash(key), wrapping at the end of the
// ring. Deterministic: repeated calls with the same key and the same ring
// contents always return the same node.
func (r *Ring) Lookup(key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.vnodes) == 0 {
		return "", ErrNoNodes
	}

	h := keyHash(key)
	idx := sort.Search(len(r.vnodes), func(i int) bool { return r.vnodes[i].hash >= h })
	if idx == len(r.vnodes) {
		idx = 0
	}
	return r.vnodes[idx].node, nil
}

// Successors walks the ring clockwise from hash(key), skipping physical
// nodes already returned, and returns up to n distinct physical node ids.
// Fewer than n are returned if the ring has fewer distinct physicals.
func (r *Ring) Successors(key string, n int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.vnodes) == 0 {
		return nil, ErrNoNodes
	}
	if n <= 0 {
		return nil, nil
	}

	h := keyHash(key)
	start := sort.Search(len(r.vnodes), func(i int) bool { return r.vnodes[i].hash >= h })

	seen := make(map[string]bool, n)
	result := make([]string, 0, n)
	total := len(r.vnodes)
	for i := 0; i < total && len(result) < n; i++ {
		v := r.vnodes[(start+i)%total]
		if seen[v.node] {
			continue
		}
		seen[v.node] = true
		result = append(result, v.node)
	}
	return result, nil
}

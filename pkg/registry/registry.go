// Package registry maps (bucket, key, version_id) to location records,
// an in-memory LRU+TTL cache in front of authoritative
// registry objects stored in a reserved bucket, durable through the same
// quorum discipline as user objects.
package registry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cuemby/objectcore/pkg/chunkstore"
	"github.com/cuemby/objectcore/pkg/errs"
	"github.com/cuemby/objectcore/pkg/metrics"
	"github.com/cuemby/objectcore/pkg/quorum"
)

// SystemBucket is the reserved bucket holding registry objects.
const SystemBucket = "<sys>-registry"

// DefaultCacheSize and DefaultCacheTTL match the engine's default config.
const (
	DefaultCacheSize = 1_000_000
	DefaultCacheTTL  = 5 * time.Minute
)

// Location is the authoritative registry row for one object version.
type Location struct {
	Bucket       string    `json:"bucket"`
	Key          string    `json:"key"`
	VersionID    string    `json:"version_id"`
	PoolIndex    int       `json:"pool_index"`
	SetIndex     int       `json:"set_index"`
	DiskCount    int       `json:"disk_count"`
	DiskIndices  []int     `json:"disk_indices"`
	Generation   uint64    `json:"generation"`
	ModTime      time.Time `json:"mod_time"`
	Size         int64     `json:"size"`
	DeleteMarker bool      `json:"delete_marker"`
}

func recordKey(bucket, key, versionID string) string {
	return bucket + "/" + key + "/" + versionID
}

type cacheEntry struct {
	loc       Location
	expiresAt time.Time
}

// Engine backs one quorum.Engine scoped to SystemBucket — registry
// objects flow through the same quorum write/read path as user data,
// wrapped with an in-memory LRU+TTL cache.
type Engine struct {
	mu       sync.Mutex
	cache    *lru.Cache[string, cacheEntry]
	ttl      time.Duration
	registry *quorum.Engine
}

// New constructs a registry Engine. cacheSize <= 0 selects
// DefaultCacheSize; ttl <= 0 selects DefaultCacheTTL.
func New(registryQuorum *quorum.Engine, cacheSize int, ttl time.Duration) (*Engine, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c, err := lru.NewWithEvict[string, cacheEntry](cacheSize, func(string, cacheEntry) {
		metrics.RegistryCacheEvictions.Inc()
	})
	if err != nil {
		return nil, errs.Wrap(errs.Init, "registry.New", err)
	}
	return &Engine{cache: c, ttl: ttl, registry: registryQuorum}, nil
}

// Lookup resolves (bucket, key, version_id) to a Location, checking the
// cache first and falling back to a quorum read of the registry object.
func (e *Engine) Lookup(ctx context.Context, bucket, key, versionID string) (Location, error) {
	rk := recordKey(bucket, key, versionID)

	e.mu.Lock()
	entry, ok := e.cache.Get(rk)
	e.mu.Unlock()
	if ok && time.Now().Before(entry.expiresAt) {
		metrics.RegistryCacheHits.Inc()
		return entry.loc, nil
	}
	metrics.RegistryCacheMisses.Inc()

	data, _, err := e.registry.Read(ctx, SystemBucket, rk, "latest")
	if err != nil {
		return Location{}, err
	}
	var loc Location
	if err := json.Unmarshal(data, &loc); err != nil {
		return Location{}, errs.Wrap(errs.Internal, "registry.Lookup.unmarshal", err)
	}

	e.put(rk, loc)
	return loc, nil
}

// Record persists loc to the registry by quorum write and refreshes the
// cache entry.
func (e *Engine) Record(ctx context.Context, loc Location) error {
	rk := recordKey(loc.Bucket, loc.Key, loc.VersionID)
	data, err := json.Marshal(loc)
	if err != nil {
		return errs.Wrap(errs.Internal, "registry.Record.marshal", err)
	}

	sc := &chunkstore.Sidecar{
		VersionID: "latest",
		ModTime:   time.Now(),
		Size:      int64(len(data)),
		ETag:      chunkstore.ComputeETag(nil, data),
	}
	if _, err := e.registry.Write(ctx, SystemBucket, rk, "latest", sc, data); err != nil {
		return err
	}

	e.put(rk, loc)
	return nil
}

// Delete invalidates the cache entry and removes the durable registry
// object via a quorum delete, so a stale or orphaned record is never
// served or left behind after invalidation.
func (e *Engine) Delete(ctx context.Context, bucket, key, versionID string) error {
	rk := recordKey(bucket, key, versionID)
	e.mu.Lock()
	e.cache.Remove(rk)
	e.mu.Unlock()
	metrics.RegistryCacheEntries.Set(float64(e.cache.Len()))

	if err := e.registry.Delete(ctx, SystemBucket, rk, "latest"); err != nil {
		return err
	}
	return nil
}

func (e *Engine) put(rk string, loc Location) {
	e.mu.Lock()
	e.cache.Add(rk, cacheEntry{loc: loc, expiresAt: time.Now().Add(e.ttl)})
	size := e.cache.Len()
	e.mu.Unlock()
	metrics.RegistryCacheEntries.Set(float64(size))
}

// RecordBatch parallel-records locs, returning the count that succeeded.
// Batch operations are not atomic across keys: partial failures
// do not roll back earlier successes.
func (e *Engine) RecordBatch(ctx context.Context, locs []Location) int {
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for _, loc := range locs {
		loc := loc
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.Record(ctx, loc); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return succeeded
}

// LookupBatch parallel-looks-up keys, returning only the entries that
// resolved successfully.
func (e *Engine) LookupBatch(ctx context.Context, refs [][3]string) []Location {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var out []Location
	for _, ref := range refs {
		ref := ref
		wg.Add(1)
		go func() {
			defer wg.Done()
			loc, err := e.Lookup(ctx, ref[0], ref[1], ref[2])
			if err == nil {
				mu.Lock()
				out = append(out, loc)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return out
}

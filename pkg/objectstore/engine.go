package objectstore

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/objectcore/pkg/chunkstore"
	"github.com/cuemby/objectcore/pkg/config"
	"github.com/cuemby/objectcore/pkg/diskio"
	"github.com/cuemby/objectcore/pkg/erasure"
	"github.com/cuemby/objectcore/pkg/errs"
	"github.com/cuemby/objectcore/pkg/log"
	"github.com/cuemby/objectcore/pkg/placement"
	"github.com/cuemby/objectcore/pkg/quorum"
	"github.com/cuemby/objectcore/pkg/registry"
	"github.com/cuemby/objectcore/pkg/version"
)

// ObjectStore is the operator-facing surface of the engine, independent
// of any wire protocol (S3 HTTP/XML framing is explicitly out of scope).
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string, userMeta map[string]string) (PutResult, error)
	Get(ctx context.Context, bucket, key, versionID string, byteRange *ByteRange) (GetResult, error)
	Delete(ctx context.Context, bucket, key, versionID string) (DeleteResult, error)
	Head(ctx context.Context, bucket, key, versionID string) (ObjectMeta, error)
	List(ctx context.Context, bucket, prefix, marker string, maxKeys int) (ListResult, error)
	CreateBucket(ctx context.Context, name string) error
	DeleteBucket(ctx context.Context, name string) error
	ListBuckets(ctx context.Context) ([]BucketInfo, error)
}

// Engine is the concrete ObjectStore: it resolves a (bucket, key) to a
// target set through the placement ring, then drives that set's quorum
// engine for every operation.
type Engine struct {
	cfg          *config.Config
	dio          diskio.DiskIO
	deploymentID string
	store        *chunkstore.Store
	ring         *placement.Ring
	registry     *registry.Engine

	mu   sync.RWMutex
	sets map[string]*quorum.Engine

	bucketsMu sync.RWMutex
	buckets   map[string]BucketInfo

	// keysMu guards the in-memory key index used by List, a stand-in for
	// a real prefix-listing index; needed here only so List has something
	// to page over in a single-process deployment.
	keysMu sync.RWMutex
	keys   map[string]map[string]bool // bucket -> key -> present
}

// NewEngine constructs an Engine with no sets registered yet; call AddSet
// once per topology set before serving traffic.
func NewEngine(cfg *config.Config, dio diskio.DiskIO, deploymentID string) *Engine {
	return &Engine{
		cfg:          cfg,
		dio:          dio,
		deploymentID: deploymentID,
		store:        chunkstore.New(dio, deploymentID),
		ring:         placement.NewRing(cfg.VnodesPerNode),
		sets:         make(map[string]*quorum.Engine),
		buckets:      make(map[string]BucketInfo),
		keys:         make(map[string]map[string]bool),
	}
}

// AddSet registers a topology set's disks under setID, building its
// erasure codec from cfg's default shape and adding it to the placement
// ring. The first set registered also backs the location registry.
func (e *Engine) AddSet(setID string, disks []diskio.DiskHandle) error {
	codec, err := erasure.New(e.cfg.DefaultECK, e.cfg.DefaultECM)
	if err != nil {
		return err
	}
	qe := quorum.New(quorum.Set{Disks: disks, Codec: codec}, e.store)

	e.mu.Lock()
	e.sets[setID] = qe
	needRegistry := e.registry == nil
	e.mu.Unlock()

	e.ring.AddNode(setID, setID)

	if needRegistry {
		reg, err := registry.New(qe, e.cfg.CacheSize, e.cfg.CacheTTL)
		if err != nil {
			return err
		}
		e.registry = reg
	}
	return nil
}

func (e *Engine) setFor(bucket, key string) (*quorum.Engine, string, error) {
	setID, err := e.ring.Lookup(bucket + "/" + key)
	if err != nil {
		return nil, "", errs.Wrap(errs.QuorumUnavailable, "objectstore.setFor", err)
	}
	e.mu.RLock()
	qe := e.sets[setID]
	e.mu.RUnlock()
	if qe == nil {
		return nil, "", errs.New(errs.Internal, "objectstore.setFor: set not registered")
	}
	return qe, setID, nil
}

// CreateBucket registers a new, empty bucket.
func (e *Engine) CreateBucket(ctx context.Context, name string) error {
	e.bucketsMu.Lock()
	defer e.bucketsMu.Unlock()
	if _, exists := e.buckets[name]; exists {
		return errs.New(errs.BucketExists, "objectstore.CreateBucket")
	}
	e.buckets[name] = BucketInfo{Name: name, CreatedAt: time.Now()}
	e.keysMu.Lock()
	e.keys[name] = make(map[string]bool)
	e.keysMu.Unlock()
	return nil
}

// DeleteBucket removes a bucket's registration (not its objects: bucket
// emptiness is the caller's responsibility, mirroring S3 semantics
// without reimplementing the S3 API surface).
func (e *Engine) DeleteBucket(ctx context.Context, name string) error {
	e.bucketsMu.Lock()
	defer e.bucketsMu.Unlock()
	if _, exists := e.buckets[name]; !exists {
		return errs.New(errs.BucketNotFound, "objectstore.DeleteBucket")
	}
	delete(e.buckets, name)
	e.keysMu.Lock()
	delete(e.keys, name)
	e.keysMu.Unlock()
	return nil
}

// ListBuckets returns every registered bucket.
func (e *Engine) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	e.bucketsMu.RLock()
	defer e.bucketsMu.RUnlock()
	out := make([]BucketInfo, 0, len(e.buckets))
	for _, b := range e.buckets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (e *Engine) bucketExists(name string) bool {
	e.bucketsMu.RLock()
	defer e.bucketsMu.RUnlock()
	_, ok := e.buckets[name]
	return ok
}

// Put encodes and commits a new object version, then records its
// location in the registry.
func (e *Engine) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string, userMeta map[string]string) (PutResult, error) {
	if !e.bucketExists(bucket) {
		return PutResult{}, errs.New(errs.BucketNotFound, "objectstore.Put")
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return PutResult{}, errs.Wrap(errs.Io, "objectstore.Put.read", err)
	}

	qe, setID, err := e.setFor(bucket, key)
	if err != nil {
		return PutResult{}, err
	}

	versionID := version.New()
	sc := &chunkstore.Sidecar{
		Version:     chunkstore.SidecarSchemaVersion,
		VersionID:   versionID,
		ModTime:     time.Now(),
		Size:        int64(len(data)),
		ContentType: contentType,
		UserMeta:    userMeta,
	}

	var report *quorum.WriteReport
	if int64(len(data)) <= e.cfg.InlineThreshold {
		sc.InlineData = data
		report, err = qe.WriteInline(ctx, bucket, key, versionID, sc)
	} else {
		report, err = qe.Write(ctx, bucket, key, versionID, sc, data)
	}
	if err != nil {
		return PutResult{}, err
	}

	e.markKey(bucket, key)

	if e.registry != nil {
		_ = e.registry.Record(ctx, registry.Location{
			Bucket:    bucket,
			Key:       key,
			VersionID: versionID,
			SetIndex:  e.setIndex(setID),
			ModTime:   sc.ModTime,
			Size:      sc.Size,
		})
	}

	log.WithBucket(bucket).Debug().Str("key", key).Str("version", versionID).Msg("object committed")
	return PutResult{VersionID: versionID, ETag: report.ETag, Size: sc.Size}, nil
}

// Get resolves versionID (or "latest") and returns the object's bytes and
// metadata. byteRange is applied to inline and chunked objects alike; a
// nil range returns the full payload.
func (e *Engine) Get(ctx context.Context, bucket, key, versionID string, byteRange *ByteRange) (GetResult, error) {
	qe, _, err := e.setFor(bucket, key)
	if err != nil {
		return GetResult{}, err
	}

	resolved, err := e.resolveVersion(ctx, qe, bucket, key, versionID)
	if err != nil {
		return GetResult{}, err
	}

	data, sidecar, err := qe.Read(ctx, bucket, key, resolved)
	if err != nil {
		return GetResult{}, err
	}
	if sidecar.DeleteMarker {
		return GetResult{}, errs.New(errs.NotFound, "objectstore.Get: delete marker")
	}

	if byteRange != nil {
		data = sliceRange(data, *byteRange)
	}

	return GetResult{
		ObjectMeta: objectMetaFromSidecar(bucket, key, sidecar),
		Data:       data,
	}, nil
}

// Head returns object metadata without its bytes.
func (e *Engine) Head(ctx context.Context, bucket, key, versionID string) (ObjectMeta, error) {
	qe, _, err := e.setFor(bucket, key)
	if err != nil {
		return ObjectMeta{}, err
	}
	resolved, err := e.resolveVersion(ctx, qe, bucket, key, versionID)
	if err != nil {
		return ObjectMeta{}, err
	}
	sidecar, err := qe.ReadSidecar(ctx, bucket, key, resolved)
	if err != nil {
		return ObjectMeta{}, err
	}
	if sidecar.DeleteMarker {
		return ObjectMeta{}, errs.New(errs.NotFound, "objectstore.Head: delete marker")
	}
	return objectMetaFromSidecar(bucket, key, sidecar), nil
}

// Delete writes a delete-marker version, leaving prior versions intact.
func (e *Engine) Delete(ctx context.Context, bucket, key, versionID string) (DeleteResult, error) {
	qe, _, err := e.setFor(bucket, key)
	if err != nil {
		return DeleteResult{}, err
	}

	markerID := version.New()
	sc := version.NewDeleteMarker(markerID, time.Now().UnixNano())
	if _, err := qe.WriteInline(ctx, bucket, key, markerID, sc); err != nil {
		return DeleteResult{}, err
	}
	if e.registry != nil {
		if err := e.registry.Delete(ctx, bucket, key, versionID); err != nil {
			log.WithBucket(bucket).Warn().Str("key", key).Err(err).Msg("registry record delete failed")
		}
	}
	return DeleteResult{VersionID: markerID, DeleteMarker: true}, nil
}

// List enumerates keys in bucket with the given prefix, starting after
// marker, up to maxKeys.
func (e *Engine) List(ctx context.Context, bucket, prefix, marker string, maxKeys int) (ListResult, error) {
	if !e.bucketExists(bucket) {
		return ListResult{}, errs.New(errs.BucketNotFound, "objectstore.List")
	}
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	e.keysMu.RLock()
	all := make([]string, 0, len(e.keys[bucket]))
	for k := range e.keys[bucket] {
		if strings.HasPrefix(k, prefix) {
			all = append(all, k)
		}
	}
	e.keysMu.RUnlock()
	sort.Strings(all)

	start := 0
	if marker != "" {
		start = sort.SearchStrings(all, marker)
		if start < len(all) && all[start] == marker {
			start++
		}
	}

	end := start + maxKeys
	truncated := end < len(all)
	if end > len(all) {
		end = len(all)
	}

	result := ListResult{Keys: append([]string(nil), all[start:end]...), Truncated: truncated}
	if truncated {
		result.NextMarker = all[end-1]
	}
	return result, nil
}

func (e *Engine) markKey(bucket, key string) {
	e.keysMu.Lock()
	defer e.keysMu.Unlock()
	if e.keys[bucket] == nil {
		e.keys[bucket] = make(map[string]bool)
	}
	e.keys[bucket][key] = true
}

func (e *Engine) resolveVersion(ctx context.Context, qe *quorum.Engine, bucket, key, versionID string) (string, error) {
	if versionID != "" && versionID != version.LatestAlias {
		return versionID, nil
	}
	entries, err := version.List(ctx, e.store, e.firstDiskOf(qe), bucket, key)
	if err != nil {
		return "", err
	}
	return version.ResolveLatest(entries)
}

func (e *Engine) firstDiskOf(qe *quorum.Engine) diskio.DiskHandle {
	return qe.Disks()[0]
}

func (e *Engine) setIndex(setID string) int {
	return 0 // single-pool topology binding resolved by the caller; see pkg/topology for multi-pool indices
}

func objectMetaFromSidecar(bucket, key string, sc *chunkstore.Sidecar) ObjectMeta {
	return ObjectMeta{
		Bucket:      bucket,
		Key:         key,
		VersionID:   sc.VersionID,
		Size:        sc.Size,
		ContentType: sc.ContentType,
		ETag:        sc.ETag,
		ModTime:     sc.ModTime,
		UserMeta:    sc.UserMeta,
	}
}

func sliceRange(data []byte, r ByteRange) []byte {
	start := r.Start
	end := r.End + 1
	if start < 0 {
		start = 0
	}
	if end > int64(len(data)) || end < start {
		end = int64(len(data))
	}
	if start >= int64(len(data)) {
		return nil
	}
	return data[start:end]
}

var _ ObjectStore = (*Engine)(nil)

package chunkstore

import (
	"context"
	"sort"

	"github.com/cuemby/objectcore/pkg/diskio"
	"github.com/cuemby/objectcore/pkg/errs"
)

// Store is the per-disk sidecar/chunk API one quorum participant calls
// against a single disk. It knows nothing about placement, erasure shape
// selection, or cross-disk quorum — those live in pkg/quorum, pkg/placement
// and pkg/erasure respectively. Store only knows how to lay a version's
// sidecar and chunks out on one disk and read them back with verification.
type Store struct {
	dio          diskio.DiskIO
	deploymentID string
}

// New constructs a Store backed by dio, scoping every path it computes to
// deploymentID, the uniform directory-spread seed.
func New(dio diskio.DiskIO, deploymentID string) *Store {
	return &Store{dio: dio, deploymentID: deploymentID}
}

// WriteVersion commits a version's sidecar and chunks to disk atomically
// per file, sidecar last.
func (s *Store) WriteVersion(ctx context.Context, disk diskio.DiskHandle, bucket, key, versionID string, sidecar *Sidecar, chunks map[int][]byte) error {
	dir := VersionDir(s.deploymentID, bucket, key, versionID)
	return commitVersion(ctx, s.dio, disk, dir, sidecar, chunks)
}

// ReadSidecar reads and decodes the sidecar for one version, without
// touching chunk data.
func (s *Store) ReadSidecar(ctx context.Context, disk diskio.DiskHandle, bucket, key, versionID string) (*Sidecar, error) {
	dir := VersionDir(s.deploymentID, bucket, key, versionID)
	data, err := s.dio.ReadFile(ctx, disk, SidecarPath(dir))
	if err != nil {
		return nil, err
	}
	return UnmarshalSidecar(data)
}

// ReadChunk reads one chunk and verifies it against the sidecar's recorded
// digest before returning it, per the read-time verification rule.
func (s *Store) ReadChunk(ctx context.Context, disk diskio.DiskHandle, bucket, key, versionID string, sidecar *Sidecar, index int) ([]byte, error) {
	dir := VersionDir(s.deploymentID, bucket, key, versionID)
	data, err := s.dio.ReadFile(ctx, disk, ChunkPath(dir, index))
	if err != nil {
		return nil, err
	}
	var want string
	for _, cd := range sidecar.Chunks {
		if cd.Index == index {
			want = cd.Blake2b256
			break
		}
	}
	if want == "" {
		return nil, errs.New(errs.Internal, "chunkstore.ReadChunk: index not in sidecar")
	}
	if !VerifyChunk(data, want) {
		return nil, errs.New(errs.ChecksumMismatch, "chunkstore.ReadChunk")
	}
	return data, nil
}

// DeleteVersion removes a version's sidecar and chunks from one disk.
func (s *Store) DeleteVersion(ctx context.Context, disk diskio.DiskHandle, bucket, key, versionID string, chunkCount int) error {
	dir := VersionDir(s.deploymentID, bucket, key, versionID)
	return removeVersion(ctx, s.dio, disk, dir, chunkCount)
}

// ListVersions enumerates the version IDs present for (bucket, key) on one
// disk, sorted by version ID. A version directory without a sidecar (one
// left behind by DeleteVersion) is not listed. Callers that need recency
// order sort by the sidecar's mod_time once they've read it (see
// pkg/version).
func (s *Store) ListVersions(ctx context.Context, disk diskio.DiskHandle, bucket, key string) ([]string, error) {
	dir := ObjectDir(s.deploymentID, bucket, key)
	names, err := s.dio.Enumerate(ctx, disk, dir)
	if err != nil {
		return nil, err
	}
	present := names[:0]
	for _, name := range names {
		_, err := s.dio.Stat(ctx, disk, SidecarPath(VersionDir(s.deploymentID, bucket, key, name)))
		if diskio.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		present = append(present, name)
	}
	sort.Strings(present)
	return present, nil
}

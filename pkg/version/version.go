// Package version resolves object version identifiers: generating new
// version IDs, ordering a version set by recency, and resolving the
// "latest" alias.
package version

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/objectcore/pkg/chunkstore"
	"github.com/cuemby/objectcore/pkg/diskio"
	"github.com/cuemby/objectcore/pkg/errs"
)

// LatestAlias is the reserved version_id string meaning "the most recent
// non-delete-marker version."
const LatestAlias = "latest"

// New generates a fresh version identifier. Version IDs are UUIDv4s:
// unlike a monotonic counter they need no coordination across the disks
// a version is first written to, which matters because a write quorum
// commits to several disks independently.
func New() string {
	return uuid.NewString()
}

// Entry pairs a version ID with the sidecar metadata needed to order and
// filter it.
type Entry struct {
	VersionID    string
	ModTime      int64 // unix nanos, for deterministic ordering
	DeleteMarker bool
}

// SortEntries orders entries newest-first by ModTime, breaking ties on
// VersionID so ordering is deterministic across disks that commit in the
// same instant.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ModTime != entries[j].ModTime {
			return entries[i].ModTime > entries[j].ModTime
		}
		return entries[i].VersionID > entries[j].VersionID
	})
}

// ResolveLatest returns the version ID of the newest entry that is not a
// delete marker. If the newest entry IS a delete marker, ResolveLatest
// returns errs.NotFound — the resolved decision for the open
// question of whether "latest" should skip past delete markers to the
// next live version or report the object as absent: it reports absent,
// matching how an S3-compatible HEAD/GET on a delete-marker-fronted key
// behaves without an explicit version_id.
func ResolveLatest(entries []Entry) (string, error) {
	if len(entries) == 0 {
		return "", errs.New(errs.NotFound, "version.ResolveLatest: no versions")
	}
	ordered := make([]Entry, len(entries))
	copy(ordered, entries)
	SortEntries(ordered)

	newest := ordered[0]
	if newest.DeleteMarker {
		return "", errs.New(errs.NotFound, "version.ResolveLatest: latest is a delete marker")
	}
	return newest.VersionID, nil
}

// List reads every version's sidecar from one disk for (bucket, key) and
// returns them as Entry values, newest first.
func List(ctx context.Context, store *chunkstore.Store, disk diskio.DiskHandle, bucket, key string) ([]Entry, error) {
	ids, err := store.ListVersions(ctx, disk, bucket, key)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		sc, err := store.ReadSidecar(ctx, disk, bucket, key, id)
		if err != nil {
			if errs.Is(err, errs.NotFound) {
				continue
			}
			return nil, err
		}
		entries = append(entries, Entry{
			VersionID:    sc.VersionID,
			ModTime:      sc.ModTime.UnixNano(),
			DeleteMarker: sc.DeleteMarker,
		})
	}
	SortEntries(entries)
	return entries, nil
}

// NewDeleteMarker builds the sidecar for a delete marker: a zero-size,
// zero-chunk version whose presence as "latest" makes the key resolve as
// not found.
func NewDeleteMarker(versionID string, modTimeUnixNano int64) *chunkstore.Sidecar {
	return &chunkstore.Sidecar{
		Version:      chunkstore.SidecarSchemaVersion,
		VersionID:    versionID,
		ModTime:      time.Unix(0, modTimeUnixNano).UTC(),
		DeleteMarker: true,
	}
}

// Package objectstore wires placement, erasure, chunkstore, version,
// quorum and registry together behind the ObjectStore contract:
// put/get/delete/head/list against buckets, each backed by a set chosen
// through the placement ring and committed by quorum.
package objectstore

import "time"

// ByteRange requests a sub-range of an object's bytes; both bounds are
// inclusive, mirroring an HTTP Range header's semantics without actually
// implementing HTTP.
type ByteRange struct {
	Start int64
	End   int64
}

// ObjectMeta is an object version's metadata, returned by Head and
// embedded in GetResult.
type ObjectMeta struct {
	Bucket      string
	Key         string
	VersionID   string
	Size        int64
	ContentType string
	ETag        string
	ModTime     time.Time
	UserMeta    map[string]string
}

// PutResult is returned by a successful Put.
type PutResult struct {
	VersionID string
	ETag      string
	Size      int64
}

// GetResult is returned by a successful Get.
type GetResult struct {
	ObjectMeta
	Data []byte
}

// DeleteResult reports whether the delete created a new delete-marker
// version or removed one directly.
type DeleteResult struct {
	VersionID    string
	DeleteMarker bool
}

// ListResult is one page of a bucket listing.
type ListResult struct {
	Keys       []string
	NextMarker string
	Truncated  bool
}

// BucketInfo describes one bucket.
type BucketInfo struct {
	Name      string
	CreatedAt time.Time
}

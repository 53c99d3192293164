// Package chunkstore implements the per-disk sidecar and chunk file layout
// described here: a uniformly-spread object directory holding
// one sidecar JSON file and zero or more part.<i> chunk files, committed
// with atomic temp+rename writes.
package chunkstore

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

const (
	sidecarFileName = "sidecar"
	chunkFilePrefix = "part."
)

// ObjectPath computes the uniformly-spread directory components for an
// object's data tree: xxh64_seed(deployment_id, bucket|"/"|key) produces
// a 2-hex + 16-hex directory partitioning.
// The returned objectHash is the full 16-hex component repeated as the
// leaf directory name:
//
//	<bucket>/<2-hex>/<16-hex>/<object-hash>/sidecar
//	<bucket>/<2-hex>/<16-hex>/<object-hash>/part.<i>
func ObjectPath(deploymentID, bucket, key string) (twoHex, sixteenHex, objectHash string) {
	h := xxhash.New()
	_, _ = h.WriteString(deploymentID)
	_, _ = h.WriteString(bucket)
	_, _ = h.WriteString("/")
	_, _ = h.WriteString(key)
	sum := h.Sum64()

	sixteenHex = fmt.Sprintf("%016x", sum)
	twoHex = sixteenHex[:2]
	objectHash = sixteenHex
	return
}

// VersionDir returns the directory, relative to a disk's data root, that
// holds one version's sidecar and chunk files. Each version_id gets its
// own sidecar; since the layout names a single "sidecar" file per
// object-hash directory, distinct versions are addressed by nesting the
// version_id as the final path component.
func VersionDir(deploymentID, bucket, key, versionID string) string {
	twoHex, sixteenHex, objectHash := ObjectPath(deploymentID, bucket, key)
	return fmt.Sprintf("%s/%s/%s/%s/%s", bucket, twoHex, sixteenHex, objectHash, versionID)
}

// ObjectDir returns the directory common to every version of (bucket,
// key) — the parent of each VersionDir — used for enumerating versions.
func ObjectDir(deploymentID, bucket, key string) string {
	twoHex, sixteenHex, objectHash := ObjectPath(deploymentID, bucket, key)
	return fmt.Sprintf("%s/%s/%s/%s", bucket, twoHex, sixteenHex, objectHash)
}

// SidecarPath returns the path of the sidecar file within a version directory.
func SidecarPath(versionDir string) string {
	return versionDir + "/" + sidecarFileName
}

// ChunkPath returns the path of chunk index i within a version directory.
func ChunkPath(versionDir string, i int) string {
	return fmt.Sprintf("%s/%s%d", versionDir, chunkFilePrefix, i)
}

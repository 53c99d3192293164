package chunkstore

import (
	"context"

	"github.com/cuemby/objectcore/pkg/diskio"
	"github.com/cuemby/objectcore/pkg/errs"
)

// commitVersion writes a sidecar and its chunks to one disk. Chunks are
// written first, each via diskio's temp+fsync+rename commit, so a sidecar
// never becomes visible ahead of the chunks it describes; the sidecar is
// written last and is the single file whose presence makes the version
// readable.
func commitVersion(ctx context.Context, dio diskio.DiskIO, disk diskio.DiskHandle, versionDir string, sidecar *Sidecar, chunks map[int][]byte) error {
	for idx, data := range chunks {
		if err := dio.WriteAtomic(ctx, disk, ChunkPath(versionDir, idx), data); err != nil {
			return errs.Wrap(errs.Io, "chunkstore.commitVersion.chunk", err)
		}
	}
	data, err := sidecar.Marshal()
	if err != nil {
		return err
	}
	if err := dio.WriteAtomic(ctx, disk, SidecarPath(versionDir), data); err != nil {
		return errs.Wrap(errs.Io, "chunkstore.commitVersion.sidecar", err)
	}
	return nil
}

// removeVersion deletes a version's sidecar first, then its chunks, so a
// reader never finds a sidecar whose chunks are already gone. Chunk files
// can briefly outlive their sidecar; without it they are never read.
func removeVersion(ctx context.Context, dio diskio.DiskIO, disk diskio.DiskHandle, versionDir string, chunkCount int) error {
	if err := dio.RemoveFile(ctx, disk, SidecarPath(versionDir)); err != nil {
		return errs.Wrap(errs.Io, "chunkstore.removeVersion.sidecar", err)
	}
	for i := 0; i < chunkCount; i++ {
		if err := dio.RemoveFile(ctx, disk, ChunkPath(versionDir, i)); err != nil {
			return errs.Wrap(errs.Io, "chunkstore.removeVersion.chunk", err)
		}
	}
	return nil
}

package diskio

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cuemby/objectcore/pkg/errs"
)

// Local is the reference DiskIO implementation: each DiskHandle's
// MountPath is a directory on the local filesystem, and every relative
// path the caller supplies is joined under it. Follows a "prepare the
// full payload, then commit in one step" discipline: a temp-file-then-
// rename filesystem commit, since the durability model here is POSIX
// files, not an embedded KV store.
type Local struct{}

// NewLocal constructs a Local DiskIO implementation.
func NewLocal() *Local { return &Local{} }

func (l *Local) abs(disk DiskHandle, path string) string {
	return filepath.Join(disk.MountPath, filepath.FromSlash(path))
}

// WriteAtomic writes data to a temp file beside the destination, fsyncs
// it, renames it into place, then fsyncs the containing directory so the
// rename itself survives a crash.
func (l *Local) WriteAtomic(ctx context.Context, disk DiskHandle, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.Timeout, "diskio.WriteAtomic", err)
	}
	full := l.abs(disk, path)
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.Io, "diskio.WriteAtomic.mkdir", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errs.Wrap(errs.Io, "diskio.WriteAtomic.createTemp", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.Wrap(errs.Io, "diskio.WriteAtomic.write", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.Wrap(errs.Io, "diskio.WriteAtomic.fsync", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errs.Wrap(errs.Io, "diskio.WriteAtomic.close", err)
	}
	if err := os.Rename(tmpPath, full); err != nil {
		os.Remove(tmpPath)
		return errs.Wrap(errs.Io, "diskio.WriteAtomic.rename", err)
	}
	return l.syncDirPath(dir)
}

func (l *Local) ReadFile(ctx context.Context, disk DiskHandle, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.Timeout, "diskio.ReadFile", err)
	}
	data, err := os.ReadFile(l.abs(disk, path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.NotFound, "diskio.ReadFile", err)
		}
		return nil, errs.Wrap(errs.Io, "diskio.ReadFile", err)
	}
	return data, nil
}

func (l *Local) RemoveFile(ctx context.Context, disk DiskHandle, path string) error {
	if err := os.Remove(l.abs(disk, path)); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.Io, "diskio.RemoveFile", err)
	}
	return nil
}

func (l *Local) RenameFile(ctx context.Context, disk DiskHandle, oldPath, newPath string) error {
	oldFull := l.abs(disk, oldPath)
	newFull := l.abs(disk, newPath)
	if err := os.MkdirAll(filepath.Dir(newFull), 0o755); err != nil {
		return errs.Wrap(errs.Io, "diskio.RenameFile.mkdir", err)
	}
	if err := os.Rename(oldFull, newFull); err != nil {
		return errs.Wrap(errs.Io, "diskio.RenameFile", err)
	}
	return l.syncDirPath(filepath.Dir(newFull))
}

func (l *Local) SyncDir(ctx context.Context, disk DiskHandle, dirPath string) error {
	return l.syncDirPath(l.abs(disk, dirPath))
}

func (l *Local) syncDirPath(dirPath string) error {
	d, err := os.Open(dirPath)
	if err != nil {
		return errs.Wrap(errs.Io, "diskio.syncDir.open", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return errs.Wrap(errs.Io, "diskio.syncDir.fsync", err)
	}
	return nil
}

func (l *Local) Enumerate(ctx context.Context, disk DiskHandle, dirPath string) ([]string, error) {
	entries, err := os.ReadDir(l.abs(disk, dirPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.Io, "diskio.Enumerate", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (l *Local) Stat(ctx context.Context, disk DiskHandle, path string) (FileInfo, error) {
	info, err := os.Stat(l.abs(disk, path))
	if err != nil {
		if os.IsNotExist(err) {
			return FileInfo{}, errs.Wrap(errs.NotFound, "diskio.Stat", err)
		}
		return FileInfo{}, errs.Wrap(errs.Io, "diskio.Stat", err)
	}
	return FileInfo{
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}, nil
}

var _ DiskIO = (*Local)(nil)

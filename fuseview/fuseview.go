// Package fuseview exposes a mounted volume as a real, read-only OS
// directory via FUSE, for interactive inspection without a dedicated CLI.
// The volume's flat namespace (no subdirectories, no permissions) maps
// directly onto a single-level FUSE tree: the root lists every file, and
// each file node serves Read from the underlying volume.
package fuseview

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/nrednav/fsfs"
)

// Source is the subset of *fsfs.FS the view needs. A mounted *fsfs.FS
// satisfies it directly.
type Source interface {
	List() []fsfs.DirInfo
	Open(name string) (int, error)
	Seek(fd int, offset int64) error
	Read(fd int, buf []byte) (int, error)
	Close(fd int) error
}

// Mount starts serving src as a read-only FUSE file system rooted at
// mountpoint. The returned server must be stopped with Unmount (or
// Wait'ed on) by the caller; the view never writes back to src.
func Mount(mountpoint string, src Source) (*fuse.Server, error) {
	root := &rootNode{src: src}
	opts := &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName:   "fsfs",
			Name:     "fsfs",
			Debug:    false,
			ReadOnly: true,
		},
	}
	server, err := fs.Mount(mountpoint, root, opts)
	if err != nil {
		return nil, err
	}
	return server, nil
}

// rootNode is the single directory of the view; every file in the volume
// appears as one of its direct children.
type rootNode struct {
	fs.Inode
	src Source
}

var (
	_ fs.NodeLookuper  = (*rootNode)(nil)
	_ fs.NodeReaddirer = (*rootNode)(nil)
	_ fs.NodeGetattrer = (*rootNode)(nil)
)

func (r *rootNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0755 | fuse.S_IFDIR
	return 0
}

func (r *rootNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	for _, info := range r.src.List() {
		if info.Name == name {
			child := &fileNode{src: r.src, name: info.Name, size: info.Size}
			stable := fs.StableAttr{Mode: fuse.S_IFREG}
			out.Mode = 0444 | fuse.S_IFREG
			out.Size = uint64(info.Size)
			return r.NewInode(ctx, child, stable), 0
		}
	}
	return nil, syscall.ENOENT
}

func (r *rootNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := r.src.List()
	list := make([]fuse.DirEntry, 0, len(entries))
	for _, info := range entries {
		list = append(list, fuse.DirEntry{Name: info.Name, Mode: fuse.S_IFREG})
	}
	return fs.NewListDirStream(list), 0
}

// fileNode is a read-only view of one volume file.
type fileNode struct {
	fs.Inode
	src  Source
	name string
	size int64
}

var (
	_ fs.NodeOpener    = (*fileNode)(nil)
	_ fs.NodeReader    = (*fileNode)(nil)
	_ fs.NodeGetattrer = (*fileNode)(nil)
)

func (f *fileNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0444 | fuse.S_IFREG
	out.Size = uint64(f.size)
	return 0
}

func (f *fileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	fd, err := f.src.Open(f.name)
	if err != nil {
		return nil, 0, syscall.EIO
	}
	return &fileHandle{src: f.src, fd: fd}, fuse.FOPEN_KEEP_CACHE, 0
}

func (f *fileNode) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h, ok := fh.(*fileHandle)
	if !ok {
		return nil, syscall.EBADF
	}
	if err := h.src.Seek(h.fd, off); err != nil {
		return nil, syscall.EINVAL
	}
	n, err := h.src.Read(h.fd, dest)
	if err != nil {
		return nil, syscall.EIO
	}
	return fuse.ReadResultData(dest[:n]), 0
}

// fileHandle pairs one volume-level file descriptor with the Source it
// came from, so Read can Seek+Read against the right handle.
type fileHandle struct {
	src Source
	fd  int
}

var _ fs.FileReleaser = (*fileHandle)(nil)

func (h *fileHandle) Release(ctx context.Context) syscall.Errno {
	h.src.Close(h.fd)
	return 0
}

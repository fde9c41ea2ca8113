// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/bureau-foundation/tarfs/lib/tarfs"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	Mountpoint string

	// Volume is the mounted tarfs volume to project.
	Volume *tarfs.Volume

	// AllowOther permits other users (including root) to access the
	// mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, errors go to
	// stderr.
	Logger *slog.Logger
}

// Mount mounts the volume at the configured mountpoint. The caller
// must call Unmount on the returned Server when done. The mountpoint
// directory is created if it does not exist.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Volume == nil {
		return nil, fmt.Errorf("volume is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	rootInode, err := options.Volume.GetInode(tarfs.RootIno)
	if err != nil {
		return nil, fmt.Errorf("loading root inode: %w", err)
	}
	root := &node{options: &options, inode: rootInode}

	// The image is immutable, so cached entries and attributes never
	// go stale. Negative entries are equally permanent: a name absent
	// from the image stays absent.
	entryTimeout := 1 * time.Hour
	attrTimeout := 1 * time.Hour
	negativeTimeout := 1 * time.Hour

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "tarfs",
			Name:       "tarfs",
			Options:    []string{"ro"},
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		options.Volume.PutInode(rootInode)
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("tarfs FUSE filesystem mounted",
		"mountpoint", options.Mountpoint,
		"inodes", options.Volume.InodeCount(),
	)
	return server, nil
}

// node projects one tarfs inode. It holds a cache reference on the
// inode for as long as the kernel knows the node, released when the
// kernel forgets it.
type node struct {
	gofuse.Inode
	options *Options
	inode   *tarfs.Inode
}

var _ gofuse.InodeEmbedder = (*node)(nil)
var _ gofuse.NodeLookuper = (*node)(nil)
var _ gofuse.NodeReaddirer = (*node)(nil)
var _ gofuse.NodeGetattrer = (*node)(nil)
var _ gofuse.NodeOpener = (*node)(nil)
var _ gofuse.NodeReader = (*node)(nil)
var _ gofuse.NodeReadlinker = (*node)(nil)
var _ gofuse.NodeGetxattrer = (*node)(nil)
var _ gofuse.NodeListxattrer = (*node)(nil)
var _ gofuse.NodeStatfser = (*node)(nil)
var _ gofuse.NodeOnForgetter = (*node)(nil)

// errno maps lib/tarfs errors onto the errno surface the kernel
// expects: a missing name is ENOENT, everything structural is EIO.
func errno(err error) syscall.Errno {
	if errors.Is(err, tarfs.ErrNotFound) {
		return syscall.ENOENT
	}
	return syscall.EIO
}

func fillAttr(inode *tarfs.Inode, out *fuse.Attr) {
	out.Ino = inode.Ino()
	out.Mode = uint32(inode.Mode())
	out.Size = inode.Size()
	out.Blocks = (out.Size + tarfs.SectorSize - 1) / tarfs.SectorSize
	out.Blksize = tarfs.SectorSize
	out.Uid = inode.UID()
	out.Gid = inode.GID()
	out.Nlink = 1
	mtime := inode.Mtime()
	out.SetTimes(&mtime, &mtime, &mtime)
	if inode.IsCharDev() || inode.IsBlockDev() {
		major, minor := inode.Device()
		out.Rdev = uint32(tarfs.EncodeDevice(major, minor))
	}
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	childIno, err := n.options.Volume.Lookup(n.inode, name)
	if err != nil {
		if !errors.Is(err, tarfs.ErrNotFound) {
			n.options.Logger.Error("lookup failed",
				"dir", n.inode.Ino(), "name", name, "error", err)
		}
		return nil, errno(err)
	}
	childInode, err := n.options.Volume.GetInode(childIno)
	if err != nil {
		n.options.Logger.Error("inode load failed",
			"ino", childIno, "error", err)
		return nil, errno(err)
	}

	fillAttr(childInode, &out.Attr)
	childNode := &node{options: n.options, inode: childInode}
	stable := gofuse.StableAttr{
		Mode: uint32(childInode.Mode()) & uint32(tarfs.ModeTypeMask),
		Ino:  childInode.Ino(),
	}
	child := n.NewInode(ctx, childNode, stable)
	if child.Operations() != childNode {
		// An existing kernel node for this inode already holds a
		// cache reference; release the duplicate.
		n.options.Volume.PutInode(childInode)
	}
	return child, 0
}

func (n *node) OnForget() {
	n.options.Volume.PutInode(n.inode)
}

func (n *node) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	fillAttr(n.inode, &out.Attr)
	return 0
}

func (n *node) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	// Image content is immutable; the page cache is always valid.
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (n *node) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	size := n.inode.Size()
	if off < 0 || uint64(off) >= size {
		return fuse.ReadResultData(nil), 0
	}
	count := min(uint64(len(dest)), size-uint64(off))
	if err := n.options.Volume.ReadAt(n.inode, dest[:count], uint64(off)); err != nil {
		n.options.Logger.Error("read failed",
			"ino", n.inode.Ino(), "offset", off, "error", err)
		return nil, errno(err)
	}
	return fuse.ReadResultData(dest[:count]), 0
}

func (n *node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	target, err := n.options.Volume.Readlink(n.inode)
	if err != nil {
		n.options.Logger.Error("readlink failed",
			"ino", n.inode.Ino(), "error", err)
		return nil, errno(err)
	}
	return []byte(target), 0
}

func (n *node) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	it, err := n.options.Volume.DirIterator(n.inode, 0)
	if err != nil {
		n.options.Logger.Error("readdir failed",
			"ino", n.inode.Ino(), "error", err)
		return nil, errno(err)
	}
	stream := &dirStream{it: it}
	stream.advance()
	return stream, 0
}

func (n *node) Getxattr(ctx context.Context, attr string, dest []byte) (uint32, syscall.Errno) {
	value, ok := n.inode.OverlayXattr(attr)
	if !ok {
		return 0, syscall.ENODATA
	}
	if len(dest) < len(value) {
		return uint32(len(value)), syscall.ERANGE
	}
	copy(dest, value)
	return uint32(len(value)), 0
}

func (n *node) Listxattr(ctx context.Context, dest []byte) (uint32, syscall.Errno) {
	if _, ok := n.inode.OverlayXattr(tarfs.OpaqueXattr); !ok {
		return 0, 0
	}
	list := tarfs.OpaqueXattr + "\x00"
	if len(dest) < len(list) {
		return uint32(len(list)), syscall.ERANGE
	}
	copy(dest, list)
	return uint32(len(list)), 0
}

func (n *node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	out.Bsize = tarfs.SectorSize
	out.Frsize = tarfs.SectorSize
	out.Blocks = n.options.Volume.Size() / tarfs.SectorSize
	out.Files = n.options.Volume.InodeCount()
	out.NameLen = tarfs.MaxNameLen
	return 0
}

// dirStream adapts a directory iterator to the go-fuse DirStream
// interface. One entry is prefetched so HasNext can answer without
// guessing; an iteration error is delivered once through Next.
type dirStream struct {
	it   *tarfs.DirIterator
	next tarfs.DirEntry
	err  error
	done bool
}

func (s *dirStream) advance() {
	entry, err := s.it.Next()
	if errors.Is(err, io.EOF) {
		s.done = true
		return
	}
	if err != nil {
		s.err = err
		return
	}
	s.next = entry
}

func (s *dirStream) HasNext() bool {
	return !s.done
}

func (s *dirStream) Next() (fuse.DirEntry, syscall.Errno) {
	if s.err != nil {
		s.done = true
		return fuse.DirEntry{}, errno(s.err)
	}
	entry := fuse.DirEntry{
		Name: s.next.Name,
		Ino:  s.next.Ino,
		// Directory entry type tags are the file type bits shifted
		// down twelve; shift back for the attr-style mode the kernel
		// wants here.
		Mode: uint32(s.next.Type) << 12,
	}
	s.advance()
	return entry, 0
}

func (s *dirStream) Close() {}

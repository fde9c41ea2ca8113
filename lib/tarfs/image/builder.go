// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/bureau-foundation/tarfs/lib/tarfs"
)

// maxMtime is the largest mtime seconds value the split 36-bit
// on-disk encoding can carry.
const maxMtime = 1<<36 - 1

// Entry describes one filesystem object to place in an image.
type Entry struct {
	// Mode is the POSIX mode: type bits plus permission bits. The
	// type bits are required.
	Mode uint16

	// UID and GID are the owner.
	UID uint32
	GID uint32

	// Mtime is the modification time in whole seconds. Must fit the
	// 36-bit on-disk encoding.
	Mtime int64

	// Data is the content of a regular file.
	Data []byte

	// Target is the target of a symlink.
	Target string

	// Major and Minor are the device number of a character or block
	// special file.
	Major uint32
	Minor uint32

	// Opaque sets the opaque-directory flag. Directories only.
	Opaque bool
}

// node is one inode in the tree being built. Hard links make
// several directory entries point at the same node.
type node struct {
	ino   uint64
	entry Entry

	// children maps names to nodes for directories.
	children map[string]*node
}

func (n *node) isDir() bool {
	return n.entry.Mode&tarfs.ModeTypeMask == tarfs.ModeDirectory
}

// Builder accumulates a filesystem tree and writes it as a tarfs
// image. The zero value is not usable; create one with [NewBuilder].
type Builder struct {
	root *node

	// nodes holds every inode in number order; nodes[0] is the root
	// (inode 1).
	nodes []*node
}

// NewBuilder returns a builder whose root directory has mode 0755
// and zero owner and mtime. Root attributes can be replaced by
// adding an entry at path "." or "/".
func NewBuilder() *Builder {
	b := &Builder{}
	b.root = b.newNode(Entry{Mode: tarfs.ModeDirectory | 0o755})
	return b
}

func (b *Builder) newNode(e Entry) *node {
	n := &node{ino: uint64(len(b.nodes) + 1), entry: e}
	if n.isDir() {
		n.children = make(map[string]*node)
	}
	b.nodes = append(b.nodes, n)
	return n
}

// InodeCount returns the number of inodes added so far, including
// the root.
func (b *Builder) InodeCount() uint64 {
	return uint64(len(b.nodes))
}

func validateEntry(e Entry) error {
	switch e.Mode & tarfs.ModeTypeMask {
	case tarfs.ModeRegular, tarfs.ModeDirectory, tarfs.ModeSymlink,
		tarfs.ModeCharDev, tarfs.ModeBlockDev, tarfs.ModeFIFO, tarfs.ModeSocket:
	default:
		return fmt.Errorf("image: mode %#o has no recognized type bits", e.Mode)
	}
	if e.Mtime < 0 || e.Mtime > maxMtime {
		return fmt.Errorf("image: mtime %d outside the representable range [0, %d]", e.Mtime, int64(maxMtime))
	}
	if e.Mode&tarfs.ModeTypeMask == tarfs.ModeSymlink {
		if e.Target == "" {
			return fmt.Errorf("image: symlink entry has empty target")
		}
		if len(e.Target) > tarfs.MaxSymlinkLen {
			return fmt.Errorf("image: symlink target of %d bytes exceeds limit %d", len(e.Target), tarfs.MaxSymlinkLen)
		}
	}
	if e.Opaque && e.Mode&tarfs.ModeTypeMask != tarfs.ModeDirectory {
		return fmt.Errorf("image: opaque flag on non-directory mode %#o", e.Mode)
	}
	return nil
}

// splitPath normalizes a slash-separated path into components.
// Returns nil for the root ("", ".", "/").
func splitPath(path string) ([]string, error) {
	var components []string
	for component := range strings.SplitSeq(path, "/") {
		switch component {
		case "", ".":
			continue
		case "..":
			return nil, fmt.Errorf("image: path %q escapes the tree", path)
		}
		if len(component) > tarfs.MaxNameLen {
			return nil, fmt.Errorf("image: path component of %d bytes exceeds limit %d", len(component), tarfs.MaxNameLen)
		}
		components = append(components, component)
	}
	return components, nil
}

// walkDir resolves the directory that will hold the final component
// of components, creating intermediate directories (mode 0755) as
// needed.
func (b *Builder) walkDir(path string, components []string) (*node, error) {
	current := b.root
	for _, component := range components {
		child, ok := current.children[component]
		if !ok {
			child = b.newNode(Entry{Mode: tarfs.ModeDirectory | 0o755})
			current.children[component] = child
		}
		if !child.isDir() {
			return nil, fmt.Errorf("image: %q crosses non-directory component %q", path, component)
		}
		current = child
	}
	return current, nil
}

// Add places an entry at path, creating missing parent directories
// with default attributes. Adding over an existing path replaces its
// attributes in place (layer tars re-state directories routinely);
// when both old and new are directories the children are kept.
// Returns the entry's inode number.
func (b *Builder) Add(path string, e Entry) (uint64, error) {
	if err := validateEntry(e); err != nil {
		return 0, fmt.Errorf("%w (path %q)", err, path)
	}
	components, err := splitPath(path)
	if err != nil {
		return 0, err
	}
	if len(components) == 0 {
		// Replacing the root: must stay a directory.
		if e.Mode&tarfs.ModeTypeMask != tarfs.ModeDirectory {
			return 0, fmt.Errorf("image: root entry must be a directory, got mode %#o", e.Mode)
		}
		b.root.entry = e
		return b.root.ino, nil
	}

	parent, err := b.walkDir(path, components[:len(components)-1])
	if err != nil {
		return 0, err
	}
	name := components[len(components)-1]

	if existing, ok := parent.children[name]; ok {
		if existing.isDir() && e.Mode&tarfs.ModeTypeMask == tarfs.ModeDirectory {
			existing.entry = e
			return existing.ino, nil
		}
		if existing.isDir() {
			return 0, fmt.Errorf("image: cannot replace directory %q with mode %#o", path, e.Mode)
		}
		existing.entry = e
		existing.children = nil
		if e.Mode&tarfs.ModeTypeMask == tarfs.ModeDirectory {
			existing.children = make(map[string]*node)
		}
		return existing.ino, nil
	}

	n := b.newNode(e)
	parent.children[name] = n
	return n.ino, nil
}

// AddLink adds a hard link: path becomes another name for the inode
// already at target. Directories cannot be linked.
func (b *Builder) AddLink(path, target string) error {
	targetComponents, err := splitPath(target)
	if err != nil {
		return err
	}
	targetNode := b.root
	for _, component := range targetComponents {
		child, ok := targetNode.children[component]
		if !ok {
			return fmt.Errorf("image: hard link target %q does not exist", target)
		}
		targetNode = child
	}
	if targetNode.isDir() {
		return fmt.Errorf("image: cannot hard link directory %q", target)
	}

	components, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(components) == 0 {
		return fmt.Errorf("image: hard link path %q names the root", path)
	}
	parent, err := b.walkDir(path, components[:len(components)-1])
	if err != nil {
		return err
	}
	name := components[len(components)-1]
	if _, ok := parent.children[name]; ok {
		return fmt.Errorf("image: %q already exists", path)
	}
	parent.children[name] = targetNode
	return nil
}

// SetOpaque sets the opaque-directory flag on an existing directory.
func (b *Builder) SetOpaque(path string) error {
	components, err := splitPath(path)
	if err != nil {
		return err
	}
	dir, err := b.walkDir(path, components)
	if err != nil {
		return err
	}
	dir.entry.Opaque = true
	return nil
}

// countingWriter tracks the byte offset of the streaming image
// write.
type countingWriter struct {
	w     io.Writer
	count uint64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count += uint64(n)
	return n, err
}

// sortedChildNames returns a directory's child names in byte order.
func sortedChildNames(dir *node) []string {
	names := make([]string, 0, len(dir.children))
	for name := range dir.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// layout is the per-node placement computed during the write.
type layout struct {
	dataOff uint64
	dataLen uint64
}

// WriteTo emits the complete image and returns the number of bytes
// written. The device size a reader must be told is exactly this
// return value.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	placements := make([]layout, len(b.nodes))

	// File and symlink data regions.
	for idx, n := range b.nodes {
		switch n.entry.Mode & tarfs.ModeTypeMask {
		case tarfs.ModeRegular:
			placements[idx] = layout{dataOff: cw.count, dataLen: uint64(len(n.entry.Data))}
			if _, err := cw.Write(n.entry.Data); err != nil {
				return int64(cw.count), fmt.Errorf("image: writing data for inode %d: %w", n.ino, err)
			}
		case tarfs.ModeSymlink:
			placements[idx] = layout{dataOff: cw.count, dataLen: uint64(len(n.entry.Target))}
			if _, err := io.WriteString(cw, n.entry.Target); err != nil {
				return int64(cw.count), fmt.Errorf("image: writing symlink target for inode %d: %w", n.ino, err)
			}
		}
	}

	// Per-directory name blobs and entry tables. The parent inode
	// for ".." is tracked during the walk — the format stores no
	// parent pointers, so it only exists here.
	if err := b.writeDirRegions(cw, b.root, b.root, placements); err != nil {
		return int64(cw.count), err
	}

	// Inode table.
	tableOff := cw.count
	for idx, n := range b.nodes {
		var offset uint64
		switch n.entry.Mode & tarfs.ModeTypeMask {
		case tarfs.ModeCharDev, tarfs.ModeBlockDev:
			offset = tarfs.EncodeDevice(n.entry.Major, n.entry.Minor)
		default:
			offset = placements[idx].dataOff
		}
		var flags uint8
		if n.entry.Opaque {
			flags |= tarfs.FlagOpaque
		}
		record := encodeInode(n.entry.Mode, flags, n.entry.UID, n.entry.GID,
			n.entry.Mtime, placements[idx].dataLen, offset)
		if _, err := cw.Write(record[:]); err != nil {
			return int64(cw.count), fmt.Errorf("image: writing inode %d: %w", n.ino, err)
		}
	}

	// Pad to a sector boundary, then the superblock sector: the
	// 16-byte record followed by zeros to fill the sector. Readers
	// locate it as the last full sector of the device.
	if pad := cw.count % tarfs.SectorSize; pad != 0 {
		if _, err := cw.Write(make([]byte, tarfs.SectorSize-pad)); err != nil {
			return int64(cw.count), fmt.Errorf("image: writing padding: %w", err)
		}
	}
	sector := make([]byte, tarfs.SectorSize)
	sb := encodeSuperBlock(tableOff, uint64(len(b.nodes)))
	copy(sector, sb[:])
	if _, err := cw.Write(sector); err != nil {
		return int64(cw.count), fmt.Errorf("image: writing superblock: %w", err)
	}

	return int64(cw.count), nil
}

// writeDirRegions emits dir's name blob and entry table, then
// recurses into child directories. Each directory region is laid out
// as all name bytes followed by the record array; the directory
// inode points at the record array.
func (b *Builder) writeDirRegions(cw *countingWriter, dir, parent *node, placements []layout) error {
	names := sortedChildNames(dir)

	type pendingDirent struct {
		name string
		ino  uint64
		typ  uint8
	}
	dirents := make([]pendingDirent, 0, len(names)+2)
	dirents = append(dirents,
		pendingDirent{name: ".", ino: dir.ino, typ: tarfs.EntryDirectory},
		pendingDirent{name: "..", ino: parent.ino, typ: tarfs.EntryDirectory},
	)
	for _, name := range names {
		child := dir.children[name]
		dirents = append(dirents, pendingDirent{
			name: name,
			ino:  child.ino,
			typ:  entryType(child.entry.Mode),
		})
	}

	// Name blob.
	nameOffs := make([]uint64, len(dirents))
	for i, d := range dirents {
		nameOffs[i] = cw.count
		if _, err := io.WriteString(cw, d.name); err != nil {
			return fmt.Errorf("image: writing name %q in inode %d: %w", d.name, dir.ino, err)
		}
	}

	// Record array.
	placements[dir.ino-1] = layout{
		dataOff: cw.count,
		dataLen: uint64(len(dirents)) * tarfs.DirentSize,
	}
	for i, d := range dirents {
		record := encodeDirent(d.ino, nameOffs[i], uint64(len(d.name)), d.typ)
		if _, err := cw.Write(record[:]); err != nil {
			return fmt.Errorf("image: writing dirent %q in inode %d: %w", d.name, dir.ino, err)
		}
	}

	for _, name := range names {
		child := dir.children[name]
		if child.isDir() {
			if err := b.writeDirRegions(cw, child, dir, placements); err != nil {
				return err
			}
		}
	}
	return nil
}

func entryType(mode uint16) uint8 {
	switch mode & tarfs.ModeTypeMask {
	case tarfs.ModeFIFO:
		return tarfs.EntryFIFO
	case tarfs.ModeCharDev:
		return tarfs.EntryCharDev
	case tarfs.ModeDirectory:
		return tarfs.EntryDirectory
	case tarfs.ModeBlockDev:
		return tarfs.EntryBlockDev
	case tarfs.ModeRegular:
		return tarfs.EntryRegular
	case tarfs.ModeSymlink:
		return tarfs.EntrySymlink
	case tarfs.ModeSocket:
		return tarfs.EntrySocket
	}
	return tarfs.EntryUnknown
}

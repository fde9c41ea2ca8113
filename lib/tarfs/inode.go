// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tarfs

import (
	"fmt"
	"time"
)

// Inode is the decoded, in-memory form of one inode record. Inodes
// are owned by the volume's cache; obtain them with
// [Volume.GetInode] and release them with [Volume.PutInode]. All
// fields are immutable after load.
type Inode struct {
	ino  uint64
	mode uint16
	uid  uint32
	gid  uint32

	mtime int64 // seconds; the format carries no sub-second precision

	// size is the byte length of the data region for regular files
	// and symlinks, and of the directory entry region for
	// directories.
	size uint64

	// dataOff is the device offset of the data region. Zero for
	// special files, which have none.
	dataOff uint64

	opaque bool

	devMajor uint32
	devMinor uint32
}

// loadInode reads and decodes the inode record for ino from the
// table. It performs the record-level validation; cache bookkeeping
// belongs to the caller.
func (v *Volume) loadInode(ino uint64) (*Inode, error) {
	if ino < RootIno || ino > v.inodeCount {
		return nil, fmt.Errorf("tarfs: inode %d outside table of %d inodes: %w", ino, v.inodeCount, ErrNotFound)
	}

	// The offset arithmetic cannot overflow: the mount-time extent
	// check bounds inodeTableOffset + inodeCount*InodeSize, and ino
	// is within inodeCount. The read still goes through the
	// bounds-checked path like every other device access.
	off := v.inodeTableOffset + (ino-1)*InodeSize
	var buf [InodeSize]byte
	if err := v.readAt(buf[:], off); err != nil {
		return nil, err
	}
	raw := decodeRawInode(buf[:])

	i := &Inode{
		ino:    ino,
		mode:   raw.mode,
		uid:    raw.uid,
		gid:    raw.gid,
		mtime:  raw.mtimeSeconds(),
		size:   raw.size,
		opaque: raw.flags&FlagOpaque != 0,
	}

	switch raw.mode & ModeTypeMask {
	case ModeRegular, ModeDirectory, ModeSymlink:
		i.dataOff = raw.offset
	case ModeCharDev, ModeBlockDev:
		// The offset field of a device special file is a packed
		// device number, not a data location.
		i.devMajor, i.devMinor = DecodeDevice(raw.offset)
	case ModeFIFO, ModeSocket:
		// No data region and no device number.
	default:
		return nil, fmt.Errorf("tarfs: inode %d has unrecognized mode %#o: %w", ino, raw.mode, ErrInvalidData)
	}

	return i, nil
}

// Ino returns the inode number.
func (i *Inode) Ino() uint64 { return i.ino }

// Mode returns the raw POSIX mode: type bits plus permission bits.
func (i *Inode) Mode() uint16 { return i.mode }

// UID returns the owning user ID.
func (i *Inode) UID() uint32 { return i.uid }

// GID returns the owning group ID.
func (i *Inode) GID() uint32 { return i.gid }

// Size returns the byte length of the inode's data region (entry
// region for directories). Zero for special files.
func (i *Inode) Size() uint64 { return i.size }

// Mtime returns the modification time. The format stores whole
// seconds only.
func (i *Inode) Mtime() time.Time { return time.Unix(i.mtime, 0) }

// DataOffset returns the device offset of the inode's data region.
// Zero for special files.
func (i *Inode) DataOffset() uint64 { return i.dataOff }

// Opaque reports whether the opaque-directory flag is set on this
// inode. See [Inode.OverlayXattr] for the overlay-facing view.
func (i *Inode) Opaque() bool { return i.opaque }

// Device returns the decoded device number of a character or block
// special file. Zero for every other type.
func (i *Inode) Device() (major, minor uint32) { return i.devMajor, i.devMinor }

// IsRegular reports whether the inode is a regular file.
func (i *Inode) IsRegular() bool { return i.mode&ModeTypeMask == ModeRegular }

// IsDir reports whether the inode is a directory.
func (i *Inode) IsDir() bool { return i.mode&ModeTypeMask == ModeDirectory }

// IsSymlink reports whether the inode is a symbolic link.
func (i *Inode) IsSymlink() bool { return i.mode&ModeTypeMask == ModeSymlink }

// IsCharDev reports whether the inode is a character device.
func (i *Inode) IsCharDev() bool { return i.mode&ModeTypeMask == ModeCharDev }

// IsBlockDev reports whether the inode is a block device.
func (i *Inode) IsBlockDev() bool { return i.mode&ModeTypeMask == ModeBlockDev }

// IsFIFO reports whether the inode is a named pipe.
func (i *Inode) IsFIFO() bool { return i.mode&ModeTypeMask == ModeFIFO }

// IsSocket reports whether the inode is a socket.
func (i *Inode) IsSocket() bool { return i.mode&ModeTypeMask == ModeSocket }

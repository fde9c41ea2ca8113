// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tarfs

import "encoding/binary"

// Fixed sizes of the on-disk structures in bytes.
const (
	// SectorSize is the device granule. The superblock occupies the
	// start of the last full sector.
	SectorSize = 512

	// SuperBlockSize is the size of the packed superblock record.
	SuperBlockSize = 16

	// InodeSize is the size of one packed inode record.
	InodeSize = 32

	// DirentSize is the size of one packed directory entry record.
	DirentSize = 32
)

// RootIno is the inode number of the root directory. Inode numbers
// are 1-based and dense.
const RootIno uint64 = 1

// MaxNameLen caps the accepted length of a single directory entry
// name. The format stores name lengths as u64, but no legitimate
// image carries a name component longer than this; anything larger
// is treated as corruption rather than a reason to allocate.
const MaxNameLen = 255

// MaxSymlinkLen caps the accepted length of a symlink target, for
// the same reason as [MaxNameLen].
const MaxSymlinkLen = 4096

// File type bits of the inode mode field. These are the standard
// POSIX S_IF* values; the format stores raw POSIX modes.
const (
	ModeTypeMask  uint16 = 0xf000
	ModeSocket    uint16 = 0xc000
	ModeSymlink   uint16 = 0xa000
	ModeRegular   uint16 = 0x8000
	ModeBlockDev  uint16 = 0x6000
	ModeDirectory uint16 = 0x4000
	ModeCharDev   uint16 = 0x2000
	ModeFIFO      uint16 = 0x1000

	// ModePermMask covers the permission, setuid/setgid and sticky
	// bits. Mode bits outside ModeTypeMask|ModePermMask do not exist
	// in a u16 mode, so validation reduces to the type nibble.
	ModePermMask uint16 = 0x0fff
)

// Inode flag bits.
const (
	// FlagOpaque marks a directory as opaque to overlay filesystems:
	// it fully replaces any same-named lower-layer directory instead
	// of merging with it.
	FlagOpaque uint8 = 1 << 0
)

// Directory entry type tags, matching the Linux DT_* values. Any
// other value on disk normalizes to EntryUnknown.
const (
	EntryUnknown   uint8 = 0
	EntryFIFO      uint8 = 1
	EntryCharDev   uint8 = 2
	EntryDirectory uint8 = 4
	EntryBlockDev  uint8 = 6
	EntryRegular   uint8 = 8
	EntrySymlink   uint8 = 10
	EntrySocket    uint8 = 12
)

// superBlock is the decoded volume descriptor.
type superBlock struct {
	inodeTableOffset uint64
	inodeCount       uint64
}

func decodeSuperBlock(b []byte) superBlock {
	return superBlock{
		inodeTableOffset: binary.LittleEndian.Uint64(b[0:8]),
		inodeCount:       binary.LittleEndian.Uint64(b[8:16]),
	}
}

// rawInode is one packed inode record, decoded field-for-field but
// not yet validated or interpreted.
type rawInode struct {
	mode   uint16
	flags  uint8
	hmtime uint8
	uid    uint32
	gid    uint32
	lmtime uint32
	size   uint64
	offset uint64
}

func decodeRawInode(b []byte) rawInode {
	return rawInode{
		mode:   binary.LittleEndian.Uint16(b[0:2]),
		flags:  b[2],
		hmtime: b[3],
		uid:    binary.LittleEndian.Uint32(b[4:8]),
		gid:    binary.LittleEndian.Uint32(b[8:12]),
		lmtime: binary.LittleEndian.Uint32(b[12:16]),
		size:   binary.LittleEndian.Uint64(b[16:24]),
		offset: binary.LittleEndian.Uint64(b[24:32]),
	}
}

// mtimeSeconds reconstructs the mtime from its split encoding: the
// low 4 bits of hmtime carry bits 32..35 of the seconds value.
func (r rawInode) mtimeSeconds() int64 {
	return int64(r.hmtime&0xf)<<32 | int64(r.lmtime)
}

// rawDirent is one packed directory entry record.
type rawDirent struct {
	ino     uint64
	nameOff uint64
	nameLen uint64
	typ     uint8
}

func decodeRawDirent(b []byte) rawDirent {
	return rawDirent{
		ino:     binary.LittleEndian.Uint64(b[0:8]),
		nameOff: binary.LittleEndian.Uint64(b[8:16]),
		nameLen: binary.LittleEndian.Uint64(b[16:24]),
		typ:     b[24],
	}
}

// normalizeEntryType maps unrecognized on-disk type tags to
// EntryUnknown instead of propagating them.
func normalizeEntryType(t uint8) uint8 {
	switch t {
	case EntryFIFO, EntryCharDev, EntryDirectory, EntryBlockDev,
		EntryRegular, EntrySymlink, EntrySocket:
		return t
	}
	return EntryUnknown
}

// entryTypeForMode returns the directory entry type tag for an inode
// mode's type bits.
func entryTypeForMode(mode uint16) uint8 {
	switch mode & ModeTypeMask {
	case ModeFIFO:
		return EntryFIFO
	case ModeCharDev:
		return EntryCharDev
	case ModeDirectory:
		return EntryDirectory
	case ModeBlockDev:
		return EntryBlockDev
	case ModeRegular:
		return EntryRegular
	case ModeSymlink:
		return EntrySymlink
	case ModeSocket:
		return EntrySocket
	}
	return EntryUnknown
}

// DecodeDevice unpacks a device number stored in an inode's offset
// field. The packing is the Linux new_encode_dev layout: minor in
// bits 0-7 and 20-31, major in bits 8-19.
func DecodeDevice(dev uint64) (major, minor uint32) {
	major = uint32(dev&0xfff00) >> 8
	minor = uint32(dev&0xff) | uint32((dev>>12)&0xfffff00)
	return major, minor
}

// EncodeDevice packs a device number into the on-disk offset field
// encoding. Inverse of [DecodeDevice].
func EncodeDevice(major, minor uint32) uint64 {
	return uint64(minor&0xff) | uint64(major)<<8 | uint64(minor&^0xff)<<12
}

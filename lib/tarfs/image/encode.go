// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"encoding/binary"

	"github.com/bureau-foundation/tarfs/lib/tarfs"
)

// encodeInode packs one inode record. offset is the data region
// offset for regular files, directories and symlinks, the packed
// device number for specials.
func encodeInode(mode uint16, flags uint8, uid, gid uint32, mtime int64, size, offset uint64) [tarfs.InodeSize]byte {
	var b [tarfs.InodeSize]byte
	binary.LittleEndian.PutUint16(b[0:2], mode)
	b[2] = flags
	b[3] = uint8(mtime>>32) & 0xf
	binary.LittleEndian.PutUint32(b[4:8], uid)
	binary.LittleEndian.PutUint32(b[8:12], gid)
	binary.LittleEndian.PutUint32(b[12:16], uint32(mtime))
	binary.LittleEndian.PutUint64(b[16:24], size)
	binary.LittleEndian.PutUint64(b[24:32], offset)
	return b
}

// encodeDirent packs one directory entry record. The trailing seven
// bytes stay zero.
func encodeDirent(ino, nameOff, nameLen uint64, typ uint8) [tarfs.DirentSize]byte {
	var b [tarfs.DirentSize]byte
	binary.LittleEndian.PutUint64(b[0:8], ino)
	binary.LittleEndian.PutUint64(b[8:16], nameOff)
	binary.LittleEndian.PutUint64(b[16:24], nameLen)
	b[24] = typ
	return b
}

// encodeSuperBlock packs the 16-byte superblock record.
func encodeSuperBlock(inodeTableOffset, inodeCount uint64) [tarfs.SuperBlockSize]byte {
	var b [tarfs.SuperBlockSize]byte
	binary.LittleEndian.PutUint64(b[0:8], inodeTableOffset)
	binary.LittleEndian.PutUint64(b[8:16], inodeCount)
	return b
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tarfs

import (
	"fmt"
	"sync"
)

// Volume is a validated, mounted archive image. It is immutable
// apart from the inode cache and safe for concurrent use. A Volume
// holds a reference on its root inode until [Volume.Unmount].
type Volume struct {
	dev  BlockReader
	size uint64

	inodeTableOffset uint64
	inodeCount       uint64

	// mu protects inodes. It is never held across a BlockReader
	// call: loads happen outside the lock so a stalled device read
	// for one inode cannot block cache access for unrelated ones.
	mu     sync.Mutex
	inodes map[uint64]*cacheEntry

	root *Inode
}

// Mount reads and validates the superblock of the device and returns
// a Volume ready for lookups. size is the total addressable byte
// length of the device and must be known up front: the superblock
// lives at the start of the device's last full sector, not at the
// front.
//
// Validation failures are fatal — no partial Volume is ever
// returned. The root inode is loaded eagerly so a corrupt root fails
// the mount rather than the first lookup.
func Mount(dev BlockReader, size uint64) (*Volume, error) {
	if size < SectorSize {
		return nil, fmt.Errorf("tarfs: device size %d cannot hold a superblock: %w", size, ErrInvalidData)
	}

	sbOff := (size/SectorSize - 1) * SectorSize
	var sbBuf [SuperBlockSize]byte
	if err := dev.ReadAt(sbBuf[:], sbOff); err != nil {
		return nil, fmt.Errorf("tarfs: reading superblock at offset %d: %w", sbOff, err)
	}
	sb := decodeSuperBlock(sbBuf[:])

	if sb.inodeTableOffset >= size {
		return nil, fmt.Errorf("tarfs: inode table offset %d beyond device size %d: %w",
			sb.inodeTableOffset, size, ErrInvalidData)
	}
	if mulOverflows(sb.inodeCount, InodeSize) {
		return nil, fmt.Errorf("tarfs: inode count %d overflows the table extent: %w",
			sb.inodeCount, ErrOutOfRange)
	}
	tableBytes := sb.inodeCount * InodeSize
	if addOverflows(sb.inodeTableOffset, tableBytes) || sb.inodeTableOffset+tableBytes > size {
		return nil, fmt.Errorf("tarfs: inode table [%d, +%d) beyond device size %d: %w",
			sb.inodeTableOffset, tableBytes, size, ErrOutOfRange)
	}

	v := &Volume{
		dev:              dev,
		size:             size,
		inodeTableOffset: sb.inodeTableOffset,
		inodeCount:       sb.inodeCount,
		inodes:           make(map[uint64]*cacheEntry),
	}

	root, err := v.GetInode(RootIno)
	if err != nil {
		return nil, fmt.Errorf("tarfs: loading root inode: %w", err)
	}
	if !root.IsDir() {
		v.PutInode(root)
		return nil, fmt.Errorf("tarfs: root inode is not a directory: %w", ErrInvalidData)
	}
	v.root = root
	return v, nil
}

// Unmount releases the volume's reference on the root inode. The
// Volume must not be used afterwards.
func (v *Volume) Unmount() {
	if v.root != nil {
		v.PutInode(v.root)
		v.root = nil
	}
}

// Root returns the root directory inode. The returned reference is
// owned by the Volume; callers must not release it.
func (v *Volume) Root() *Inode {
	return v.root
}

// Size returns the total addressable byte length of the device.
func (v *Volume) Size() uint64 {
	return v.size
}

// InodeCount returns the number of inodes in the image. Valid inode
// numbers are 1..InodeCount.
func (v *Volume) InodeCount() uint64 {
	return v.inodeCount
}

// InodeTableOffset returns the device offset of the inode table.
func (v *Volume) InodeTableOffset() uint64 {
	return v.inodeTableOffset
}

// checkRange verifies that [off, off+n) lies within the device, with
// the overflow check ahead of the addition it guards.
func (v *Volume) checkRange(off, n uint64) error {
	if addOverflows(off, n) || off+n > v.size {
		return fmt.Errorf("tarfs: range [%d, +%d) outside device of size %d: %w",
			off, n, v.size, ErrOutOfRange)
	}
	return nil
}

// readAt is the bounds-checked device read every decoder goes
// through.
func (v *Volume) readAt(buf []byte, off uint64) error {
	if err := v.checkRange(off, uint64(len(buf))); err != nil {
		return err
	}
	return v.dev.ReadAt(buf, off)
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tarfs

import (
	"fmt"
	"io"
)

// DirEntry is one decoded directory entry.
type DirEntry struct {
	// Name is the entry name: raw bytes, no encoding assumed.
	Name string

	// Ino is the inode number the entry points at.
	Ino uint64

	// Type is the entry's type tag (Entry* constants). Unrecognized
	// on-disk tags are normalized to EntryUnknown.
	Type uint8
}

// direntRegion returns the directory's entry region, with its length
// truncated down to a whole number of records: a trailing partial
// record is ignored, per the format. The range check covers both the
// record arithmetic and the region extent before any scan starts.
func (v *Volume) direntRegion(dir *Inode) (off, length uint64, err error) {
	if !dir.IsDir() {
		return 0, 0, fmt.Errorf("tarfs: inode %d is not a directory: %w", dir.ino, ErrInvalidData)
	}
	length = dir.size - dir.size%DirentSize
	if err := v.checkRange(dir.dataOff, length); err != nil {
		return 0, 0, err
	}
	return dir.dataOff, length, nil
}

// Lookup scans dir for an entry named name and returns its inode
// number. The scan is sequential and the first match wins; if the
// image carries duplicate names the earliest record is
// authoritative. Returns [ErrNotFound] when the region is exhausted
// without a match.
//
// Name bytes are only read for entries whose stored length equals
// len(name) — a length mismatch short-circuits with no device
// access — and the comparison itself runs one bounded segment at a
// time, so a mismatch is detected without materializing the whole
// stored name.
func (v *Volume) Lookup(dir *Inode, name string) (uint64, error) {
	regionOff, regionLen, err := v.direntRegion(dir)
	if err != nil {
		return 0, err
	}
	if len(name) == 0 || len(name) > MaxNameLen {
		return 0, fmt.Errorf("tarfs: lookup of %d-byte name in inode %d: %w", len(name), dir.ino, ErrNotFound)
	}

	var buf [DirentSize]byte
	for off := uint64(0); off < regionLen; off += DirentSize {
		if err := v.dev.ReadAt(buf[:], regionOff+off); err != nil {
			return 0, err
		}
		d := decodeRawDirent(buf[:])
		if d.nameLen != uint64(len(name)) {
			continue
		}
		match, err := v.nameEquals(d.nameOff, name)
		if err != nil {
			return 0, err
		}
		if match {
			return d.ino, nil
		}
	}
	return 0, fmt.Errorf("tarfs: %q not found in directory inode %d: %w", name, dir.ino, ErrNotFound)
}

// nameCompareSegment is the chunk size for incremental name
// comparison in [Volume.nameEquals].
const nameCompareSegment = 64

// nameEquals compares the stored name bytes at [off, off+len(name))
// against name.
func (v *Volume) nameEquals(off uint64, name string) (bool, error) {
	if err := v.checkRange(off, uint64(len(name))); err != nil {
		return false, err
	}
	var seg [nameCompareSegment]byte
	for len(name) > 0 {
		n := min(len(name), nameCompareSegment)
		if err := v.dev.ReadAt(seg[:n], off); err != nil {
			return false, err
		}
		if string(seg[:n]) != name[:n] {
			return false, nil
		}
		name = name[n:]
		off += uint64(n)
	}
	return true, nil
}

// DirIterator walks a directory's entry region in record order. It
// is forward-only and restartable: [DirIterator.Cursor] after any
// Next is a valid start cursor for a fresh iterator over the same
// directory, which is how callers resume after interface-imposed
// buffer limits.
type DirIterator struct {
	vol       *Volume
	regionOff uint64
	regionLen uint64
	cursor    uint64
}

// DirIterator returns an iterator over dir's entries starting at
// cursor, a byte offset into the entry region that must be a
// multiple of [DirentSize]. Cursors at or past the end of the region
// are valid and yield an immediately-exhausted iterator.
func (v *Volume) DirIterator(dir *Inode, cursor uint64) (*DirIterator, error) {
	regionOff, regionLen, err := v.direntRegion(dir)
	if err != nil {
		return nil, err
	}
	if cursor%DirentSize != 0 {
		return nil, fmt.Errorf("tarfs: directory cursor %d is not record-aligned: %w", cursor, ErrInvalidData)
	}
	return &DirIterator{
		vol:       v,
		regionOff: regionOff,
		regionLen: regionLen,
		cursor:    cursor,
	}, nil
}

// Next returns the next entry, or [io.EOF] when the region is
// exhausted. A record with an oversized or out-of-range name fails
// with [ErrInvalidData] or [ErrOutOfRange] without advancing the
// cursor; the entry is unusable but the iterator state stays
// consistent.
func (it *DirIterator) Next() (DirEntry, error) {
	if it.cursor >= it.regionLen {
		return DirEntry{}, io.EOF
	}
	var buf [DirentSize]byte
	if err := it.vol.dev.ReadAt(buf[:], it.regionOff+it.cursor); err != nil {
		return DirEntry{}, err
	}
	d := decodeRawDirent(buf[:])
	if d.nameLen == 0 || d.nameLen > MaxNameLen {
		return DirEntry{}, fmt.Errorf("tarfs: dirent at cursor %d has name length %d: %w",
			it.cursor, d.nameLen, ErrInvalidData)
	}
	if err := it.vol.checkRange(d.nameOff, d.nameLen); err != nil {
		return DirEntry{}, err
	}
	name := make([]byte, d.nameLen)
	if err := it.vol.dev.ReadAt(name, d.nameOff); err != nil {
		return DirEntry{}, err
	}
	it.cursor += DirentSize
	return DirEntry{
		Name: string(name),
		Ino:  d.ino,
		Type: normalizeEntryType(d.typ),
	}, nil
}

// Cursor returns the byte offset of the next unread record. It is
// always a multiple of [DirentSize].
func (it *DirIterator) Cursor() uint64 {
	return it.cursor
}

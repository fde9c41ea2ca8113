// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tarfs

import (
	"encoding/binary"
	"fmt"
	"math"
)

// HandleSize is the encoded length of a file handle.
const HandleSize = 8

// HandleCodec encodes inode numbers as opaque file handles for
// stateless reconnection (NFS-style export). The encoding is a
// direct round trip of the inode number; the format has no
// generation concept, so a trailing generation word supplied by the
// host interface is tolerated and ignored on decode.
type HandleCodec struct {
	inodeCount uint64
}

// HandleCodec returns the volume's file-handle codec. Handle-based
// lookup is only offered when every inode number fits in 32 bits —
// the assumption baked into common remote-handle protocols. Above
// that bound the second return is false and handles are disabled
// outright rather than silently truncated.
func (v *Volume) HandleCodec() (*HandleCodec, bool) {
	if v.inodeCount > math.MaxUint32 {
		return nil, false
	}
	return &HandleCodec{inodeCount: v.inodeCount}, true
}

// EncodeHandle encodes ino as an opaque handle.
func (c *HandleCodec) EncodeHandle(ino uint64) ([]byte, error) {
	if ino < RootIno || ino > c.inodeCount {
		return nil, fmt.Errorf("tarfs: cannot encode handle for inode %d: %w", ino, ErrNotFound)
	}
	handle := make([]byte, HandleSize)
	binary.LittleEndian.PutUint64(handle, ino)
	return handle, nil
}

// DecodeHandle recovers the inode number from a handle previously
// produced by [HandleCodec.EncodeHandle]. Bytes beyond the first
// [HandleSize] are ignored.
func (c *HandleCodec) DecodeHandle(handle []byte) (uint64, error) {
	if len(handle) < HandleSize {
		return 0, fmt.Errorf("tarfs: handle of %d bytes too short: %w", len(handle), ErrInvalidData)
	}
	ino := binary.LittleEndian.Uint64(handle[:HandleSize])
	if ino < RootIno || ino > c.inodeCount {
		return 0, fmt.Errorf("tarfs: handle names inode %d outside table of %d: %w", ino, c.inodeCount, ErrNotFound)
	}
	return ino, nil
}

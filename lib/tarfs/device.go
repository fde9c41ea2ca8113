// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tarfs

import (
	"fmt"
	"io"
	"math"
)

// BlockReader supplies raw bytes from the backing device. The core
// assumes the content behind it is immutable for the lifetime of the
// mounted volume: repeated reads at the same offset must return
// byte-identical data. Implementations are expected to sit on top of
// a block cache; the core performs no caching or retry of its own.
type BlockReader interface {
	// ReadAt fills buf with the bytes at [off, off+len(buf)) of the
	// device, or returns an error. Partial fills are not acceptable:
	// on a nil error every byte of buf is valid.
	ReadAt(buf []byte, off uint64) error
}

// readerAtDevice adapts an [io.ReaderAt] to the exact-fill
// [BlockReader] contract.
type readerAtDevice struct {
	r io.ReaderAt
}

// NewReaderAtDevice wraps an [io.ReaderAt] (an *os.File, a
// bytes.Reader, a custom cache) as a BlockReader. Short reads and
// io.EOF become errors, matching the all-or-nothing contract.
func NewReaderAtDevice(r io.ReaderAt) BlockReader {
	return readerAtDevice{r: r}
}

func (d readerAtDevice) ReadAt(buf []byte, off uint64) error {
	if off > math.MaxInt64 {
		return fmt.Errorf("tarfs: device offset %#x not addressable: %w", off, ErrOutOfRange)
	}
	// io.ReaderAt guarantees err != nil when fewer than len(buf)
	// bytes were read, so a nil error means the buffer is full.
	if _, err := d.r.ReadAt(buf, int64(off)); err != nil {
		return fmt.Errorf("tarfs: reading %d bytes at offset %d: %w", len(buf), off, err)
	}
	return nil
}

// addOverflows reports whether a+b wraps around uint64.
func addOverflows(a, b uint64) bool {
	return a+b < a
}

// mulOverflows reports whether a*b wraps around uint64.
func mulOverflows(a, b uint64) bool {
	return b != 0 && a > math.MaxUint64/b
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tarfs

import "errors"

// Error categories for decode and lookup failures. Callers match with
// [errors.Is]; the wrapped messages carry the specifics (which inode,
// which range). Block reader failures are not translated — they
// propagate verbatim from the [BlockReader] implementation.
var (
	// ErrNotFound reports a name or inode number that does not exist:
	// a directory scan that exhausted its region, or an inode number
	// outside 1..inode_count.
	ErrNotFound = errors.New("tarfs: no such entry")

	// ErrInvalidData reports a malformed on-disk record: an
	// unrecognized mode, a misaligned directory cursor, an oversized
	// name. The record is unusable but the volume is not poisoned;
	// other entries remain readable.
	ErrInvalidData = errors.New("tarfs: invalid on-disk data")

	// ErrOutOfRange reports arithmetic that would overflow or a byte
	// range outside the validated device extent. It indicates either
	// corruption or a hostile image and is surfaced before any
	// wrapping arithmetic takes place.
	ErrOutOfRange = errors.New("tarfs: byte range outside device extent")
)

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tarfs decodes and serves tarfs archive images: pre-built,
// read-only filesystem images derived from tar archives and laid out
// on a block device. The package is the format core only — it parses
// the on-disk structures, resolves names to inode numbers, and reads
// file content. Hosting concerns (FUSE wiring, mount options, page
// caching) live in lib/tarfs/fuse and in the block layer behind the
// [BlockReader] interface.
//
// The on-disk format, little-endian throughout:
//
//   - A 16-byte superblock at the start of the last full 512-byte
//     sector of the device: inode table offset (u64) and inode count
//     (u64). There is no magic number and no version field.
//   - A dense table of 32-byte inode records starting at the table
//     offset. Inode numbers are 1-based; inode 1 is the root
//     directory.
//   - Directory content is a flat array of 32-byte directory entry
//     records, each pointing at raw (not NUL-terminated) name bytes
//     elsewhere on the device.
//   - File and symlink content is a contiguous byte range referenced
//     by the inode's offset and size fields.
//
// Images are produced externally (see lib/tarfs/image), so every
// offset and length read from the device is treated as hostile:
// all arithmetic on device-relative values is overflow-checked
// before it happens, and every read goes through a range check
// against the validated device extent. Decoding failures surface as
// [ErrInvalidData] or [ErrOutOfRange]; they never panic and never
// wrap around.
//
// A mounted [Volume] is immutable and safe for concurrent use. The
// only shared mutable state is the inode cache, which coalesces
// concurrent loads of the same inode number and drops entries when
// their last holder releases them.
package tarfs

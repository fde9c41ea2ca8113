// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package image builds tarfs archive images: the writer-side
// counterpart of lib/tarfs. A [Builder] accumulates an in-memory
// tree of entries — programmatically via [Builder.Add] or from a tar
// stream via [FromTar] — and [Builder.WriteTo] emits the complete
// image in a single streaming pass:
//
//	file and symlink data | per-directory name blobs and entry
//	tables | inode table | zero padding | superblock sector
//
// The builder sorts directory entries by name. The format permits
// any order (readers scan sequentially and take the first match),
// but sorted output makes image bytes reproducible for identical
// input trees, which is what the digest printed by "tarfs build"
// relies on.
//
// Tar ingestion understands the overlay layer conventions: a
// ".wh..wh..opq" marker sets the opaque flag on its directory, and a
// ".wh.<name>" whiteout becomes a 0:0 character device named
// <name>, the representation overlay filesystems expect for
// deletions.
package image

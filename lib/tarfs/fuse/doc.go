// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fuse exposes a tarfs volume as a read-only FUSE mount.
//
// The mount is a thin projection: every kernel operation maps onto
// one lib/tarfs call, node identity is the on-disk inode number, and
// the kernel's page and dentry caches are given long timeouts because
// the image never changes under the mount. Writes of any kind fail
// with EROFS.
package fuse

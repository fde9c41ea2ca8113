// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tarfs

import "fmt"

// ReadAt fills buf with file content starting at logical offset off.
// The buffer is always fully populated: bytes up to end-of-file come
// from the device, everything after is zero. A read entirely past
// end-of-file yields all zeros. Page-fill callers rely on exactly
// this split — a fixed-size transfer unit is valid even when the
// file is shorter.
//
// Only regular files and symlinks carry a data region; other types
// fail with [ErrInvalidData].
func (v *Volume) ReadAt(file *Inode, buf []byte, off uint64) error {
	if !file.IsRegular() && !file.IsSymlink() {
		return fmt.Errorf("tarfs: inode %d has no data region: %w", file.ino, ErrInvalidData)
	}
	if off >= file.size {
		clear(buf)
		return nil
	}
	n := min(uint64(len(buf)), file.size-off)
	if addOverflows(file.dataOff, off) {
		return fmt.Errorf("tarfs: data offset %d+%d overflows: %w", file.dataOff, off, ErrOutOfRange)
	}
	if err := v.readAt(buf[:n], file.dataOff+off); err != nil {
		return err
	}
	clear(buf[n:])
	return nil
}

// Readlink returns the target of a symbolic link.
func (v *Volume) Readlink(link *Inode) (string, error) {
	if !link.IsSymlink() {
		return "", fmt.Errorf("tarfs: inode %d is not a symlink: %w", link.ino, ErrInvalidData)
	}
	if link.size == 0 || link.size > MaxSymlinkLen {
		return "", fmt.Errorf("tarfs: symlink inode %d has target length %d: %w", link.ino, link.size, ErrInvalidData)
	}
	target := make([]byte, link.size)
	if err := v.readAt(target, link.dataOff); err != nil {
		return "", err
	}
	return string(target), nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tarfs

import (
	"fmt"
	"strings"
)

// LookupPath resolves a slash-separated path from the root directory
// and returns the inode it names. Leading and trailing slashes and
// empty components are ignored; "" and "/" name the root. Symlinks
// are not followed — path walking across link targets is host-
// interface policy, not format policy.
//
// The caller owns a reference on the returned inode and must release
// it with [Volume.PutInode].
func (v *Volume) LookupPath(path string) (*Inode, error) {
	current, err := v.GetInode(RootIno)
	if err != nil {
		return nil, err
	}
	for component := range strings.SplitSeq(path, "/") {
		if component == "" || component == "." {
			continue
		}
		ino, err := v.Lookup(current, component)
		if err != nil {
			v.PutInode(current)
			return nil, fmt.Errorf("tarfs: resolving %q: %w", path, err)
		}
		next, err := v.GetInode(ino)
		if err != nil {
			v.PutInode(current)
			return nil, fmt.Errorf("tarfs: resolving %q: %w", path, err)
		}
		v.PutInode(current)
		current = next
	}
	return current, nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tarfs

// cacheEntry is one slot in the inode cache. The entry is inserted
// before the load begins; concurrent callers for the same inode
// number join it and wait on ready instead of issuing their own
// table read.
type cacheEntry struct {
	// ready is closed when the load finished, successfully or not.
	ready chan struct{}

	// inode and err are written once, before ready is closed.
	inode *Inode
	err   error

	// refs counts the callers holding this inode. Guarded by the
	// volume's cache mutex.
	refs int64
}

// GetInode returns the inode identified by ino, loading it from the
// table on a cache miss. Concurrent calls for the same number
// observe exactly one table read. The caller owns a reference on the
// returned inode and must release it with [Volume.PutInode].
//
// Failed loads are not cached: the slot is removed before the error
// is published, so a later call re-attempts the read. Joiners of a
// failing load share its error.
func (v *Volume) GetInode(ino uint64) (*Inode, error) {
	v.mu.Lock()
	if e, ok := v.inodes[ino]; ok {
		e.refs++
		v.mu.Unlock()
		<-e.ready
		if e.err != nil {
			return nil, e.err
		}
		return e.inode, nil
	}
	e := &cacheEntry{ready: make(chan struct{}), refs: 1}
	v.inodes[ino] = e
	v.mu.Unlock()

	// Load outside the lock. The table is read-only, so even if this
	// entry is evicted and re-loaded later the result is identical.
	inode, err := v.loadInode(ino)
	if err != nil {
		v.mu.Lock()
		delete(v.inodes, ino)
		v.mu.Unlock()
		e.err = err
		close(e.ready)
		return nil, err
	}
	e.inode = inode
	close(e.ready)
	return inode, nil
}

// PutInode releases one reference on an inode obtained from
// [Volume.GetInode]. When the last reference is released the cache
// entry is evicted; a later GetInode for the same number re-loads
// from the table.
func (v *Volume) PutInode(i *Inode) {
	if i == nil {
		return
	}
	v.mu.Lock()
	if e, ok := v.inodes[i.ino]; ok {
		e.refs--
		if e.refs <= 0 {
			delete(v.inodes, i.ino)
		}
	}
	v.mu.Unlock()
}

// cachedInodes returns the number of live cache entries. Test
// helper.
func (v *Volume) cachedInodes() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.inodes)
}

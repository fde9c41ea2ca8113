// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package image_test

import (
	"archive/tar"
	"bytes"
	"testing"
	"time"

	"github.com/bureau-foundation/tarfs/lib/tarfs"
	"github.com/bureau-foundation/tarfs/lib/tarfs/image"
)

// tarEntry is one record for buildTar.
type tarEntry struct {
	header tar.Header
	data   []byte
}

func buildTar(t *testing.T, entries []tarEntry) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, entry := range entries {
		header := entry.header
		header.Size = int64(len(entry.data))
		if err := tw.WriteHeader(&header); err != nil {
			t.Fatalf("WriteHeader(%s): %v", header.Name, err)
		}
		if _, err := tw.Write(entry.data); err != nil {
			t.Fatalf("Write(%s): %v", header.Name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func fromTar(t *testing.T, entries []tarEntry) *tarfs.Volume {
	t.Helper()
	builder := image.NewBuilder()
	if err := image.FromTar(builder, buildTar(t, entries)); err != nil {
		t.Fatalf("FromTar: %v", err)
	}
	return mount(t, write(t, builder))
}

func TestFromTar(t *testing.T) {
	mtime := time.Unix(1735689600, 0)
	volume := fromTar(t, []tarEntry{
		{header: tar.Header{Name: "./", Typeflag: tar.TypeDir, Mode: 0o755, ModTime: mtime}},
		{header: tar.Header{Name: "etc/", Typeflag: tar.TypeDir, Mode: 0o755, ModTime: mtime}},
		{
			header: tar.Header{Name: "etc/hostname", Typeflag: tar.TypeReg, Mode: 0o644, Uid: 10, Gid: 20, ModTime: mtime},
			data:   []byte("box\n"),
		},
		{header: tar.Header{Name: "etc/mtab", Typeflag: tar.TypeSymlink, Linkname: "/proc/mounts", Mode: 0o777, ModTime: mtime}},
		{header: tar.Header{Name: "etc/hostname.bak", Typeflag: tar.TypeLink, Linkname: "etc/hostname", ModTime: mtime}},
		{header: tar.Header{Name: "dev/null", Typeflag: tar.TypeChar, Mode: 0o666, Devmajor: 1, Devminor: 3, ModTime: mtime}},
		{header: tar.Header{Name: "run/queue", Typeflag: tar.TypeFifo, Mode: 0o600, ModTime: mtime}},
	})

	hostname, err := volume.LookupPath("etc/hostname")
	if err != nil {
		t.Fatalf("LookupPath: %v", err)
	}
	defer volume.PutInode(hostname)
	if hostname.Mode() != tarfs.ModeRegular|0o644 || hostname.UID() != 10 || hostname.GID() != 20 {
		t.Errorf("hostname mode=%#o uid=%d gid=%d", hostname.Mode(), hostname.UID(), hostname.GID())
	}
	content := make([]byte, hostname.Size())
	if err := volume.ReadAt(hostname, content, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(content) != "box\n" {
		t.Errorf("content = %q", content)
	}

	backup, err := volume.LookupPath("etc/hostname.bak")
	if err != nil {
		t.Fatalf("LookupPath(.bak): %v", err)
	}
	if backup.Ino() != hostname.Ino() {
		t.Errorf("hard link ino %d, want %d", backup.Ino(), hostname.Ino())
	}
	volume.PutInode(backup)

	mtab, err := volume.LookupPath("etc/mtab")
	if err != nil {
		t.Fatalf("LookupPath(mtab): %v", err)
	}
	defer volume.PutInode(mtab)
	if target, err := volume.Readlink(mtab); err != nil || target != "/proc/mounts" {
		t.Errorf("Readlink = (%q, %v)", target, err)
	}

	null, err := volume.LookupPath("dev/null")
	if err != nil {
		t.Fatalf("LookupPath(null): %v", err)
	}
	defer volume.PutInode(null)
	if major, minor := null.Device(); !null.IsCharDev() || major != 1 || minor != 3 {
		t.Errorf("null: chardev=%v %d:%d", null.IsCharDev(), major, minor)
	}

	queue, err := volume.LookupPath("run/queue")
	if err != nil {
		t.Fatalf("LookupPath(queue): %v", err)
	}
	defer volume.PutInode(queue)
	if !queue.IsFIFO() {
		t.Error("queue is not a FIFO")
	}
}

func TestFromTarWhiteouts(t *testing.T) {
	volume := fromTar(t, []tarEntry{
		{header: tar.Header{Name: "overridden/", Typeflag: tar.TypeDir, Mode: 0o755}},
		{header: tar.Header{Name: "overridden/.wh..wh..opq", Typeflag: tar.TypeReg, Mode: 0o644}},
		{header: tar.Header{Name: "kept/", Typeflag: tar.TypeDir, Mode: 0o755}},
		{header: tar.Header{Name: "kept/.wh.removed", Typeflag: tar.TypeReg, Mode: 0o644}},
	})

	// The opaque marker becomes the directory flag, not an entry.
	overridden, err := volume.LookupPath("overridden")
	if err != nil {
		t.Fatalf("LookupPath: %v", err)
	}
	defer volume.PutInode(overridden)
	if value, ok := overridden.OverlayXattr(tarfs.OpaqueXattr); !ok || value != tarfs.OpaqueXattrValue {
		t.Errorf("opaque xattr = (%q, %v)", value, ok)
	}
	if _, err := volume.Lookup(overridden, ".wh..wh..opq"); err == nil {
		t.Error("opaque marker must not appear as an entry")
	}

	// A whiteout becomes a 0:0 character device under the plain name.
	removed, err := volume.LookupPath("kept/removed")
	if err != nil {
		t.Fatalf("LookupPath(kept/removed): %v", err)
	}
	defer volume.PutInode(removed)
	if major, minor := removed.Device(); !removed.IsCharDev() || major != 0 || minor != 0 {
		t.Errorf("whiteout: chardev=%v %d:%d, want 0:0", removed.IsCharDev(), major, minor)
	}
	kept, err := volume.LookupPath("kept")
	if err != nil {
		t.Fatalf("LookupPath(kept): %v", err)
	}
	defer volume.PutInode(kept)
	if _, err := volume.Lookup(kept, ".wh.removed"); err == nil {
		t.Error("whiteout marker name must not survive")
	}
}

func TestFromTarClampsMtime(t *testing.T) {
	volume := fromTar(t, []tarEntry{
		{header: tar.Header{Name: "old", Typeflag: tar.TypeReg, Mode: 0o644, ModTime: time.Unix(-12345, 0)}},
	})
	old, err := volume.LookupPath("old")
	if err != nil {
		t.Fatalf("LookupPath: %v", err)
	}
	defer volume.PutInode(old)
	if got := old.Mtime().Unix(); got != 0 {
		t.Errorf("pre-epoch mtime stored as %d, want 0", got)
	}
}

func TestFromTarAbsolutePaths(t *testing.T) {
	// Leading slashes are stripped; both spellings land in the same
	// tree.
	volume := fromTar(t, []tarEntry{
		{header: tar.Header{Name: "/abs/file", Typeflag: tar.TypeReg, Mode: 0o644}, data: []byte("x")},
	})
	inode, err := volume.LookupPath("abs/file")
	if err != nil {
		t.Fatalf("LookupPath: %v", err)
	}
	volume.PutInode(inode)
}

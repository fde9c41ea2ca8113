// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package image_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/bureau-foundation/tarfs/lib/tarfs"
	"github.com/bureau-foundation/tarfs/lib/tarfs/image"
)

// write serializes the builder and fails the test on error.
func write(t *testing.T, b *image.Builder) []byte {
	t.Helper()
	var buf bytes.Buffer
	size, err := b.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if int64(buf.Len()) != size {
		t.Fatalf("WriteTo returned %d, wrote %d", size, buf.Len())
	}
	return buf.Bytes()
}

// mount mounts image bytes and registers the unmount.
func mount(t *testing.T, data []byte) *tarfs.Volume {
	t.Helper()
	volume, err := tarfs.Mount(tarfs.NewReaderAtDevice(bytes.NewReader(data)), uint64(len(data)))
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	t.Cleanup(volume.Unmount)
	return volume
}

func TestBuilderRoundTrip(t *testing.T) {
	builder := image.NewBuilder()
	if _, err := builder.Add("etc/motd", image.Entry{
		Mode:  tarfs.ModeRegular | 0o644,
		UID:   1,
		GID:   2,
		Mtime: 1735689600,
		Data:  []byte("welcome\n"),
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := builder.Add("bin/sh", image.Entry{
		Mode:   tarfs.ModeSymlink | 0o777,
		Target: "busybox",
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	volume := mount(t, write(t, builder))

	// Implicit parents were created as directories.
	etc, err := volume.LookupPath("etc")
	if err != nil {
		t.Fatalf("LookupPath(etc): %v", err)
	}
	if !etc.IsDir() || etc.Mode() != tarfs.ModeDirectory|0o755 {
		t.Errorf("etc mode = %#o", etc.Mode())
	}
	volume.PutInode(etc)

	motd, err := volume.LookupPath("etc/motd")
	if err != nil {
		t.Fatalf("LookupPath(etc/motd): %v", err)
	}
	defer volume.PutInode(motd)
	if motd.UID() != 1 || motd.GID() != 2 || motd.Mtime().Unix() != 1735689600 {
		t.Errorf("attributes: uid=%d gid=%d mtime=%d", motd.UID(), motd.GID(), motd.Mtime().Unix())
	}
	content := make([]byte, motd.Size())
	if err := volume.ReadAt(motd, content, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(content) != "welcome\n" {
		t.Errorf("content = %q", content)
	}

	link, err := volume.LookupPath("bin/sh")
	if err != nil {
		t.Fatalf("LookupPath(bin/sh): %v", err)
	}
	defer volume.PutInode(link)
	target, err := volume.Readlink(link)
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if target != "busybox" {
		t.Errorf("target = %q", target)
	}
}

func TestBuilderReproducible(t *testing.T) {
	build := func() []byte {
		builder := image.NewBuilder()
		for _, name := range []string{"zeta", "alpha", "mid/file"} {
			if _, err := builder.Add(name, image.Entry{
				Mode: tarfs.ModeRegular | 0o644,
				Data: []byte(name),
			}); err != nil {
				t.Fatalf("Add(%q): %v", name, err)
			}
		}
		return write(t, builder)
	}
	if !bytes.Equal(build(), build()) {
		t.Error("identical trees produced different images")
	}
}

func TestBuilderHardLink(t *testing.T) {
	builder := image.NewBuilder()
	ino, err := builder.Add("data", image.Entry{Mode: tarfs.ModeRegular | 0o644, Data: []byte("shared")})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := builder.AddLink("alias", "data"); err != nil {
		t.Fatalf("AddLink: %v", err)
	}
	// A hard link is another name, not another inode.
	if builder.InodeCount() != 2 {
		t.Errorf("InodeCount = %d, want 2", builder.InodeCount())
	}

	volume := mount(t, write(t, builder))
	original, err := volume.LookupPath("data")
	if err != nil {
		t.Fatalf("LookupPath(data): %v", err)
	}
	defer volume.PutInode(original)
	aliased, err := volume.LookupPath("alias")
	if err != nil {
		t.Fatalf("LookupPath(alias): %v", err)
	}
	defer volume.PutInode(aliased)

	if original.Ino() != ino || aliased.Ino() != ino {
		t.Errorf("inos %d and %d, want both %d", original.Ino(), aliased.Ino(), ino)
	}
	if original != aliased {
		t.Error("cache returned distinct objects for one inode")
	}
}

func TestBuilderHardLinkErrors(t *testing.T) {
	builder := image.NewBuilder()
	if err := builder.AddLink("alias", "missing"); err == nil {
		t.Error("AddLink to a missing target must fail")
	}
	if _, err := builder.Add("dir", image.Entry{Mode: tarfs.ModeDirectory | 0o755}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := builder.AddLink("dirlink", "dir"); err == nil {
		t.Error("AddLink to a directory must fail")
	}
}

func TestBuilderReplaceSemantics(t *testing.T) {
	builder := image.NewBuilder()
	if _, err := builder.Add("dir/file", image.Entry{Mode: tarfs.ModeRegular | 0o644}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	// Re-stating the directory (as layer tars do) updates attributes
	// without orphaning children.
	if _, err := builder.Add("dir", image.Entry{Mode: tarfs.ModeDirectory | 0o700, UID: 7}); err != nil {
		t.Fatalf("Add(dir): %v", err)
	}

	volume := mount(t, write(t, builder))
	dir, err := volume.LookupPath("dir")
	if err != nil {
		t.Fatalf("LookupPath: %v", err)
	}
	defer volume.PutInode(dir)
	if dir.Mode() != tarfs.ModeDirectory|0o700 || dir.UID() != 7 {
		t.Errorf("dir mode=%#o uid=%d", dir.Mode(), dir.UID())
	}
	file, err := volume.LookupPath("dir/file")
	if err != nil {
		t.Fatalf("child lost after directory restatement: %v", err)
	}
	volume.PutInode(file)

	// Replacing a directory with a non-directory is refused.
	if _, err := builder.Add("dir", image.Entry{Mode: tarfs.ModeRegular | 0o644}); err == nil {
		t.Error("replacing a populated directory with a file must fail")
	}
}

func TestBuilderRootAttributes(t *testing.T) {
	builder := image.NewBuilder()
	if _, err := builder.Add(".", image.Entry{Mode: tarfs.ModeDirectory | 0o711, UID: 3, GID: 4}); err != nil {
		t.Fatalf("Add(.): %v", err)
	}
	volume := mount(t, write(t, builder))
	root := volume.Root()
	if root.Mode() != tarfs.ModeDirectory|0o711 || root.UID() != 3 || root.GID() != 4 {
		t.Errorf("root mode=%#o uid=%d gid=%d", root.Mode(), root.UID(), root.GID())
	}
}

func TestBuilderValidation(t *testing.T) {
	builder := image.NewBuilder()

	if _, err := builder.Add("bad", image.Entry{Mode: 0o644}); err == nil {
		t.Error("mode without type bits must fail")
	}
	if _, err := builder.Add("late", image.Entry{Mode: tarfs.ModeRegular, Mtime: 1 << 36}); err == nil {
		t.Error("mtime beyond 36 bits must fail")
	}
	if _, err := builder.Add("early", image.Entry{Mode: tarfs.ModeRegular, Mtime: -1}); err == nil {
		t.Error("negative mtime must fail")
	}
	if _, err := builder.Add("link", image.Entry{Mode: tarfs.ModeSymlink}); err == nil {
		t.Error("symlink without target must fail")
	}
	if _, err := builder.Add("opq", image.Entry{Mode: tarfs.ModeRegular, Opaque: true}); err == nil {
		t.Error("opaque flag on a file must fail")
	}
	if _, err := builder.Add("../escape", image.Entry{Mode: tarfs.ModeRegular}); err == nil {
		t.Error("path escaping the tree must fail")
	}
	if _, err := builder.Add("/", image.Entry{Mode: tarfs.ModeRegular}); err == nil {
		t.Error("replacing root with a file must fail")
	}
}

func TestBuilderDotEntries(t *testing.T) {
	builder := image.NewBuilder()
	if _, err := builder.Add("sub/leaf", image.Entry{Mode: tarfs.ModeRegular | 0o644}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	volume := mount(t, write(t, builder))

	sub, err := volume.LookupPath("sub")
	if err != nil {
		t.Fatalf("LookupPath: %v", err)
	}
	defer volume.PutInode(sub)

	// "." names the directory itself, ".." its parent.
	self, err := volume.Lookup(sub, ".")
	if err != nil {
		t.Fatalf("Lookup(.): %v", err)
	}
	if self != sub.Ino() {
		t.Errorf("'.' resolves to %d, want %d", self, sub.Ino())
	}
	parent, err := volume.Lookup(sub, "..")
	if err != nil {
		t.Fatalf("Lookup(..): %v", err)
	}
	if parent != tarfs.RootIno {
		t.Errorf("'..' resolves to %d, want root", parent)
	}

	// In the root, ".." points back at the root.
	rootParent, err := volume.Lookup(volume.Root(), "..")
	if err != nil {
		t.Fatalf("Lookup(..) in root: %v", err)
	}
	if rootParent != tarfs.RootIno {
		t.Errorf("root '..' resolves to %d, want root", rootParent)
	}
}

func TestBuilderSortsEntries(t *testing.T) {
	builder := image.NewBuilder()
	for _, name := range []string{"c", "a", "b"} {
		if _, err := builder.Add(name, image.Entry{Mode: tarfs.ModeRegular | 0o644}); err != nil {
			t.Fatalf("Add(%q): %v", name, err)
		}
	}
	volume := mount(t, write(t, builder))

	it, err := volume.DirIterator(volume.Root(), 0)
	if err != nil {
		t.Fatalf("DirIterator: %v", err)
	}
	var names []string
	for {
		entry, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		names = append(names, entry.Name)
	}
	want := []string{".", "..", "a", "b", "c"}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("entries %v, want %v", names, want)
		}
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/tarfs/lib/tarfs"
	"github.com/bureau-foundation/tarfs/lib/tarfs/image"
)

// fuseAvailable checks whether /dev/fuse is accessible. Tests that
// need a real FUSE mount call this and skip if the device is absent.
func fuseAvailable(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("skipping: /dev/fuse not available")
	}
}

// testMount builds an image, mounts it through FUSE, and returns the
// mountpoint.
func testMount(t *testing.T, populate func(b *image.Builder)) string {
	t.Helper()
	fuseAvailable(t)

	builder := image.NewBuilder()
	populate(builder)
	var buf bytes.Buffer
	if _, err := builder.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	data := buf.Bytes()

	volume, err := tarfs.Mount(tarfs.NewReaderAtDevice(bytes.NewReader(data)), uint64(len(data)))
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}

	mountpoint := filepath.Join(t.TempDir(), "mount")
	server, err := Mount(Options{
		Mountpoint: mountpoint,
		Volume:     volume,
	})
	if err != nil {
		volume.Unmount()
		t.Fatalf("fuse.Mount: %v", err)
	}
	t.Cleanup(func() {
		if err := server.Unmount(); err != nil {
			t.Errorf("Unmount: %v", err)
		}
		server.Wait()
		volume.Unmount()
	})
	return mountpoint
}

func TestMountReadFile(t *testing.T) {
	mountpoint := testMount(t, func(b *image.Builder) {
		if _, err := b.Add("hello.txt", image.Entry{
			Mode: tarfs.ModeRegular | 0o644,
			Data: []byte("hello from tarfs\n"),
		}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	})

	content, err := os.ReadFile(filepath.Join(mountpoint, "hello.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(content) != "hello from tarfs\n" {
		t.Errorf("content = %q", content)
	}
}

func TestMountReaddirAndAttrs(t *testing.T) {
	mountpoint := testMount(t, func(b *image.Builder) {
		if _, err := b.Add("dir/file", image.Entry{
			Mode:  tarfs.ModeRegular | 0o640,
			Mtime: 1735689600,
			Data:  []byte("x"),
		}); err != nil {
			t.Fatalf("Add: %v", err)
		}
		if _, err := b.Add("link", image.Entry{
			Mode:   tarfs.ModeSymlink | 0o777,
			Target: "dir/file",
		}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	})

	entries, err := os.ReadDir(mountpoint)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	names := make(map[string]bool)
	for _, entry := range entries {
		names[entry.Name()] = true
	}
	if !names["dir"] || !names["link"] {
		t.Errorf("missing entries, got %v", names)
	}

	info, err := os.Stat(filepath.Join(mountpoint, "dir", "file"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o640 {
		t.Errorf("perm = %#o, want 0640", info.Mode().Perm())
	}
	if info.ModTime().Unix() != 1735689600 {
		t.Errorf("mtime = %d", info.ModTime().Unix())
	}

	target, err := os.Readlink(filepath.Join(mountpoint, "link"))
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if target != "dir/file" {
		t.Errorf("target = %q", target)
	}
}

func TestMountRejectsWrites(t *testing.T) {
	mountpoint := testMount(t, func(b *image.Builder) {
		if _, err := b.Add("file", image.Entry{Mode: tarfs.ModeRegular | 0o644}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	})

	if _, err := os.OpenFile(filepath.Join(mountpoint, "file"), os.O_WRONLY, 0); err == nil {
		t.Error("opening for write must fail on a read-only mount")
	}
	if err := os.Remove(filepath.Join(mountpoint, "file")); err == nil {
		t.Error("unlink must fail on a read-only mount")
	}
}

func TestMountOpaqueXattr(t *testing.T) {
	mountpoint := testMount(t, func(b *image.Builder) {
		if _, err := b.Add("replaced", image.Entry{
			Mode:   tarfs.ModeDirectory | 0o755,
			Opaque: true,
		}); err != nil {
			t.Fatalf("Add: %v", err)
		}
		if _, err := b.Add("merged", image.Entry{Mode: tarfs.ModeDirectory | 0o755}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	})

	// trusted.* attributes need CAP_SYS_ADMIN to read.
	if os.Geteuid() != 0 {
		t.Skip("skipping: trusted xattr namespace requires root")
	}

	buf := make([]byte, 16)
	n, err := unix.Getxattr(filepath.Join(mountpoint, "replaced"), tarfs.OpaqueXattr, buf)
	if err != nil {
		t.Fatalf("Getxattr: %v", err)
	}
	if string(buf[:n]) != tarfs.OpaqueXattrValue {
		t.Errorf("xattr value = %q, want %q", buf[:n], tarfs.OpaqueXattrValue)
	}

	if _, err := unix.Getxattr(filepath.Join(mountpoint, "merged"), tarfs.OpaqueXattr, buf); err != unix.ENODATA {
		t.Errorf("merged dir: expected ENODATA, got %v", err)
	}
}

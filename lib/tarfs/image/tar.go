// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/bureau-foundation/tarfs/lib/tarfs"
)

// Overlay layer conventions carried in tar streams.
const (
	// whiteoutPrefix marks a deleted entry: a file named
	// ".wh.<name>" means <name> was removed in this layer.
	whiteoutPrefix = ".wh."

	// opaqueMarker inside a directory marks that directory opaque:
	// it replaces the lower-layer directory entirely.
	opaqueMarker = ".wh..wh..opq"
)

// FromTar reads a tar stream into the builder. Overlay whiteout
// conventions are translated on the way in: an opaque marker sets
// the containing directory's opaque flag, and a whiteout entry
// becomes a 0:0 character device, the on-disk representation overlay
// filesystems expect for deletions.
//
// Hard links ([tar.TypeLink]) must point at an entry that appeared
// earlier in the stream, which is how tar writers order them.
func FromTar(b *Builder, r io.Reader) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("image: reading tar stream: %w", err)
		}
		if err := addTarEntry(b, tr, hdr); err != nil {
			return err
		}
	}
}

func addTarEntry(b *Builder, tr *tar.Reader, hdr *tar.Header) error {
	name := path.Clean(strings.TrimPrefix(hdr.Name, "/"))
	if name == "." && hdr.Typeflag != tar.TypeDir {
		return fmt.Errorf("image: tar entry %q is the root but not a directory", hdr.Name)
	}

	base := path.Base(name)
	if base == opaqueMarker {
		return b.SetOpaque(path.Dir(name))
	}
	if strings.HasPrefix(base, whiteoutPrefix) {
		whited := path.Join(path.Dir(name), strings.TrimPrefix(base, whiteoutPrefix))
		_, err := b.Add(whited, Entry{
			Mode:  tarfs.ModeCharDev,
			Mtime: clampMtime(hdr.ModTime.Unix()),
		})
		return err
	}

	if hdr.Typeflag == tar.TypeLink {
		target := path.Clean(strings.TrimPrefix(hdr.Linkname, "/"))
		return b.AddLink(name, target)
	}

	e := Entry{
		UID:   uint32(hdr.Uid),
		GID:   uint32(hdr.Gid),
		Mtime: clampMtime(hdr.ModTime.Unix()),
	}
	perm := uint16(hdr.Mode) & tarfs.ModePermMask

	switch hdr.Typeflag {
	case tar.TypeReg:
		data, err := io.ReadAll(tr)
		if err != nil {
			return fmt.Errorf("image: reading tar data for %q: %w", hdr.Name, err)
		}
		e.Mode = tarfs.ModeRegular | perm
		e.Data = data
	case tar.TypeDir:
		e.Mode = tarfs.ModeDirectory | perm
	case tar.TypeSymlink:
		e.Mode = tarfs.ModeSymlink | perm
		e.Target = hdr.Linkname
	case tar.TypeChar:
		e.Mode = tarfs.ModeCharDev | perm
		e.Major = uint32(hdr.Devmajor)
		e.Minor = uint32(hdr.Devminor)
	case tar.TypeBlock:
		e.Mode = tarfs.ModeBlockDev | perm
		e.Major = uint32(hdr.Devmajor)
		e.Minor = uint32(hdr.Devminor)
	case tar.TypeFifo:
		e.Mode = tarfs.ModeFIFO | perm
	default:
		return fmt.Errorf("image: tar entry %q has unsupported type %q", hdr.Name, hdr.Typeflag)
	}

	_, err := b.Add(name, e)
	return err
}

// clampMtime forces pre-epoch timestamps to zero. The on-disk
// encoding is unsigned; layers occasionally carry negative mtimes
// from broken build tooling.
func clampMtime(sec int64) int64 {
	if sec < 0 {
		return 0
	}
	if sec > maxMtime {
		return maxMtime
	}
	return sec
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tarfs/cmd/tarfs/cli"
	"github.com/bureau-foundation/tarfs/lib/tarfs"
)

type listParams struct {
	cli.JSONOutput
	Long bool `json:"long" flag:"long,l" desc:"include mode, owner, size and mtime"`
}

type listEntry struct {
	Path   string `json:"path"`
	Ino    uint64 `json:"ino"`
	Mode   string `json:"mode"`
	UID    uint32 `json:"uid"`
	GID    uint32 `json:"gid"`
	Size   uint64 `json:"size"`
	Mtime  string `json:"mtime"`
	Target string `json:"target,omitempty"`
	Opaque bool   `json:"opaque,omitempty"`
}

func listCommand() *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List every entry in an image",
		Usage:   "tarfs list <image> [path] [flags]",
		Description: `Walk the image's directory tree and print entry paths.

With a path argument, listing starts at that directory instead of the
root. Hard links appear once per name; the inode number column in
--long (or --json) output shows which names share an inode.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("list", &params)
		},
		Run: func(args []string) error {
			if len(args) < 1 || len(args) > 2 {
				return fmt.Errorf("expected an image and an optional start path, got %d args", len(args))
			}

			volume, file, err := openVolume(args[0])
			if err != nil {
				return err
			}
			defer file.Close()
			defer volume.Unmount()

			start := "/"
			if len(args) == 2 {
				start = args[1]
			}
			dir, err := volume.LookupPath(start)
			if err != nil {
				return err
			}
			defer volume.PutInode(dir)

			var entries []listEntry
			entries = append(entries, makeListEntry(volume, path.Clean("/"+start), dir, ""))
			if err := collectEntries(volume, dir, path.Clean("/"+start), &entries); err != nil {
				return err
			}

			if done, err := params.EmitJSON(entries); done {
				return err
			}

			if !params.Long {
				for _, entry := range entries {
					fmt.Println(entry.Path)
				}
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 2, ' ', 0)
			for _, entry := range entries {
				name := entry.Path
				if entry.Target != "" {
					name += " -> " + entry.Target
				}
				fmt.Fprintf(tw, "%s\t%d:%d\t%d\t%s\t%s\n",
					entry.Mode, entry.UID, entry.GID, entry.Size, entry.Mtime, name)
			}
			return tw.Flush()
		},
	}
}

// collectEntries walks dir depth-first, appending one entry per name.
func collectEntries(volume *tarfs.Volume, dir *tarfs.Inode, prefix string, entries *[]listEntry) error {
	it, err := volume.DirIterator(dir, 0)
	if err != nil {
		return err
	}
	for {
		dirent, err := it.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if dirent.Name == "." || dirent.Name == ".." {
			continue
		}

		child, err := volume.GetInode(dirent.Ino)
		if err != nil {
			return err
		}
		childPath := path.Join(prefix, dirent.Name)

		target := ""
		if child.IsSymlink() {
			target, err = volume.Readlink(child)
			if err != nil {
				volume.PutInode(child)
				return err
			}
		}
		*entries = append(*entries, makeListEntry(volume, childPath, child, target))

		if child.IsDir() {
			if err := collectEntries(volume, child, childPath, entries); err != nil {
				volume.PutInode(child)
				return err
			}
		}
		volume.PutInode(child)
	}
}

func makeListEntry(volume *tarfs.Volume, entryPath string, inode *tarfs.Inode, target string) listEntry {
	return listEntry{
		Path:   entryPath,
		Ino:    inode.Ino(),
		Mode:   fileMode(inode.Mode()).String(),
		UID:    inode.UID(),
		GID:    inode.GID(),
		Size:   inode.Size(),
		Mtime:  inode.Mtime().UTC().Format("2006-01-02 15:04:05"),
		Target: target,
		Opaque: inode.Opaque(),
	}
}

// fileMode converts a raw POSIX mode to the fs.FileMode bit layout
// so listings get the familiar "drwxr-xr-x" rendering.
func fileMode(mode uint16) fs.FileMode {
	m := fs.FileMode(mode & 0o777)
	switch mode & tarfs.ModeTypeMask {
	case tarfs.ModeDirectory:
		m |= fs.ModeDir
	case tarfs.ModeSymlink:
		m |= fs.ModeSymlink
	case tarfs.ModeCharDev:
		m |= fs.ModeDevice | fs.ModeCharDevice
	case tarfs.ModeBlockDev:
		m |= fs.ModeDevice
	case tarfs.ModeFIFO:
		m |= fs.ModeNamedPipe
	case tarfs.ModeSocket:
		m |= fs.ModeSocket
	}
	if mode&0o4000 != 0 {
		m |= fs.ModeSetuid
	}
	if mode&0o2000 != 0 {
		m |= fs.ModeSetgid
	}
	if mode&0o1000 != 0 {
		m |= fs.ModeSticky
	}
	return m
}

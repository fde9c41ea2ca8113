// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/bureau-foundation/tarfs/cmd/tarfs/cli"
)

// catChunkSize is the transfer unit for streaming file content.
const catChunkSize = 1 << 20

func catCommand() *cli.Command {
	return &cli.Command{
		Name:    "cat",
		Summary: "Print one file's content to stdout",
		Usage:   "tarfs cat <image> <path>",
		Description: `Resolve a path inside the image and stream the file to stdout.

Symlinks in the path are not followed; the path must name a regular
file directly.`,
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected an image and a path, got %d args", len(args))
			}

			volume, file, err := openVolume(args[0])
			if err != nil {
				return err
			}
			defer file.Close()
			defer volume.Unmount()

			inode, err := volume.LookupPath(args[1])
			if err != nil {
				return err
			}
			defer volume.PutInode(inode)

			if inode.IsSymlink() {
				target, err := volume.Readlink(inode)
				if err != nil {
					return err
				}
				return fmt.Errorf("%s is a symlink to %s", args[1], target)
			}
			if !inode.IsRegular() {
				return fmt.Errorf("%s is not a regular file", args[1])
			}

			buf := make([]byte, catChunkSize)
			size := inode.Size()
			for off := uint64(0); off < size; off += catChunkSize {
				n := min(uint64(catChunkSize), size-off)
				if err := volume.ReadAt(inode, buf[:n], off); err != nil {
					return err
				}
				if _, err := os.Stdout.Write(buf[:n]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/tarfs/cmd/tarfs/cli"
)

type inspectParams struct {
	cli.JSONOutput
	Digest bool `json:"digest" flag:"digest" desc:"compute the BLAKE3 digest of the image"`
}

type inspectResult struct {
	Size             uint64 `json:"size"`
	InodeCount       uint64 `json:"inode_count"`
	InodeTableOffset uint64 `json:"inode_table_offset"`
	RootMode         string `json:"root_mode"`
	Digest           string `json:"digest,omitempty"`
}

func inspectCommand() *cli.Command {
	var params inspectParams

	return &cli.Command{
		Name:    "inspect",
		Summary: "Print image geometry and validation status",
		Usage:   "tarfs inspect <image> [flags]",
		Description: `Mount an image's metadata and print its geometry.

A malformed image (bad superblock, out-of-range inode table, corrupt
root inode) fails validation and exits non-zero with the specific
complaint.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("inspect", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one image argument, got %d", len(args))
			}

			volume, file, err := openVolume(args[0])
			if err != nil {
				return err
			}
			defer file.Close()
			defer volume.Unmount()

			result := inspectResult{
				Size:             volume.Size(),
				InodeCount:       volume.InodeCount(),
				InodeTableOffset: volume.InodeTableOffset(),
				RootMode:         fmt.Sprintf("%#o", volume.Root().Mode()),
			}

			if params.Digest {
				hasher := blake3.New()
				if _, err := file.Seek(0, io.SeekStart); err != nil {
					return fmt.Errorf("rewinding image: %w", err)
				}
				if _, err := io.Copy(hasher, file); err != nil {
					return fmt.Errorf("hashing image: %w", err)
				}
				result.Digest = fmt.Sprintf("%x", hasher.Sum(nil))
			}

			if done, err := params.EmitJSON(result); done {
				return err
			}

			fmt.Printf("size:               %s (%d bytes)\n", formatSize(result.Size), result.Size)
			fmt.Printf("inodes:             %d\n", result.InodeCount)
			fmt.Printf("inode table offset: %d\n", result.InodeTableOffset)
			fmt.Printf("root mode:          %s\n", result.RootMode)
			if params.Digest {
				fmt.Printf("blake3:             %s\n", result.Digest)
			}
			return nil
		},
	}
}

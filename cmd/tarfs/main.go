// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// The tarfs command builds, inspects, and mounts tarfs archive
// images: flat read-only filesystem images converted from tar
// archives, laid out for direct in-place access without unpacking.
package main

import (
	"fmt"
	"os"

	"github.com/bureau-foundation/tarfs/cmd/tarfs/cli"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output return an ExitError
		// with the desired exit code. Don't print a redundant
		// "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return rootCommand().Execute(os.Args[1:])
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name: "tarfs",
		Description: `tarfs: flat read-only filesystem images.

Convert tar archives into tarfs images, inspect and read them in
place, and mount them through FUSE. Images carry overlay whiteout
markers through to the filesystem layer, so a stack of layer images
composes correctly under overlayfs.`,
		Subcommands: []*cli.Command{
			buildCommand(),
			inspectCommand(),
			listCommand(),
			catCommand(),
			mountCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Convert a tar archive into an image",
				Command:     "tarfs build layer.tar -o layer.img",
			},
			{
				Description: "Print image geometry and content digest",
				Command:     "tarfs inspect layer.img --digest",
			},
			{
				Description: "List every entry in an image",
				Command:     "tarfs list layer.img",
			},
			{
				Description: "Print one file's content",
				Command:     "tarfs cat layer.img etc/os-release",
			},
			{
				Description: "Mount an image read-only",
				Command:     "tarfs mount layer.img /mnt/layer",
			},
		},
	}
}

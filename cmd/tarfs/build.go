// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/tarfs/cmd/tarfs/cli"
	"github.com/bureau-foundation/tarfs/lib/tarfs/image"
)

type buildParams struct {
	cli.JSONOutput
	Output string `json:"output" flag:"output,o" desc:"image file to write (required)"`
	Digest bool   `json:"digest" flag:"digest"   desc:"print the BLAKE3 digest of the image"`
}

type buildResult struct {
	Output string `json:"output"`
	Size   int64  `json:"size"`
	Inodes uint64 `json:"inodes"`
	Digest string `json:"digest,omitempty"`
}

func buildCommand() *cli.Command {
	var params buildParams

	return &cli.Command{
		Name:    "build",
		Summary: "Convert a tar archive into a tarfs image",
		Usage:   "tarfs build <tar-file> -o <image> [flags]",
		Description: `Read a tar archive and write it as a tarfs image.

Reads from the named file, or from stdin if the file is "-". Overlay
whiteout conventions in the archive are translated to their on-disk
form: opaque markers become the opaque directory flag, whiteout files
become 0:0 character devices.

Identical input trees produce byte-identical images, so the --digest
output is a stable content identifier.`,
		Examples: []cli.Example{
			{
				Description: "Build an image from a layer tar",
				Command:     "tarfs build layer.tar -o layer.img",
			},
			{
				Description: "Build from stdin and print the digest",
				Command:     "cat layer.tar | tarfs build - -o layer.img --digest",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("build", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one tar file argument, got %d", len(args))
			}
			if params.Output == "" {
				return fmt.Errorf("--output is required")
			}

			input := os.Stdin
			if args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening tar archive: %w", err)
				}
				defer file.Close()
				input = file
			}

			builder := image.NewBuilder()
			if err := image.FromTar(builder, input); err != nil {
				return err
			}

			output, err := os.Create(params.Output)
			if err != nil {
				return fmt.Errorf("creating image file: %w", err)
			}

			hasher := blake3.New()
			size, err := builder.WriteTo(io.MultiWriter(output, hasher))
			if err != nil {
				output.Close()
				return fmt.Errorf("writing image: %w", err)
			}
			if err := output.Close(); err != nil {
				return fmt.Errorf("closing image file: %w", err)
			}

			result := buildResult{
				Output: params.Output,
				Size:   size,
				Inodes: builder.InodeCount(),
			}
			if params.Digest {
				result.Digest = fmt.Sprintf("%x", hasher.Sum(nil))
			}
			if done, err := params.EmitJSON(result); done {
				return err
			}

			fmt.Printf("%s: %s, %d inodes\n", result.Output, formatSize(uint64(result.Size)), result.Inodes)
			if params.Digest {
				fmt.Printf("blake3: %s\n", result.Digest)
			}
			return nil
		},
	}
}

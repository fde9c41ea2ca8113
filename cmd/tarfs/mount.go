// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tarfs/cmd/tarfs/cli"
	tarfsfuse "github.com/bureau-foundation/tarfs/lib/tarfs/fuse"
)

type mountParams struct {
	AllowOther bool `flag:"allow-other" desc:"permit other users to access the mount (requires user_allow_other in /etc/fuse.conf)"`
	Verbose    bool `flag:"verbose,v"   desc:"log at debug level"`
}

func mountCommand() *cli.Command {
	var params mountParams

	return &cli.Command{
		Name:    "mount",
		Summary: "Mount an image read-only through FUSE",
		Usage:   "tarfs mount <image> <mountpoint> [flags]",
		Description: `Mount an image at the given mountpoint and serve it until
interrupted. SIGINT or SIGTERM unmounts and exits cleanly.

The mount is strictly read-only; any open for writing fails with
EROFS. Since the image never changes, kernel caches are held with
long timeouts.`,
		Examples: []cli.Example{
			{
				Description: "Mount a layer image",
				Command:     "tarfs mount layer.img /mnt/layer",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("mount", &params)
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected an image and a mountpoint, got %d args", len(args))
			}

			level := slog.LevelInfo
			if params.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			volume, file, err := openVolume(args[0])
			if err != nil {
				return err
			}
			defer file.Close()
			defer volume.Unmount()

			server, err := tarfsfuse.Mount(tarfsfuse.Options{
				Mountpoint: args[1],
				Volume:     volume,
				AllowOther: params.AllowOther,
				Logger:     logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			logger.Info("unmounting", "mountpoint", args[1])
			if err := server.Unmount(); err != nil {
				return fmt.Errorf("unmounting %s: %w", args[1], err)
			}
			server.Wait()
			return nil
		},
	}
}

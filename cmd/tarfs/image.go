// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/bureau-foundation/tarfs/lib/tarfs"
)

// openVolume opens an image file and mounts it as a tarfs volume.
// The caller must close the returned file after unmounting.
func openVolume(path string) (*tarfs.Volume, *os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening image: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("stat %s: %w", path, err)
	}
	volume, err := tarfs.Mount(tarfs.NewReaderAtDevice(file), uint64(info.Size()))
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("mounting %s: %w", path, err)
	}
	return volume, file, nil
}

// formatSize returns a human-readable byte count.
func formatSize(bytes uint64) string {
	switch {
	case bytes >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

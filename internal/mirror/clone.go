// Rotavault - Tiered Hardlink Snapshot Retention Engine
// Copyright 2026 Rotavault Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/rotavault/rotavault

package mirror

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Cloner duplicates a directory tree into a new location. Implementations
// are selected at construction time, not by runtime OS sniffing.
type Cloner interface {
	// CloneTree creates dst as a full structural copy of src. Regular
	// file content is shared, not copied, where the backend allows it.
	CloneTree(ctx context.Context, src, dst string) error
}

// LinkCloner clones a tree by hardlinking every regular file and
// recreating directories and symlinks. src and dst must be on the same
// filesystem, which holds for generations within one store.
type LinkCloner struct{}

// NewLinkCloner creates the hardlink clone backend.
func NewLinkCloner() *LinkCloner {
	return &LinkCloner{}
}

// CloneTree walks src and rebuilds it at dst. Special files (sockets,
// pipes, devices) are skipped. Directory permissions are preserved;
// hardlinked files keep their inode metadata by construction.
func (c *LinkCloner) CloneTree(ctx context.Context, src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			if err := os.MkdirAll(target, info.Mode().Perm()); err != nil {
				return fmt.Errorf("clone dir %s: %w", rel, err)
			}
		case info.Mode()&os.ModeSymlink != 0:
			dest, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("clone symlink %s: %w", rel, err)
			}
			if err := os.Symlink(dest, target); err != nil {
				return fmt.Errorf("clone symlink %s: %w", rel, err)
			}
		case info.Mode().IsRegular():
			if err := os.Link(path, target); err != nil {
				return fmt.Errorf("clone file %s: %w", rel, err)
			}
		default:
			// Special file, skipped like the mirror tool does.
		}
		return nil
	})
}

// SameFilesystem probes whether hardlinks can span sourceRoot and
// storeRoot by linking a throwaway file from one into the other. Any
// failure (including an unwritable source) reports false, which degrades
// to local-baseline linking and stays correct.
func SameFilesystem(sourceRoot, storeRoot string) bool {
	probe, err := os.CreateTemp(sourceRoot, ".rotavault-probe-*")
	if err != nil {
		return false
	}
	probePath := probe.Name()
	probe.Close()
	defer os.Remove(probePath)

	linkPath := filepath.Join(storeRoot, filepath.Base(probePath)+".link")
	if err := os.Link(probePath, linkPath); err != nil {
		return false
	}
	os.Remove(linkPath)
	return true
}

// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package esystore

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// rewriteConcurrency bounds the number of files rewritten at once.
const rewriteConcurrency = 20

// RewriteTree walks the tree rooted at dir and overwrites, in place,
// every occurrence of oldPath in a regular file with newPath.
// The two paths must have equal length: occurrences are patched without
// shifting the surrounding bytes, which keeps binaries with embedded
// offsets valid. Store staging and final paths satisfy this by
// construction.
func RewriteTree(ctx context.Context, dir, oldPath, newPath string) error {
	if len(oldPath) != len(newPath) {
		return fmt.Errorf("rewrite %s: replacement %q is not the same length as %q", dir, newPath, oldPath)
	}
	old, replacement := []byte(oldPath), []byte(newPath)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(rewriteConcurrency)
	walkErr := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return rewriteFile(path, old, replacement)
		})
		return nil
	})
	waitErr := g.Wait()
	if walkErr != nil {
		return fmt.Errorf("rewrite %s: %v", dir, walkErr)
	}
	if waitErr != nil {
		return fmt.Errorf("rewrite %s: %v", dir, waitErr)
	}
	return nil
}

func rewriteFile(path string, old, replacement []byte) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if !bytes.Contains(data, old) {
		return nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	for offset := 0; ; {
		i := bytes.Index(data[offset:], old)
		if i < 0 {
			break
		}
		offset += i
		if _, err := f.WriteAt(replacement, int64(offset)); err != nil {
			f.Close()
			return fmt.Errorf("rewrite %s: %v", path, err)
		}
		offset += len(old)
	}
	return f.Close()
}

// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package builder

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/bbqbaron/esy/sets"
	"zombiezen.com/go/nix"
)

// checksumIgnore names the entries excluded from change detection,
// at any depth: build residue and installed modules churn without the
// package's own sources changing.
var checksumIgnore = sets.New("node_modules", "_build", "_install", "_esy")

type fileStamp struct {
	path  string
	mtime string
}

// sourceChecksum summarizes the modification times of every file under
// dir, sorted by path, as a SHA-1 hex digest. Identical trees (same
// mtimes) always produce the same digest; touching any file changes it.
func sourceChecksum(dir string) (string, error) {
	var stamps []fileStamp
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if checksumIgnore.Has(entry.Name()) && path != dir {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		stamps = append(stamps, fileStamp{
			path:  rel,
			mtime: strconv.FormatInt(info.ModTime().UnixNano(), 10),
		})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("checksum %s: %v", dir, err)
	}

	slices.SortFunc(stamps, func(a, b fileStamp) int {
		return strings.Compare(a.path, b.path)
	})
	h := nix.NewHasher(nix.SHA1)
	for _, s := range stamps {
		h.WriteString(s.mtime)
	}
	return h.SumHash().RawBase16(), nil
}

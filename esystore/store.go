// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package esystore

import (
	"fmt"
	"os"
	"path/filepath"
)

// Init creates the three store subtrees under both the shared store and
// the sandbox-local store. It is idempotent.
func (c *Config) Init() error {
	for _, store := range []string{c.StorePath, c.LocalStorePath} {
		for _, tree := range []string{BuildTree, StagingTree, FinalInstallTree} {
			if err := os.MkdirAll(filepath.Join(store, tree), 0o755); err != nil {
				return fmt.Errorf("init store %s: %v", store, err)
			}
		}
	}
	return nil
}

// Initialized reports whether both stores have all three subtrees.
func (c *Config) Initialized() bool {
	for _, store := range []string{c.StorePath, c.LocalStorePath} {
		for _, tree := range []string{BuildTree, StagingTree, FinalInstallTree} {
			info, err := os.Lstat(filepath.Join(store, tree))
			if err != nil || !info.IsDir() {
				return false
			}
		}
	}
	return true
}

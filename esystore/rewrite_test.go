// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package esystore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRewriteTree(t *testing.T) {
	const oldPath = "/store/_insttmp/mylib-1.0.0-abc"
	const newPath = "/store/_install/mylib-1.0.0-abc"

	dir := t.TempDir()
	files := map[string]string{
		"bin/script":     "#!/bin/sh\nexec " + oldPath + "/bin/real \"$@\"\n",
		"lib/config":     "prefix=" + oldPath + "\nlibdir=" + oldPath + "/lib\n",
		"share/plain":    "no references here\n",
		"lib/sub/nested": oldPath,
	}
	for name, data := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := RewriteTree(context.Background(), dir, oldPath, newPath); err != nil {
		t.Fatal(err)
	}

	for name, original := range files {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil {
			t.Fatal(err)
		}
		got := string(data)
		if strings.Contains(got, oldPath) {
			t.Errorf("%s still contains the staged path after rewriting", name)
		}
		want := strings.ReplaceAll(original, oldPath, newPath)
		if got != want {
			t.Errorf("%s = %q; want %q", name, got, want)
		}
	}
}

func TestRewriteTreeRejectsUnequalLengths(t *testing.T) {
	err := RewriteTree(context.Background(), t.TempDir(), "/short", "/much-longer-path")
	if err == nil {
		t.Fatal("RewriteTree accepted replacement of a different length")
	}
}

// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package builder

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeChecksumFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := []string{
		"package.json",
		filepath.Join("src", "main.ml"),
		filepath.Join("src", "util.ml"),
	}
	for _, name := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestSourceChecksumStable(t *testing.T) {
	dir := writeChecksumFixture(t)
	first, err := sourceChecksum(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 40 {
		t.Errorf("checksum %q is not 40 hex characters", first)
	}
	for i := 0; i < 5; i++ {
		got, err := sourceChecksum(dir)
		if err != nil {
			t.Fatal(err)
		}
		if got != first {
			t.Fatalf("checksum changed without filesystem mutation: %q vs %q", got, first)
		}
	}
}

func TestSourceChecksumDetectsMtimeChange(t *testing.T) {
	dir := writeChecksumFixture(t)
	before, err := sourceChecksum(dir)
	if err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(5 * time.Second)
	if err := os.Chtimes(filepath.Join(dir, "src", "main.ml"), future, future); err != nil {
		t.Fatal(err)
	}
	after, err := sourceChecksum(dir)
	if err != nil {
		t.Fatal(err)
	}
	if after == before {
		t.Error("checksum unchanged after touching a source file")
	}
}

func TestSourceChecksumIgnoresBuildResidue(t *testing.T) {
	dir := writeChecksumFixture(t)
	before, err := sourceChecksum(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, ignored := range []string{"node_modules", "_build", "_install", "_esy"} {
		path := filepath.Join(dir, ignored, "junk")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("junk"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	after, err := sourceChecksum(dir)
	if err != nil {
		t.Fatal(err)
	}
	if after != before {
		t.Error("checksum changed after writing into ignored directories")
	}
}

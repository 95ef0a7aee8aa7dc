// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package esy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// writeSandbox materializes a sandbox fixture in a temporary directory.
// Keys are slash-separated paths relative to the sandbox root.
func writeSandbox(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func diamondSandbox(t *testing.T) string {
	return writeSandbox(t, map[string]string{
		"package.json": `{
			"name": "root",
			"version": "1.0.0",
			"dependencies": {"a": "*"},
			"peerDependencies": {"a": "*", "b": "*"},
			"esy": {"build": "true"}
		}`,
		"node_modules/a/package.json": `{
			"name": "a",
			"version": "0.1.0",
			"dependencies": {"c": "*"},
			"_resolved": "https://registry.example/a-0.1.0.tgz",
			"esy": {"build": "make"}
		}`,
		"node_modules/b/package.json": `{
			"name": "b",
			"version": "0.2.0",
			"dependencies": {"c": "*"},
			"_resolved": "https://registry.example/b-0.2.0.tgz",
			"esy": {"build": "make"}
		}`,
		"node_modules/c/package.json": `{
			"name": "c",
			"version": "0.3.0",
			"_resolved": "https://registry.example/c-0.3.0.tgz"
		}`,
	})
}

func TestFromDirectory(t *testing.T) {
	ctx := context.Background()
	dir := diamondSandbox(t)
	sandbox, err := FromDirectory(ctx, DefaultResolver(), dir)
	if err != nil {
		t.Fatal(err)
	}
	root := sandbox.Root

	if got, want := root.Name, "root"; got != want {
		t.Errorf("root.Name = %q; want %q", got, want)
	}
	var depNames []string
	for _, dep := range root.Dependencies {
		depNames = append(depNames, dep.Name)
	}
	// The runtime and peer mappings union order-preserved,
	// deduplicated by name@constraint.
	if diff := cmp.Diff([]string{"a", "b"}, depNames); diff != "" {
		t.Errorf("root dependencies (-want +got):\n%s", diff)
	}

	a, b := root.Dependencies[0], root.Dependencies[1]
	if len(a.Dependencies) != 1 || len(b.Dependencies) != 1 {
		t.Fatalf("a and b should each have one dependency; got %d and %d", len(a.Dependencies), len(b.Dependencies))
	}
	if a.Dependencies[0] != b.Dependencies[0] {
		t.Error("package c reached through two paths was crawled into two distinct nodes")
	}

	if root.ShouldBePersisted {
		t.Error("root.ShouldBePersisted = true; the root is never persisted")
	}
	for _, dep := range []*BuildSpec{a, b, a.Dependencies[0]} {
		if !dep.ShouldBePersisted {
			t.Errorf("%s.ShouldBePersisted = false; want true for installed packages", dep.Name)
		}
	}

	if got, want := a.SourcePath, filepath.Join("node_modules", "a"); got != want {
		t.Errorf("a.SourcePath = %q; want %q", got, want)
	}
	for _, spec := range []*BuildSpec{root, a, b, a.Dependencies[0]} {
		if len(spec.Errors) > 0 {
			t.Errorf("%s has unexpected crawl errors: %v", spec.Name, spec.Errors)
		}
	}
}

// crawlFingerprint flattens a graph to comparable (id, name, version,
// dependency ids) tuples.
func crawlFingerprint(root *BuildSpec) map[string][]string {
	result := make(map[string][]string)
	var walk func(*BuildSpec)
	walk = func(spec *BuildSpec) {
		if _, done := result[spec.ID]; done {
			return
		}
		row := []string{spec.Name, spec.Version}
		for _, dep := range spec.Dependencies {
			row = append(row, dep.ID)
		}
		result[spec.ID] = row
		for _, dep := range spec.Dependencies {
			walk(dep)
		}
	}
	walk(root)
	return result
}

func TestFromDirectoryIsDeterministic(t *testing.T) {
	ctx := context.Background()
	dir := diamondSandbox(t)
	first, err := FromDirectory(ctx, DefaultResolver(), dir)
	if err != nil {
		t.Fatal(err)
	}
	second, err := FromDirectory(ctx, DefaultResolver(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(crawlFingerprint(first.Root), crawlFingerprint(second.Root)); diff != "" {
		t.Errorf("two crawls of an unchanged sandbox differ (-first +second):\n%s", diff)
	}
}

func TestFromDirectoryCycle(t *testing.T) {
	ctx := context.Background()
	dir := writeSandbox(t, map[string]string{
		"package.json": `{
			"name": "root", "version": "1.0.0",
			"dependencies": {"a": "*"}
		}`,
		"node_modules/a/package.json": `{
			"name": "a", "version": "0.1.0",
			"dependencies": {"b": "*"}
		}`,
		"node_modules/b/package.json": `{
			"name": "b", "version": "0.1.0",
			"dependencies": {"a": "*"}
		}`,
	})
	sandbox, err := FromDirectory(ctx, DefaultResolver(), dir)
	if err != nil {
		t.Fatal(err)
	}
	a := sandbox.Root.Dependencies[0]
	if len(a.Dependencies) != 1 {
		t.Fatalf("a.Dependencies has %d entries; want 1", len(a.Dependencies))
	}
	b := a.Dependencies[0]
	if len(b.Dependencies) != 0 {
		t.Errorf("b should not recurse back into a; got %d dependencies", len(b.Dependencies))
	}
	if len(b.Errors) != 1 || !strings.Contains(b.Errors[0], "cycle") {
		t.Errorf("b.Errors = %v; want one cycle diagnostic", b.Errors)
	}
}

func TestFromDirectoryUnresolvedBatching(t *testing.T) {
	ctx := context.Background()
	dir := writeSandbox(t, map[string]string{
		"package.json": `{
			"name": "root", "version": "1.0.0",
			"dependencies": {"p1": "*", "p2": "*", "p3": "*", "p4": "*", "p5": "*"}
		}`,
	})
	sandbox, err := FromDirectory(ctx, DefaultResolver(), dir)
	if err != nil {
		t.Fatal(err)
	}
	errs := sandbox.Root.Errors
	if len(errs) != 1 {
		t.Fatalf("root.Errors = %v; want a single batched diagnostic", errs)
	}
	want := "unable to resolve dependencies: p1, p2, p3 (and 2 more)"
	if errs[0] != want {
		t.Errorf("root.Errors[0] = %q; want %q", errs[0], want)
	}
}

func TestFromDirectoryMissingRootManifest(t *testing.T) {
	_, err := FromDirectory(context.Background(), DefaultResolver(), t.TempDir())
	if err == nil {
		t.Fatal("FromDirectory succeeded on an empty directory")
	}
}

// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package esystore

import (
	"path/filepath"
	"testing"

	"github.com/bbqbaron/esy"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := NewConfig(filepath.Join(dir, "store"), filepath.Join(dir, "local"), filepath.Join(dir, "sandbox"))
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestConfigPaths(t *testing.T) {
	cfg := testConfig(t)
	persisted := &esy.BuildSpec{
		ID:                "mylib-1.0.0-abc",
		SourcePath:        filepath.Join("node_modules", "mylib"),
		ShouldBePersisted: true,
	}
	dev := &esy.BuildSpec{ID: "root-1.0.0-def", SourcePath: "."}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"persisted build", cfg.BuildPath(persisted), filepath.Join(cfg.StorePath, "_build", "mylib-1.0.0-abc")},
		{"persisted install", cfg.InstallPath(persisted), filepath.Join(cfg.StorePath, "_insttmp", "mylib-1.0.0-abc")},
		{"persisted final", cfg.FinalInstallPath(persisted), filepath.Join(cfg.StorePath, "_install", "mylib-1.0.0-abc")},
		{"dev build", cfg.BuildPath(dev), filepath.Join(cfg.LocalStorePath, "_build", "root-1.0.0-def")},
		{"dev final", cfg.FinalInstallPath(dev), filepath.Join(cfg.LocalStorePath, "_install", "root-1.0.0-def")},
		{"source", cfg.SourcePath(persisted), filepath.Join(cfg.SandboxPath, "node_modules", "mylib")},
		{"source segments", cfg.SourcePath(persisted, "src", "main.ml"), filepath.Join(cfg.SandboxPath, "node_modules", "mylib", "src", "main.ml")},
		{"install segments", cfg.InstallPath(persisted, "bin"), filepath.Join(cfg.StorePath, "_insttmp", "mylib-1.0.0-abc", "bin")},
	}
	for _, test := range tests {
		if test.got != test.want {
			t.Errorf("%s = %q; want %q", test.name, test.got, test.want)
		}
	}
}

func TestConfigRootPath(t *testing.T) {
	cfg := testConfig(t)
	inSource := &esy.BuildSpec{ID: "x-1.0.0-a", SourcePath: filepath.Join("node_modules", "x")}
	if got, want := cfg.RootPath(inSource), cfg.SourcePath(inSource); got != want {
		t.Errorf("RootPath = %q; want source path %q", got, want)
	}
	mutating := &esy.BuildSpec{ID: "y-1.0.0-b", SourcePath: filepath.Join("node_modules", "y"), MutatesSourcePath: true}
	if got, want := cfg.RootPath(mutating), cfg.BuildPath(mutating); got != want {
		t.Errorf("RootPath for a source-mutating build = %q; want build path %q", got, want)
	}
}

// Staged install paths are rewritten in place to final install paths,
// so the two must never differ in length.
func TestStagingAndFinalPathsHaveEqualLength(t *testing.T) {
	if len(StagingTree) != len(FinalInstallTree) {
		t.Fatalf("len(%q) = %d but len(%q) = %d", StagingTree, len(StagingTree), FinalInstallTree, len(FinalInstallTree))
	}
	cfg := testConfig(t)
	spec := &esy.BuildSpec{ID: "mylib-1.0.0-abc", ShouldBePersisted: true}
	if got, want := len(cfg.InstallPath(spec)), len(cfg.FinalInstallPath(spec)); got != want {
		t.Errorf("len(InstallPath) = %d but len(FinalInstallPath) = %d", got, want)
	}
}

func TestInit(t *testing.T) {
	cfg := testConfig(t)
	if cfg.Initialized() {
		t.Error("Initialized reported true before Init")
	}
	if err := cfg.Init(); err != nil {
		t.Fatal(err)
	}
	if !cfg.Initialized() {
		t.Error("Initialized reported false after Init")
	}
	// Init is idempotent.
	if err := cfg.Init(); err != nil {
		t.Fatal(err)
	}
}

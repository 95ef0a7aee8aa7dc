// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package esy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeTestManifest(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "package.json")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadManifest(t *testing.T) {
	m, err := ReadManifest(writeTestManifest(t, `{
		"name": "mylib",
		"version": "1.2.3",
		"dependencies": {"b": "^1.0.0", "a": "*"},
		"peerDependencies": {"c": "*", "a": "*"},
		"devDependencies": {"ignored": "*"},
		"_resolved": "https://registry.example/mylib-1.2.3.tgz",
		"esy": {
			"build": ["./configure", "make"],
			"buildsInSource": true,
			"exportedEnv": {
				"mylib__flags": {"val": "-O2"},
				"CAML_LD_LIBRARY_PATH": {"val": "$mylib__lib", "scope": "global", "exclusive": true},
				"mylib__empty": {"val": null}
			}
		}
	}`))
	if err != nil {
		t.Fatal(err)
	}

	if got, want := m.Name, "mylib"; got != want {
		t.Errorf("Name = %q; want %q", got, want)
	}
	if got, want := m.Resolved, "https://registry.example/mylib-1.2.3.tgz"; got != want {
		t.Errorf("Resolved = %q; want %q", got, want)
	}
	wantDeps := DependencyList{
		{Name: "b", Constraint: "^1.0.0"},
		{Name: "a", Constraint: "*"},
	}
	if diff := cmp.Diff(wantDeps, m.Dependencies); diff != "" {
		t.Errorf("Dependencies (-want +got):\n%s", diff)
	}
	wantPeers := DependencyList{
		{Name: "c", Constraint: "*"},
		{Name: "a", Constraint: "*"},
	}
	if diff := cmp.Diff(wantPeers, m.PeerDependencies); diff != "" {
		t.Errorf("PeerDependencies (-want +got):\n%s", diff)
	}

	if m.Build == nil {
		t.Fatal("Build = nil")
	}
	if diff := cmp.Diff(CommandList{"./configure", "make"}, m.Build.Build); diff != "" {
		t.Errorf("Build.Build (-want +got):\n%s", diff)
	}
	if !m.Build.BuildsInSource {
		t.Error("BuildsInSource = false; want true")
	}
	wantExports := ExportList{
		{Name: "mylib__flags", ExportDescriptor: ExportDescriptor{Value: "-O2", Scope: ScopeLocal}},
		{Name: "CAML_LD_LIBRARY_PATH", ExportDescriptor: ExportDescriptor{Value: "$mylib__lib", Scope: ScopeGlobal, Exclusive: true}},
		// A null val decodes as the empty string.
		{Name: "mylib__empty", ExportDescriptor: ExportDescriptor{Value: "", Scope: ScopeLocal}},
	}
	if diff := cmp.Diff(wantExports, m.Build.ExportedEnv); diff != "" {
		t.Errorf("ExportedEnv (-want +got):\n%s", diff)
	}
}

func TestReadManifestSingleCommandString(t *testing.T) {
	m, err := ReadManifest(writeTestManifest(t, `{
		"name": "one",
		"version": "0.0.1",
		"esy": {"build": "make all"}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(CommandList{"make all"}, m.Build.Build); diff != "" {
		t.Errorf("single command string did not promote (-want +got):\n%s", diff)
	}
}

func TestReadManifestWithoutBuildMetadata(t *testing.T) {
	m, err := ReadManifest(writeTestManifest(t, `{"name": "plain", "version": "2.0.0"}`))
	if err != nil {
		t.Fatal(err)
	}
	if m.Build != nil {
		t.Errorf("Build = %+v; want nil", m.Build)
	}
}

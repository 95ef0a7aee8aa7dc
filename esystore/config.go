// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

// Package esystore defines the on-disk layout of the content-addressed
// build store and the mapping from build specs to store paths.
//
// A store contains three subtrees:
//
//	<store>/_build/<id>/...     build scratch
//	<store>/_insttmp/<id>/...   pre-rename install staging
//	<store>/_install/<id>/...   final, atomically renamed into place
//
// Persisted builds live under the shared store path; development builds
// live under a sandbox-local store with the same shape.
// The _insttmp and _install directory names have equal length so that
// staged paths can be rewritten to final paths byte-for-byte in place.
package esystore

import (
	"fmt"
	"path/filepath"

	"github.com/bbqbaron/esy"
)

// Store subtree names.
const (
	BuildTree        = "_build"
	StagingTree      = "_insttmp"
	FinalInstallTree = "_install"
)

// InstallDirs are the directories created under every install root.
var InstallDirs = []string{"lib", "bin", "sbin", "man", "doc", "share", "stublibs", "etc"}

// A Config locates the stores and the sandbox for a single run.
type Config struct {
	// StorePath is the shared store for persisted builds.
	StorePath string
	// LocalStorePath is the per-sandbox store for builds that should not
	// be shared.
	LocalStorePath string
	// SandboxPath is the sandbox root directory.
	SandboxPath string
	// AllowWritePaths lists extra directories the build sandbox profile
	// permits writing to, beyond the build and install trees.
	AllowWritePaths []string
}

// NewConfig returns a Config with all paths made absolute.
// It verifies the store layout invariant that staged install paths can
// be rewritten to final install paths without changing their length.
func NewConfig(storePath, localStorePath, sandboxPath string) (*Config, error) {
	if len(StagingTree) != len(FinalInstallTree) {
		return nil, fmt.Errorf("store config: staging tree %q and install tree %q differ in length", StagingTree, FinalInstallTree)
	}
	c := new(Config)
	var err error
	if c.StorePath, err = filepath.Abs(storePath); err != nil {
		return nil, fmt.Errorf("store config: %v", err)
	}
	if c.LocalStorePath, err = filepath.Abs(localStorePath); err != nil {
		return nil, fmt.Errorf("store config: %v", err)
	}
	if c.SandboxPath, err = filepath.Abs(sandboxPath); err != nil {
		return nil, fmt.Errorf("store config: %v", err)
	}
	return c, nil
}

// storeFor selects the store a spec's artifacts belong in.
func (c *Config) storeFor(spec *esy.BuildSpec) string {
	if spec.ShouldBePersisted {
		return c.StorePath
	}
	return c.LocalStorePath
}

// SourcePath returns the spec's source directory inside the sandbox,
// joined with any additional segments.
func (c *Config) SourcePath(spec *esy.BuildSpec, segments ...string) string {
	return join(filepath.Join(c.SandboxPath, spec.SourcePath), segments)
}

// BuildPath returns the spec's build scratch directory.
func (c *Config) BuildPath(spec *esy.BuildSpec, segments ...string) string {
	return join(filepath.Join(c.storeFor(spec), BuildTree, spec.ID), segments)
}

// RootPath returns the directory a spec's build commands run in:
// the build directory when the build mutates its source tree
// (the driver copies the source there first), the source directory
// otherwise.
func (c *Config) RootPath(spec *esy.BuildSpec, segments ...string) string {
	if spec.MutatesSourcePath {
		return c.BuildPath(spec, segments...)
	}
	return c.SourcePath(spec, segments...)
}

// InstallPath returns the spec's pre-rename install staging directory.
func (c *Config) InstallPath(spec *esy.BuildSpec, segments ...string) string {
	return join(filepath.Join(c.storeFor(spec), StagingTree, spec.ID), segments)
}

// FinalInstallPath returns the spec's final install directory.
// For a persisted spec this is a pure function of the spec's identifier,
// so presence of the path proves the artifact is current.
// It has the same length as [Config.InstallPath] for the same spec.
func (c *Config) FinalInstallPath(spec *esy.BuildSpec, segments ...string) string {
	return join(filepath.Join(c.storeFor(spec), FinalInstallTree, spec.ID), segments)
}

func join(base string, segments []string) string {
	if len(segments) == 0 {
		return base
	}
	return filepath.Join(append([]string{base}, segments...)...)
}

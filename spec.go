// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

// Package esy models package sandboxes as immutable build graphs.
//
// A sandbox is a directory tree rooted at a package manifest whose
// transitive dependencies, resolved by the standard nested module rule,
// form a directed acyclic graph of builds.
// [FromDirectory] crawls such a tree into a [BuildSandbox];
// every node carries a stable content-derived identifier
// that addresses the build's location in the store.
package esy

// Scope classifies an exported environment variable.
type Scope string

// Export scopes.
const (
	// ScopeLocal exports are visible to direct dependents only.
	ScopeLocal Scope = "local"
	// ScopeGlobal exports are folded into the environment of every
	// transitive dependent.
	ScopeGlobal Scope = "global"
)

// An ExportDescriptor describes a single environment variable
// that a package exports to its consumers.
type ExportDescriptor struct {
	// Value is the variable's value before $var substitution.
	Value string
	// Scope is where the variable is visible. The zero value means local.
	Scope Scope
	// Exclusive marks the variable as having a sole producer:
	// conflict detection fires if another binding appears.
	Exclusive bool
	// Builtin is true only for auto-generated system variables.
	// No user-authored descriptor has Builtin set.
	Builtin bool
}

// An ExportedVar is a named [ExportDescriptor].
// Order within a spec follows the manifest's textual order.
type ExportedVar struct {
	Name string
	ExportDescriptor
}

// A BuildSpec is one node of the build graph.
// It is immutable after the crawl that produced it.
type BuildSpec struct {
	// ID is the stable build identifier (see [ComputeID]).
	// It is globally unique within a run and is a valid path component.
	ID string

	Name    string
	Version string

	// Command is the ordered sequence of shell commands that perform the
	// build. A nil Command means the package has no build step.
	Command []string

	// ExportedEnv lists the variables the package exports,
	// in manifest order.
	ExportedEnv []ExportedVar

	// SourcePath is the package's source directory
	// relative to the sandbox root.
	SourcePath string

	// MutatesSourcePath reports that the build writes into its source tree,
	// so the driver must copy the source into the build directory first.
	MutatesSourcePath bool

	// ShouldBePersisted selects the shared store over the sandbox-local
	// store. It is set for dependencies installed from an immutable source.
	ShouldBePersisted bool

	// Dependencies are the direct dependencies in manifest order.
	// Shared subgraphs are shared nodes: two specs depending on the same
	// package hold the same pointer.
	Dependencies []*BuildSpec

	// Errors holds diagnostics gathered while crawling this package.
	Errors []string
}

// Key returns the spec's build identifier.
func (s *BuildSpec) Key() string { return s.ID }

// Deps returns the spec's direct dependencies in declaration order.
func (s *BuildSpec) Deps() []*BuildSpec { return s.Dependencies }

// An EnvPair is a single name/value environment binding.
type EnvPair struct {
	Name  string
	Value string
}

// A BuildSandbox is the result of crawling a package directory tree:
// the root build plus the environment seeded from the host process.
type BuildSandbox struct {
	Root *BuildSpec
	// Env holds the initial environment: PATH and SHELL from the host
	// process plus the platform identifier variables.
	Env []EnvPair
}

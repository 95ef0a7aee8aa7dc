// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package esy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bbqbaron/esy/internal/system"
	"github.com/bbqbaron/esy/sets"
	"zombiezen.com/go/log"
)

// FromDirectory crawls the package directory tree rooted at sandboxPath
// into a [BuildSandbox].
//
// Crawl-phase problems — dependency cycles, unresolved names, unreadable
// dependency manifests — are recorded as diagnostics on the affected
// [BuildSpec] and do not stop the walk, so the caller sees the complete
// error set. A missing manifest at the sandbox root is fatal.
func FromDirectory(ctx context.Context, resolver Resolver, sandboxPath string) (*BuildSandbox, error) {
	sandboxPath, err := filepath.Abs(sandboxPath)
	if err != nil {
		return nil, err
	}
	c := &crawler{
		resolver:     resolver,
		sandboxPath:  sandboxPath,
		specs:        make(map[string]*BuildSpec),
		resolveCache: make(map[resolveKey]resolveResult),
		env:          SeedEnvironment(),
	}
	root, err := c.crawl(ctx, filepath.Join(sandboxPath, "package.json"), nil, true)
	if err != nil {
		return nil, err
	}
	return &BuildSandbox{Root: root, Env: c.env}, nil
}

// SeedEnvironment captures the environment a sandbox starts from:
// PATH and SHELL from the host process plus the platform identifier
// variables. Platform identifiers already present in the host
// environment take precedence over the detected values.
func SeedEnvironment() []EnvPair {
	platformDefaults := [...]EnvPair{
		{"esy__platform", system.Platform()},
		{"esy__architecture", system.Architecture()},
		{"esy__target_platform", system.Platform()},
		{"esy__target_architecture", system.Architecture()},
	}
	env := []EnvPair{
		{"PATH", os.Getenv("PATH")},
		{"SHELL", os.Getenv("SHELL")},
	}
	for _, p := range platformDefaults {
		if v := os.Getenv(p.Name); v != "" {
			p.Value = v
		}
		env = append(env, p)
	}
	return env
}

type resolveKey struct {
	baseDir string
	name    string
}

type resolveResult struct {
	path string
	err  error
}

type crawler struct {
	resolver    Resolver
	sandboxPath string
	env         []EnvPair

	// specs caches crawled packages by resolved manifest path:
	// a package reached through multiple paths is crawled exactly once
	// and its node is shared.
	specs        map[string]*BuildSpec
	resolveCache map[resolveKey]resolveResult
}

// crawl reads the manifest at manifestPath and produces its BuildSpec.
// trace holds the package names on the path from the root to (and
// including) the current package's dependent, for cycle detection.
func (c *crawler) crawl(ctx context.Context, manifestPath string, trace []string, isRoot bool) (*BuildSpec, error) {
	manifestPath = filepath.Clean(manifestPath)
	if spec := c.specs[manifestPath]; spec != nil {
		return spec, nil
	}

	m, err := ReadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	log.Debugf(ctx, "Crawling %s@%s (%s)", m.Name, m.Version, manifestPath)
	meta := m.Build
	if meta == nil {
		meta = &BuildMetadata{}
	}

	pkgDir := filepath.Dir(manifestPath)
	sourcePath, err := filepath.Rel(c.sandboxPath, pkgDir)
	if err != nil {
		return nil, fmt.Errorf("crawl %s: %v", manifestPath, err)
	}
	spec := &BuildSpec{
		Name:              m.Name,
		Version:           m.Version,
		Command:           meta.Build,
		ExportedEnv:       meta.ExportedEnv,
		SourcePath:        sourcePath,
		MutatesSourcePath: meta.BuildsInSource,
		ShouldBePersisted: !isRoot && m.Resolved != "",
	}

	trace = append(trace[:len(trace):len(trace)], m.Name)
	var unresolved []string
	for _, dep := range dependencyRequests(m) {
		if slices.Contains(trace, dep.Name) {
			spec.Errors = append(spec.Errors, fmt.Sprintf(
				"dependency %s creates a cycle: %s",
				dep.Name, strings.Join(append(trace[:len(trace):len(trace)], dep.Name), " -> ")))
			continue
		}
		depManifest, err := c.resolve(pkgDir, dep.Name)
		if err != nil {
			unresolved = append(unresolved, dep.Name)
			continue
		}
		child, err := c.crawl(ctx, depManifest, trace, false)
		if err != nil {
			spec.Errors = append(spec.Errors, fmt.Sprintf("reading manifest for %s: %v", dep.Name, err))
			continue
		}
		spec.Dependencies = append(spec.Dependencies, child)
	}
	if len(unresolved) > 0 {
		spec.Errors = append(spec.Errors, formatUnresolved(unresolved))
	}

	depIDs := make([]string, len(spec.Dependencies))
	for i, dep := range spec.Dependencies {
		depIDs[i] = dep.ID
	}
	spec.ID, err = ComputeID(c.env, m, sourceTag(m, pkgDir), depIDs)
	if err != nil {
		return nil, err
	}

	c.specs[manifestPath] = spec
	return spec, nil
}

// dependencyRequests returns the order-preserved union of the manifest's
// runtime and peer dependencies, deduplicated by name@constraint.
func dependencyRequests(m *Manifest) []Dependency {
	seen := make(sets.Set[string])
	var result []Dependency
	for _, dep := range append(append(DependencyList(nil), m.Dependencies...), m.PeerDependencies...) {
		if seen.Has(dep.String()) {
			continue
		}
		seen.Add(dep.String())
		result = append(result, dep)
	}
	return result
}

func (c *crawler) resolve(baseDir, name string) (string, error) {
	key := resolveKey{baseDir: baseDir, name: name}
	if r, cached := c.resolveCache[key]; cached {
		return r.path, r.err
	}
	path, err := c.resolver.Resolve(baseDir, name)
	c.resolveCache[key] = resolveResult{path: path, err: err}
	return path, err
}

// sourceTag identifies where a package's source came from:
// the installer's immutable source URL if recorded,
// or the real path of the source directory for mutable local packages.
func sourceTag(m *Manifest, pkgDir string) string {
	if m.Resolved != "" {
		return m.Resolved
	}
	real, err := filepath.EvalSymlinks(pkgDir)
	if err != nil {
		real = pkgDir
	}
	return "local:" + real
}

// formatUnresolved batches unresolved dependency names into one
// diagnostic: the first three are named, the rest summarized.
func formatUnresolved(names []string) string {
	if len(names) <= 3 {
		return fmt.Sprintf("unable to resolve dependencies: %s", strings.Join(names, ", "))
	}
	return fmt.Sprintf("unable to resolve dependencies: %s (and %d more)",
		strings.Join(names[:3], ", "), len(names)-3)
}

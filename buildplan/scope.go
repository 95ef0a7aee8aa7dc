// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package buildplan

import (
	"fmt"
	"strings"

	"github.com/bbqbaron/esy"
	"github.com/bbqbaron/esy/esystore"
)

// CurrentPrefix is the variable-name prefix denoting the build currently
// executing. Dependencies use the normalized form of their own name.
const CurrentPrefix = "cur"

// builtinScope returns the auto-generated variable set describing spec
// under the given prefix. All bindings are exclusive.
//
// currentlyBuilding selects the in-progress variant: the root points at
// the build directory when the build mutates its source tree, and the
// install paths point at the pre-rename staging directory instead of the
// finalized one.
func builtinScope(spec *esy.BuildSpec, cfg *esystore.Config, prefix string, currentlyBuilding bool) *Environment {
	root := cfg.RootPath(spec)
	if currentlyBuilding && spec.MutatesSourcePath {
		root = cfg.BuildPath(spec)
	}
	install := cfg.FinalInstallPath(spec)
	if currentlyBuilding {
		install = cfg.InstallPath(spec)
	}
	depNames := make([]string, len(spec.Dependencies))
	for i, dep := range spec.Dependencies {
		depNames[i] = dep.Name
	}

	env := NewEnvironment()
	set := func(name, value string) {
		env.Set(Var{
			Name:      prefix + "__" + name,
			Value:     value,
			Exclusive: true,
			Builtin:   true,
			Origin:    spec,
		})
	}
	set("name", spec.Name)
	set("version", spec.Version)
	set("root", root)
	set("depends", strings.Join(depNames, " "))
	set("target_dir", cfg.BuildPath(spec))
	set("install", install)
	set("bin", install+"/bin")
	set("sbin", install+"/sbin")
	set("lib", install+"/lib")
	set("man", install+"/man")
	set("doc", install+"/doc")
	set("stublibs", install+"/stublibs")
	set("toplevel", install+"/toplevel")
	set("share", install+"/share")
	set("etc", install+"/etc")
	return env
}

// classifyExports substitutes $var references in spec's exported
// variables through evalScope and routes each to the local or global
// scope. Naming lints are appended to diags.
func classifyExports(spec *esy.BuildSpec, evalScope *Environment, diags *Diagnostics) (local, global *Environment) {
	local, global = NewEnvironment(), NewEnvironment()
	prefix := esy.NormalizeName(spec.Name)
	for _, export := range spec.ExportedEnv {
		lintExportName(spec, prefix, export, diags)
		v := Var{
			Name:      export.Name,
			Value:     Substitute(export.Value, evalScope.Lookup),
			Exclusive: export.Exclusive,
			Origin:    spec,
		}
		if export.Scope == esy.ScopeGlobal {
			global.Set(v)
		} else {
			local.Set(v)
		}
	}
	return local, global
}

// lintExportName flags user-authored export names that stray outside the
// package's namespace.
func lintExportName(spec *esy.BuildSpec, prefix string, export esy.ExportedVar, diags *Diagnostics) {
	name := export.Name
	switch {
	case export.Scope != esy.ScopeGlobal:
		if strings.HasPrefix(name, prefix+"__") {
			return
		}
		if strings.HasPrefix(strings.ToLower(name), prefix+"__") {
			diags.Add(fmt.Sprintf(
				"%s: exported variable %s has incorrect case: the %s__ prefix must be lowercase",
				manifestPath(spec), name, prefix))
			return
		}
		diags.Add(fmt.Sprintf(
			"%s: exported variable %s is not prefixed with %s__",
			manifestPath(spec), name, prefix))
	case strings.Contains(name, "__") && !strings.HasPrefix(name, prefix+"__"):
		diags.Add(fmt.Sprintf(
			"%s: global variable %s may clobber another package's namespace",
			manifestPath(spec), name))
	}
}

// manifestPath returns the package.json path that produced spec,
// relative to the sandbox root.
func manifestPath(spec *esy.BuildSpec) string {
	return spec.SourcePath + "/package.json"
}

// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package buildplan

import (
	"bufio"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/bbqbaron/esy"
	"github.com/bbqbaron/esy/esystore"
	"github.com/bbqbaron/esy/internal/xslices"
)

func hostEOL() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}

// envGroup is one commented section of an ejected environment dump.
type envGroup struct {
	header string
	env    *Environment
}

// Eject writes the root build's environment to w as groups of
// shell-sourceable export lines, one commented header per composition
// layer. Naming lints found while planning and exclusivity conflicts
// found while flattening the groups are appended to diags.
//
// The sandbox seeds come first so that later lines referring to $PATH
// and friends expand against them when the dump is sourced.
func Eject(w io.Writer, sandbox *esy.BuildSandbox, cfg *esystore.Config, diags *Diagnostics) error {
	if diags == nil {
		diags = new(Diagnostics)
	}
	root, err := plan(sandbox, cfg, diags)
	if err != nil {
		return err
	}
	spec := sandbox.Root

	seeds := NewEnvironment()
	for _, p := range sandbox.Env {
		seeds.Set(Var{Name: p.Name, Value: p.Value})
	}

	build := NewEnvironment()
	build.Set(Var{Name: "OCAMLFIND_CONF", Value: cfg.BuildPath(spec, "_esy", "findlib.conf"), Builtin: true, Origin: spec})
	var binPaths, manPaths []string
	for _, dep := range xslices.Reversed(root.all) {
		binPaths = append(binPaths, cfg.FinalInstallPath(dep.task.Spec, "bin"))
		manPaths = append(manPaths, cfg.FinalInstallPath(dep.task.Spec, "man"))
	}
	build.Set(Var{Name: "PATH", Value: strings.Join(append(binPaths, "$PATH"), ":"), Builtin: true, Origin: spec})
	build.Set(Var{Name: "MAN_PATH", Value: strings.Join(append(manPaths, "$MAN_PATH"), ":"), Builtin: true, Origin: spec})
	build.SetAll(builtinScope(spec, cfg, CurrentPrefix, true))

	groups := []envGroup{
		{header: "Sandbox environment", env: seeds},
		{header: fmt.Sprintf("Build environment for %s@%s", spec.Name, spec.Version), env: build},
	}
	// Every package in the sandbox appears in the dump, leaves first,
	// so a sourcing shell can refer to any dependency's variables.
	for _, dep := range root.all {
		depSpec := dep.task.Spec
		groups = append(groups,
			envGroup{
				header: fmt.Sprintf("Built-in environment for %s@%s", depSpec.Name, depSpec.Version),
				env:    dep.builtin,
			},
			envGroup{
				header: fmt.Sprintf("Local exports from %s@%s", depSpec.Name, depSpec.Version),
				env:    dep.local,
			})
	}
	groups = append(groups, envGroup{
		header: fmt.Sprintf("Local exports from %s@%s", spec.Name, spec.Version),
		env:    root.local,
	})
	globals := NewEnvironment()
	for _, dep := range root.all {
		mergeGlobals(globals, dep.global)
	}
	mergeGlobals(globals, root.global)
	groups = append(groups, envGroup{header: "Global exports", env: globals})

	detectConflicts(groups, diags)

	eol := hostEOL()
	for i, g := range groups {
		if g.env.Len() == 0 {
			continue
		}
		if i > 0 {
			if _, err := io.WriteString(w, eol); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "# %s%s", g.header, eol); err != nil {
			return err
		}
		for v := range g.env.All() {
			if _, err := fmt.Fprintf(w, "export %s=\"%s\"%s", v.Name, escapeValue(v.Value), eol); err != nil {
				return err
			}
		}
	}
	return nil
}

// detectConflicts flattens the groups in order, tracking every variable
// ever set and the package that set it, and records a diagnostic when a
// binding collides with an exclusive one. An exclusive binding colliding
// with an exclusive incumbent records two diagnostics, one per check.
func detectConflicts(groups []envGroup, diags *Diagnostics) {
	seen := make(map[string]Var)
	for _, g := range groups {
		for v := range g.env.All() {
			existing, present := seen[v.Name]
			if present && existing.Exclusive {
				if existing.Builtin {
					diags.Add(fmt.Sprintf(
						"%s overrides the built-in variable %s",
						originName(v), v.Name))
				} else {
					diags.Add(fmt.Sprintf(
						"variable %s was declared exclusive by %s but %s also defines it",
						v.Name, originName(existing), originName(v)))
				}
			}
			if present && v.Exclusive {
				diags.Add(fmt.Sprintf(
					"%s declares variable %s exclusive, but it is already set by %s",
					originName(v), v.Name, originName(existing)))
			}
			seen[v.Name] = v
		}
	}
}

func originName(v Var) string {
	if v.Origin == nil {
		return "the sandbox environment"
	}
	return manifestPath(v.Origin)
}

func escapeValue(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `"`, `\"`)
}

// ParseDump reads an environment dump produced by [Eject] back into
// name/value pairs. Comment lines and blank lines are skipped.
func ParseDump(r io.Reader) ([]esy.EnvPair, error) {
	var pairs []esy.EnvPair
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rest, ok := strings.CutPrefix(line, "export ")
		if !ok {
			return nil, fmt.Errorf("parse environment dump: unexpected line %q", line)
		}
		name, quoted, ok := strings.Cut(rest, "=")
		if !ok {
			return nil, fmt.Errorf("parse environment dump: unexpected line %q", line)
		}
		value := strings.TrimSuffix(strings.TrimPrefix(quoted, `"`), `"`)
		value = strings.ReplaceAll(value, `\"`, `"`)
		value = strings.ReplaceAll(value, `\\`, `\`)
		pairs = append(pairs, esy.EnvPair{Name: name, Value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse environment dump: %v", err)
	}
	return pairs, nil
}

// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package buildplan

import (
	"fmt"
	"strings"

	"github.com/bbqbaron/esy"
	"github.com/bbqbaron/esy/esystore"
	"github.com/bbqbaron/esy/internal/depgraph"
	"github.com/bbqbaron/esy/internal/xslices"
)

// A Command is one build command in raw and rendered form.
type Command struct {
	// Raw is the command string as authored in the manifest.
	Raw string
	// Rendered is Raw after shell-style variable expansion against the
	// task's environment.
	Rendered string
}

// A Task is a build spec joined with its computed environment.
// Tasks form the same graph shape as their specs and share identifiers
// with them.
type Task struct {
	ID   string
	Spec *esy.BuildSpec
	// Env is the fully-composed environment the task's commands run under.
	Env     *Environment
	Command []Command
	// Dependencies are the tasks for the spec's direct dependencies,
	// in declaration order.
	Dependencies []*Task
}

// Key returns the task's build identifier.
func (t *Task) Key() string { return t.ID }

// Deps returns the task's direct dependencies in declaration order.
func (t *Task) Deps() []*Task { return t.Dependencies }

// planNode carries a task together with the scopes later composition
// layers need from it.
type planNode struct {
	task *Task
	// builtin is the node's built-in scope under its normalized name
	// prefix, in the finalized (not currently building) variant.
	builtin *Environment
	// local and global are the node's classified exports,
	// already substituted through its evaluation scope.
	local  *Environment
	global *Environment
	// all records the node's transitive dependency nodes, leaves first,
	// for later composition layers.
	all []*planNode
}

// Plan computes a [Task] for every build in the sandbox and returns the
// root task. Exactly one task is created per distinct build identifier;
// shared dependencies share tasks. Naming lints accumulate into diags if
// it is non-nil.
func Plan(sandbox *esy.BuildSandbox, cfg *esystore.Config, diags *Diagnostics) (*Task, error) {
	node, err := plan(sandbox, cfg, diags)
	if err != nil {
		return nil, err
	}
	return node.task, nil
}

func plan(sandbox *esy.BuildSandbox, cfg *esystore.Config, diags *Diagnostics) (*planNode, error) {
	if diags == nil {
		diags = new(Diagnostics)
	}
	return depgraph.Fold(sandbox.Root, func(direct, all []*planNode, spec *esy.BuildSpec) (*planNode, error) {
		return planSpec(spec, direct, all, sandbox, cfg, diags)
	})
}

func planSpec(spec *esy.BuildSpec, direct, all []*planNode, sandbox *esy.BuildSandbox, cfg *esystore.Config, diags *Diagnostics) (*planNode, error) {
	node := &planNode{
		builtin: builtinScope(spec, cfg, esy.NormalizeName(spec.Name), false),
		all:     all,
	}

	// The evaluation scope resolves $var references in the spec's own
	// exports: direct dependencies' built-in scopes, direct dependencies'
	// local exports, and the spec's own built-in scope under its non-cur
	// prefix. Transitive dependencies' global exports are deliberately
	// absent here; they resolve later, in the global fold.
	evalScope := NewEnvironment()
	for _, dep := range direct {
		evalScope.SetAll(dep.builtin)
	}
	for _, dep := range direct {
		evalScope.SetAll(dep.local)
	}
	evalScope.SetAll(node.builtin)
	node.local, node.global = classifyExports(spec, evalScope, diags)

	env := assembleTaskEnvironment(spec, direct, all, sandbox, cfg, node)

	commands := make([]Command, 0, len(spec.Command))
	for _, raw := range spec.Command {
		rendered, err := ExpandShell(raw, env)
		if err != nil {
			return nil, fmt.Errorf("plan %s: render command %q: %v", spec.ID, raw, err)
		}
		commands = append(commands, Command{Raw: raw, Rendered: rendered})
	}

	deps := make([]*Task, len(direct))
	for i, dep := range direct {
		deps[i] = dep.task
	}
	node.task = &Task{
		ID:           spec.ID,
		Spec:         spec,
		Env:          env,
		Command:      commands,
		Dependencies: deps,
	}
	return node, nil
}

// assembleTaskEnvironment builds the environment a task's commands run
// under. Layers are merged in order; a later write overrides an earlier
// one while keeping its position.
func assembleTaskEnvironment(spec *esy.BuildSpec, direct, all []*planNode, sandbox *esy.BuildSandbox, cfg *esystore.Config, node *planNode) *Environment {
	env := NewEnvironment()

	env.Set(Var{
		Name:    "OCAMLFIND_CONF",
		Value:   cfg.BuildPath(spec, "_esy", "findlib.conf"),
		Builtin: true,
		Origin:  spec,
	})

	// Nearest dependencies take priority on the search paths:
	// all is leaves-first, so walk it reversed.
	var binPaths, manPaths []string
	for _, dep := range xslices.Reversed(all) {
		binPaths = append(binPaths, cfg.FinalInstallPath(dep.task.Spec, "bin"))
		manPaths = append(manPaths, cfg.FinalInstallPath(dep.task.Spec, "man"))
	}
	env.Set(Var{
		Name:    "PATH",
		Value:   strings.Join(append(binPaths, "$PATH"), ":"),
		Builtin: true,
		Origin:  spec,
	})
	env.Set(Var{
		Name:    "MAN_PATH",
		Value:   strings.Join(append(manPaths, "$MAN_PATH"), ":"),
		Builtin: true,
		Origin:  spec,
	})

	// The currently-building package sees itself under the cur prefix,
	// pointed at its staging install directory.
	env.SetAll(builtinScope(spec, cfg, CurrentPrefix, true))

	for _, dep := range direct {
		env.SetAll(dep.local)
	}
	env.SetAll(node.local)

	// Global exports fold leaves-first: a downstream global shadows an
	// upstream one, and its value may refer back to the shadowed binding
	// through the accumulator as it stands.
	for _, dep := range all {
		mergeGlobals(env, dep.global)
	}
	mergeGlobals(env, node.global)

	mergeSeedEnvironment(env, sandbox.Env)
	return env
}

func mergeGlobals(env *Environment, globals *Environment) {
	for v := range globals.All() {
		v.Value = Substitute(v.Value, env.Lookup)
		env.Set(v)
	}
}

// mergeSeedEnvironment resolves the environment against the sandbox's
// host seeds. A seed for a variable the composition already set does not
// override it; instead it resolves the remaining $name self-references
// in the composed value (the trailing $PATH in the search path layer).
// Seeds for unset variables are appended.
func mergeSeedEnvironment(env *Environment, seeds []esy.EnvPair) {
	for _, seed := range seeds {
		if existing, ok := env.Get(seed.Name); ok {
			existing.Value = Substitute(existing.Value, func(name string) (string, bool) {
				if name == seed.Name {
					return seed.Value, true
				}
				return "", false
			})
			env.Set(existing)
			continue
		}
		env.Set(Var{
			Name:  seed.Name,
			Value: Substitute(seed.Value, env.Lookup),
		})
	}
}

// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

// Package buildplan computes the environment and command plan for every
// build in a sandbox.
//
// The planner walks the build graph once, leaves first, and produces a
// [Task] per distinct build identifier: the fully-substituted environment
// the build's commands run under, and the commands themselves in raw and
// rendered form. The same composition rules drive [Eject], which renders
// the environment as a portable shell fragment.
package buildplan

import (
	"iter"

	"github.com/bbqbaron/esy"
)

// A Var is a single composed environment binding.
type Var struct {
	Name  string
	Value string
	// Exclusive marks the binding's producer as insisting on being the
	// sole producer of the variable.
	Exclusive bool
	// Builtin is true for auto-generated system variables.
	Builtin bool
	// Origin is the package that produced the binding,
	// or nil for sandbox seed variables.
	Origin *esy.BuildSpec
}

// An Environment is an ordered mapping of variable names to bindings.
// Setting an existing name overrides its binding but keeps its position,
// so iteration order is first-insertion order.
type Environment struct {
	names []string
	vars  map[string]Var
}

// NewEnvironment returns an empty environment.
func NewEnvironment() *Environment {
	return &Environment{vars: make(map[string]Var)}
}

// Set inserts or overrides a binding.
func (e *Environment) Set(v Var) {
	if _, exists := e.vars[v.Name]; !exists {
		e.names = append(e.names, v.Name)
	}
	e.vars[v.Name] = v
}

// SetAll inserts every binding of other into e, in order.
func (e *Environment) SetAll(other *Environment) {
	for v := range other.All() {
		e.Set(v)
	}
}

// Get returns the binding for name.
func (e *Environment) Get(name string) (Var, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// Lookup returns the value bound to name.
func (e *Environment) Lookup(name string) (string, bool) {
	v, ok := e.vars[name]
	return v.Value, ok
}

// Len returns the number of bindings.
func (e *Environment) Len() int {
	return len(e.names)
}

// All returns the bindings in first-insertion order.
func (e *Environment) All() iter.Seq[Var] {
	return func(yield func(Var) bool) {
		for _, name := range e.names {
			if !yield(e.vars[name]) {
				return
			}
		}
	}
}

// Pairs returns the environment as name/value pairs in order.
func (e *Environment) Pairs() []esy.EnvPair {
	pairs := make([]esy.EnvPair, 0, len(e.names))
	for v := range e.All() {
		pairs = append(pairs, esy.EnvPair{Name: v.Name, Value: v.Value})
	}
	return pairs
}

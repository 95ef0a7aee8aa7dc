// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package buildplan

// A Diagnostic is a non-fatal problem found while composing environments.
type Diagnostic struct {
	Message string
}

// Diagnostics accumulates diagnostics during a walk.
// It is threaded explicitly through the composition rather than kept in
// package state, so concurrent plans never share an accumulator.
type Diagnostics struct {
	list []Diagnostic
}

// Add appends a diagnostic message.
func (d *Diagnostics) Add(message string) {
	d.list = append(d.list, Diagnostic{Message: message})
}

// All returns the accumulated diagnostics in order.
func (d *Diagnostics) All() []Diagnostic {
	return d.list
}

// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package buildplan

import (
	"regexp"

	"mvdan.cc/sh/v3/shell"
)

var varPattern = regexp.MustCompile(`\$([A-Za-z0-9_]+)`)

// Substitute replaces every $name reference in value using lookup.
// A name that lookup does not resolve passes through literally,
// so substitution can be applied in layers:
// a later layer may resolve what an earlier one could not.
func Substitute(value string, lookup func(string) (string, bool)) string {
	return varPattern.ReplaceAllStringFunc(value, func(match string) string {
		if v, ok := lookup(match[1:]); ok {
			return v
		}
		return match
	})
}

// ExpandShell performs shell-style variable expansion on s
// (including forms like ${name} and ${name:-default})
// resolving names through env. It is used to render command strings;
// plain $name substitution in exports uses [Substitute].
func ExpandShell(s string, env *Environment) (string, error) {
	return shell.Expand(s, func(name string) string {
		v, _ := env.Lookup(name)
		return v
	})
}

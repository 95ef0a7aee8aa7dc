// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

//go:build !darwin

package builder

import (
	"github.com/bbqbaron/esy/buildplan"
)

// writeSandboxProfile is a no-op: filesystem write sandboxing is only
// available through sandbox-exec on darwin.
func (d *driver) writeSandboxProfile(task *buildplan.Task) (string, error) {
	return "", nil
}

// wrapCommand runs a shell command directly.
func wrapCommand(sandboxProfile, command string) []string {
	return []string{"/bin/sh", "-c", command}
}

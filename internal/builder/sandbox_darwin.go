// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package builder

import (
	"fmt"
	"os"
	"strings"

	"github.com/bbqbaron/esy/buildplan"
	"github.com/bbqbaron/esy/internal/osutil"
)

// writeSandboxProfile writes _esy/sandbox.sb:
// a policy that allows everything by default, denies all file writes,
// then re-allows writing to the build and install trees, /dev/null,
// and the temp directories.
// It returns the profile path for [wrapCommand].
func (d *driver) writeSandboxProfile(task *buildplan.Task) (string, error) {
	spec := task.Spec
	allowed := []string{
		d.cfg.BuildPath(spec),
		d.cfg.InstallPath(spec),
	}
	for _, dir := range []string{os.TempDir(), "/private/tmp", "/tmp"} {
		if dir != "" {
			allowed = append(allowed, dir)
		}
	}
	allowed = append(allowed, d.cfg.AllowWritePaths...)

	var sb strings.Builder
	sb.WriteString("(version 1)\n")
	sb.WriteString("(allow default)\n")
	sb.WriteString("(deny file-write* (subpath \"/\"))\n")
	sb.WriteString("(allow file-write*\n")
	sb.WriteString("  (literal \"/dev/null\")\n")
	for _, p := range allowed {
		fmt.Fprintf(&sb, "  (subpath %q)\n", p)
	}
	sb.WriteString(")\n")

	path := d.cfg.BuildPath(spec, "_esy", "sandbox.sb")
	if err := osutil.WriteFilePerm(path, []byte(sb.String()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// wrapCommand runs a shell command under sandbox-exec with the given
// profile.
func wrapCommand(sandboxProfile, command string) []string {
	return []string{"sandbox-exec", "-f", sandboxProfile, "--", "/bin/sh", "-c", command}
}

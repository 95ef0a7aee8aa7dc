// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

//go:build unix

package builder

import (
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// setCancelFunc arranges for context cancellation to terminate the whole
// process group: build commands routinely fork, and killing only the
// shell leaks the children.
func setCancelFunc(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return unix.Kill(-c.Process.Pid, unix.SIGTERM)
	}
	c.WaitDelay = 10 * time.Second
}

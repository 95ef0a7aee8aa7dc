// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

//go:build !unix

package builder

import "os/exec"

func setCancelFunc(c *exec.Cmd) {}

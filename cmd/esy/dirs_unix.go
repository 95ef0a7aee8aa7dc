// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

//go:build unix

package main

import "go4.org/xdgdir"

func cacheDir() string {
	return xdgdir.Cache.Path()
}

func configDir() string {
	return xdgdir.Config.Path()
}

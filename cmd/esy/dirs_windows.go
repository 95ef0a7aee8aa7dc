// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package main

import "os"

func cacheDir() string {
	return os.Getenv("LOCALAPPDATA")
}

func configDir() string {
	return os.Getenv("APPDATA")
}

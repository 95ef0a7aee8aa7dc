// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/tailscale/hujson"

	"github.com/bbqbaron/esy/internal/xiter"
)

type globalConfig struct {
	Debug bool `json:"debug"`
	// StorePath is the shared store for persisted builds.
	StorePath string `json:"storePath"`
	// LocalStorePath overrides the per-sandbox store location.
	LocalStorePath string `json:"localStorePath"`
	// Sandbox is the sandbox root; defaults to the working directory.
	Sandbox string `json:"sandbox"`
	// AllowWritePaths are extra directories the build sandbox profile
	// permits writing to.
	AllowWritePaths []string `json:"allowWritePaths"`
}

func defaultGlobalConfig() *globalConfig {
	return &globalConfig{
		StorePath: filepath.Join(cacheDir(), "esy", "store"),
	}
}

func (g *globalConfig) mergeEnvironment() {
	if prefix := os.Getenv("ESY__PREFIX"); prefix != "" {
		g.StorePath = filepath.Join(prefix, "store")
	}
	if sandbox := os.Getenv("ESY__SANDBOX"); sandbox != "" {
		g.Sandbox = sandbox
	}
}

// mergeFiles layers HuJSON config files over g, in order.
// Missing files are skipped.
func (g *globalConfig) mergeFiles(paths iter.Seq[string]) error {
	for path := range paths {
		huJSONData, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		jsonData, err := hujson.Standardize(huJSONData)
		if err != nil {
			return fmt.Errorf("read %s: %v", path, err)
		}
		if err := jsonv2.Unmarshal(jsonData, g, jsonv2.RejectUnknownMembers(false)); err != nil {
			return fmt.Errorf("read %s: %v", path, err)
		}
	}
	return nil
}

func configFilePaths() iter.Seq[string] {
	return xiter.Of(
		filepath.Join(string(os.PathSeparator)+"etc", "esy", "config.jsonc"),
		filepath.Join(configDir(), "esy", "config.jsonc"),
	)
}

// localStorePath returns the per-sandbox store for development builds.
func (g *globalConfig) localStorePath(sandboxPath string) string {
	if g.LocalStorePath != "" {
		return g.LocalStorePath
	}
	return filepath.Join(sandboxPath, "node_modules", ".cache", "_esy", "store")
}

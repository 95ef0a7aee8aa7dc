// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package esy

import (
	"fmt"
	"os"
	"strings"

	jsonv2 "github.com/go-json-experiment/json"
	"zombiezen.com/go/nix"
)

// TestModeVar is the environment variable that, when set, freezes build
// identifiers: the hash suffix is omitted so that fixture output stays
// diffable. It is never set in production.
const TestModeVar = "ESY__TEST"

// idSource is the canonical description of a build that its identifier
// hashes over. Map-typed fields serialize with sorted keys, so the
// identifier is stable under permutations of mapping iteration;
// slice-typed fields preserve order.
type idSource struct {
	Env          map[string]string `json:"env"`
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Build        *idBuildMetadata  `json:"build"`
	Source       string            `json:"source"`
	Dependencies []string          `json:"dependencies"`
}

type idBuildMetadata struct {
	Build          []string                    `json:"build"`
	BuildsInSource bool                        `json:"buildsInSource"`
	ExportedEnv    map[string]idExportedEnvVar `json:"exportedEnv"`
}

type idExportedEnvVar struct {
	Val       string `json:"val"`
	Scope     string `json:"scope"`
	Exclusive bool   `json:"exclusive"`
}

// ComputeID returns the stable identifier for a build:
// normalize(name) + "-" + version + "-" + hex(sha1(canonical description)).
// The description covers the seeded environment, the manifest's name,
// version, and build metadata, the source tag, and the identifiers of the
// direct dependencies in order — so a build's identifier changes whenever
// anything in its transitive build definition changes.
//
// When [TestModeVar] is set in the environment, the hash suffix is omitted.
func ComputeID(seedEnv []EnvPair, m *Manifest, source string, depIDs []string) (string, error) {
	version := m.Version
	if version == "" {
		version = "0.0.0"
	}
	if os.Getenv(TestModeVar) != "" {
		return NormalizeName(m.Name) + "-" + version, nil
	}

	src := idSource{
		Env:          make(map[string]string, len(seedEnv)),
		Name:         m.Name,
		Version:      m.Version,
		Source:       source,
		Dependencies: depIDs,
	}
	for _, p := range seedEnv {
		src.Env[p.Name] = p.Value
	}
	if m.Build != nil {
		src.Build = &idBuildMetadata{
			Build:          m.Build.Build,
			BuildsInSource: m.Build.BuildsInSource,
			ExportedEnv:    make(map[string]idExportedEnvVar, len(m.Build.ExportedEnv)),
		}
		for _, v := range m.Build.ExportedEnv {
			src.Build.ExportedEnv[v.Name] = idExportedEnvVar{
				Val:       v.Value,
				Scope:     string(v.Scope),
				Exclusive: v.Exclusive,
			}
		}
	}

	data, err := jsonv2.Marshal(&src, jsonv2.Deterministic(true))
	if err != nil {
		return "", fmt.Errorf("compute id for %s: %v", m.Name, err)
	}
	h := nix.NewHasher(nix.SHA1)
	h.Write(data)
	return NormalizeName(m.Name) + "-" + version + "-" + h.SumHash().RawBase16(), nil
}

var nameNormalizer = strings.NewReplacer(
	"@", "",
	"_", "__",
	"/", "__slash__",
	".", "__dot__",
	"-", "_",
)

// NormalizeName lower-cases a package name and maps the characters that
// may not appear in a store path component,
// so that the result is always a valid POSIX path component.
func NormalizeName(name string) string {
	return nameNormalizer.Replace(strings.ToLower(name))
}

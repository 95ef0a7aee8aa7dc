// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package esy

import (
	"fmt"
	"os"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// A Manifest is the subset of a package.json file that the crawler reads.
type Manifest struct {
	Name    string `json:"name"`
	Version string `json:"version"`

	// Dependencies and PeerDependencies preserve the manifest's textual
	// order. Development and optional dependencies are not read:
	// they do not participate in the build graph.
	Dependencies     DependencyList `json:"dependencies"`
	PeerDependencies DependencyList `json:"peerDependencies"`

	// Resolved is the immutable source URL recorded by the installer.
	// A non-empty value marks the package as safe to persist in the
	// shared store.
	Resolved string `json:"_resolved"`

	// Build is the build-metadata extension block, or nil if absent.
	Build *BuildMetadata `json:"esy"`
}

// A BuildMetadata is the manifest's build-metadata extension block.
type BuildMetadata struct {
	// Build holds the build commands.
	// The manifest may declare a single string or a sequence of strings;
	// a single string promotes to a one-element sequence.
	Build CommandList `json:"build"`
	// BuildsInSource enables source mutation mode.
	BuildsInSource bool `json:"buildsInSource"`
	// ExportedEnv maps variable names to export descriptors,
	// in the manifest's textual order.
	ExportedEnv ExportList `json:"exportedEnv"`
}

// ReadManifest reads and decodes the package.json file at path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := new(Manifest)
	if err := jsonv2.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("read manifest %s: %v", path, err)
	}
	return m, nil
}

// A Dependency is a single requested dependency:
// a package name and its version constraint.
type Dependency struct {
	Name       string
	Constraint string
}

// String returns the dependency in name@constraint form.
func (d Dependency) String() string {
	return d.Name + "@" + d.Constraint
}

// A DependencyList is an ordered list of dependency requests.
// It decodes from a JSON object, preserving the object's textual order.
type DependencyList []Dependency

// UnmarshalJSONFrom implements [jsonv2.UnmarshalerFrom].
func (l *DependencyList) UnmarshalJSONFrom(dec *jsontext.Decoder) error {
	if k := dec.PeekKind(); k == 'n' {
		_, err := dec.ReadToken()
		return err
	}
	if _, err := dec.ReadToken(); err != nil { // '{'
		return err
	}
	*l = (*l)[:0]
	for dec.PeekKind() != '}' {
		name, err := dec.ReadToken()
		if err != nil {
			return err
		}
		nameStr := name.String()
		var constraint string
		if err := jsonv2.UnmarshalDecode(dec, &constraint); err != nil {
			return err
		}
		*l = append(*l, Dependency{Name: nameStr, Constraint: constraint})
	}
	_, err := dec.ReadToken() // '}'
	return err
}

// A CommandList is an ordered sequence of shell command strings.
// It decodes from either a JSON string or an array of strings.
type CommandList []string

// UnmarshalJSONFrom implements [jsonv2.UnmarshalerFrom].
func (c *CommandList) UnmarshalJSONFrom(dec *jsontext.Decoder) error {
	switch dec.PeekKind() {
	case 'n':
		_, err := dec.ReadToken()
		return err
	case '"':
		var s string
		if err := jsonv2.UnmarshalDecode(dec, &s); err != nil {
			return err
		}
		*c = CommandList{s}
		return nil
	default:
		var seq []string
		if err := jsonv2.UnmarshalDecode(dec, &seq); err != nil {
			return err
		}
		*c = CommandList(seq)
		return nil
	}
}

// An ExportList is an ordered list of exported variables.
// It decodes from a JSON object, preserving the object's textual order.
type ExportList []ExportedVar

// UnmarshalJSONFrom implements [jsonv2.UnmarshalerFrom].
func (l *ExportList) UnmarshalJSONFrom(dec *jsontext.Decoder) error {
	if k := dec.PeekKind(); k == 'n' {
		_, err := dec.ReadToken()
		return err
	}
	if _, err := dec.ReadToken(); err != nil { // '{'
		return err
	}
	*l = (*l)[:0]
	for dec.PeekKind() != '}' {
		name, err := dec.ReadToken()
		if err != nil {
			return err
		}
		nameStr := name.String()
		var wire struct {
			Val       *string `json:"val"`
			Scope     string  `json:"scope"`
			Exclusive bool    `json:"exclusive"`
		}
		if err := jsonv2.UnmarshalDecode(dec, &wire); err != nil {
			return err
		}
		v := ExportedVar{Name: nameStr}
		// A null val becomes the empty string rather than the literal
		// text "null".
		if wire.Val != nil {
			v.Value = *wire.Val
		}
		v.Scope = ScopeLocal
		if Scope(wire.Scope) == ScopeGlobal {
			v.Scope = ScopeGlobal
		}
		v.Exclusive = wire.Exclusive
		*l = append(*l, v)
	}
	_, err := dec.ReadToken() // '}'
	return err
}

// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package main

import (
	"io"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/bbqbaron/esy/buildplan"
	"github.com/bbqbaron/esy/internal/depgraph"
)

type taskJSON struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Version      string        `json:"version"`
	Persisted    bool          `json:"persisted"`
	Env          []envJSON     `json:"env"`
	Command      []commandJSON `json:"command"`
	Dependencies []string      `json:"dependencies"`
}

type envJSON struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type commandJSON struct {
	Raw      string `json:"raw"`
	Rendered string `json:"rendered"`
}

// writePlanJSON dumps every task in the plan, dependencies first.
func writePlanJSON(w io.Writer, root *buildplan.Task) error {
	tasks := append(depgraph.Transitive(root), root)
	out := make([]taskJSON, 0, len(tasks))
	for _, task := range tasks {
		t := taskJSON{
			ID:        task.ID,
			Name:      task.Spec.Name,
			Version:   task.Spec.Version,
			Persisted: task.Spec.ShouldBePersisted,
		}
		for v := range task.Env.All() {
			t.Env = append(t.Env, envJSON{Name: v.Name, Value: v.Value})
		}
		for _, c := range task.Command {
			t.Command = append(t.Command, commandJSON{Raw: c.Raw, Rendered: c.Rendered})
		}
		for _, dep := range task.Dependencies {
			t.Dependencies = append(t.Dependencies, dep.ID)
		}
		out = append(out, t)
	}
	data, err := jsonv2.Marshal(out, jsontext.WithIndent("  "))
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

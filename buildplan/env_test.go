// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package buildplan

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bbqbaron/esy"
)

func TestEnvironmentOrder(t *testing.T) {
	env := NewEnvironment()
	env.Set(Var{Name: "A", Value: "1"})
	env.Set(Var{Name: "B", Value: "2"})
	env.Set(Var{Name: "C", Value: "3"})
	// Overriding keeps the original position.
	env.Set(Var{Name: "A", Value: "override"})

	want := []esy.EnvPair{
		{Name: "A", Value: "override"},
		{Name: "B", Value: "2"},
		{Name: "C", Value: "3"},
	}
	if diff := cmp.Diff(want, env.Pairs()); diff != "" {
		t.Errorf("Pairs (-want +got):\n%s", diff)
	}
}

func TestEnvironmentLookup(t *testing.T) {
	env := NewEnvironment()
	env.Set(Var{Name: "A", Value: "1", Exclusive: true})
	if v, ok := env.Get("A"); !ok || !v.Exclusive {
		t.Errorf("Get(A) = %+v, %t; want the exclusive binding", v, ok)
	}
	if _, ok := env.Lookup("missing"); ok {
		t.Error("Lookup(missing) reported ok")
	}
	if got := env.Len(); got != 1 {
		t.Errorf("Len = %d; want 1", got)
	}
}

func TestSubstitute(t *testing.T) {
	lookup := func(name string) (string, bool) {
		m := map[string]string{"x": "1", "long_name0": "2"}
		v, ok := m[name]
		return v, ok
	}
	tests := []struct {
		value string
		want  string
	}{
		// A value with no references is a fixed point.
		{"plain text", "plain text"},
		{"$x", "1"},
		{"$x/$long_name0", "1/2"},
		// Unresolved names pass through literally.
		{"$missing", "$missing"},
		{"a $x b $missing c", "a 1 b $missing c"},
		{"", ""},
	}
	for _, test := range tests {
		if got := Substitute(test.value, lookup); got != test.want {
			t.Errorf("Substitute(%q) = %q; want %q", test.value, got, test.want)
		}
	}
}

func TestExpandShell(t *testing.T) {
	env := NewEnvironment()
	env.Set(Var{Name: "cur__install", Value: "/store/_insttmp/x"})
	tests := []struct {
		value string
		want  string
	}{
		{"echo hi > $cur__install/hi", "echo hi > /store/_insttmp/x/hi"},
		{"echo ${cur__install}", "echo /store/_insttmp/x"},
		{"echo ${missing:-fallback}", "echo fallback"},
	}
	for _, test := range tests {
		got, err := ExpandShell(test.value, env)
		if err != nil {
			t.Errorf("ExpandShell(%q): %v", test.value, err)
			continue
		}
		if got != test.want {
			t.Errorf("ExpandShell(%q) = %q; want %q", test.value, got, test.want)
		}
	}
}

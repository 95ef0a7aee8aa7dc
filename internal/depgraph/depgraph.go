// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

// Package depgraph implements traversal and folding over dependency graphs.
//
// The algorithms operate on any node type that can report a stable key
// and enumerate its direct dependencies in declaration order.
// Graphs are assumed to be acyclic: the crawler breaks cycles before a
// graph ever reaches this package, so encountering a back-edge here is a
// programming error and panics.
package depgraph

import (
	"github.com/bbqbaron/esy/sets"
)

// A Node is a vertex in a dependency graph.
// The type parameter is the concrete node type itself,
// so that Deps can return typed nodes.
type Node[T any] interface {
	// Key returns an identifier that is unique within the graph.
	Key() string
	// Deps returns the node's direct dependencies in declaration order.
	Deps() []T
}

// BFS visits every node reachable from root exactly once in breadth-first
// order, siblings in declaration order.
// Traversal stops early if visit returns false.
func BFS[T Node[T]](root T, visit func(T) bool) {
	seen := sets.New(root.Key())
	queue := []T{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if !visit(node) {
			return
		}
		for _, dep := range node.Deps() {
			if !seen.Has(dep.Key()) {
				seen.Add(dep.Key())
				queue = append(queue, dep)
			}
		}
	}
}

// DFS visits every node reachable from root exactly once in post-order,
// siblings in declaration order.
// Traversal stops early if visit returns false.
func DFS[T Node[T]](root T, visit func(T) bool) {
	seen := make(sets.Set[string])
	var walk func(T) bool
	walk = func(node T) bool {
		if seen.Has(node.Key()) {
			return true
		}
		seen.Add(node.Key())
		for _, dep := range node.Deps() {
			if !walk(dep) {
				return false
			}
		}
		return visit(node)
	}
	walk(root)
}

// Transitive returns every node reachable from root except root itself
// in topological order with leaves first:
// each element precedes all of its transitive dependents.
// The order is deterministic for a given graph.
func Transitive[T Node[T]](root T) []T {
	var result []T
	rootKey := root.Key()
	DFS(root, func(node T) bool {
		if node.Key() != rootKey {
			result = append(result, node)
		}
		return true
	})
	return result
}

// Fold computes one value per distinct node key, memoized:
// f is invoked exactly once per key, even when a node is reachable
// through multiple parents.
//
// f receives the values of the node's direct dependencies in declaration
// order, the values of all transitive dependencies (deduplicated by key,
// leaves first), and the node itself.
//
// Fold panics if it encounters a back-edge.
func Fold[T Node[T], V any](root T, f func(direct, all []V, node T) (V, error)) (V, error) {
	fd := &folder[T, V]{
		f:        f,
		memo:     make(map[string]V),
		closures: make(map[string][]string),
		visiting: make(sets.Set[string]),
	}
	return fd.fold(root)
}

type folder[T Node[T], V any] struct {
	f        func(direct, all []V, node T) (V, error)
	memo     map[string]V
	closures map[string][]string
	visiting sets.Set[string]
}

func (fd *folder[T, V]) fold(node T) (V, error) {
	key := node.Key()
	if v, done := fd.memo[key]; done {
		return v, nil
	}
	if fd.visiting.Has(key) {
		panic("depgraph: cycle through " + key)
	}
	fd.visiting.Add(key)
	defer fd.visiting.Delete(key)

	deps := node.Deps()
	direct := make([]V, 0, len(deps))
	var closure []string
	seen := make(sets.Set[string])
	for _, dep := range deps {
		dv, err := fd.fold(dep)
		if err != nil {
			var zero V
			return zero, err
		}
		direct = append(direct, dv)
		for _, id := range fd.closures[dep.Key()] {
			if !seen.Has(id) {
				seen.Add(id)
				closure = append(closure, id)
			}
		}
	}
	all := make([]V, 0, len(closure))
	for _, id := range closure {
		all = append(all, fd.memo[id])
	}

	v, err := fd.f(direct, all, node)
	if err != nil {
		var zero V
		return zero, err
	}
	fd.memo[key] = v
	fd.closures[key] = append(closure, key)
	return v, nil
}

// AsyncFold is the suspending form of [Fold]:
// the memoized value for each node is a [*Promise],
// stored before the computation behind it completes,
// so a second reference to the same key joins the in-flight computation
// instead of starting another one.
//
// The fold machinery itself never waits on a promise.
// f is invoked exactly once per distinct key, in topological order,
// and typically starts its work with [Run].
func AsyncFold[T Node[T], V any](root T, f func(direct, all []*Promise[V], node T) *Promise[V]) *Promise[V] {
	p, err := Fold(root, func(direct, all []*Promise[V], node T) (*Promise[V], error) {
		return f(direct, all, node), nil
	})
	if err != nil {
		// The reducer never returns an error.
		panic("depgraph: " + err.Error())
	}
	return p
}

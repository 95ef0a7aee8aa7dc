// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

// Package xiter provides various functions useful with iterators of any type.
package xiter

import "iter"

// Of returns an iterator over the given elements.
func Of[T any](elems ...T) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, x := range elems {
			if !yield(x) {
				return
			}
		}
	}
}

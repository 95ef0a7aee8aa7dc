// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/bbqbaron/esy/buildplan"
	"github.com/bbqbaron/esy/internal/builder"
)

// A statusReporter renders build status transitions as console lines.
// It is safe for concurrent use: the driver reports from its workers.
type statusReporter struct {
	mu    sync.Mutex
	w     io.Writer
	color bool

	built  int
	cached int
	failed int
}

func newStatusReporter(w *os.File) *statusReporter {
	return &statusReporter{
		w:     w,
		color: term.IsTerminal(int(w.Fd())),
	}
}

const (
	ansiDim   = "\x1b[2m"
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

func (r *statusReporter) paint(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + ansiReset
}

func (r *statusReporter) observe(task *buildplan.Task, status builder.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := task.Spec.Name + "@" + task.Spec.Version
	switch status.State {
	case builder.InProgress:
		fmt.Fprintf(r.w, "%s %s\n", r.paint(ansiDim, "building"), name)
	case builder.Success:
		switch {
		case status.Cached:
			r.cached++
			fmt.Fprintf(r.w, "%s %s\n", r.paint(ansiDim, "cached  "), name)
		case status.Forced:
			r.built++
			fmt.Fprintf(r.w, "%s %s (%dms, rebuilt)\n", r.paint(ansiGreen, "built   "), name, status.TimeMS)
		default:
			r.built++
			fmt.Fprintf(r.w, "%s %s (%dms)\n", r.paint(ansiGreen, "built   "), name, status.TimeMS)
		}
	case builder.Failure:
		r.failed++
		fmt.Fprintf(r.w, "%s %s: %v\n", r.paint(ansiRed, "failed  "), name, status.Err)
	}
}

func (r *statusReporter) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%d built, %d cached, %d failed\n", r.built, r.cached, r.failed)
}

// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

// Package builder executes a build plan against the store.
//
// Tasks run in dependency order over a worker pool sized to the host CPU
// count. Scheduling is a promise-typed topological fold: each task waits
// for its direct dependencies outside the pool and only occupies a pool
// slot while its commands actually run. The fold's memoization joins
// duplicate references to the same build into a single execution.
package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/bbqbaron/esy"
	"github.com/bbqbaron/esy/buildplan"
	"github.com/bbqbaron/esy/esystore"
	"github.com/bbqbaron/esy/internal/depgraph"
	"github.com/bbqbaron/esy/internal/osutil"
	"github.com/bbqbaron/esy/sets"
	"golang.org/x/sync/semaphore"
	"zombiezen.com/go/log"
)

// A State is a task's terminal or in-flight condition.
type State int

// Task states, in lifecycle order.
const (
	InProgress State = iota
	Success
	Failure
)

// A Status is a task state change reported through [StatusFunc].
type Status struct {
	State State
	// TimeMS is the wall-clock duration of a successful build in
	// milliseconds. Zero for cached results.
	TimeMS int64
	// Cached reports that the artifact was reused without running
	// any command.
	Cached bool
	// Forced reports that the build was forced: a direct dependency was
	// re-executed (whether or not an artifact already existed), or an
	// existing artifact was rebuilt because its source changed.
	Forced bool
	// Err is set for failures.
	Err error
}

// A StatusFunc observes task state changes.
// It may be called from multiple goroutines concurrently.
type StatusFunc func(task *buildplan.Task, status Status)

// ErrDependenciesNotBuilt short-circuits a task whose direct
// dependencies failed.
var ErrDependenciesNotBuilt = errors.New("dependencies are not built")

// A BuildError is a build command failure.
// It carries the path of the interleaved command log.
type BuildError struct {
	ID      string
	LogPath string
	err     error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s: %v (see %s)", e.ID, e.err, e.LogPath)
}

func (e *BuildError) Unwrap() error { return e.err }

// result is what a completed task resolves to.
type result struct {
	cached bool
	forced bool
}

type driver struct {
	cfg      *esystore.Config
	sandbox  *esy.BuildSandbox
	onStatus StatusFunc

	// pool bounds how many tasks execute commands at once.
	pool *semaphore.Weighted
	// copyTree is the tree-copy primitive, replaceable in tests.
	copyTree func(src, dst string, exclude sets.Set[string]) error
}

// Build executes the plan rooted at root in dependency order.
//
// Dependencies of a task complete strictly before the task enters
// in-progress; a failed dependency short-circuits its dependents.
// Build drains in-flight work before returning.
func Build(ctx context.Context, root *buildplan.Task, sandbox *esy.BuildSandbox, cfg *esystore.Config, onStatus StatusFunc) error {
	if onStatus == nil {
		onStatus = func(*buildplan.Task, Status) {}
	}
	d := &driver{
		cfg:      cfg,
		sandbox:  sandbox,
		onStatus: onStatus,
		pool:     semaphore.NewWeighted(int64(runtime.NumCPU())),
		copyTree: osutil.CopyTree,
	}

	running := make([]*depgraph.Promise[*result], 0)
	rootPromise := depgraph.AsyncFold(root, func(direct, all []*depgraph.Promise[*result], task *buildplan.Task) *depgraph.Promise[*result] {
		p := depgraph.Run(func() (*result, error) {
			return d.run(ctx, task, direct)
		})
		running = append(running, p)
		return p
	})
	_, err := rootPromise.Wait(ctx)
	// Drain: every promise has resolved once the root's has, except when
	// the root short-circuited on a failed dependency while siblings were
	// still building.
	drainCtx := context.Background()
	for _, p := range running {
		p.Wait(drainCtx)
	}
	return err
}

// run performs the full lifecycle of a single task:
// await dependencies, decide between cache hit and execution,
// and report status transitions.
func (d *driver) run(ctx context.Context, task *buildplan.Task, deps []*depgraph.Promise[*result]) (*result, error) {
	forced := false
	for _, dep := range deps {
		r, err := dep.Wait(ctx)
		if err != nil {
			err = fmt.Errorf("build %s: %w", task.ID, ErrDependenciesNotBuilt)
			d.onStatus(task, Status{State: Failure, Err: err})
			return nil, err
		}
		if r.forced || !r.cached {
			forced = true
		}
	}

	spec := task.Spec
	finalInstall := d.cfg.FinalInstallPath(spec)
	artifactExists := osutil.Exists(finalInstall)

	if spec.ShouldBePersisted {
		// Presence of the final install path is sufficient proof that a
		// persisted artifact is current: the path is a pure function of
		// the build identifier, so a real change to any dependency would
		// have produced a different identifier and a different path.
		// Forcing never overwrites a persisted artifact in place.
		if artifactExists {
			log.Debugf(ctx, "%s: persisted artifact present, skipping", task.ID)
			d.onStatus(task, Status{State: Success, Cached: true})
			return &result{cached: true}, nil
		}
	} else {
		checksum, err := sourceChecksum(d.cfg.SourcePath(spec))
		if err != nil {
			d.onStatus(task, Status{State: Failure, Err: err})
			return nil, fmt.Errorf("build %s: %v", task.ID, err)
		}
		stored := readStoredChecksum(d.cfg.BuildPath(spec, "_esy", "checksum"))
		if artifactExists && stored == checksum && !forced {
			log.Debugf(ctx, "%s: source unchanged, skipping", task.ID)
			d.onStatus(task, Status{State: Success, Cached: true})
			return &result{cached: true}, nil
		}
	}
	forced = forced || artifactExists

	if err := d.pool.Acquire(ctx, 1); err != nil {
		d.onStatus(task, Status{State: Failure, Err: err})
		return nil, err
	}
	defer d.pool.Release(1)

	d.onStatus(task, Status{State: InProgress})
	log.Infof(ctx, "Building %s", task.ID)
	start := time.Now()
	if err := d.execute(ctx, task); err != nil {
		d.onStatus(task, Status{State: Failure, Err: err})
		return nil, err
	}
	if !spec.ShouldBePersisted {
		checksum, err := sourceChecksum(d.cfg.SourcePath(spec))
		if err == nil {
			err = osutil.WriteFilePerm(d.cfg.BuildPath(spec, "_esy", "checksum"), []byte(checksum), 0o644)
		}
		if err != nil {
			log.Warnf(ctx, "Record source checksum for %s: %v", task.ID, err)
		}
	}
	elapsed := time.Since(start)
	log.Infof(ctx, "Built %s in %v", task.ID, elapsed)
	d.onStatus(task, Status{
		State:  Success,
		TimeMS: elapsed.Milliseconds(),
		Forced: forced,
	})
	return &result{forced: forced}, nil
}

func readStoredChecksum(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

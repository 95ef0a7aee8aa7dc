// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

package builder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bbqbaron/esy/buildplan"
	"github.com/bbqbaron/esy/esystore"
	"github.com/bbqbaron/esy/internal/depgraph"
	"github.com/bbqbaron/esy/internal/osutil"
	"github.com/bbqbaron/esy/sets"
	"zombiezen.com/go/batchio"
	"zombiezen.com/go/log"
)

// copyExclude keeps build and install residue out of source copies.
var copyExclude = sets.New("_build", "_install", "node_modules")

// execute performs one build: prepare the store directories, write the
// build support files, run the commands, rewrite staged paths, and
// finalize the install atomically.
func (d *driver) execute(ctx context.Context, task *buildplan.Task) error {
	spec := task.Spec
	buildPath := d.cfg.BuildPath(spec)
	installPath := d.cfg.InstallPath(spec)
	finalInstallPath := d.cfg.FinalInstallPath(spec)

	// Clear residue from earlier attempts.
	for _, p := range []string{finalInstallPath, installPath, buildPath} {
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("build %s: %v", task.ID, err)
		}
	}

	esyDir := filepath.Join(buildPath, "_esy")
	if err := os.MkdirAll(esyDir, 0o755); err != nil {
		return fmt.Errorf("build %s: %v", task.ID, err)
	}
	for _, dir := range esystore.InstallDirs {
		if err := os.MkdirAll(filepath.Join(installPath, dir), 0o755); err != nil {
			return fmt.Errorf("build %s: %v", task.ID, err)
		}
	}

	if spec.MutatesSourcePath {
		if err := d.copyTree(d.cfg.SourcePath(spec), buildPath, copyExclude); err != nil {
			return fmt.Errorf("build %s: copy source: %v", task.ID, err)
		}
	}

	if err := osutil.WriteFilePerm(filepath.Join(esyDir, "env"), renderEnvFile(task.Env), 0o644); err != nil {
		return fmt.Errorf("build %s: %v", task.ID, err)
	}
	if err := d.writeFindlibConf(task, true); err != nil {
		return fmt.Errorf("build %s: %v", task.ID, err)
	}
	sandboxProfile, err := d.writeSandboxProfile(task)
	if err != nil {
		return fmt.Errorf("build %s: %v", task.ID, err)
	}

	if len(task.Command) > 0 {
		if err := d.runCommands(ctx, task, sandboxProfile); err != nil {
			return err
		}
	}

	if err := esystore.RewriteTree(ctx, installPath, installPath, finalInstallPath); err != nil {
		return fmt.Errorf("build %s: %v", task.ID, err)
	}
	// Consumers resolve findlib against finalized paths.
	if err := d.writeFindlibConf(task, false); err != nil {
		return fmt.Errorf("build %s: %v", task.ID, err)
	}
	if err := os.Rename(installPath, finalInstallPath); err != nil {
		return fmt.Errorf("build %s: finalize install: %v", task.ID, err)
	}

	if spec == d.sandbox.Root {
		if err := osutil.ReplaceSymlink(finalInstallPath, filepath.Join(d.cfg.SandboxPath, "_install")); err != nil {
			log.Warnf(ctx, "Sandbox install symlink: %v", err)
		}
		if err := osutil.ReplaceSymlink(buildPath, filepath.Join(d.cfg.SandboxPath, "_build")); err != nil {
			log.Warnf(ctx, "Sandbox build symlink: %v", err)
		}
	}
	return nil
}

// runCommands runs the task's commands sequentially,
// each in the task environment with the build root as working directory.
// Both output streams interleave into _esy/log,
// which stays open across commands and is flushed and closed at the end.
func (d *driver) runCommands(ctx context.Context, task *buildplan.Task, sandboxProfile string) error {
	logPath := d.cfg.BuildPath(task.Spec, "_esy", "log")
	logFile, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("build %s: %v", task.ID, err)
	}
	defer logFile.Close()
	logWriter := batchio.NewWriter(logFile, 8192, 250*time.Millisecond)
	defer logWriter.Flush()

	env := make([]string, 0, task.Env.Len())
	for v := range task.Env.All() {
		env = append(env, v.Name+"="+v.Value)
	}

	for _, command := range task.Command {
		log.Debugf(ctx, "%s: running %q", task.ID, command.Rendered)
		argv := wrapCommand(sandboxProfile, command.Rendered)
		c := exec.CommandContext(ctx, argv[0], argv[1:]...)
		setCancelFunc(c)
		c.Dir = d.cfg.RootPath(task.Spec)
		c.Env = env
		c.Stdout = logWriter
		c.Stderr = logWriter
		if err := c.Run(); err != nil {
			logWriter.Flush()
			return &BuildError{ID: task.ID, LogPath: logPath, err: err}
		}
		if err := logWriter.Flush(); err != nil {
			return fmt.Errorf("build %s: flush log: %v", task.ID, err)
		}
	}
	return nil
}

// renderEnvFile renders the task environment as a sourceable shell
// fragment written to _esy/env.
func renderEnvFile(env *buildplan.Environment) []byte {
	var sb strings.Builder
	for v := range env.All() {
		value := strings.ReplaceAll(v.Value, `\`, `\\`)
		value = strings.ReplaceAll(value, `"`, `\"`)
		fmt.Fprintf(&sb, "export %s=\"%s\";\n", v.Name, value)
	}
	return []byte(sb.String())
}

// writeFindlibConf writes _esy/findlib.conf.
// The currently-building variant points destdir at the staging install;
// after the build it is rewritten so consumers see finalized paths.
func (d *driver) writeFindlibConf(task *buildplan.Task, currentlyBuilding bool) error {
	spec := task.Spec
	install := d.cfg.FinalInstallPath(spec)
	if currentlyBuilding {
		install = d.cfg.InstallPath(spec)
	}
	libPaths := make([]string, 0, 8)
	for _, dep := range depgraph.Transitive(task) {
		libPaths = append(libPaths, d.cfg.FinalInstallPath(dep.Spec, "lib"))
	}
	libPaths = append(libPaths, filepath.Join(install, "lib"))

	var sb strings.Builder
	fmt.Fprintf(&sb, "path = %q\n", strings.Join(libPaths, ":"))
	fmt.Fprintf(&sb, "destdir = %q\n", filepath.Join(install, "lib"))
	sb.WriteString("ldconf = \"ignore\"\n")
	sb.WriteString("ocamlc = \"ocamlc.opt\"\n")
	sb.WriteString("ocamldep = \"ocamldep.opt\"\n")
	sb.WriteString("ocamldoc = \"ocamldoc.opt\"\n")
	sb.WriteString("ocamllex = \"ocamllex.opt\"\n")
	sb.WriteString("ocamlmklib = \"ocamlmklib.opt\"\n")
	sb.WriteString("ocamlopt = \"ocamlopt.opt\"\n")
	return osutil.WriteFilePerm(d.cfg.BuildPath(spec, "_esy", "findlib.conf"), []byte(sb.String()), 0o644)
}

// Copyright 2025 The esy Authors
// SPDX-License-Identifier: MIT

// esy builds a package sandbox into the content-addressed store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"
	"zombiezen.com/go/bass/sigterm"
	"zombiezen.com/go/log"

	"github.com/bbqbaron/esy"
	"github.com/bbqbaron/esy/buildplan"
	"github.com/bbqbaron/esy/esystore"
	"github.com/bbqbaron/esy/internal/builder"
)

func main() {
	rootCommand := &cobra.Command{
		Use:           "esy",
		Short:         "reproducible package builds",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	g := defaultGlobalConfig()
	if err := g.mergeFiles(configFilePaths()); err != nil {
		initLogging(false)
		log.Errorf(context.Background(), "%v", err)
		os.Exit(1)
	}
	g.mergeEnvironment()

	rootCommand.PersistentFlags().StringVar(&g.StorePath, "store", g.StorePath, "`path` to the shared store")
	rootCommand.PersistentFlags().StringVar(&g.Sandbox, "sandbox", g.Sandbox, "`path` to the sandbox root")
	showDebug := rootCommand.PersistentFlags().Bool("debug", g.Debug, "show debugging output")

	rootCommand.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		initLogging(*showDebug)
		return nil
	}

	rootCommand.AddCommand(
		newBuildCommand(g),
		newEnvCommand(g),
		newPlanCommand(g),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), sigterm.Signals()...)
	err := rootCommand.ExecuteContext(ctx)
	cancel()
	if err != nil {
		initLogging(*showDebug)
		log.Errorf(context.Background(), "%v", err)
		os.Exit(1)
	}
}

func newBuildCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "build",
		Short:                 "build the sandbox",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runBuild(cmd.Context(), g)
	}
	return c
}

func runBuild(ctx context.Context, g *globalConfig) error {
	sandbox, cfg, err := crawlSandbox(ctx, g)
	if err != nil {
		return err
	}
	if reportCrawlErrors(ctx, sandbox) {
		return fmt.Errorf("sandbox has errors")
	}
	if err := cfg.Init(); err != nil {
		return err
	}

	var diags buildplan.Diagnostics
	root, err := buildplan.Plan(sandbox, cfg, &diags)
	if err != nil {
		return err
	}
	for _, d := range diags.All() {
		log.Warnf(ctx, "%s", d.Message)
	}

	report := newStatusReporter(os.Stdout)
	err = builder.Build(ctx, root, sandbox, cfg, report.observe)
	report.finish()
	return err
}

func newEnvCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "env",
		Short:                 "print the build environment as a shell fragment",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sandbox, cfg, err := crawlSandbox(ctx, g)
		if err != nil {
			return err
		}
		var diags buildplan.Diagnostics
		if err := buildplan.Eject(os.Stdout, sandbox, cfg, &diags); err != nil {
			return err
		}
		for _, d := range diags.All() {
			log.Warnf(ctx, "%s", d.Message)
		}
		return nil
	}
	return c
}

func newPlanCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "plan",
		Short:                 "print the computed build plan as JSON",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sandbox, cfg, err := crawlSandbox(ctx, g)
		if err != nil {
			return err
		}
		root, err := buildplan.Plan(sandbox, cfg, nil)
		if err != nil {
			return err
		}
		return writePlanJSON(os.Stdout, root)
	}
	return c
}

func crawlSandbox(ctx context.Context, g *globalConfig) (*esy.BuildSandbox, *esystore.Config, error) {
	sandboxPath := g.Sandbox
	if sandboxPath == "" {
		var err error
		sandboxPath, err = os.Getwd()
		if err != nil {
			return nil, nil, err
		}
	}
	cfg, err := esystore.NewConfig(g.StorePath, g.localStorePath(sandboxPath), sandboxPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.AllowWritePaths = g.AllowWritePaths
	sandbox, err := esy.FromDirectory(ctx, esy.DefaultResolver(), sandboxPath)
	if err != nil {
		return nil, nil, err
	}
	return sandbox, cfg, nil
}

// reportCrawlErrors logs every diagnostic recorded during the crawl and
// reports whether there were any.
func reportCrawlErrors(ctx context.Context, sandbox *esy.BuildSandbox) bool {
	found := false
	seen := make(map[string]bool)
	var walk func(spec *esy.BuildSpec)
	walk = func(spec *esy.BuildSpec) {
		if seen[spec.ID] {
			return
		}
		seen[spec.ID] = true
		for _, msg := range spec.Errors {
			log.Errorf(ctx, "%s@%s: %s", spec.Name, spec.Version, msg)
			found = true
		}
		for _, dep := range spec.Dependencies {
			walk(dep)
		}
	}
	walk(sandbox.Root)
	return found
}

var initLogOnce sync.Once

func initLogging(showDebug bool) {
	initLogOnce.Do(func() {
		minLogLevel := log.Info
		if showDebug {
			minLogLevel = log.Debug
		}
		log.SetDefault(&log.LevelFilter{
			Min:    minLogLevel,
			Output: log.New(os.Stderr, "esy: ", log.StdFlags, nil),
		})
	})
}

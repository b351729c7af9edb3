// nob is a sample driver: it describes the example project below src/ and
// hands the resulting unit tree to the command surface. Being a driver, it
// first makes sure it is itself up to date.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/FelixKimmerle/nobcpp/internal/bootstrap"
	"github.com/FelixKimmerle/nobcpp/internal/cli"
	"github.com/FelixKimmerle/nobcpp/internal/env"
	"github.com/FelixKimmerle/nobcpp/internal/trace"
	"github.com/FelixKimmerle/nobcpp/internal/unit"
)

var (
	jobs       = flag.Int("jobs", 0, "number of parallel jobs to run (0 = hardware concurrency)")
	dryRun     = flag.Bool("dry_run", false, "only print commands which would otherwise be run")
	ctracefile = flag.String("ctracefile", "", "path to store a chrome trace event file at (load in chrome://tracing)")
)

func funcmain() error {
	flag.Parse()

	if *ctracefile != "" {
		if err := trace.Start(*ctracefile); err != nil {
			return err
		}
		defer trace.Stop()
	}

	// The driver's own source is Go, so the rebuild uses the Go toolchain
	// instead of the stock C++ invocation.
	if err := bootstrap.Rebuild(bootstrap.Options{
		Source: filepath.Join("cmd", "nob", "nob.go"),
		Argv:   os.Args,
		Compile: func(bin, src string) *exec.Cmd {
			// src arrives canonicalized; building its directory builds
			// the whole main package.
			return exec.Command("go", "build", "-o", bin, filepath.Dir(src))
		},
	}); err != nil {
		return err
	}

	top, err := unit.BuildTreeFromCPPFiles(
		filepath.Join(env.NobRoot, env.SourceDir),
		filepath.Join(env.BuildDir, "out"))
	if err != nil {
		return err
	}

	profiles := map[string]cli.Profile{
		"debug":   {CompileFlags: []string{"-g", "-O0"}},
		"release": {CompileFlags: []string{"-O3", "-DNDEBUG"}, LinkFlags: []string{"-s"}},
	}
	if _, err := os.Stat("nob.yaml"); err == nil {
		loaded, err := cli.LoadProfiles("nob.yaml")
		if err != nil {
			return err
		}
		// The driver's in-code profiles win over the config file.
		for name, prof := range loaded {
			if _, ok := profiles[name]; !ok {
				profiles[name] = prof
			}
		}
	}

	// An interrupt cancels the context so that a child started by the run
	// verb is torn down; the scheduler itself installs no signal handler.
	ctx, canc := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer canc()
	return cli.Run(ctx, cli.Config{
		Top:      top,
		Profiles: profiles,
		Jobs:     *jobs,
		DryRun:   *dryRun,
	}, flag.Args())
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

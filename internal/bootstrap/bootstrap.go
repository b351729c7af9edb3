// Package bootstrap keeps the driver binary in sync with its own source:
// when the source (or a listed dependency) is newer than the running
// binary, the binary is recompiled and the process image is replaced by the
// fresh build, re-invoked with the Marker argument inserted.
package bootstrap

import (
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// Marker is inserted after argv[0] when the rebuilt binary re-execs
// itself. The command-line parser consumes it and implies a rebuild of the
// user's project.
const Marker = "nob_rebuild"

// Options configures Rebuild.
type Options struct {
	// Source is the driver's own source file.
	Source string
	// Deps are additional files the driver depends on, typically the
	// headers it includes.
	Deps []string
	// Argv is the original command line, os.Args.
	Argv []string
	// Compile returns the command which compiles src into bin. Nil selects
	// DefaultCompile.
	Compile func(bin, src string) *exec.Cmd
	// Log receives informational lines; nil means the standard logger.
	Log *log.Logger
}

// DefaultCompile is the stock compiler invocation for a C++ driver.
func DefaultCompile(bin, src string) *exec.Cmd {
	return exec.Command("c++", "-std=c++20", "-Wall", "-Wextra", "-Wpedantic", "-O3", "-o", bin, src)
}

// Rebuild returns normally when the binary is up to date. Otherwise it
// recompiles the source to <bin>.new, renames it over the binary and
// replaces the process image; on compile failure the process exits with
// the compiler's exit code.
func Rebuild(opts Options) error {
	l := opts.Log
	if l == nil {
		l = log.Default()
	}
	bin, err := os.Executable()
	if err != nil {
		return xerrors.Errorf("bootstrap: %w", err)
	}
	src, err := filepath.Abs(opts.Source)
	if err != nil {
		return xerrors.Errorf("bootstrap: %w", err)
	}

	if !stale(bin, append([]string{src}, opts.Deps...)) {
		l.Printf("nothing todo: %s is newer than %s", bin, src)
		return nil
	}

	l.Printf("rebuilding %s from %s", bin, src)
	compile := opts.Compile
	if compile == nil {
		compile = DefaultCompile
	}
	tmp := bin + ".new"
	cmd := compile(tmp, src)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		var exit *exec.ExitError
		if xerrors.As(err, &exit) {
			os.Exit(exit.ProcessState.ExitCode())
		}
		return xerrors.Errorf("bootstrap compile: %w", err)
	}
	if err := os.Rename(tmp, bin); err != nil {
		return xerrors.Errorf("bootstrap: %w", err)
	}

	if err := unix.Exec(bin, restartArgv(opts.Argv), os.Environ()); err != nil {
		return xerrors.Errorf("exec %s: %w", bin, err)
	}
	panic("unreachable") // Exec does not return on success
}

// stale reports whether any dep is missing or newer than bin, or bin does
// not exist.
func stale(bin string, deps []string) bool {
	binInfo, err := os.Stat(bin)
	if err != nil {
		return true
	}
	for _, dep := range deps {
		fi, err := os.Stat(dep)
		if err != nil || fi.ModTime().After(binInfo.ModTime()) {
			return true
		}
	}
	return false
}

// restartArgv inserts the marker after the program name, preserving the
// rest of the original command line.
func restartArgv(argv []string) []string {
	out := make([]string, 0, len(argv)+1)
	out = append(out, argv[0], Marker)
	out = append(out, argv[1:]...)
	return out
}

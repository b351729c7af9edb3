// Package cli implements the nob command surface over a user-described
// unit tree.
package cli

import (
	"context"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/FelixKimmerle/nobcpp/internal/bootstrap"
	"github.com/FelixKimmerle/nobcpp/internal/plan"
	"github.com/FelixKimmerle/nobcpp/internal/unit"
	"golang.org/x/xerrors"
)

// Profile is a named pair of flag lists which a command-line token appends
// to the top unit.
type Profile struct {
	CompileFlags []string
	LinkFlags    []string
}

// Config carries the driver-supplied state for one invocation.
type Config struct {
	// Top is the root of the build tree.
	Top *unit.Unit
	// Profiles maps profile names to their flags.
	Profiles map[string]Profile
	// Jobs caps scheduler parallelism; ≤ 0 means hardware concurrency.
	Jobs int
	// DryRun prints planned commands instead of running them.
	DryRun bool
	// Log receives informational lines; nil means the standard logger.
	Log *log.Logger
	// Runner substitutes the scheduler's command runner, for tests.
	Runner plan.Runner
}

// verbs is the sub-command dispatch table. All stateful command-line
// parsing lives in Run.
var verbs = map[string]func(ctx context.Context, cfg *Config) error{
	"build":    cmdbuild,
	"rebuild":  cmdrebuild,
	"clean":    cmdclean,
	"cleanall": cmdcleanall,
	"run":      cmdrun,
	"tree":     cmdtree,
}

// Run parses args and executes the requested commands in order. Tokens
// which are not verbs are looked up as profile names and applied to the
// top unit; unknown tokens are reported and ignored. The bootstrap marker
// is consumed and, unless rebuild was requested explicitly, prepends one.
func Run(ctx context.Context, cfg Config, args []string) error {
	l := cfg.Log
	if l == nil {
		l = log.Default()
		cfg.Log = l
	}

	var cmds []string
	marker := false
	for _, arg := range args {
		if arg == bootstrap.Marker {
			marker = true
			continue
		}
		if _, ok := verbs[arg]; ok {
			cmds = append(cmds, arg)
			continue
		}
		if prof, ok := cfg.Profiles[arg]; ok {
			cfg.Top.AddCompileFlags(prof.CompileFlags...)
			cfg.Top.AddLinkFlags(prof.LinkFlags...)
			cfg.Top.ActivateProfile(arg)
			continue
		}
		l.Printf("unknown command or profile %q (ignored)", arg)
	}
	if marker && !contains(cmds, "rebuild") {
		cmds = append([]string{"rebuild"}, cmds...)
	}
	if len(cmds) == 0 {
		cmds = []string{"build"}
	}

	for _, c := range cmds {
		if err := verbs[c](ctx, &cfg); err != nil {
			return xerrors.Errorf("%s: %w", c, err)
		}
	}
	return nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func (cfg *Config) execOptions() plan.ExecOptions {
	return plan.ExecOptions{
		Parallel: cfg.Jobs,
		Runner:   cfg.Runner,
		Log:      cfg.Log,
		DryRun:   cfg.DryRun,
	}
}

func build(ctx context.Context, cfg *Config, fullRebuild bool) error {
	p, err := cfg.Top.Compile(fullRebuild)
	if err != nil {
		return err
	}
	if err := p.Execute(ctx, cfg.execOptions()); err != nil {
		return err
	}
	return p.WriteCompileDB()
}

func cmdbuild(ctx context.Context, cfg *Config) error {
	return build(ctx, cfg, false)
}

func cmdrebuild(ctx context.Context, cfg *Config) error {
	return build(ctx, cfg, true)
}

func cmdclean(ctx context.Context, cfg *Config) error {
	return cfg.Top.Clean(false).Execute(ctx, cfg.execOptions())
}

func cmdcleanall(ctx context.Context, cfg *Config) error {
	return cfg.Top.Clean(true).Execute(ctx, cfg.execOptions())
}

func cmdrun(ctx context.Context, cfg *Config) error {
	target := cfg.Top.Target()
	if target == "" {
		return xerrors.New("top unit has no target to run")
	}
	if filepath.Base(target) == target {
		// Run the artifact, not something of the same name on PATH.
		target = "./" + target
	}
	cmd := exec.CommandContext(ctx, target)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func cmdtree(ctx context.Context, cfg *Config) error {
	_, err := os.Stdout.WriteString(cfg.Top.Tree())
	return err
}

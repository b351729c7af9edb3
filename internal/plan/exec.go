package plan

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/FelixKimmerle/nobcpp/internal/runner"
	"github.com/FelixKimmerle/nobcpp/internal/trace"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// Runner abstracts launching one external command so that tests can
// substitute a fake for real child processes.
type Runner interface {
	Run(ctx context.Context, command string, args []string) runner.Result
}

// ExecOptions configures Plan.Execute.
type ExecOptions struct {
	// Parallel is the worker count. Values ≤ 0 select the hardware
	// concurrency, with a minimum of one worker.
	Parallel int
	// Runner launches the commands; nil runs real child processes.
	Runner Runner
	// Log receives the Running/summary lines; nil means the standard logger.
	Log *log.Logger
	// DryRun prints the enabled commands instead of running them.
	DryRun bool
}

var isTerminal = isatty.IsTerminal(os.Stdout.Fd())

type execResult struct {
	id      int
	code    int
	skipped bool
}

// Execute runs all enabled commands, honouring edges and the concurrency
// cap. Disabled nodes complete instantly for edge-propagation purposes. On
// the first failing command no further work is dispatched; in-flight
// commands run to completion and an error is returned.
func (p *Plan) Execute(ctx context.Context, opts ExecOptions) error {
	l := opts.Log
	if l == nil {
		l = log.Default()
	}
	if err := p.checkAcyclic(); err != nil {
		return err
	}

	enabled := 0
	for _, c := range p.cmds {
		if c.Enabled {
			enabled++
		}
	}
	if opts.DryRun {
		for _, c := range p.cmds {
			if c.Enabled {
				l.Printf("would run: %s", c.String())
			}
		}
		l.Printf("%d of %d commands would run", enabled, len(p.cmds))
		return nil
	}

	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = runtime.NumCPU()
	}
	if parallel < 1 {
		parallel = 1
	}
	r := opts.Runner
	if r == nil {
		r = runner.Runner{}
	}

	// Effective in-degrees: a disabled node is already up to date, so its
	// contribution to each successor is released up front. A disabled node
	// never has an enabled predecessor (staleness propagates rootwards
	// during planning), so a single pass suffices.
	indeg := append([]int(nil), p.indeg...)
	for id, c := range p.cmds {
		if !c.Enabled {
			for _, succ := range p.out[id] {
				indeg[succ]--
			}
		}
	}

	work := make(chan int, len(p.cmds))
	done := make(chan execResult)
	queued := make([]bool, len(p.cmds))
	inflight := 0
	enqueue := func(id int) {
		queued[id] = true
		inflight++
		work <- id
	}
	for id, c := range p.cmds {
		if c.Enabled && indeg[id] <= 0 {
			enqueue(id)
		}
	}

	var stop atomic.Bool
	prog := &progress{total: enabled}
	start := time.Now()
	var eg errgroup.Group
	for i := 0; i < parallel; i++ {
		i := i // copy
		eg.Go(func() error {
			for id := range work {
				if stop.Load() {
					// Fail-fast: drain the queue without launching.
					done <- execResult{id: id, skipped: true}
					continue
				}
				cmd := p.cmds[id]
				prog.step(shortName(&cmd))
				l.Printf("Running: %s", cmd.String())
				finish := trace.Span(shortName(&cmd), i)
				res := r.Run(ctx, cmd.Command, cmd.Args)
				finish()
				os.Stdout.WriteString(res.Stdout)
				os.Stderr.WriteString(res.Stderr)
				if res.ExitCode != 0 {
					stop.Store(true)
					l.Printf("command failed (exit %d): %s", res.ExitCode, cmd.String())
				}
				done <- execResult{id: id, code: res.ExitCode}
			}
			return nil
		})
	}

	finished := 0
	failed := 0
	for inflight > 0 {
		res := <-done
		inflight--
		if res.skipped {
			continue
		}
		if res.code != 0 {
			failed++
			continue
		}
		finished++
		for _, succ := range p.out[res.id] {
			indeg[succ]--
			if indeg[succ] <= 0 && p.cmds[succ].Enabled && !queued[succ] {
				enqueue(succ)
			}
		}
	}
	close(work)
	eg.Wait()
	prog.done()
	l.Printf("Compilation finished in: %v", time.Since(start))

	if failed > 0 {
		if failed == 1 {
			return xerrors.New("1 command failed")
		}
		return xerrors.Errorf("%d commands failed", failed)
	}
	if finished < enabled {
		return xerrors.New("stuck: not all commands could be scheduled [this is a bug]")
	}
	return nil
}

// shortName labels a command for status lines and trace events:
// the executable plus its last argument (the source for compiles,
// the final input for links).
func shortName(c *CompileCommand) string {
	if len(c.Args) == 0 {
		return c.Command
	}
	return c.Command + " " + c.Args[len(c.Args)-1]
}

// progress is a single counter line, rewritten in place as commands start.
// It stays silent when stdout is not a terminal; the Running log lines
// carry the same information there.
type progress struct {
	mu      sync.Mutex
	total   int
	started int
	written time.Time
}

func (p *progress) step(label string) {
	if !isTerminal {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started++
	// Rewriting the line for every short compile is wasted syscalls; one
	// update per 100ms reads the same to a human.
	if time.Since(p.written) < 100*time.Millisecond && p.started < p.total {
		return
	}
	p.written = time.Now()
	fmt.Printf("\r\033[K[%d/%d] %s", p.started, p.total, label)
}

func (p *progress) done() {
	if !isTerminal {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Print("\r\033[K")
}

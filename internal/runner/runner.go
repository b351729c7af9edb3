// Package runner launches external commands and captures their output.
package runner

import (
	"bytes"
	"context"
	"os"
	"os/exec"

	"golang.org/x/xerrors"
)

// Result is the outcome of one child process. ExitCode is -1 if the child
// could not be started or exited abnormally.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// colorable lists the compilers which understand -fdiagnostics-color.
// Since output is captured through pipes, they would otherwise disable
// colored diagnostics.
var colorable = map[string]bool{
	"gcc":     true,
	"g++":     true,
	"c++":     true,
	"clang":   true,
	"clang++": true,
}

// Runner launches real child processes. The child inherits only PATH from
// the parent environment; command is resolved against it at launch time.
type Runner struct{}

func (Runner) Run(ctx context.Context, command string, args []string) Result {
	if colorable[command] {
		args = append(append([]string(nil), args...), "-fdiagnostics-color=always")
	}
	// Not bound to ctx: a started child always runs to completion.
	cmd := exec.Command(command, args...)
	cmd.Env = []string{"PATH=" + os.Getenv("PATH")}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		res.ExitCode = -1
		var exit *exec.ExitError
		if xerrors.As(err, &exit) {
			// ExitCode is -1 when the child was signalled, which is
			// exactly the abnormal-exit convention.
			res.ExitCode = exit.ProcessState.ExitCode()
		}
	}
	return res
}

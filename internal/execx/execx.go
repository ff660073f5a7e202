// Package execx runs the pipeline's external tools (the dependency
// provisioner and the build tool) with deterministic environment merging
// and configurable output routing.
package execx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// waitDelay bounds how long Run waits for inherited stdout/stderr pipes
// after the process group has been killed, so a stray grandchild cannot
// hold a timed-out run open.
const waitDelay = 5 * time.Second

// ExitError reports an external tool that started but did not succeed.
type ExitError struct {
	Tool string
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Code >= 0 {
		return fmt.Sprintf("%s exited with code %d", e.Tool, e.Code)
	}
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Runner executes commands in a fixed working directory with env overrides
// applied on top of the current process environment.
type Runner struct {
	Dir    string            // working directory, empty means inherit
	Env    map[string]string // overrides merged over os.Environ
	Stdout io.Writer         // defaults to os.Stdout
	Stderr io.Writer         // defaults to os.Stderr
}

// Run executes argv[0] with the remaining arguments. The context cancels
// or times out the process. A non-zero exit is returned as *ExitError.
func (r *Runner) Run(ctx context.Context, argv ...string) error {
	if len(argv) == 0 {
		return errors.New("execx: empty command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.Dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	// Build tools spawn their own children. Run the tool in its own
	// process group and kill the group on cancellation, so the whole tool
	// tree stops instead of only the direct child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = waitDelay
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if len(r.Env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), r.Env)
	}

	err := cmd.Run()
	if err == nil {
		return nil
	}
	// Prefer a context error so deadline exceeded is reported as such.
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", argv[0], ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Tool: argv[0], Code: exitErr.ExitCode(), Err: err}
	}
	return &ExitError{Tool: argv[0], Code: -1, Err: err}
}

// mergeEnv applies overrides on top of the base KEY=VALUE list, returning
// a sorted result so command invocation is deterministic.
func mergeEnv(base []string, override map[string]string) []string {
	envMap := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range override {
		envMap[k] = v
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}

// Package buildtool is the boundary to the external build tool. The tool
// is a black box: given the project root as working directory it emits a
// build output directory containing the executable and library artifacts.
package buildtool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mysqltools/svcpack/internal/execx"
)

// ErrNoOutput reports a build that exited successfully but produced no
// build output directory.
var ErrNoOutput = errors.New("build produced no output directory")

// Options configures a build invocation.
type Options struct {
	Command   []string          // build tool argv
	Dir       string            // project root, the tool's working directory
	OutputDir string            // expected build output, relative to Dir
	Env       map[string]string // env overrides for the build process
	Stdout    io.Writer         // tool output, io.Discard when quiet
	Stderr    io.Writer
}

// Run invokes the build tool and verifies the output directory appeared.
// It returns the absolute path of the build output directory.
func Run(ctx context.Context, opts Options) (string, error) {
	runner := &execx.Runner{Dir: opts.Dir, Env: opts.Env, Stdout: opts.Stdout, Stderr: opts.Stderr}
	if err := runner.Run(ctx, opts.Command...); err != nil {
		return "", fmt.Errorf("build: %w", err)
	}

	out := opts.OutputDir
	if !filepath.IsAbs(out) {
		out = filepath.Join(opts.Dir, out)
	}
	info, err := os.Stat(out)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNoOutput, out)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrNoOutput, out)
	}
	return out, nil
}

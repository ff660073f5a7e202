// Package provision is the boundary to the external dependency
// provisioner. It validates the manifest, then hands installation to the
// configured tool; how packages are resolved is the tool's business.
package provision

import (
	"context"
	"fmt"
	"io"

	"github.com/mysqltools/svcpack/internal/execx"
	"github.com/mysqltools/svcpack/internal/manifest"
)

// Options configures a provisioning run.
type Options struct {
	Command  []string          // provisioner argv; the manifest path is appended
	Manifest string            // manifest path, resolved by the caller
	Dir      string            // working directory for the provisioner
	Env      map[string]string // env overrides for the provisioner process
	Stdout   io.Writer         // tool output, io.Discard when quiet
	Stderr   io.Writer
}

// Run parses the manifest and invokes the provisioner with it. The
// manifest is validated first so a missing or malformed file fails before
// any process is spawned.
func Run(ctx context.Context, opts Options) (*manifest.Manifest, error) {
	m, err := manifest.Parse(opts.Manifest)
	if err != nil {
		return nil, err
	}

	runner := &execx.Runner{Dir: opts.Dir, Env: opts.Env, Stdout: opts.Stdout, Stderr: opts.Stderr}
	argv := append(append([]string(nil), opts.Command...), opts.Manifest)
	if err := runner.Run(ctx, argv...); err != nil {
		return nil, fmt.Errorf("install dependencies from %s: %w", opts.Manifest, err)
	}
	return m, nil
}

// Package pipeline runs the packaging sequence end to end: environment
// scrub, project-root switch, dependency provisioning, build, artifact
// assembly, archive, checksum. The sequence is fixed and non-branching;
// any step failure aborts the run, and the environment variable and
// working directory are restored on every path.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/mysqltools/svcpack/internal/archive"
	"github.com/mysqltools/svcpack/internal/assemble"
	"github.com/mysqltools/svcpack/internal/buildtool"
	"github.com/mysqltools/svcpack/internal/config"
	"github.com/mysqltools/svcpack/internal/env"
	"github.com/mysqltools/svcpack/internal/provision"
)

// Options configures one packaging run.
type Options struct {
	Config      *config.Config
	ProjectRoot string    // absolute project root, the build tool's working directory
	OutputRoot  string    // absolute directory receiving the distribution dir and archive
	Release     string    // optional semver tag folded into the archive name
	Stdout      io.Writer // external tool output, io.Discard when quiet
	Stderr      io.Writer
	Logger      *log.Logger
}

// Result reports what a successful run produced.
type Result struct {
	DistDir      string // canonical distribution directory
	Executable   string
	Libraries    []string
	ArchivePath  string
	ChecksumPath string
}

// Run executes the pipeline. The context is passed to both external steps;
// cancellation still restores the environment and working directory.
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	cfg := opts.Config

	if err := os.MkdirAll(opts.OutputRoot, 0755); err != nil {
		return nil, fmt.Errorf("create output root: %w", err)
	}
	unlock, err := acquireLock(opts.OutputRoot)
	if err != nil {
		return nil, err
	}
	defer unlock()

	buildDir, err := runBuildPhase(ctx, opts, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("assembling distribution", "product", cfg.Product, "from", buildDir)
	assembled, err := assemble.Run(buildDir, opts.OutputRoot, assemble.Layout{
		Product:    cfg.Product,
		LibDir:     cfg.LibDir,
		ExecPrefix: cfg.ExecPrefix,
		LibPrefix:  cfg.LibPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAssemble, err)
	}
	logger.Info("distribution assembled",
		"dir", assembled.Dir,
		"libraries", len(assembled.Libraries),
	)

	archivePath := filepath.Join(opts.OutputRoot, cfg.ArchiveName(opts.Release))
	logger.Info("creating archive", "file", archivePath)
	if err := archive.Create(assembled.Dir, archivePath); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArchive, err)
	}
	checksumPath, err := archive.WriteChecksum(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArchive, err)
	}

	return &Result{
		DistDir:      assembled.Dir,
		Executable:   assembled.Executable,
		Libraries:    assembled.Libraries,
		ArchivePath:  archivePath,
		ChecksumPath: checksumPath,
	}, nil
}

// runBuildPhase provisions dependencies and invokes the build tool with
// the module-search variable scrubbed and the project root as working
// directory. Both are restored when the phase returns, success or not.
func runBuildPhase(ctx context.Context, opts Options, logger *log.Logger) (buildDir string, err error) {
	cfg := opts.Config

	snap, err := env.Scrub(cfg.ModulePathVar)
	if err != nil {
		return "", err
	}
	defer func() {
		if restoreErr := snap.Restore(); restoreErr != nil && err == nil {
			err = restoreErr
		}
	}()

	popd, err := env.Pushd(opts.ProjectRoot)
	if err != nil {
		return "", err
	}
	defer func() {
		if popdErr := popd(); popdErr != nil && err == nil {
			err = popdErr
		}
	}()

	// The process env is scrubbed above for anything reading it directly;
	// the explicit override guarantees the cleared variable in the tools'
	// environment as well.
	scrubbed := map[string]string{cfg.ModulePathVar: ""}

	logger.Info("provisioning dependencies", "manifest", cfg.Manifest)
	m, err := provision.Run(ctx, provision.Options{
		Command:  cfg.ProvisionCmd,
		Manifest: filepath.Join(opts.ProjectRoot, cfg.Manifest),
		Dir:      opts.ProjectRoot,
		Env:      scrubbed,
		Stdout:   opts.Stdout,
		Stderr:   opts.Stderr,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDependency, err)
	}
	logger.Info("dependencies provisioned", "packages", len(m.Entries))

	logger.Info("invoking build tool", "command", cfg.BuildCmd)
	buildDir, err = buildtool.Run(ctx, buildtool.Options{
		Command:   cfg.BuildCmd,
		Dir:       opts.ProjectRoot,
		OutputDir: cfg.BuildOutput,
		Env:       scrubbed,
		Stdout:    opts.Stdout,
		Stderr:    opts.Stderr,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBuild, err)
	}
	return buildDir, nil
}

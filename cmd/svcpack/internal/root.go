package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/mysqltools/svcpack/internal/config"
	"github.com/mysqltools/svcpack/internal/pipeline"
)

var (
	flagVerbose     bool
	flagProjectRoot string
	flagOutput      string
	flagRelease     string
	flagConfig      string
	flagTimeout     time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "svcpack",
	Short: "svcpack packages the service distribution for macOS",
	Long: `svcpack runs the release-packaging pipeline: it provisions the declared
dependencies, invokes the build tool with the module-search path scrubbed,
relocates the executable and its shared libraries into the canonical
distribution directory, and compresses the result into a platform-tagged
tar.gz archive.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPackage,
}

func init() {
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Stream external tool output")
	rootCmd.Flags().StringVar(&flagProjectRoot, "project-root", "", "Project root (default: parent of the svcpack binary's directory)")
	rootCmd.Flags().StringVarP(&flagOutput, "output", "o", ".", "Directory receiving the distribution directory and archive")
	rootCmd.Flags().StringVar(&flagRelease, "release", "", "Release version encoded in the archive name (semver, e.g. v1.2.0)")
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "Config file (default: svcpack.yaml in the project root)")
	rootCmd.Flags().DurationVar(&flagTimeout, "timeout", 0, "Deadline for each external step (0 means none)")
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	logger := log.New(os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		logger.Fatal(err)
	}
}

func runPackage(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stderr)
	if flagVerbose {
		logger.SetLevel(log.DebugLevel)
	}

	if flagRelease != "" && !semver.IsValid(flagRelease) {
		return fmt.Errorf("invalid release version %q (want semver, e.g. v1.2.0)", flagRelease)
	}

	projectRoot := flagProjectRoot
	if projectRoot == "" {
		root, err := defaultProjectRoot()
		if err != nil {
			return err
		}
		projectRoot = root
	}
	projectRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}

	// Resolve the output root before the pipeline changes cwd.
	outputRoot, err := filepath.Abs(flagOutput)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	cfg, err := config.Load(projectRoot, flagConfig)
	if err != nil {
		return err
	}

	// Quiet by default; --verbose streams the tools' own output.
	toolOut, toolErr := io.Discard, io.Discard
	if flagVerbose {
		toolOut, toolErr = os.Stdout, os.Stderr
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if flagTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flagTimeout)
		defer cancel()
	}

	result, err := pipeline.Run(ctx, pipeline.Options{
		Config:      cfg,
		ProjectRoot: projectRoot,
		OutputRoot:  outputRoot,
		Release:     flagRelease,
		Stdout:      toolOut,
		Stderr:      toolErr,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	logger.Info("packaging complete",
		"archive", result.ArchivePath,
		"checksum", result.ChecksumPath,
	)
	return nil
}

// defaultProjectRoot is the parent of the directory holding the svcpack
// binary, per the convention that the packaging tool lives in a
// subdirectory of the project it packages.
func defaultProjectRoot() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate svcpack binary: %w", err)
	}
	return filepath.Dir(filepath.Dir(exe)), nil
}

// Package assemble relocates build artifacts into the canonical
// distribution directory: the executable at the top level, shared
// libraries co-located in a library subdirectory so the executable can
// resolve them via a relative runtime search path.
package assemble

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrMissingExecutable reports a build output with no executable
	// candidate.
	ErrMissingExecutable = errors.New("no executable artifact in build output")
	// ErrAmbiguousExecutable reports a build output with more than one
	// executable candidate.
	ErrAmbiguousExecutable = errors.New("multiple executable artifacts in build output")
)

// Cardinality constrains how many artifacts a Rule is expected to match.
type Cardinality int

const (
	// Any accepts zero or more matches.
	Any Cardinality = iota
	// ExactlyOne requires a single unambiguous match.
	ExactlyOne
)

// Rule selects artifacts from a directory by filename prefix.
type Rule struct {
	Prefix string
	Expect Cardinality
}

// Match returns the files in dir whose names carry the rule's prefix,
// sorted by name. Subdirectories are ignored. The cardinality constraint
// is validated for ExactlyOne rules.
func (r Rule) Match(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read build output %s: %w", dir, err)
	}

	var matches []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), r.Prefix) {
			matches = append(matches, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(matches)

	if r.Expect == ExactlyOne {
		switch len(matches) {
		case 0:
			return nil, fmt.Errorf("%w (prefix %q in %s)", ErrMissingExecutable, r.Prefix, dir)
		case 1:
		default:
			return nil, fmt.Errorf("%w (prefix %q matched %s)",
				ErrAmbiguousExecutable, r.Prefix, strings.Join(basenames(matches), ", "))
		}
	}
	return matches, nil
}

// Layout describes the canonical distribution directory to assemble.
type Layout struct {
	Product    string // canonical directory and executable name
	LibDir     string // library subdirectory name, e.g. "lib"
	ExecPrefix string // executable artifact prefix in build output
	LibPrefix  string // library artifact prefix in build output
}

// Result summarizes a completed assembly.
type Result struct {
	Dir        string   // the canonical distribution directory
	Executable string   // absolute path of the relocated executable
	Libraries  []string // absolute paths of the co-located libraries
}

// Run assembles the canonical distribution directory under outputRoot from
// the artifacts in buildDir. The executable is moved, libraries are copied
// byte-identically with their modes preserved. A stale directory from a
// previous run is removed first so the result reflects only this build.
func Run(buildDir, outputRoot string, layout Layout) (*Result, error) {
	exeRule := Rule{Prefix: layout.ExecPrefix, Expect: ExactlyOne}
	exeMatches, err := exeRule.Match(buildDir)
	if err != nil {
		return nil, err
	}
	libMatches, err := Rule{Prefix: layout.LibPrefix}.Match(buildDir)
	if err != nil {
		return nil, err
	}

	distDir := filepath.Join(outputRoot, layout.Product)
	if err := os.RemoveAll(distDir); err != nil {
		return nil, fmt.Errorf("clear stale distribution directory: %w", err)
	}
	if err := os.MkdirAll(distDir, 0755); err != nil {
		return nil, fmt.Errorf("create distribution directory %s: %w", distDir, err)
	}

	exePath := filepath.Join(distDir, layout.Product)
	if err := moveFile(exeMatches[0], exePath); err != nil {
		return nil, fmt.Errorf("relocate executable %s: %w", filepath.Base(exeMatches[0]), err)
	}

	result := &Result{Dir: distDir, Executable: exePath}

	if len(libMatches) > 0 {
		libDir := filepath.Join(distDir, layout.LibDir)
		if err := os.MkdirAll(libDir, 0755); err != nil {
			return nil, fmt.Errorf("create library directory %s: %w", libDir, err)
		}
		for _, lib := range libMatches {
			dest := filepath.Join(libDir, filepath.Base(lib))
			if err := copyFile(lib, dest); err != nil {
				return nil, fmt.Errorf("copy library %s: %w", filepath.Base(lib), err)
			}
			result.Libraries = append(result.Libraries, dest)
		}
	}

	return result, nil
}

// moveFile renames src to dest, falling back to copy-and-remove when the
// rename crosses filesystems.
func moveFile(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return err
	}
	if err := copyFile(src, dest); err != nil {
		return err
	}
	return os.Remove(src)
}

// copyFile copies src to dest preserving the source file's mode.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}

func basenames(paths []string) []string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return names
}

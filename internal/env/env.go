// Package env isolates the process-global state the packaging pipeline has
// to touch: one module-search environment variable and the working directory.
// Both are captured before mutation and restored through the returned
// closures, so callers can defer restoration on every exit path.
package env

import (
	"fmt"
	"os"
)

// Snapshot records the value and presence of a single environment variable.
// An unset variable is distinct from one set to the empty string, and
// Restore reproduces whichever state was captured.
type Snapshot struct {
	name    string
	value   string
	present bool
}

// Capture reads the current state of the named variable.
func Capture(name string) Snapshot {
	value, present := os.LookupEnv(name)
	return Snapshot{name: name, value: value, present: present}
}

// Name returns the variable name the snapshot was taken of.
func (s Snapshot) Name() string { return s.name }

// Restore reinstates the captured state: the saved value if the variable
// was set, or unset if it was absent.
func (s Snapshot) Restore() error {
	if !s.present {
		if err := os.Unsetenv(s.name); err != nil {
			return fmt.Errorf("restore %s: %w", s.name, err)
		}
		return nil
	}
	if err := os.Setenv(s.name, s.value); err != nil {
		return fmt.Errorf("restore %s: %w", s.name, err)
	}
	return nil
}

// Scrub captures the named variable and clears it, so child processes
// started afterwards resolve modules only from their own installed
// environment. The returned snapshot restores the prior state.
func Scrub(name string) (Snapshot, error) {
	snap := Capture(name)
	if err := os.Setenv(name, ""); err != nil {
		return Snapshot{}, fmt.Errorf("scrub %s: %w", name, err)
	}
	return snap, nil
}

// Pushd switches the working directory to dir and returns a restore func
// that switches back to the directory that was current at the time of the
// call. The original directory is resolved before the switch, so the
// restore works even when dir is later removed.
func Pushd(dir string) (restore func() error, err error) {
	orig, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	if err := os.Chdir(dir); err != nil {
		return nil, fmt.Errorf("chdir %s: %w", dir, err)
	}
	return func() error {
		if err := os.Chdir(orig); err != nil {
			return fmt.Errorf("chdir back to %s: %w", orig, err)
		}
		return nil
	}, nil
}

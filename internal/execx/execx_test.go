package execx

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	var out bytes.Buffer
	r := &Runner{Stdout: &out, Stderr: &out}

	if err := r.Run(context.Background(), "sh", "-c", "echo hello"); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "hello" {
		t.Errorf("stdout = %q, want %q", got, "hello")
	}
}

func TestRunDir(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{Dir: dir, Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)}

	if err := r.Run(context.Background(), "sh", "-c", "touch marker"); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "marker")); err != nil {
		t.Errorf("command did not run in Dir: %v", err)
	}
}

func TestRunEnvOverride(t *testing.T) {
	var out bytes.Buffer
	r := &Runner{
		Env:    map[string]string{"SVCPACK_EXEC_TEST": "on"},
		Stdout: &out,
		Stderr: &out,
	}

	if err := r.Run(context.Background(), "sh", "-c", "echo $SVCPACK_EXEC_TEST"); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "on" {
		t.Errorf("env override not applied, got %q", got)
	}
}

func TestRunExitError(t *testing.T) {
	r := &Runner{Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)}

	err := r.Run(context.Background(), "sh", "-c", "exit 3")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Run() error = %v, want *ExitError", err)
	}
	if exitErr.Code != 3 {
		t.Errorf("Code = %d, want 3", exitErr.Code)
	}
	if exitErr.Tool != "sh" {
		t.Errorf("Tool = %q, want %q", exitErr.Tool, "sh")
	}
}

func TestRunDeadlineKillsToolTree(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	r := &Runner{Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)}

	// The grandchild inherits the output pipes; without a group kill the
	// run would block until it exits on its own.
	start := time.Now()
	err := r.Run(ctx, "sh", "-c", "sleep 10 & wait")
	elapsed := time.Since(start)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed > 5*time.Second {
		t.Errorf("Run() returned after %v, want well under the grandchild's 10s sleep", elapsed)
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Runner{Stdout: new(bytes.Buffer), Stderr: new(bytes.Buffer)}
	err := r.Run(ctx, "sh", "-c", "sleep 10")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRunEmptyCommand(t *testing.T) {
	r := &Runner{}
	if err := r.Run(context.Background()); err == nil {
		t.Error("Run() with no argv should fail")
	}
}

func TestMergeEnv(t *testing.T) {
	got := mergeEnv([]string{"B=2", "A=1"}, map[string]string{"B": "override", "C": "3"})
	want := []string{"A=1", "B=override", "C=3"}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i], want[i])
		}
	}
}

package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLockExcludesSecondHolder(t *testing.T) {
	dir := t.TempDir()

	release, err := acquireLock(dir)
	if err != nil {
		t.Fatalf("acquireLock() returned error: %v", err)
	}
	defer release()

	if _, err := acquireLock(dir); !errors.Is(err, ErrLocked) {
		t.Errorf("second acquireLock() error = %v, want ErrLocked", err)
	}
}

func TestLockReleaseKeepsFile(t *testing.T) {
	dir := t.TempDir()

	release, err := acquireLock(dir)
	if err != nil {
		t.Fatalf("acquireLock() returned error: %v", err)
	}
	release()

	// The file must survive release so every run contends on the same
	// inode.
	if _, err := os.Stat(filepath.Join(dir, lockFile)); err != nil {
		t.Fatalf("lock file missing after release: %v", err)
	}

	release2, err := acquireLock(dir)
	if err != nil {
		t.Fatalf("re-acquire after release returned error: %v", err)
	}
	release2()
}

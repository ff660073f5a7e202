package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

const lockFile = ".svcpack.lock"

// acquireLock takes a non-blocking advisory lock on the output root, so an
// accidental concurrent invocation fails cleanly instead of racing on the
// distribution directory. The returned func releases the lock.
func acquireLock(outputRoot string) (release func(), err error) {
	path := filepath.Join(outputRoot, lockFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("%w (lock held on %s)", ErrLocked, path)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	// The lock file is left in place on release. Unlinking it would let
	// two later runs lock different inodes of the same path and both
	// believe they hold the guard.
	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}

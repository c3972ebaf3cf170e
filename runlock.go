package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// lockFilePermissions is owner rw, group/other r.
const lockFilePermissions = 0o644

const lockDirPermissions = 0o700

// errRunInProgress is returned when another reconcile holds the run lock.
var errRunInProgress = errors.New("another reconcile is already running")

// runLockPath returns the lock file guarding reconcile runs that share a
// journal.
func runLockPath(ledgerPath string) string {
	if ledgerPath == "" {
		return filepath.Join(os.TempDir(), "powerlogger-reconcile.lock")
	}

	return ledgerPath + ".lock"
}

// acquireRunLock writes the current process ID to path and takes an
// exclusive flock, so two runs on one host cannot interleave task deletes
// and creates. The returned release func removes the file and drops the lock.
func acquireRunLock(path string) (release func(), err error) {
	if path == "" {
		return nil, errors.New("run lock path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), lockDirPermissions); err != nil {
		return nil, fmt.Errorf("creating run lock directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("opening run lock: %w", err)
	}

	// Non-blocking: fail immediately if another process holds it.
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()

		if pid, readErr := readLockHolder(path); readErr == nil {
			return nil, fmt.Errorf("%w (PID %d holds %s)", errRunInProgress, pid, path)
		}

		return nil, fmt.Errorf("%w (could not lock %s)", errRunInProgress, path)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()

		return nil, fmt.Errorf("truncating run lock: %w", err)
	}

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()

		return nil, fmt.Errorf("writing run lock: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()

		return nil, fmt.Errorf("syncing run lock: %w", err)
	}

	return func() {
		os.Remove(path)
		f.Close()
	}, nil
}

// readLockHolder reads the PID recorded in a run lock file.
func readLockHolder(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading run lock: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in %s: %w", path, err)
	}

	return pid, nil
}

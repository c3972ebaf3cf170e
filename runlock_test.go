package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRunLock_WritesCurrentPID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ledger.db.lock")

	release, err := acquireRunLock(path)
	require.NoError(t, err)
	defer release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquireRunLock_SecondAcquisitionFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ledger.db.lock")

	release, err := acquireRunLock(path)
	require.NoError(t, err)
	defer release()

	second, err := acquireRunLock(path)
	require.ErrorIs(t, err, errRunInProgress)
	assert.Nil(t, second)
	assert.Contains(t, err.Error(), "PID "+strconv.Itoa(os.Getpid()))
}

func TestAcquireRunLock_ReleaseRemovesFileAndAllowsReacquire(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "ledger.db.lock")

	release, err := acquireRunLock(path)
	require.NoError(t, err)
	release()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	again, err := acquireRunLock(path)
	require.NoError(t, err)
	again()
}

func TestAcquireRunLock_EmptyPath(t *testing.T) {
	t.Parallel()

	_, err := acquireRunLock("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestReadLockHolder_InvalidContent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "x.lock")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid\n"), 0o644))

	_, err := readLockHolder(path)
	assert.ErrorContains(t, err, "invalid PID")
}

func TestRunLockPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/var/lib/pl/ledger.db.lock", runLockPath("/var/lib/pl/ledger.db"))
	assert.True(t, strings.HasSuffix(runLockPath(""), "powerlogger-reconcile.lock"))
}

package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) (*Ledger, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	l, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	return l, path
}

func TestOpen_CreatesSchema(t *testing.T) {
	l, _ := openTestLedger(t)

	var n int
	require.NoError(t, l.db.QueryRow(`SELECT COUNT(*) FROM goose_db_version WHERE version_id > 0`).Scan(&n))
	assert.Positive(t, n, "migrations applied")
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	l, path := openTestLedger(t)

	require.NoError(t, l.BeginRun(ctx, "run-1", "soothill", "http://influx:8086", time.Unix(100, 0)))
	require.NoError(t, l.Close())

	again, err := Open(ctx, path, nil)
	require.NoError(t, err)
	defer again.Close()

	runs, err := again.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusRunning, runs[0].Status)
	assert.True(t, runs[0].FinishedAt.IsZero())
}

func TestOpen_PathWithURIMetacharacters(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "odd?dir#1", "100%", "ledger.db")

	l, err := Open(ctx, path, nil)
	require.NoError(t, err)
	defer l.Close()

	_, err = os.Stat(path)
	require.NoError(t, err, "database created at the literal path")

	var fk int
	require.NoError(t, l.db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)

	require.Error(t, l.RecordToken(ctx, "missing", "auth-1", "writer", "d", time.Now()))
}

func TestBuildDSN_EscapesPath(t *testing.T) {
	dsn, err := buildDSN("/var/lib/power?logger#x/ledger.db")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "file:/var/lib/power%3Flogger%23x/ledger.db?_pragma="), dsn)
	assert.Contains(t, dsn, "_pragma=foreign_keys(ON)")
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	l, _ := openTestLedger(t)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.BeginRun(ctx, "ok", "soothill", "http://h", start))
	require.NoError(t, l.FinishRun(ctx, "ok", Outcome{
		FinishedAt:     start.Add(3 * time.Second),
		BucketsCreated: 4,
		TasksCreated:   3,
	}))

	require.NoError(t, l.BeginRun(ctx, "bad", "soothill", "http://h", start.Add(time.Hour)))
	require.NoError(t, l.FinishRun(ctx, "bad", Outcome{
		FinishedAt:    start.Add(time.Hour + time.Second),
		FailedPhase:   "tasks",
		Err:           errors.New("invalid flux"),
		TasksReplaced: 1,
		TasksCreated:  1,
	}))

	runs, err := l.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Newest first.
	assert.Equal(t, "bad", runs[0].ID)
	assert.Equal(t, StatusFailed, runs[0].Status)
	assert.Equal(t, "tasks", runs[0].FailedPhase)
	assert.Equal(t, "invalid flux", runs[0].Error)
	assert.Equal(t, 1, runs[0].TasksReplaced)

	assert.Equal(t, "ok", runs[1].ID)
	assert.Equal(t, StatusSucceeded, runs[1].Status)
	assert.Equal(t, 4, runs[1].BucketsCreated)
	assert.Equal(t, 3, runs[1].TasksCreated)
	assert.Empty(t, runs[1].Error)
	assert.True(t, runs[1].StartedAt.Equal(start))
	assert.Equal(t, 3*time.Second, runs[1].FinishedAt.Sub(runs[1].StartedAt))

	limited, err := l.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestFinishRun_Unknown(t *testing.T) {
	l, _ := openTestLedger(t)

	err := l.FinishRun(context.Background(), "nope", Outcome{FinishedAt: time.Now()})
	require.ErrorIs(t, err, ErrUnknownRun)
}

func TestTokens(t *testing.T) {
	ctx := context.Background()
	l, _ := openTestLedger(t)
	now := time.Unix(1000, 0)

	require.NoError(t, l.BeginRun(ctx, "r1", "soothill", "h", now))
	require.NoError(t, l.RecordToken(ctx, "r1", "auth-1", "writer", "PowerLogger writer token", now))
	require.NoError(t, l.RecordToken(ctx, "r1", "auth-2", "reader", "PowerLogger reader token", now.Add(time.Second)))

	require.NoError(t, l.BeginRun(ctx, "r2", "soothill", "h", now.Add(time.Minute)))
	require.NoError(t, l.RecordToken(ctx, "r2", "auth-3", "writer", "PowerLogger writer token", now.Add(time.Minute)))

	tokens, err := l.ListTokens(ctx)
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	assert.Equal(t, "auth-3", tokens[0].ID)
	assert.Equal(t, "r2", tokens[0].RunID)
	assert.Equal(t, "soothill", tokens[0].Org)
	assert.Equal(t, "reader", tokens[1].Kind)

	earlier, err := l.CountEarlierTokens(ctx, "soothill", "h", "r2")
	require.NoError(t, err)
	assert.Equal(t, 2, earlier)

	earlier, err = l.CountEarlierTokens(ctx, "soothill", "h", "r-new")
	require.NoError(t, err)
	assert.Equal(t, 3, earlier)
}

func TestCountEarlierTokens_ScopedToOrgAndHost(t *testing.T) {
	ctx := context.Background()
	l, _ := openTestLedger(t)
	now := time.Unix(1000, 0)

	require.NoError(t, l.BeginRun(ctx, "home", "soothill", "http://home:8086", now))
	require.NoError(t, l.RecordToken(ctx, "home", "auth-1", "writer", "d", now))

	require.NoError(t, l.BeginRun(ctx, "lab", "lab", "http://home:8086", now))
	require.NoError(t, l.RecordToken(ctx, "lab", "auth-2", "writer", "d", now))
	require.NoError(t, l.RecordToken(ctx, "lab", "auth-3", "reader", "d", now))

	require.NoError(t, l.BeginRun(ctx, "cloud", "soothill", "https://cloud", now))
	require.NoError(t, l.RecordToken(ctx, "cloud", "auth-4", "writer", "d", now))

	n, err := l.CountEarlierTokens(ctx, "soothill", "http://home:8086", "new")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = l.CountEarlierTokens(ctx, "lab", "http://home:8086", "new")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = l.CountEarlierTokens(ctx, "other", "http://home:8086", "new")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecordToken_RequiresRun(t *testing.T) {
	l, _ := openTestLedger(t)

	err := l.RecordToken(context.Background(), "missing", "auth-1", "writer", "d", time.Now())
	require.Error(t, err, "foreign key enforced")
}

func TestRecordToken_RejectsUnknownKind(t *testing.T) {
	ctx := context.Background()
	l, _ := openTestLedger(t)

	require.NoError(t, l.BeginRun(ctx, "r1", "o", "h", time.Now()))
	require.Error(t, l.RecordToken(ctx, "r1", "auth-1", "admin", "d", time.Now()))
}

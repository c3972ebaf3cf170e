package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soothill/powerlogger/internal/ledger"
)

func seededLedger(t *testing.T) *ledger.Ledger {
	t.Helper()

	ctx := context.Background()

	l, err := ledger.Open(ctx, filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.BeginRun(ctx, "run-a", "soothill", "http://h", start))
	require.NoError(t, l.FinishRun(ctx, "run-a", ledger.Outcome{
		FinishedAt: start.Add(2 * time.Second), BucketsCreated: 4, TasksCreated: 3,
	}))
	require.NoError(t, l.RecordToken(ctx, "run-a", "auth-1", "writer", "PowerLogger writer token", start))

	require.NoError(t, l.BeginRun(ctx, "run-b", "soothill", "http://h", start.Add(time.Hour)))
	require.NoError(t, l.FinishRun(ctx, "run-b", ledger.Outcome{
		FinishedAt: start.Add(time.Hour + time.Second), FailedPhase: "tasks", Err: errors.New("bad flux"),
		TasksReplaced: 1, TasksCreated: 0,
	}))

	return l
}

func TestShowHistory_Runs(t *testing.T) {
	l := seededLedger(t)
	now := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, showHistory(context.Background(), &buf, l, 20, false, false, now))

	out := buf.String()
	assert.Contains(t, out, "RUN")
	assert.Contains(t, out, "run-a")
	assert.Contains(t, out, "failed (tasks)")
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "2s")
	assert.Contains(t, out, "1/0")
	assert.Less(t, indexOf(out, "run-b"), indexOf(out, "run-a"), "newest first")
}

func TestShowHistory_Limit(t *testing.T) {
	l := seededLedger(t)

	var buf bytes.Buffer
	require.NoError(t, showHistory(context.Background(), &buf, l, 1, false, false, time.Now()))
	assert.Contains(t, buf.String(), "run-b")
	assert.NotContains(t, buf.String(), "run-a")
}

func TestShowHistory_Tokens(t *testing.T) {
	l := seededLedger(t)

	var buf bytes.Buffer
	require.NoError(t, showHistory(context.Background(), &buf, l, 20, true, false, time.Now()))
	assert.Contains(t, buf.String(), "auth-1")
	assert.Contains(t, buf.String(), "writer")
	assert.Contains(t, buf.String(), "1 token(s) issued")
}

func TestShowHistory_JSON(t *testing.T) {
	l := seededLedger(t)

	var buf bytes.Buffer
	require.NoError(t, showHistory(context.Background(), &buf, l, 20, false, true, time.Now()))

	var runs []ledger.Run
	require.NoError(t, json.Unmarshal(buf.Bytes(), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, "bad flux", runs[0].Error)
}

func TestShowHistory_Empty(t *testing.T) {
	l, err := ledger.Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)
	defer l.Close()

	var buf bytes.Buffer
	require.NoError(t, showHistory(context.Background(), &buf, l, 20, false, false, time.Now()))
	assert.Equal(t, "No runs recorded.\n", buf.String())

	buf.Reset()
	require.NoError(t, showHistory(context.Background(), &buf, l, 20, true, true, time.Now()))
	assert.JSONEq(t, "[]", buf.String())
}

func TestHistoryCmd_RejectsBadLimit(t *testing.T) {
	isolateEnv(t)

	_, err := executeRoot(t, "history", "--limit", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--limit")
}

func indexOf(s, sub string) int {
	return bytes.Index([]byte(s), []byte(sub))
}

//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soothill/powerlogger/testutil"
)

var binaryPath string

func TestMain(m *testing.M) {
	root := testutil.FindModuleRoot("..")
	testutil.LoadDotEnv(filepath.Join(root, ".env"))
	testutil.ValidateAllowlist("INFLUX_ORG")

	if os.Getenv("INFLUX_HOST") == "" || os.Getenv("INFLUX_TOKEN") == "" {
		fmt.Fprintln(os.Stderr, "FATAL: INFLUX_HOST and INFLUX_TOKEN must be set")
		os.Exit(1)
	}

	tmpDir, err := os.MkdirTemp("", "powerlogger-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating temp dir: %v\n", err)
		os.Exit(1)
	}

	binaryPath = filepath.Join(tmpDir, "powerlogger")

	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	cmd.Dir = root
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "building binary: %v\n", err)
		os.RemoveAll(tmpDir)
		os.Exit(1)
	}

	code := m.Run()

	os.RemoveAll(tmpDir)
	os.Exit(code)
}

// runCLI runs the binary with bucket names unique to this test, an isolated
// config directory, and a private journal.
func runCLI(t *testing.T, env []string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	return stdout.String(), stderr.String(), err
}

func isolatedEnv(t *testing.T) []string {
	t.Helper()

	prefix := fmt.Sprintf("PowerLoggerE2E_%d", time.Now().UnixNano())

	return []string{
		"XDG_CONFIG_HOME=" + t.TempDir(),
		"XDG_DATA_HOME=" + t.TempDir(),
		"POWERLOGGER_BUCKET_RAW=" + prefix + "_raw",
		"POWERLOGGER_BUCKET_1M=" + prefix + "_1m",
		"POWERLOGGER_BUCKET_5M=" + prefix + "_5m",
		"POWERLOGGER_BUCKET_1H=" + prefix + "_1h",
	}
}

type runReport struct {
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	Buckets []struct {
		Name    string `json:"name"`
		ID      string `json:"id"`
		Created bool   `json:"created"`
	} `json:"buckets"`
	Tasks []struct {
		Name       string `json:"name"`
		ID         string `json:"id"`
		ReplacedID string `json:"replaced_id"`
	} `json:"tasks"`
	Tokens []struct {
		ID    string `json:"id"`
		Kind  string `json:"kind"`
		Token string `json:"token"`
	} `json:"tokens"`
}

func reconcileJSON(t *testing.T, env []string) runReport {
	t.Helper()

	stdout, stderr, err := runCLI(t, env, "--json", "reconcile")
	require.NoError(t, err, "stderr: %s", stderr)

	var report runReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report), stdout)

	return report
}

func TestE2E_ReconcileTwice(t *testing.T) {
	env := isolatedEnv(t)

	first := reconcileJSON(t, env)
	assert.Equal(t, "succeeded", first.Status)
	require.Len(t, first.Buckets, 4)

	for _, b := range first.Buckets {
		assert.True(t, b.Created, b.Name)
	}

	require.Len(t, first.Tokens, 2)

	second := reconcileJSON(t, env)
	assert.Equal(t, "succeeded", second.Status)

	for i, b := range second.Buckets {
		assert.False(t, b.Created, b.Name)
		assert.Equal(t, first.Buckets[i].ID, b.ID)
	}

	for i, task := range second.Tasks {
		assert.Equal(t, first.Tasks[i].ID, task.ReplacedID, task.Name)
		assert.NotEqual(t, first.Tasks[i].ID, task.ID)
	}

	for i, tok := range second.Tokens {
		assert.NotEqual(t, first.Tokens[i].ID, tok.ID)
		assert.NotEqual(t, first.Tokens[i].Token, tok.Token)
	}

	stdout, _, err := runCLI(t, env, "--json", "history", "--tokens")
	require.NoError(t, err)

	var issued []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &issued))
	assert.Len(t, issued, 4)
}

func TestE2E_RenderNeedsNoServer(t *testing.T) {
	env := append(isolatedEnv(t), "INFLUX_HOST=http://127.0.0.1:1")

	stdout, stderr, err := runCLI(t, env, "render")
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "aggregateWindow")
}

func TestE2E_BadTokenFailsInBucketPhase(t *testing.T) {
	env := append(isolatedEnv(t), "INFLUX_TOKEN=not-a-real-token")

	_, stderr, err := runCLI(t, env, "reconcile")
	require.Error(t, err)
	assert.Contains(t, stderr, "buckets phase failed")
}

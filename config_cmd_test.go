package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soothill/powerlogger/internal/config"
)

func TestConfigShow_RedactsToken(t *testing.T) {
	isolateEnv(t)
	t.Setenv(config.EnvToken, "very-secret-admin-token")
	t.Setenv(config.EnvOrg, "soothill")

	out, err := executeRoot(t, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "very-secret-admin-token")
	assert.Contains(t, out, `org        = "soothill"`)
	assert.Contains(t, out, "[redacted]")
}

func TestConfigShow_JSON(t *testing.T) {
	isolateEnv(t)
	t.Setenv(config.EnvToken, "very-secret-admin-token")
	t.Setenv(config.EnvBucketRaw, "Custom_raw")

	out, err := executeRoot(t, "--json", "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "very-secret-admin-token")

	var got effectiveConfigJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.False(t, got.ConfigFound)
	assert.Equal(t, config.TokenSourceEnv, got.TokenSource)
	require.NotNil(t, got.Settings)
	assert.Equal(t, "Custom_raw", got.Settings.BucketRaw)
	assert.NotEmpty(t, got.LedgerPath)
}

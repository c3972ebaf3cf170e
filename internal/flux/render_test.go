package flux

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soothill/powerlogger/internal/topology"
)

func oneMinuteTask() topology.DownsampleTask {
	return topology.DownsampleTask{
		Name:        "PowerLogger_downsample_1m",
		Org:         "soothill",
		Source:      "PowerLogger_raw",
		Dest:        "PowerLogger_1m",
		Measurement: "PowerPulse",
		Field:       "Pulse",
		Every:       time.Minute,
		Offset:      10 * time.Second,
		Lookback:    5 * time.Minute,
	}
}

func TestRender_OneMinuteTask(t *testing.T) {
	got, err := Render(oneMinuteTask())
	require.NoError(t, err)

	want := `option task = {name: "PowerLogger_downsample_1m", every: 1m, offset: 10s}

from(bucket: "PowerLogger_raw")
    |> range(start: -5m)
    |> filter(fn: (r) => r._measurement == "PowerPulse" and r._field == "Pulse")
    |> aggregateWindow(every: 1m, fn: sum, createEmpty: false)
    |> to(bucket: "PowerLogger_1m", org: "soothill")
`
	assert.Equal(t, want, got)
}

func TestRender_Deterministic(t *testing.T) {
	task := oneMinuteTask()

	first, err := Render(task)
	require.NoError(t, err)

	for range 10 {
		again, err := Render(task)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRender_WithoutOrgOmitsOrgArgument(t *testing.T) {
	task := oneMinuteTask()
	task.Org = ""

	got, err := Render(task)
	require.NoError(t, err)
	assert.Contains(t, got, `|> to(bucket: "PowerLogger_1m")`)
	assert.NotContains(t, got, "org:")
}

func TestRender_HourTaskDurations(t *testing.T) {
	task := oneMinuteTask()
	task.Name = "PowerLogger_downsample_1h"
	task.Source = "PowerLogger_5m"
	task.Dest = "PowerLogger_1h"
	task.Every = time.Hour
	task.Offset = 30 * time.Second
	task.Lookback = 3 * time.Hour

	got, err := Render(task)
	require.NoError(t, err)
	assert.Contains(t, got, "every: 1h, offset: 30s}")
	assert.Contains(t, got, "range(start: -3h)")
	assert.Contains(t, got, "aggregateWindow(every: 1h, fn: sum, createEmpty: false)")
}

func TestRender_RejectsShortLookback(t *testing.T) {
	task := oneMinuteTask()
	task.Lookback = time.Minute

	_, err := Render(task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookback")
}

func TestRender_EscapesIdentifiers(t *testing.T) {
	task := oneMinuteTask()
	task.Measurement = `Power"Pulse`
	task.Field = `a\b${x}`

	got, err := Render(task)
	require.NoError(t, err)
	assert.Contains(t, got, `r._measurement == "Power\"Pulse"`)
	assert.Contains(t, got, `r._field == "a\\b\${x}"`)
	assert.Equal(t, 1, strings.Count(got, "option task"))
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", `"plain"`},
		{"", `""`},
		{`a"b`, `"a\"b"`},
		{`a\b`, `"a\\b"`},
		{"cost $5", `"cost $5"`},
		{"${x}", `"\${x}"`},
		{"a\nb", `"a\nb"`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Quote(tt.in), "Quote(%q)", tt.in)
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{10 * time.Second, "10s"},
		{time.Minute, "1m"},
		{90 * time.Second, "1m30s"},
		{5 * time.Minute, "5m"},
		{3 * time.Hour, "3h"},
		{26*time.Hour + 15*time.Minute, "26h15m"},
		{1500 * time.Millisecond, "1s500ms"},
		{-time.Minute, "-1m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Duration(tt.in), "Duration(%s)", tt.in)
	}
}

// Package flux renders the downsampling task definitions submitted to the
// InfluxDB task engine. Rendering is a pure function of its input.
package flux

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/soothill/powerlogger/internal/topology"
)

// taskTemplate is the complete task program. Windows are summed so pulse
// counts stay additive across tiers; empty windows produce no rows.
var taskTemplate = template.Must(template.New("task").Parse(
	`option task = {name: {{.Name}}, every: {{.Every}}, offset: {{.Offset}}}

from(bucket: {{.Source}})
    |> range(start: -{{.Lookback}})
    |> filter(fn: (r) => r._measurement == {{.Measurement}} and r._field == {{.Field}})
    |> aggregateWindow(every: {{.Every}}, fn: sum, createEmpty: false)
    |> to(bucket: {{.Dest}}{{if .Org}}, org: {{.Org}}{{end}})
`))

// templateData holds pre-quoted literals so the template never emits raw
// user input.
type templateData struct {
	Name        string
	Org         string
	Source      string
	Dest        string
	Measurement string
	Field       string
	Every       string
	Offset      string
	Lookback    string
}

// Render returns the Flux task program for t. The same input always yields
// byte-identical output.
func Render(t topology.DownsampleTask) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("flux: invalid task: %w", err)
	}

	data := templateData{
		Name:        Quote(t.Name),
		Source:      Quote(t.Source),
		Dest:        Quote(t.Dest),
		Measurement: Quote(t.Measurement),
		Field:       Quote(t.Field),
		Every:       Duration(t.Every),
		Offset:      Duration(t.Offset),
		Lookback:    Duration(t.Lookback),
	}

	if t.Org != "" {
		data.Org = Quote(t.Org)
	}

	var buf bytes.Buffer
	if err := taskTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("flux: rendering task %q: %w", t.Name, err)
	}

	return buf.String(), nil
}

// Quote returns s as a Flux string literal. Backslash, double quote and the
// "${" interpolation opener are escaped.
func Quote(s string) string {
	var b strings.Builder

	b.Grow(len(s) + 2)
	b.WriteByte('"')

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch {
		case c == '\\' || c == '"':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '$' && i+1 < len(s) && s[i+1] == '{':
			b.WriteString(`\$`)
		case c == '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte(c)
		}
	}

	b.WriteByte('"')

	return b.String()
}

// durationUnits are the Flux duration units used for rendering, largest first.
var durationUnits = []struct {
	suffix string
	size   time.Duration
}{
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
	{"ms", time.Millisecond},
}

// Duration formats d as a compact Flux duration literal such as "1h30m" or
// "10s". Sub-millisecond precision is dropped; zero renders as "0s".
func Duration(d time.Duration) string {
	if d < 0 {
		return "-" + Duration(-d)
	}

	var b strings.Builder

	for _, u := range durationUnits {
		if n := d / u.size; n > 0 {
			b.WriteString(strconv.FormatInt(int64(n), 10))
			b.WriteString(u.suffix)

			d -= n * u.size
		}
	}

	if b.Len() == 0 {
		return "0s"
	}

	return b.String()
}

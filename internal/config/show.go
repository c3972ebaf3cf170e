package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as annotated TOML to w.
// This powers "config show", giving operators visibility into the effective
// values after all four override layers have been applied. The admin token
// is never printed.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	if r.ConfigFound {
		ew.printf("# Effective configuration (file: %s)\n\n", r.ConfigPath)
	} else {
		ew.printf("# Effective configuration (no file at %s; defaults)\n\n", r.ConfigPath)
	}

	renderConnectionSection(ew, r)
	renderBucketsSection(ew, r.Config)
	renderTasksSection(ew, r.Config)

	ew.printf("# logging\n")
	ew.printf("log_level       = %q\n", r.Config.LogLevel)
	ew.printf("log_format      = %q\n\n", r.Config.LogFormat)

	ew.printf("# network\n")
	ew.printf("request_timeout = %q\n\n", r.RequestTimeout.String())

	ew.printf("# ledger\n")
	ew.printf("ledger_path     = %q\n", r.LedgerPath)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderConnectionSection(ew *errWriter, r *Resolved) {
	ew.printf("# connection\n")
	ew.printf("host       = %q\n", r.Connection.Host)
	ew.printf("org        = %q\n", r.Connection.Org)
	ew.printf("token_file = %q\n", r.Config.TokenFile)

	switch r.TokenSource {
	case TokenSourceEnv:
		ew.printf("# token: %s (from %s)\n", redacted, EnvToken)
	case TokenSourceFile:
		ew.printf("# token: %s (from token_file)\n", redacted)
	default:
		ew.printf("# token: not set\n")
	}

	ew.printf("\n")
}

func renderBucketsSection(ew *errWriter, c *Config) {
	ew.printf("# buckets\n")
	ew.printf("bucket_raw    = %q\n", c.BucketRaw)
	ew.printf("bucket_1m     = %q\n", c.Bucket1m)
	ew.printf("bucket_5m     = %q\n", c.Bucket5m)
	ew.printf("bucket_1h     = %q\n", c.Bucket1h)
	ew.printf("retention_raw = %q\n", c.RetentionRaw)
	ew.printf("retention_1m  = %q\n", c.Retention1m)
	ew.printf("retention_5m  = %q\n", c.Retention5m)
	ew.printf("retention_1h  = %q\n\n", c.Retention1h)
}

func renderTasksSection(ew *errWriter, c *Config) {
	ew.printf("# tasks\n")
	ew.printf("measurement = %q\n", c.Measurement)
	ew.printf("field       = %q\n", c.Field)
	ew.printf("task_prefix = %q\n", c.TaskPrefix)
	ew.printf("offset_1m   = %q\n", c.Offset1m)
	ew.printf("offset_5m   = %q\n", c.Offset5m)
	ew.printf("offset_1h   = %q\n", c.Offset1h)
	ew.printf("lookback_1m = %q\n", c.Lookback1m)
	ew.printf("lookback_5m = %q\n", c.Lookback5m)
	ew.printf("lookback_1h = %q\n\n", c.Lookback1h)
}

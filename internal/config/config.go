// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for powerlogger. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags) and
// turns the result into the connection settings and the declared topology.
package config

// Config is the configuration parsed from a TOML file. All keys are flat
// top-level keys; the embedded sections only group them in code.
type Config struct {
	ConnectionConfig
	BucketsConfig
	TasksConfig
	LoggingConfig
	NetworkConfig
	LedgerConfig
}

// ConnectionConfig locates the InfluxDB server and the admin credential.
// The token itself is never stored in the config file; it comes from
// INFLUX_TOKEN or from the file named by token_file.
type ConnectionConfig struct {
	Host      string `toml:"host"`
	Org       string `toml:"org"`
	TokenFile string `toml:"token_file"`
}

// BucketsConfig names the four buckets and their retention. Retention is
// applied only when a bucket is created.
type BucketsConfig struct {
	BucketRaw    string `toml:"bucket_raw"`
	Bucket1m     string `toml:"bucket_1m"`
	Bucket5m     string `toml:"bucket_5m"`
	Bucket1h     string `toml:"bucket_1h"`
	RetentionRaw string `toml:"retention_raw"`
	Retention1m  string `toml:"retention_1m"`
	Retention5m  string `toml:"retention_5m"`
	Retention1h  string `toml:"retention_1h"`
}

// TasksConfig parameterizes the three downsampling tasks.
type TasksConfig struct {
	Measurement string `toml:"measurement"`
	Field       string `toml:"field"`
	TaskPrefix  string `toml:"task_prefix"`
	Offset1m    string `toml:"offset_1m"`
	Offset5m    string `toml:"offset_5m"`
	Offset1h    string `toml:"offset_1h"`
	Lookback1m  string `toml:"lookback_1m"`
	Lookback5m  string `toml:"lookback_5m"`
	Lookback1h  string `toml:"lookback_1h"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// NetworkConfig controls the admin API HTTP client.
type NetworkConfig struct {
	RequestTimeout string `toml:"request_timeout"`
}

// LedgerConfig locates the local run journal.
type LedgerConfig struct {
	LedgerPath string `toml:"ledger_path"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to the empty string".
type CLIOverrides struct {
	ConfigPath string  // --config flag (empty = use default)
	Host       *string // --host flag
	Org        *string // --org flag
}

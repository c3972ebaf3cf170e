package config

// Default values for configuration options. These are "layer 0" of the
// four-layer override chain and reproduce the stock PowerLogger topology.
const (
	defaultBucketRaw      = "PowerLogger_raw"
	defaultBucket1m       = "PowerLogger_1m"
	defaultBucket5m       = "PowerLogger_5m"
	defaultBucket1h       = "PowerLogger_1h"
	defaultRetentionRaw   = "30d"
	defaultRetention1m    = "180d"
	defaultRetention5m    = "730d"
	defaultRetention1h    = "0"
	defaultMeasurement    = "PowerPulse"
	defaultField          = "Pulse"
	defaultTaskPrefix     = "PowerLogger_downsample"
	defaultOffset1m       = "10s"
	defaultOffset5m       = "20s"
	defaultOffset1h       = "30s"
	defaultLookback1m     = "5m"
	defaultLookback5m     = "15m"
	defaultLookback1h     = "3h"
	defaultLogLevel       = "info"
	defaultLogFormat      = "auto"
	defaultRequestTimeout = "30s"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		BucketsConfig: BucketsConfig{
			BucketRaw:    defaultBucketRaw,
			Bucket1m:     defaultBucket1m,
			Bucket5m:     defaultBucket5m,
			Bucket1h:     defaultBucket1h,
			RetentionRaw: defaultRetentionRaw,
			Retention1m:  defaultRetention1m,
			Retention5m:  defaultRetention5m,
			Retention1h:  defaultRetention1h,
		},
		TasksConfig: TasksConfig{
			Measurement: defaultMeasurement,
			Field:       defaultField,
			TaskPrefix:  defaultTaskPrefix,
			Offset1m:    defaultOffset1m,
			Offset5m:    defaultOffset5m,
			Offset1h:    defaultOffset1h,
			Lookback1m:  defaultLookback1m,
			Lookback5m:  defaultLookback5m,
			Lookback1h:  defaultLookback1h,
		},
		LoggingConfig: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		NetworkConfig: NetworkConfig{
			RequestTimeout: defaultRequestTimeout,
		},
	}
}

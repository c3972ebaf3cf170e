package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig      = "POWERLOGGER_CONFIG"
	EnvHost        = "INFLUX_HOST"
	EnvOrg         = "INFLUX_ORG"
	EnvToken       = "INFLUX_TOKEN" //nolint:gosec // G101: variable name, not a credential
	EnvBucketRaw   = "POWERLOGGER_BUCKET_RAW"
	EnvBucket1m    = "POWERLOGGER_BUCKET_1M"
	EnvBucket5m    = "POWERLOGGER_BUCKET_5M"
	EnvBucket1h    = "POWERLOGGER_BUCKET_1H"
	EnvMeasurement = "POWERLOGGER_MEASUREMENT"
)

// EnvOverrides holds values derived from environment variables. This is the
// only place the process environment is read for configuration.
type EnvOverrides struct {
	ConfigPath  string
	Host        string
	Org         string
	Token       string
	BucketRaw   string
	Bucket1m    string
	Bucket5m    string
	Bucket1h    string
	Measurement string
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:  os.Getenv(EnvConfig),
		Host:        os.Getenv(EnvHost),
		Org:         os.Getenv(EnvOrg),
		Token:       os.Getenv(EnvToken),
		BucketRaw:   os.Getenv(EnvBucketRaw),
		Bucket1m:    os.Getenv(EnvBucket1m),
		Bucket5m:    os.Getenv(EnvBucket5m),
		Bucket1h:    os.Getenv(EnvBucket1h),
		Measurement: os.Getenv(EnvMeasurement),
	}
}

// apply copies every non-empty override onto cfg.
func (e EnvOverrides) apply(cfg *Config) {
	setIf := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	setIf(&cfg.Host, e.Host)
	setIf(&cfg.Org, e.Org)
	setIf(&cfg.BucketRaw, e.BucketRaw)
	setIf(&cfg.Bucket1m, e.Bucket1m)
	setIf(&cfg.Bucket5m, e.Bucket5m)
	setIf(&cfg.Bucket1h, e.Bucket1h)
	setIf(&cfg.Measurement, e.Measurement)
}

package config

import (
	"errors"
	"fmt"
	"time"
)

const minRequestTimeout = time.Second

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateTopology(cfg)...)
	errs = append(errs, validateLogging(&cfg.LoggingConfig)...)
	errs = append(errs, validateNetwork(&cfg.NetworkConfig)...)

	if cfg.TaskPrefix == "" {
		errs = append(errs, errors.New("task_prefix: must not be empty"))
	}

	return errors.Join(errs...)
}

func validateTopology(cfg *Config) []error {
	desired, err := cfg.Topology()
	if err != nil {
		return []error{err}
	}

	if err := desired.Validate(); err != nil {
		return []error{err}
	}

	return nil
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", l.LogLevel))
	}

	if !validLogFormats[l.LogFormat] {
		errs = append(errs, fmt.Errorf("log_format: must be one of auto, text, json; got %q", l.LogFormat))
	}

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	d, err := ParseDuration(n.RequestTimeout)
	if err != nil {
		return []error{fmt.Errorf("request_timeout: %w", err)}
	}

	if d < minRequestTimeout {
		return []error{fmt.Errorf("request_timeout: must be >= %s, got %s", minRequestTimeout, d)}
	}

	return nil
}

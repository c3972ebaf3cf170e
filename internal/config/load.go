package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/soothill/powerlogger/internal/tokenfile"
	"github.com/soothill/powerlogger/internal/topology"
)

// Token sources reported by Resolved.TokenSource.
const (
	TokenSourceEnv  = "env"
	TokenSourceFile = "file"
)

// Resolved is the effective configuration after all four layers, split into
// what each component consumes.
type Resolved struct {
	Config         *Config
	ConfigPath     string
	ConfigFound    bool
	Connection     Connection
	TokenSource    string
	Desired        *topology.Desired
	RequestTimeout time.Duration
	LedgerPath     string
	// Warnings are problems worth telling the operator that do not stop a run.
	Warnings []string
}

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors with "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values, so a first run needs nothing
// but environment variables. The bool reports whether the file existed.
func LoadOrDefault(path string) (*Config, bool, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), false, nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, true, err
	}

	return cfg, true, nil
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
// The connection is not checked here; commands that talk to the server
// call Connection.Validate.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	// 1. Config path: CLI > env > default
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	// 2. Config file (defaults if no file exists)
	cfg, found, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	// 3. Environment, then CLI flags (nil = not specified)
	env.apply(cfg)

	if cli.Host != nil {
		cfg.Host = *cli.Host
	}

	if cli.Org != nil {
		cfg.Org = *cli.Org
	}

	// 4. Validate the merged result; env may have renamed a bucket into a
	// collision the file alone did not have.
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	desired, err := cfg.Topology()
	if err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	timeout, err := ParseDuration(cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("request_timeout: %w", err)
	}

	r := &Resolved{
		Config:         cfg,
		ConfigPath:     cfgPath,
		ConfigFound:    found,
		Desired:        desired,
		RequestTimeout: timeout,
		LedgerPath:     expandTilde(cfg.LedgerPath),
		Connection: Connection{
			Host: strings.TrimRight(cfg.Host, "/"),
			Org:  cfg.Org,
		},
	}

	if r.LedgerPath == "" {
		r.LedgerPath = DefaultLedgerPath()
	}

	if err := r.resolveToken(env.Token, expandTilde(cfg.TokenFile)); err != nil {
		return nil, err
	}

	return r, nil
}

// resolveToken picks the admin token: INFLUX_TOKEN wins over token_file.
func (r *Resolved) resolveToken(envToken, path string) error {
	if envToken != "" {
		r.Connection.Token = envToken
		r.TokenSource = TokenSourceEnv

		return nil
	}

	if path == "" {
		return nil
	}

	res, err := tokenfile.Load(path)
	if err != nil {
		return fmt.Errorf("token_file: %w", err)
	}

	r.Connection.Token = res.Token
	r.TokenSource = TokenSourceFile

	if res.Insecure {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"token file %s has mode %04o; restrict it to %04o", path, uint32(res.Mode), tokenfile.FilePerms))
	}

	return nil
}

// expandTilde replaces a leading "~/" with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[2:])
}

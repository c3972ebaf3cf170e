// Package testutil provides shared environment helpers for the E2E tests,
// which drive the built binary against a live InfluxDB. It depends only on
// stdlib so that E2E tests (which cannot import internal/) can use it.
package testutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AllowedOrgsEnv lists the organizations E2E tests may provision into.
const AllowedOrgsEnv = "POWERLOGGER_ALLOWED_TEST_ORGS"

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly).
// Existing env vars take precedence over .env values.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"'")

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// ValidateAllowlist crashes the process unless the organization named by
// orgEnvVar is listed in POWERLOGGER_ALLOWED_TEST_ORGS. Reconcile creates
// buckets and mints tokens, so it must never run against a production org
// by accident.
func ValidateAllowlist(orgEnvVar string) {
	allowlist := os.Getenv(AllowedOrgsEnv)
	if allowlist == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", AllowedOrgsEnv)
		fmt.Fprintln(os.Stderr, "Set it in .env or as an environment variable.")
		fmt.Fprintf(os.Stderr, "Example: %s=powerlogger-e2e\n", AllowedOrgsEnv)
		os.Exit(1)
	}

	org := os.Getenv(orgEnvVar)
	if org == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", orgEnvVar)
		os.Exit(1)
	}

	for _, a := range strings.Split(allowlist, ",") {
		if strings.TrimSpace(a) == org {
			return
		}
	}

	fmt.Fprintf(os.Stderr, "FATAL: %s=%q is not in %s=%q\n", orgEnvVar, org, AllowedOrgsEnv, allowlist)
	os.Exit(1)
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}

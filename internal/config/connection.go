package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrIncompleteConnection is returned when host, org, or token is missing.
var ErrIncompleteConnection = errors.New("config: incomplete connection settings")

// redacted replaces secrets in every rendering.
const redacted = "[redacted]"

// Connection is everything needed to talk to the InfluxDB admin API. It is
// built once by Resolve and passed by value.
type Connection struct {
	Host  string
	Org   string
	Token string
}

// Validate reports every missing field at once.
func (c Connection) Validate() error {
	var missing []string

	if c.Host == "" {
		missing = append(missing, "host (set host, "+EnvHost+" or --host)")
	}

	if c.Org == "" {
		missing = append(missing, "org (set org, "+EnvOrg+" or --org)")
	}

	if c.Token == "" {
		missing = append(missing, "token (set "+EnvToken+" or token_file)")
	}

	if len(missing) == 0 {
		return nil
	}

	return fmt.Errorf("%w: missing %s", ErrIncompleteConnection, strings.Join(missing, ", "))
}

func (c Connection) String() string {
	return fmt.Sprintf("host=%s org=%s token=%s", c.Host, c.Org, c.redactedToken())
}

// LogValue keeps the token out of structured logs.
func (c Connection) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("host", c.Host),
		slog.String("org", c.Org),
		slog.String("token", c.redactedToken()),
	)
}

func (c Connection) redactedToken() string {
	if c.Token == "" {
		return ""
	}

	return redacted
}

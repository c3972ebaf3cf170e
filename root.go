package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/soothill/powerlogger/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagHost       string
	flagOrg        string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// CLIFlags is a snapshot of the persistent flags for one invocation.
type CLIFlags struct {
	JSON    bool
	Verbose bool
	Quiet   bool
}

// CLIContext carries everything a subcommand needs. Built once in
// PersistentPreRunE and stored in the command's context.
type CLIContext struct {
	Flags  CLIFlags
	Cfg    *config.Resolved
	Logger *slog.Logger
	Out    io.Writer
	Err    io.Writer
}

type cliContextKey struct{}

// mustCLIContext returns the CLIContext stored by the root pre-run. A
// missing context is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("CLIContext not initialized: command ran without root PersistentPreRunE")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "powerlogger",
		Short: "PowerLogger InfluxDB provisioning",
		Long: "Provisions the PowerLogger time-series store: four retention-tiered buckets,\n" +
			"the downsampling task chain between them, and scoped writer/reader tokens.",
		Version: version,
		// Errors are printed once by main, not by cobra.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := loadCLIContext(cmd)
			if err != nil {
				return err
			}

			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagHost, "host", "", "InfluxDB URL (overrides host and "+config.EnvHost+")")
	cmd.PersistentFlags().StringVar(&flagOrg, "org", "", "organization (overrides org and "+config.EnvOrg+")")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "only log errors")

	cmd.AddCommand(newReconcileCmd())
	cmd.AddCommand(newRenderCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadCLIContext resolves the effective configuration from the four-layer
// override chain and builds the logger from it.
func loadCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	cli := config.CLIOverrides{ConfigPath: flagConfigPath}

	// Only explicitly set flags override; an empty --host= is still an override.
	if cmd.Flags().Changed("host") {
		cli.Host = &flagHost
	}

	if cmd.Flags().Changed("org") {
		cli.Org = &flagOrg
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	flags := CLIFlags{JSON: flagJSON, Verbose: flagVerbose, Quiet: flagQuiet}
	logger := buildLogger(resolved, flags)

	for _, w := range resolved.Warnings {
		logger.Warn(w)
	}

	logger.Debug("configuration resolved",
		slog.String("config_path", resolved.ConfigPath),
		slog.Bool("config_found", resolved.ConfigFound),
		slog.Any("connection", resolved.Connection),
	)

	return &CLIContext{
		Flags:  flags,
		Cfg:    resolved,
		Logger: logger,
		Out:    cmd.OutOrStdout(),
		Err:    cmd.ErrOrStderr(),
	}, nil
}

// buildLogger creates the process logger on stderr. Config-file log level
// provides the baseline; --verbose and --quiet override it because CLI flags
// always win.
func buildLogger(resolved *config.Resolved, flags CLIFlags) *slog.Logger {
	level, format := "info", "auto"
	if resolved != nil {
		level, format = resolved.Config.LogLevel, resolved.Config.LogFormat
	}

	if flags.Verbose {
		level = "debug"
	}

	if flags.Quiet {
		level = "error"
	}

	fd := os.Stderr.Fd()
	terminal := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)

	return newLogger(os.Stderr, level, format, terminal)
}

// newLogger returns a text logger for terminals and a JSON logger otherwise,
// unless format pins one.
func newLogger(w io.Writer, level, format string, terminal bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	useJSON := format == "json" || (format == "auto" && !terminal)
	if useJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// stdoutIsTerminal reports whether stdout is an interactive terminal.
func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

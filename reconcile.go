package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/soothill/powerlogger/internal/config"
	"github.com/soothill/powerlogger/internal/influx"
	"github.com/soothill/powerlogger/internal/reconcile"
	"github.com/soothill/powerlogger/internal/topology"
)

var (
	flagScratchDir string
	flagTokenLabel string
)

func newReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Create missing buckets, replace the downsampling tasks, and mint tokens",
		Long: `Brings the InfluxDB organization to the declared PowerLogger topology.

Buckets are created when missing and otherwise left alone (retention is only
applied at creation). Each downsampling task is deleted and recreated from the
current definition. Every successful run mints a NEW writer and reader token;
earlier tokens stay valid until revoked. The new secrets are printed once.`,
		Args: cobra.NoArgs,
		RunE: runReconcileCmd,
	}

	cmd.Flags().StringVar(&flagScratchDir, "scratch-dir", "", "parent for the per-run scratch directory (default: system temp)")
	cmd.Flags().StringVar(&flagTokenLabel, "token-label", "PowerLogger", "prefix for token descriptions")

	return cmd
}

func runReconcileCmd(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	conn := cc.Cfg.Connection
	if err := conn.Validate(); err != nil {
		return err
	}

	release, err := acquireRunLock(runLockPath(cc.Cfg.LedgerPath))
	if err != nil {
		return err
	}
	defer release()

	ctx, stop := shutdownContext(cmd.Context(), cc.Logger)
	defer stop()

	admin := influx.NewAdmin(conn.Host, conn.Org, conn.Token, influx.Options{
		Timeout: cc.Cfg.RequestTimeout,
	}, cc.Logger)
	defer admin.Close()

	journal := openJournal(ctx, cc.Cfg.LedgerPath, cc.Logger)
	defer journal.Close()

	opts := reconcile.RunnerOptions{
		ScratchParent: flagScratchDir,
		TokenLabel:    flagTokenLabel,
	}

	return runReconcile(ctx, cc, admin, journal, opts, stdoutIsTerminal())
}

// runReconcile runs one reconciliation against api and reports it. Minted
// secrets are printed even when a later step failed.
func runReconcile(
	ctx context.Context, cc *CLIContext, api reconcile.AdminAPI,
	journal *runJournal, opts reconcile.RunnerOptions, terminal bool,
) error {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	org, host := cc.Cfg.Desired.Org, cc.Cfg.Connection.Host
	journal.begin(ctx, opts.RunID, org, host, time.Now())

	report, runErr := reconcile.NewRunner(api, cc.Cfg.Desired, opts, cc.Logger).Run(ctx)

	// The run is recorded even when a signal canceled it.
	after := context.WithoutCancel(ctx)
	journal.finish(after, report)
	earlier, known := journal.earlierTokens(after, org, host, report.RunID)

	if cc.Flags.JSON {
		if err := writeReportJSON(cc.Out, report, earlier, known); err != nil {
			return err
		}
	} else {
		printSummary(cc.Out, report)
		printSecrets(cc.Out, report.Tokens, terminal)
	}

	if len(report.Tokens) > 0 {
		cc.Statusf("\nWarning: every run mints new tokens; tokens from earlier runs remain valid until revoked.\n")

		if known && earlier > 0 {
			cc.Statusf("The run journal lists %d token(s) issued by earlier runs for org %q on %s; see 'powerlogger history --tokens'.\n",
				earlier, org, host)
		}
	}

	return runErr
}

// printSummary writes one row per resource the run touched.
func printSummary(w io.Writer, report *reconcile.Report) {
	var rows [][]string

	for _, b := range report.Buckets {
		action := "exists"

		switch {
		case b.Created:
			action = "created"
		case b.RetentionDrift:
			action = fmt.Sprintf("exists (retention %s, declared %s)",
				config.FormatRetention(time.Duration(b.ActualRetention)*time.Second),
				config.FormatRetention(time.Duration(b.DeclaredRetention)*time.Second))
		}

		rows = append(rows, []string{"bucket", b.Name, action, b.ID})
	}

	for _, t := range report.Tasks {
		action := "created"
		if t.Replaced() {
			action = "replaced " + t.ReplacedID
		}

		if t.ID == "" {
			action = "deleted " + t.ReplacedID + ", not recreated"
		}

		rows = append(rows, []string{"task", t.Name, action, t.ID})
	}

	for _, tok := range report.Tokens {
		rows = append(rows, []string{"token", string(tok.Kind), "issued", tok.ID})
	}

	if len(rows) > 0 {
		printTable(w, []string{"RESOURCE", "NAME", "ACTION", "ID"}, rows)
	}

	if report.Succeeded() {
		fmt.Fprintf(w, "\nRun %s succeeded in %s.\n", report.RunID, formatElapsed(report.Started, report.Finished))
	} else {
		fmt.Fprintf(w, "\nRun %s failed in the %s phase.\n", report.RunID, report.FailedPhase)
	}
}

// secretEnvNames maps credential kinds to the variable names the pulse
// writer and the dashboard read them from.
var secretEnvNames = map[topology.TokenKind]string{
	topology.TokenWriter: "POWERLOGGER_WRITER_TOKEN",
	topology.TokenReader: "POWERLOGGER_READER_TOKEN",
}

// printSecrets prints each minted secret exactly once as NAME=secret, under
// a banner when a person is watching.
func printSecrets(w io.Writer, tokens []topology.AccessToken, terminal bool) {
	if len(tokens) == 0 {
		return
	}

	const rule = "================================================================"

	if terminal {
		fmt.Fprintf(w, "\n%s\n  NEW TOKENS: shown once, store them now\n%s\n", rule, rule)
	} else {
		fmt.Fprintln(w)
	}

	for _, tok := range tokens {
		if tok.Secret == "" {
			fmt.Fprintf(w, "# %s token %s was issued without a secret; revoke it\n", tok.Kind, tok.ID)

			continue
		}

		fmt.Fprintf(w, "%s=%s\n", secretEnvNames[tok.Kind], tok.Secret)
	}

	if terminal {
		fmt.Fprintln(w, rule)
	}
}

type reportJSON struct {
	RunID         string       `json:"run_id"`
	Org           string       `json:"org"`
	Status        string       `json:"status"`
	FailedPhase   string       `json:"failed_phase,omitempty"`
	Error         string       `json:"error,omitempty"`
	Started       time.Time    `json:"started"`
	Finished      time.Time    `json:"finished"`
	Buckets       []bucketJSON `json:"buckets"`
	Tasks         []taskJSON   `json:"tasks"`
	Tokens        []tokenJSON  `json:"tokens"`
	EarlierTokens *int         `json:"earlier_tokens,omitempty"`
}

type bucketJSON struct {
	Name              string `json:"name"`
	ID                string `json:"id"`
	Created           bool   `json:"created"`
	RetentionSeconds  int64  `json:"retention_seconds"`
	DeclaredRetention int64  `json:"declared_retention_seconds"`
}

type taskJSON struct {
	Name       string `json:"name"`
	ID         string `json:"id,omitempty"`
	ReplacedID string `json:"replaced_id,omitempty"`
}

type tokenJSON struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Token       string `json:"token"`
}

func writeReportJSON(w io.Writer, report *reconcile.Report, earlier int, known bool) error {
	out := reportJSON{
		RunID:       report.RunID,
		Org:         report.Org,
		Status:      "succeeded",
		FailedPhase: string(report.FailedPhase),
		Started:     report.Started,
		Finished:    report.Finished,
		Buckets:     []bucketJSON{},
		Tasks:       []taskJSON{},
		Tokens:      []tokenJSON{},
	}

	if report.Err != nil {
		out.Status = "failed"
		out.Error = report.Err.Error()
	}

	if known {
		out.EarlierTokens = &earlier
	}

	for _, b := range report.Buckets {
		retention := b.DeclaredRetention
		if !b.Created {
			retention = b.ActualRetention
		}

		out.Buckets = append(out.Buckets, bucketJSON{
			Name: b.Name, ID: b.ID, Created: b.Created,
			RetentionSeconds: retention, DeclaredRetention: b.DeclaredRetention,
		})
	}

	for _, t := range report.Tasks {
		out.Tasks = append(out.Tasks, taskJSON{Name: t.Name, ID: t.ID, ReplacedID: t.ReplacedID})
	}

	for _, tok := range report.Tokens {
		out.Tokens = append(out.Tokens, tokenJSON{
			ID: tok.ID, Kind: string(tok.Kind), Description: tok.Description, Token: tok.Secret,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	return nil
}

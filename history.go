package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/soothill/powerlogger/internal/ledger"
)

const defaultHistoryLimit = 20

var (
	flagHistoryLimit  int
	flagHistoryTokens bool
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past reconciliation runs and the tokens they issued",
		Long: `Lists recent runs from the local run journal. With --tokens, lists the id
of every token past runs issued, so stale ones can be revoked. Secrets are
never stored.`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", defaultHistoryLimit, "maximum number of runs to list")
	cmd.Flags().BoolVar(&flagHistoryTokens, "tokens", false, "list issued tokens instead of runs")

	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if flagHistoryLimit < 1 {
		return fmt.Errorf("--limit must be at least 1, got %d", flagHistoryLimit)
	}

	l, err := ledger.Open(cmd.Context(), cc.Cfg.LedgerPath, cc.Logger)
	if err != nil {
		return err
	}
	defer l.Close()

	return showHistory(cmd.Context(), cc.Out, l, flagHistoryLimit, flagHistoryTokens, cc.Flags.JSON, time.Now())
}

func showHistory(
	ctx context.Context, w io.Writer, l *ledger.Ledger, limit int, tokens, asJSON bool, now time.Time,
) error {
	if tokens {
		list, err := l.ListTokens(ctx)
		if err != nil {
			return err
		}

		if asJSON {
			return writeJSON(w, nonNil(list))
		}

		printTokens(w, list, now)

		return nil
	}

	runs, err := l.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	if asJSON {
		return writeJSON(w, nonNil(runs))
	}

	printRuns(w, runs, now)

	return nil
}

func printRuns(w io.Writer, runs []ledger.Run, now time.Time) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")

		return
	}

	rows := make([][]string, 0, len(runs))

	for i := range runs {
		r := &runs[i]

		status := r.Status
		if r.FailedPhase != "" {
			status += " (" + r.FailedPhase + ")"
		}

		rows = append(rows, []string{
			r.ID,
			formatTime(r.StartedAt, now),
			formatElapsed(r.StartedAt, r.FinishedAt),
			r.Org,
			status,
			strconv.Itoa(r.BucketsCreated),
			fmt.Sprintf("%d/%d", r.TasksReplaced, r.TasksCreated),
		})
	}

	printTable(w, []string{"RUN", "STARTED", "TOOK", "ORG", "STATUS", "BUCKETS", "TASKS REPL/NEW"}, rows)
}

func printTokens(w io.Writer, tokens []ledger.IssuedToken, now time.Time) {
	if len(tokens) == 0 {
		fmt.Fprintln(w, "No tokens recorded.")

		return
	}

	rows := make([][]string, 0, len(tokens))
	for _, t := range tokens {
		rows = append(rows, []string{t.ID, t.Kind, t.Org, formatTime(t.IssuedAt, now), t.RunID})
	}

	printTable(w, []string{"TOKEN ID", "KIND", "ORG", "ISSUED", "RUN"}, rows)
	fmt.Fprintf(w, "\n%d token(s) issued. Revoke unused ones with: influx auth delete --id <TOKEN ID>\n", len(tokens))
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}

	return s
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}

	return nil
}

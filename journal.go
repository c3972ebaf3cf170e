package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/soothill/powerlogger/internal/ledger"
	"github.com/soothill/powerlogger/internal/reconcile"
)

// runJournal records runs in the ledger. Every method is a no-op when the
// ledger could not be opened, and failures are logged, never returned: the
// journal must not change a run's outcome.
type runJournal struct {
	l      *ledger.Ledger
	logger *slog.Logger
}

func openJournal(ctx context.Context, path string, logger *slog.Logger) *runJournal {
	j := &runJournal{logger: logger}

	if path == "" {
		logger.Warn("no ledger path; this run will not be journaled")

		return j
	}

	l, err := ledger.Open(ctx, path, logger)
	if err != nil {
		logger.Warn("cannot open run journal; this run will not be journaled",
			slog.String("path", path), slog.String("error", err.Error()))

		return j
	}

	j.l = l

	return j
}

func (j *runJournal) begin(ctx context.Context, runID, org, host string, startedAt time.Time) {
	if j.l == nil {
		return
	}

	if err := j.l.BeginRun(ctx, runID, org, host, startedAt); err != nil {
		j.logger.Warn("journal: recording run start", slog.String("error", err.Error()))
	}
}

// finish records the outcome and the id of every credential the run minted.
func (j *runJournal) finish(ctx context.Context, report *reconcile.Report) {
	if j.l == nil {
		return
	}

	outcome := ledger.Outcome{
		FinishedAt:     report.Finished,
		FailedPhase:    string(report.FailedPhase),
		Err:            report.Err,
		BucketsCreated: report.BucketsCreated(),
		TasksReplaced:  report.TasksReplaced(),
		TasksCreated:   report.TasksCreated(),
	}

	if err := j.l.FinishRun(ctx, report.RunID, outcome); err != nil {
		j.logger.Warn("journal: recording run end", slog.String("error", err.Error()))
	}

	for _, tok := range report.Tokens {
		if err := j.l.RecordToken(ctx, report.RunID, tok.ID, string(tok.Kind), tok.Description, report.Finished); err != nil {
			j.logger.Warn("journal: recording credential",
				slog.String("id", tok.ID), slog.String("error", err.Error()))
		}
	}
}

// earlierTokens returns how many credentials earlier runs minted for the
// same org on the same host. ok is false when the journal is unavailable.
func (j *runJournal) earlierTokens(ctx context.Context, org, host, runID string) (n int, ok bool) {
	if j.l == nil {
		return 0, false
	}

	n, err := j.l.CountEarlierTokens(ctx, org, host, runID)
	if err != nil {
		j.logger.Warn("journal: counting credentials", slog.String("error", err.Error()))

		return 0, false
	}

	return n, true
}

func (j *runJournal) Close() {
	if j.l == nil {
		return
	}

	if err := j.l.Close(); err != nil {
		j.logger.Warn("journal: closing", slog.String("error", err.Error()))
	}
}

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/soothill/powerlogger/internal/flux"
	"github.com/soothill/powerlogger/internal/topology"
)

// RunnerOptions tunes a Runner. The zero value is usable.
type RunnerOptions struct {
	// ScratchParent is where the per-run scratch directory is created.
	// Empty means os.TempDir().
	ScratchParent string
	// TokenLabel prefixes credential descriptions. Empty means "PowerLogger".
	TokenLabel string
	// RunID overrides the generated run identifier.
	RunID string
	// Now overrides the clock. Tests use it for stable timestamps.
	Now func() time.Time
}

// Report describes a run. It is returned even when the run fails, so that
// credentials minted before the failure are not lost.
type Report struct {
	RunID       string
	Org         string
	Started     time.Time
	Finished    time.Time
	Buckets     []BucketResult
	Tasks       []TaskResult
	Tokens      []topology.AccessToken
	FailedPhase Phase
	Err         error
}

// BucketsCreated returns how many buckets the run created.
func (r *Report) BucketsCreated() int {
	n := 0
	for _, b := range r.Buckets {
		if b.Created {
			n++
		}
	}

	return n
}

// TasksReplaced returns how many tasks were deleted and recreated.
func (r *Report) TasksReplaced() int {
	n := 0
	for _, t := range r.Tasks {
		if t.Replaced() {
			n++
		}
	}

	return n
}

// TasksCreated returns how many task create calls succeeded.
func (r *Report) TasksCreated() int {
	n := 0
	for _, t := range r.Tasks {
		if t.ID != "" {
			n++
		}
	}

	return n
}

// Token returns the credential of the given kind, if the run minted one.
func (r *Report) Token(kind topology.TokenKind) (topology.AccessToken, bool) {
	for _, t := range r.Tokens {
		if t.Kind == kind {
			return t, true
		}
	}

	return topology.AccessToken{}, false
}

// Succeeded reports whether the run completed every phase.
func (r *Report) Succeeded() bool {
	return r.Err == nil
}

// Runner executes one reconciliation: buckets, then tasks, then tokens,
// strictly in that order and one call at a time. A failure stops the run;
// nothing already created is rolled back.
type Runner struct {
	api     AdminAPI
	desired *topology.Desired
	opts    RunnerOptions
	logger  *slog.Logger
}

// NewRunner creates a Runner that drives api toward desired.
func NewRunner(api AdminAPI, desired *topology.Desired, opts RunnerOptions, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	if opts.TokenLabel == "" {
		opts.TokenLabel = "PowerLogger"
	}

	return &Runner{api: api, desired: desired, opts: opts, logger: logger}
}

// RenderDefinitions renders the three task definitions in chain order.
func RenderDefinitions(desired *topology.Desired) ([topology.TaskCount]string, error) {
	var defs [topology.TaskCount]string

	for i, t := range desired.Tasks {
		body, err := flux.Render(t)
		if err != nil {
			return defs, err
		}

		defs[i] = body
	}

	return defs, nil
}

// Run performs the reconciliation. The returned report is never nil.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	runID := r.opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	report := &Report{RunID: runID, Org: r.desired.Org, Started: r.opts.Now()}
	logger := r.logger.With(slog.String("run_id", runID))

	err := r.run(ctx, report, logger)
	report.Finished = r.opts.Now()

	if err != nil {
		report.Err = err

		var pe *PhaseError
		if errors.As(err, &pe) {
			report.FailedPhase = pe.Phase
		}

		logger.Error("reconciliation failed",
			slog.String("phase", string(report.FailedPhase)),
			slog.String("error", err.Error()),
		)

		return report, err
	}

	logger.Info("reconciliation complete",
		slog.Int("buckets_created", report.BucketsCreated()),
		slog.Int("tasks_replaced", report.TasksReplaced()),
		slog.Int("tasks_created", report.TasksCreated()),
		slog.Int("tokens_issued", len(report.Tokens)),
		slog.Duration("elapsed", report.Finished.Sub(report.Started)),
	)

	return report, nil
}

func (r *Runner) run(ctx context.Context, report *Report, logger *slog.Logger) error {
	// Everything that can be checked locally is checked before the first
	// remote call.
	if err := r.desired.Validate(); err != nil {
		return &PhaseError{Phase: PhaseValidate, Op: "checking declared topology", Err: err}
	}

	defs, err := RenderDefinitions(r.desired)
	if err != nil {
		return &PhaseError{Phase: PhaseValidate, Op: "rendering task definitions", Err: err}
	}

	scratch, err := NewScratch(r.opts.ScratchParent)
	if err != nil {
		return &PhaseError{Phase: PhaseValidate, Op: "preparing scratch directory", Err: err}
	}

	defer func() {
		if rmErr := scratch.Remove(); rmErr != nil {
			logger.Warn("scratch directory not removed",
				slog.String("path", scratch.Dir()),
				slog.String("error", rmErr.Error()),
			)
		}
	}()

	catalog := NewCatalog(r.api, logger)

	if err := r.bucketPhase(ctx, catalog, report, logger); err != nil {
		return err
	}

	if err := r.taskPhase(ctx, catalog, scratch, defs, report, logger); err != nil {
		return err
	}

	return r.tokenPhase(ctx, catalog, report, logger)
}

func (r *Runner) bucketPhase(ctx context.Context, catalog *Catalog, report *Report, logger *slog.Logger) error {
	logger = logger.With(slog.String("phase", string(PhaseBuckets)))
	logger.Info("phase started")

	buckets := NewBucketReconciler(r.api, catalog, logger)

	for _, spec := range r.desired.Buckets {
		if err := ctx.Err(); err != nil {
			return &PhaseError{Phase: PhaseBuckets, Op: "ensure bucket " + spec.Name, Err: err}
		}

		res, err := buckets.EnsureBucket(ctx, spec)
		if err != nil {
			return &PhaseError{Phase: PhaseBuckets, Op: "ensure bucket " + spec.Name, Err: err}
		}

		report.Buckets = append(report.Buckets, res)
	}

	return nil
}

func (r *Runner) taskPhase(
	ctx context.Context, catalog *Catalog, scratch *Scratch,
	defs [topology.TaskCount]string, report *Report, logger *slog.Logger,
) error {
	logger = logger.With(slog.String("phase", string(PhaseTasks)))
	logger.Info("phase started")

	tasks := NewTaskReconciler(r.api, catalog, scratch, logger)

	// 1m, 5m, 1h: each task's source is settled before the task is recreated.
	for i, t := range r.desired.Tasks {
		if err := ctx.Err(); err != nil {
			return &PhaseError{Phase: PhaseTasks, Op: "ensure task " + t.Name, Err: err}
		}

		res, err := tasks.EnsureTask(ctx, t.Name, defs[i])
		if res.ID != "" || res.Replaced() {
			report.Tasks = append(report.Tasks, res)
		}

		if err != nil {
			return &PhaseError{Phase: PhaseTasks, Op: "ensure task " + t.Name, Err: err}
		}
	}

	return nil
}

func (r *Runner) tokenPhase(ctx context.Context, catalog *Catalog, report *Report, logger *slog.Logger) error {
	logger = logger.With(slog.String("phase", string(PhaseTokens)))
	logger.Info("phase started")

	// Credentials are scoped by bucket id. The catalog re-lists buckets only
	// when a create in the bucket phase invalidated its cache; a created
	// bucket that the listing does not return stops the run here.
	var ids [topology.TierCount]string

	for i, spec := range r.desired.Buckets {
		id, found, err := catalog.FindBucketID(ctx, spec.Name)
		if err != nil {
			return &PhaseError{Phase: PhaseTokens, Op: "resolve bucket " + spec.Name, Err: err}
		}

		if !found {
			return &PhaseError{
				Phase: PhaseTokens,
				Op:    "resolve bucket " + spec.Name,
				Err:   fmt.Errorf("%w: bucket %q not found after bucket phase", ErrPrecondition, spec.Name),
			}
		}

		ids[i] = id
	}

	tokens := NewTokenProvisioner(r.api, r.opts.TokenLabel, report.RunID, logger)

	writer, err := tokens.IssueWriterToken(ctx, ids[topology.TierRaw])
	if writer.ID != "" {
		report.Tokens = append(report.Tokens, writer)
	}

	if err != nil {
		return &PhaseError{Phase: PhaseTokens, Op: "issue writer credential", Err: err}
	}

	reader, err := tokens.IssueReaderToken(ctx, ids)
	if reader.ID != "" {
		report.Tokens = append(report.Tokens, reader)
	}

	if err != nil {
		return &PhaseError{Phase: PhaseTokens, Op: "issue reader credential", Err: err}
	}

	logger.Warn("new credentials were minted; earlier credentials remain valid until revoked",
		slog.Int("issued", len(report.Tokens)),
	)

	return nil
}

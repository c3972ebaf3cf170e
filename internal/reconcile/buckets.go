package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soothill/powerlogger/internal/topology"
)

// BucketResult records what EnsureBucket did.
type BucketResult struct {
	Tier    topology.Tier
	Name    string
	ID      string
	Created bool

	// RetentionDrift is set when an existing bucket's retention differs from
	// the declared one. Retention is never changed on existing buckets.
	RetentionDrift    bool
	ActualRetention   int64
	DeclaredRetention int64
}

// BucketReconciler creates declared buckets that do not exist yet.
type BucketReconciler struct {
	api     AdminAPI
	catalog *Catalog
	logger  *slog.Logger
}

// NewBucketReconciler creates a BucketReconciler sharing catalog with the
// other phases of the run.
func NewBucketReconciler(api AdminAPI, catalog *Catalog, logger *slog.Logger) *BucketReconciler {
	if logger == nil {
		logger = slog.Default()
	}

	return &BucketReconciler{api: api, catalog: catalog, logger: logger}
}

// EnsureBucket makes sure a bucket named spec.Name exists. An existing bucket
// is left untouched; a missing one is created with the declared retention.
func (r *BucketReconciler) EnsureBucket(ctx context.Context, spec topology.BucketSpec) (BucketResult, error) {
	result := BucketResult{
		Tier:              spec.Tier,
		Name:              spec.Name,
		DeclaredRetention: spec.RetentionSeconds(),
	}

	existing, found, err := r.catalog.LookupBucket(ctx, spec.Name)
	if err != nil {
		return result, err
	}

	if found {
		result.ID = existing.ID
		result.ActualRetention = existing.RetentionSeconds
		result.RetentionDrift = existing.RetentionSeconds != result.DeclaredRetention

		r.logger.Info("bucket exists",
			slog.String("bucket", spec.Name),
			slog.String("id", existing.ID),
		)

		if result.RetentionDrift {
			r.logger.Warn("bucket retention differs from configuration and is left unchanged",
				slog.String("bucket", spec.Name),
				slog.Int64("actual_seconds", existing.RetentionSeconds),
				slog.Int64("declared_seconds", result.DeclaredRetention),
			)
		}

		return result, nil
	}

	created, err := r.api.CreateBucket(ctx, spec)
	r.catalog.InvalidateBuckets()

	if err != nil {
		return result, fmt.Errorf("creating bucket %q: %w", spec.Name, err)
	}

	result.ID = created.ID
	result.ActualRetention = created.RetentionSeconds
	result.Created = true

	r.logger.Info("bucket created",
		slog.String("bucket", spec.Name),
		slog.String("id", created.ID),
		slog.Int64("retention_seconds", result.DeclaredRetention),
	)

	return result, nil
}

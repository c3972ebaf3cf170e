// Package reconcile brings a remote InfluxDB organization into the declared
// PowerLogger topology: buckets first, then the downsampling tasks, then the
// two scoped credentials. Every step is safe to re-run.
package reconcile

import (
	"context"

	"github.com/soothill/powerlogger/internal/topology"
)

// AdminAPI is the remote administrative surface the reconciler drives.
// Defined at the consumer; internal/influx.Admin is the real implementation.
// DeleteTask must return an error wrapping topology.ErrResourceNotFound when
// the task no longer exists.
type AdminAPI interface {
	ListBuckets(ctx context.Context) ([]topology.Bucket, error)
	CreateBucket(ctx context.Context, spec topology.BucketSpec) (topology.Bucket, error)
	ListTasks(ctx context.Context) ([]topology.Task, error)
	DeleteTask(ctx context.Context, id string) error
	CreateTask(ctx context.Context, flux string) (topology.Task, error)
	CreateAuthorization(ctx context.Context, description string, perms []topology.Permission) (topology.AccessToken, error)
}

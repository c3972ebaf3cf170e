package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soothill/powerlogger/internal/topology"
)

// Catalog answers "does a bucket or task with this name exist?" by listing
// the organization's resources and scanning for an exact name match. The
// remote system stays the source of truth: each list is cached only until
// the next create or delete of that kind.
type Catalog struct {
	api    AdminAPI
	logger *slog.Logger

	buckets []topology.Bucket
	tasks   []topology.Task

	bucketsLoaded bool
	tasksLoaded   bool
}

// NewCatalog creates a catalog over api with empty caches.
func NewCatalog(api AdminAPI, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}

	return &Catalog{api: api, logger: logger}
}

// LookupBucket returns the first bucket named name. found is false when no
// bucket matches; err is non-nil only when the list itself failed.
func (c *Catalog) LookupBucket(ctx context.Context, name string) (topology.Bucket, bool, error) {
	if !c.bucketsLoaded {
		buckets, err := c.api.ListBuckets(ctx)
		if err != nil {
			return topology.Bucket{}, false, fmt.Errorf("%w: listing buckets for %q: %w", ErrCatalogQuery, name, err)
		}

		c.buckets = buckets
		c.bucketsLoaded = true
	}

	for _, b := range c.buckets {
		if b.Name == name {
			return b, true, nil
		}
	}

	return topology.Bucket{}, false, nil
}

// FindBucketID returns the id of the bucket named name.
func (c *Catalog) FindBucketID(ctx context.Context, name string) (string, bool, error) {
	b, found, err := c.LookupBucket(ctx, name)

	return b.ID, found, err
}

// FindTaskID returns the id of the first task named name.
func (c *Catalog) FindTaskID(ctx context.Context, name string) (string, bool, error) {
	if !c.tasksLoaded {
		tasks, err := c.api.ListTasks(ctx)
		if err != nil {
			return "", false, fmt.Errorf("%w: listing tasks for %q: %w", ErrCatalogQuery, name, err)
		}

		c.tasks = tasks
		c.tasksLoaded = true
	}

	for _, t := range c.tasks {
		if t.Name == name {
			return t.ID, true, nil
		}
	}

	return "", false, nil
}

// InvalidateBuckets drops the cached bucket list.
func (c *Catalog) InvalidateBuckets() {
	c.buckets = nil
	c.bucketsLoaded = false
}

// InvalidateTasks drops the cached task list.
func (c *Catalog) InvalidateTasks() {
	c.tasks = nil
	c.tasksLoaded = false
}

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/soothill/powerlogger/internal/topology"
)

// TaskResult records what EnsureTask did.
type TaskResult struct {
	Name       string
	ID         string
	ReplacedID string // id of the deleted predecessor, empty if none
}

// Replaced reports whether a task of the same name was deleted first.
func (t TaskResult) Replaced() bool {
	return t.ReplacedID != ""
}

// TaskReconciler replaces downsampling tasks by name: any existing task with
// the name is deleted, then the current definition is created. There is no
// diffing; after a successful call the remote definition always matches the
// generator output.
type TaskReconciler struct {
	api     AdminAPI
	catalog *Catalog
	scratch *Scratch
	logger  *slog.Logger
}

// NewTaskReconciler creates a TaskReconciler. scratch may be nil, in which
// case definitions are not staged on disk.
func NewTaskReconciler(api AdminAPI, catalog *Catalog, scratch *Scratch, logger *slog.Logger) *TaskReconciler {
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskReconciler{api: api, catalog: catalog, scratch: scratch, logger: logger}
}

// EnsureTask deletes the task called name if it exists and creates it anew
// from definition.
func (r *TaskReconciler) EnsureTask(ctx context.Context, name, definition string) (TaskResult, error) {
	result := TaskResult{Name: name}

	if r.scratch != nil {
		path, err := r.scratch.WriteDefinition(name, definition)
		if err != nil {
			return result, err
		}

		r.logger.Debug("staged task definition", slog.String("task", name), slog.String("path", path))
	}

	id, found, err := r.catalog.FindTaskID(ctx, name)
	if err != nil {
		return result, err
	}

	if found {
		err := r.api.DeleteTask(ctx, id)
		r.catalog.InvalidateTasks()

		switch {
		case err == nil:
			result.ReplacedID = id
			r.logger.Info("task deleted for replacement", slog.String("task", name), slog.String("id", id))
		case errors.Is(err, topology.ErrResourceNotFound):
			// Gone between list and delete; nothing left to replace.
			r.logger.Debug("task already gone", slog.String("task", name), slog.String("id", id))
		default:
			return result, fmt.Errorf("deleting task %q (%s): %w", name, id, err)
		}
	}

	created, err := r.api.CreateTask(ctx, definition)
	r.catalog.InvalidateTasks()

	if err != nil {
		return result, fmt.Errorf("creating task %q: %w", name, err)
	}

	result.ID = created.ID

	if created.Name != "" && created.Name != name {
		r.logger.Warn("server reported a different task name",
			slog.String("task", name),
			slog.String("reported", created.Name),
		)
	}

	r.logger.Info("task created",
		slog.String("task", name),
		slog.String("id", created.ID),
		slog.Bool("replaced", result.Replaced()),
	)

	return result, nil
}

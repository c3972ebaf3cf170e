package influx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	influxlog "github.com/influxdata/influxdb-client-go/v2/log"

	"github.com/soothill/powerlogger/internal/topology"
)

// Paging and client constants.
const (
	DefaultPageSize = 100
	maxPages        = 1000
	applicationName = "powerlogger"
)

// Options tunes the admin client. The zero value is usable.
type Options struct {
	// HTTPClient overrides the transport. Tests pass httptest clients here.
	HTTPClient *http.Client
	// Timeout bounds each HTTP request when HTTPClient is nil. Zero keeps the
	// library default.
	Timeout time.Duration
	// PageSize is the list page size. Zero means DefaultPageSize.
	PageSize int
}

// Admin talks to the InfluxDB v2 administrative API on behalf of one
// organization. List calls go through the generated client directly so that
// missing fields surface as schema errors instead of being zero-filled.
type Admin struct {
	client   influxdb2.Client
	api      *domain.Client
	org      string
	pageSize int
	logger   *slog.Logger

	orgMu sync.Mutex
	orgID string
}

// NewAdmin creates an admin client for org at host, authenticating with the
// admin token.
func NewAdmin(host, org, token string, opts Options, logger *slog.Logger) *Admin {
	if logger == nil {
		logger = slog.Default()
	}

	clientOpts := influxdb2.DefaultOptions().
		SetApplicationName(applicationName).
		SetLogLevel(influxlog.ErrorLevel)

	if opts.HTTPClient != nil {
		clientOpts.SetHTTPClient(opts.HTTPClient)
	}

	if opts.Timeout > 0 {
		clientOpts.SetHTTPRequestTimeout(uint(opts.Timeout / time.Second))
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	client := influxdb2.NewClientWithOptions(host, token, clientOpts)

	return &Admin{
		client:   client,
		api:      client.APIClient(),
		org:      org,
		pageSize: pageSize,
		logger:   logger,
	}
}

// Close releases the underlying HTTP resources.
func (a *Admin) Close() {
	a.client.Close()
}

// Org returns the organization name this client acts for.
func (a *Admin) Org() string {
	return a.org
}

// OrgID resolves the organization name to its id. The result is cached for
// the lifetime of the client.
func (a *Admin) OrgID(ctx context.Context) (string, error) {
	a.orgMu.Lock()
	defer a.orgMu.Unlock()

	if a.orgID != "" {
		return a.orgID, nil
	}

	const op = "find organization"

	org := a.org
	resp, err := a.api.GetOrgs(ctx, &domain.GetOrgsParams{Org: &org})
	if err != nil {
		return "", classify(op, err)
	}

	if resp == nil || resp.Orgs == nil {
		return "", schemaError(op, "response has no orgs array")
	}

	for _, o := range *resp.Orgs {
		if o.Name != a.org {
			continue
		}

		if o.Id == nil || *o.Id == "" {
			return "", schemaError(op, fmt.Sprintf("organization %q has no id", a.org))
		}

		a.orgID = *o.Id
		a.logger.Debug("resolved organization",
			slog.String("org", a.org),
			slog.String("id", a.orgID),
		)

		return a.orgID, nil
	}

	return "", fmt.Errorf("%w: %q", ErrOrgNotFound, a.org)
}

// ListBuckets returns every bucket of the organization, following
// limit/offset pagination until a short page.
func (a *Admin) ListBuckets(ctx context.Context) ([]topology.Bucket, error) {
	const op = "list buckets"

	var out []topology.Bucket

	org := a.org
	limit := domain.Limit(a.pageSize)

	for page := 0; page < maxPages; page++ {
		offset := domain.Offset(page * a.pageSize)

		resp, err := a.api.GetBuckets(ctx, &domain.GetBucketsParams{
			Org:    &org,
			Limit:  &limit,
			Offset: &offset,
		})
		if err != nil {
			return nil, classify(op, err)
		}

		if resp == nil || resp.Buckets == nil {
			return nil, schemaError(op, "response has no buckets array")
		}

		for _, b := range *resp.Buckets {
			bucket, err := toBucket(b)
			if err != nil {
				return nil, schemaError(op, err.Error())
			}

			out = append(out, bucket)
		}

		if len(*resp.Buckets) < a.pageSize {
			a.logger.Debug("listed buckets", slog.Int("count", len(out)), slog.Int("pages", page+1))

			return out, nil
		}
	}

	return nil, schemaError(op, fmt.Sprintf("pagination did not terminate after %d pages", maxPages))
}

// toBucket normalizes a bucket from a list response.
func toBucket(b domain.Bucket) (topology.Bucket, error) {
	if b.Name == "" {
		return topology.Bucket{}, errors.New("bucket entry has no name")
	}

	if b.Id == nil || *b.Id == "" {
		return topology.Bucket{}, fmt.Errorf("bucket %q has no id", b.Name)
	}

	out := topology.Bucket{ID: *b.Id, Name: b.Name}
	for _, r := range b.RetentionRules {
		if r.Type == nil || *r.Type == domain.RetentionRuleTypeExpire {
			out.RetentionSeconds = r.EverySeconds
		}
	}

	return out, nil
}

// CreateBucket creates a bucket with the declared retention. Zero retention
// is sent as an expire rule of zero seconds, which the server treats as
// infinite.
func (a *Admin) CreateBucket(ctx context.Context, spec topology.BucketSpec) (topology.Bucket, error) {
	op := "create bucket " + spec.Name

	orgID, err := a.OrgID(ctx)
	if err != nil {
		return topology.Bucket{}, err
	}

	expire := domain.RetentionRuleTypeExpire
	rule := domain.RetentionRule{EverySeconds: spec.RetentionSeconds(), Type: &expire}

	created, err := a.client.BucketsAPI().CreateBucketWithNameWithID(ctx, orgID, spec.Name, rule)
	if err != nil {
		return topology.Bucket{}, classify(op, err)
	}

	if created == nil {
		return topology.Bucket{}, schemaError(op, "empty response")
	}

	if created.Name == "" {
		created.Name = spec.Name
	}

	bucket, err := toBucket(*created)
	if err != nil {
		return topology.Bucket{}, schemaError(op, err.Error())
	}

	return bucket, nil
}

// ListTasks returns every task of the organization, following cursor
// pagination (after=<last id>) until a short page.
func (a *Admin) ListTasks(ctx context.Context) ([]topology.Task, error) {
	const op = "list tasks"

	var (
		out   []topology.Task
		after string
	)

	org := a.org
	limit := a.pageSize

	for page := 0; page < maxPages; page++ {
		params := &domain.GetTasksParams{Org: &org, Limit: &limit}
		if after != "" {
			cursor := after
			params.After = &cursor
		}

		resp, err := a.api.GetTasks(ctx, params)
		if err != nil {
			return nil, classify(op, err)
		}

		if resp == nil || resp.Tasks == nil {
			return nil, schemaError(op, "response has no tasks array")
		}

		tasks := *resp.Tasks
		for _, t := range tasks {
			if t.Id == "" || t.Name == "" {
				return nil, schemaError(op, fmt.Sprintf("task entry missing id or name (id=%q name=%q)", t.Id, t.Name))
			}

			out = append(out, topology.Task{ID: t.Id, Name: t.Name})
		}

		if len(tasks) < a.pageSize {
			a.logger.Debug("listed tasks", slog.Int("count", len(out)), slog.Int("pages", page+1))

			return out, nil
		}

		next := tasks[len(tasks)-1].Id
		if next == after {
			return nil, schemaError(op, "pagination cursor did not advance")
		}

		after = next
	}

	return nil, schemaError(op, fmt.Sprintf("pagination did not terminate after %d pages", maxPages))
}

// DeleteTask deletes a task by id. A vanished task yields an error wrapping
// ErrNotFound.
func (a *Admin) DeleteTask(ctx context.Context, id string) error {
	if err := a.client.TasksAPI().DeleteTaskWithID(ctx, id); err != nil {
		return classify("delete task "+id, err)
	}

	return nil
}

// CreateTask submits a Flux task program. The task name comes from the
// program's option block.
func (a *Admin) CreateTask(ctx context.Context, flux string) (topology.Task, error) {
	const op = "create task"

	orgID, err := a.OrgID(ctx)
	if err != nil {
		return topology.Task{}, err
	}

	created, err := a.client.TasksAPI().CreateTaskByFlux(ctx, flux, orgID)
	if err != nil {
		return topology.Task{}, classify(op, err)
	}

	if created == nil || created.Id == "" {
		return topology.Task{}, schemaError(op, "response has no task id")
	}

	return topology.Task{ID: created.Id, Name: created.Name}, nil
}

// CreateAuthorization mints an active authorization holding exactly perms.
// The returned token carries the secret, which the server discloses only in
// this response.
func (a *Admin) CreateAuthorization(
	ctx context.Context, description string, perms []topology.Permission,
) (topology.AccessToken, error) {
	const op = "create authorization"

	orgID, err := a.OrgID(ctx)
	if err != nil {
		return topology.AccessToken{}, err
	}

	dperms := make([]domain.Permission, 0, len(perms))
	for _, p := range perms {
		bucketID := p.BucketID
		dperms = append(dperms, domain.Permission{
			Action: toAction(p.Action),
			Resource: domain.Resource{
				Type:  domain.ResourceTypeBuckets,
				Id:    &bucketID,
				OrgID: &orgID,
			},
		})
	}

	desc := description
	status := domain.AuthorizationUpdateRequestStatusActive

	created, err := a.client.AuthorizationsAPI().CreateAuthorization(ctx, &domain.Authorization{
		AuthorizationUpdateRequest: domain.AuthorizationUpdateRequest{
			Description: &desc,
			Status:      &status,
		},
		OrgID:       &orgID,
		Permissions: &dperms,
	})
	if err != nil {
		return topology.AccessToken{}, classify(op, err)
	}

	if created == nil || created.Id == nil || *created.Id == "" {
		return topology.AccessToken{}, schemaError(op, "response has no authorization id")
	}

	token := topology.AccessToken{
		ID:          *created.Id,
		Description: description,
		Permissions: perms,
	}

	if created.Token != nil {
		token.Secret = *created.Token
	}

	return token, nil
}

func toAction(a topology.Action) domain.PermissionAction {
	if a == topology.ActionWrite {
		return domain.PermissionActionWrite
	}

	return domain.PermissionActionRead
}

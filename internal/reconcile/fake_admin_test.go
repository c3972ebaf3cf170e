package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soothill/powerlogger/internal/topology"
)

var errFakeSchema = errors.New("fake: unexpected response schema")

// fakeAdmin is an in-memory AdminAPI that counts every mutating call.
type fakeAdmin struct {
	buckets []topology.Bucket
	tasks   []topology.Task
	nextID  int

	listBucketCalls int
	listTaskCalls   int
	bucketCreates   []string
	taskCreates     []string
	taskDeletes     []string
	authCreates     []authCall

	// Error injection. A nil func means success.
	listBucketsErr func() error
	listTasksErr   func() error
	createBucketFn func(spec topology.BucketSpec) error
	deleteTaskErr  func(id string) error
	createTaskErr  func(flux string) error
	createAuthFn   func(call authCall) (secret string, err error)

	// hideCreatedBuckets drops created buckets from later listings, as a
	// server with a lagging index would.
	hideCreatedBuckets bool
}

type authCall struct {
	Description string
	Permissions []topology.Permission
}

func newFakeAdmin() *fakeAdmin {
	return &fakeAdmin{}
}

func (f *fakeAdmin) id(prefix string) string {
	f.nextID++

	return fmt.Sprintf("%s-%03d", prefix, f.nextID)
}

func (f *fakeAdmin) seedBucket(name string, retentionSeconds int64) string {
	id := f.id("bucket")
	f.buckets = append(f.buckets, topology.Bucket{ID: id, Name: name, RetentionSeconds: retentionSeconds})

	return id
}

func (f *fakeAdmin) seedTask(name string) string {
	id := f.id("task")
	f.tasks = append(f.tasks, topology.Task{ID: id, Name: name})

	return id
}

func (f *fakeAdmin) bucketNamed(name string) (topology.Bucket, bool) {
	for _, b := range f.buckets {
		if b.Name == name {
			return b, true
		}
	}

	return topology.Bucket{}, false
}

func (f *fakeAdmin) tasksNamed(name string) int {
	n := 0
	for _, t := range f.tasks {
		if t.Name == name {
			n++
		}
	}

	return n
}

func (f *fakeAdmin) ListBuckets(_ context.Context) ([]topology.Bucket, error) {
	f.listBucketCalls++

	if f.listBucketsErr != nil {
		if err := f.listBucketsErr(); err != nil {
			return nil, err
		}
	}

	return append([]topology.Bucket(nil), f.buckets...), nil
}

func (f *fakeAdmin) CreateBucket(_ context.Context, spec topology.BucketSpec) (topology.Bucket, error) {
	f.bucketCreates = append(f.bucketCreates, spec.Name)

	if f.createBucketFn != nil {
		if err := f.createBucketFn(spec); err != nil {
			return topology.Bucket{}, err
		}
	}

	b := topology.Bucket{ID: f.id("bucket"), Name: spec.Name, RetentionSeconds: spec.RetentionSeconds()}
	if !f.hideCreatedBuckets {
		f.buckets = append(f.buckets, b)
	}

	return b, nil
}

func (f *fakeAdmin) ListTasks(_ context.Context) ([]topology.Task, error) {
	f.listTaskCalls++

	if f.listTasksErr != nil {
		if err := f.listTasksErr(); err != nil {
			return nil, err
		}
	}

	return append([]topology.Task(nil), f.tasks...), nil
}

func (f *fakeAdmin) DeleteTask(_ context.Context, id string) error {
	f.taskDeletes = append(f.taskDeletes, id)

	if f.deleteTaskErr != nil {
		if err := f.deleteTaskErr(id); err != nil {
			return err
		}
	}

	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)

			return nil
		}
	}

	return fmt.Errorf("fake: task %s: %w", id, topology.ErrResourceNotFound)
}

func (f *fakeAdmin) CreateTask(_ context.Context, flux string) (topology.Task, error) {
	name := fluxTaskName(flux)
	f.taskCreates = append(f.taskCreates, name)

	if f.createTaskErr != nil {
		if err := f.createTaskErr(flux); err != nil {
			return topology.Task{}, err
		}
	}

	t := topology.Task{ID: f.id("task"), Name: name}
	f.tasks = append(f.tasks, t)

	return t, nil
}

func (f *fakeAdmin) CreateAuthorization(
	_ context.Context, description string, perms []topology.Permission,
) (topology.AccessToken, error) {
	call := authCall{Description: description, Permissions: perms}
	f.authCreates = append(f.authCreates, call)

	// nextID survives resetCounters, so secrets stay unique across runs.
	secret := f.id("secret")

	if f.createAuthFn != nil {
		s, err := f.createAuthFn(call)
		if err != nil {
			return topology.AccessToken{}, err
		}

		secret = s
	}

	return topology.AccessToken{
		ID:          f.id("auth"),
		Description: description,
		Permissions: perms,
		Secret:      secret,
	}, nil
}

// resetCounters clears call records, keeping remote state.
func (f *fakeAdmin) resetCounters() {
	f.listBucketCalls = 0
	f.listTaskCalls = 0
	f.bucketCreates = nil
	f.taskCreates = nil
	f.taskDeletes = nil
	f.authCreates = nil
}

func fluxTaskName(flux string) string {
	_, rest, ok := strings.Cut(flux, `name: "`)
	if !ok {
		return ""
	}

	name, _, _ := strings.Cut(rest, `"`)

	return name
}

var testBucketNames = [topology.TierCount]string{
	"PowerLogger_raw", "PowerLogger_1m", "PowerLogger_5m", "PowerLogger_1h",
}

var testTaskNames = [topology.TaskCount]string{
	"PowerLogger_downsample_1m", "PowerLogger_downsample_5m", "PowerLogger_downsample_1h",
}

// testDesired returns the stock PowerLogger topology.
func testDesired() *topology.Desired {
	const day = 24 * time.Hour

	d := &topology.Desired{Org: "soothill"}
	retention := [topology.TierCount]time.Duration{30 * day, 180 * day, 730 * day, 0}

	for i, tier := range topology.Tiers {
		d.Buckets[i] = topology.BucketSpec{Tier: tier, Name: testBucketNames[i], Retention: retention[i]}
	}

	offsets := [topology.TaskCount]time.Duration{10 * time.Second, 20 * time.Second, 30 * time.Second}
	lookbacks := [topology.TaskCount]time.Duration{5 * time.Minute, 15 * time.Minute, 3 * time.Hour}

	for i := range d.Tasks {
		d.Tasks[i] = topology.DownsampleTask{
			Name:        testTaskNames[i],
			Org:         "soothill",
			Source:      testBucketNames[i],
			Dest:        testBucketNames[i+1],
			Measurement: "PowerPulse",
			Field:       "Pulse",
			Every:       topology.Tiers[i+1].Window(),
			Offset:      offsets[i],
			Lookback:    lookbacks[i],
		}
	}

	return d
}

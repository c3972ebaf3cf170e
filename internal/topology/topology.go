// Package topology describes the desired shape of the PowerLogger time-series
// store: the raw bucket and its three downsampled buckets, the chain of
// aggregation tasks that cascades data between them, and the two scoped
// credentials handed to the pulse writer and the dashboard reader.
package topology

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrResourceNotFound is the error an admin API implementation wraps when a
// resource addressed by id no longer exists.
var ErrResourceNotFound = errors.New("resource not found")

// Tier identifies one level of the downsampling ladder.
type Tier int

// Tiers in chain order. The zero value is the raw tier.
const (
	TierRaw Tier = iota
	Tier1m
	Tier5m
	Tier1h
)

// TierCount is the number of buckets in the ladder.
const TierCount = 4

// Tiers lists every tier in chain order.
var Tiers = [TierCount]Tier{TierRaw, Tier1m, Tier5m, Tier1h}

func (t Tier) String() string {
	switch t {
	case TierRaw:
		return "raw"
	case Tier1m:
		return "1m"
	case Tier5m:
		return "5m"
	case Tier1h:
		return "1h"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Window returns the aggregation window that produces data for this tier.
// The raw tier has no window.
func (t Tier) Window() time.Duration {
	switch t {
	case Tier1m:
		return time.Minute
	case Tier5m:
		return 5 * time.Minute
	case Tier1h:
		return time.Hour
	default:
		return 0
	}
}

// BucketSpec declares a bucket. Retention zero means data never expires.
// Retention is only applied when the bucket is created.
type BucketSpec struct {
	Tier      Tier
	Name      string
	Retention time.Duration
}

// RetentionSeconds returns the retention as whole seconds, the unit the
// admin API uses.
func (b BucketSpec) RetentionSeconds() int64 {
	return int64(b.Retention / time.Second)
}

// Bucket is a bucket as reported by the remote system.
type Bucket struct {
	ID               string
	Name             string
	RetentionSeconds int64
}

// Task is a scheduled task as reported by the remote system.
type Task struct {
	ID   string
	Name string
}

// DownsampleTask declares one link of the aggregation chain: it reads
// Measurement/Field from Source, sums it in windows of Every, and writes the
// result to Dest. The task runs every Every, delayed by Offset, and
// re-examines the last Lookback of source data on each run.
type DownsampleTask struct {
	Name        string
	Org         string
	Source      string
	Dest        string
	Measurement string
	Field       string
	Every       time.Duration
	Offset      time.Duration
	Lookback    time.Duration
}

// Validate checks the task's own invariants.
func (t DownsampleTask) Validate() error {
	var errs []error

	if t.Name == "" {
		errs = append(errs, errors.New("task name is empty"))
	}

	if t.Source == "" || t.Dest == "" {
		errs = append(errs, fmt.Errorf("task %q: source and destination buckets are required", t.Name))
	}

	if t.Source != "" && t.Source == t.Dest {
		errs = append(errs, fmt.Errorf("task %q: source and destination are the same bucket %q", t.Name, t.Source))
	}

	if t.Measurement == "" || t.Field == "" {
		errs = append(errs, fmt.Errorf("task %q: measurement and field are required", t.Name))
	}

	if t.Every <= 0 {
		errs = append(errs, fmt.Errorf("task %q: interval must be positive, got %s", t.Name, t.Every))
	}

	if t.Lookback <= t.Every {
		errs = append(errs, fmt.Errorf("task %q: lookback %s must be greater than interval %s",
			t.Name, t.Lookback, t.Every))
	}

	if t.Offset < 0 || (t.Every > 0 && t.Offset >= t.Every) {
		errs = append(errs, fmt.Errorf("task %q: offset %s must be in [0, %s)", t.Name, t.Offset, t.Every))
	}

	return errors.Join(errs...)
}

// Action is a capability granted on a bucket.
type Action string

// Capabilities a credential can hold on a bucket.
const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

// Permission grants one action on one bucket, addressed by id.
type Permission struct {
	Action   Action
	BucketID string
}

// TokenKind distinguishes the two credentials the provisioner mints.
type TokenKind string

// Credential kinds.
const (
	TokenWriter TokenKind = "writer"
	TokenReader TokenKind = "reader"
)

// AccessToken is a freshly minted credential. Secret is returned by the
// remote system exactly once and cannot be retrieved later.
type AccessToken struct {
	ID          string
	Kind        TokenKind
	Description string
	Permissions []Permission
	Secret      string
}

// LogValue keeps the secret out of structured logs.
func (a AccessToken) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", a.ID),
		slog.String("kind", string(a.Kind)),
		slog.String("description", a.Description),
		slog.Int("permissions", len(a.Permissions)),
	)
}

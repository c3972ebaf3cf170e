package topology

import (
	"errors"
	"fmt"
)

// TaskCount is the number of links in the downsampling chain.
const TaskCount = TierCount - 1

// Desired is the complete declared topology for one organization.
type Desired struct {
	Org     string
	Buckets [TierCount]BucketSpec
	Tasks   [TaskCount]DownsampleTask
}

// Bucket returns the declared bucket for a tier.
func (d *Desired) Bucket(t Tier) BucketSpec {
	return d.Buckets[t]
}

// BucketNames returns the four bucket names in chain order.
func (d *Desired) BucketNames() [TierCount]string {
	var names [TierCount]string
	for i, b := range d.Buckets {
		names[i] = b.Name
	}

	return names
}

// Validate checks the chain invariants: four distinct named buckets, and
// three tasks where each reads only from its predecessor's output.
func (d *Desired) Validate() error {
	var errs []error

	seen := make(map[string]Tier, TierCount)

	for i, b := range d.Buckets {
		if b.Tier != Tier(i) {
			errs = append(errs, fmt.Errorf("bucket %q declared at position %d has tier %s", b.Name, i, b.Tier))
		}

		if b.Name == "" {
			errs = append(errs, fmt.Errorf("bucket for tier %s has no name", Tier(i)))

			continue
		}

		if prev, dup := seen[b.Name]; dup {
			errs = append(errs, fmt.Errorf("bucket name %q used for both %s and %s", b.Name, prev, Tier(i)))
		}

		seen[b.Name] = Tier(i)

		if b.Retention < 0 {
			errs = append(errs, fmt.Errorf("bucket %q: retention must not be negative", b.Name))
		}
	}

	for i, t := range d.Tasks {
		if err := t.Validate(); err != nil {
			errs = append(errs, err)
		}

		src, dst := d.Buckets[i], d.Buckets[i+1]
		if t.Source != src.Name || t.Dest != dst.Name {
			errs = append(errs, fmt.Errorf("task %q must read %q and write %q, got %q -> %q",
				t.Name, src.Name, dst.Name, t.Source, t.Dest))
		}

		if t.Every != dst.Tier.Window() {
			errs = append(errs, fmt.Errorf("task %q: interval %s does not match the %s tier",
				t.Name, t.Every, dst.Tier))
		}
	}

	return errors.Join(errs...)
}

// WriterPermissions is the writer credential's capability set: write on the
// raw bucket and nothing else.
func WriterPermissions(rawBucketID string) []Permission {
	return []Permission{{Action: ActionWrite, BucketID: rawBucketID}}
}

// ReaderPermissions is the reader credential's capability set: read on each
// of the four buckets and nothing else.
func ReaderPermissions(bucketIDs [TierCount]string) []Permission {
	perms := make([]Permission, 0, TierCount)
	for _, id := range bucketIDs {
		perms = append(perms, Permission{Action: ActionRead, BucketID: id})
	}

	return perms
}

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/soothill/powerlogger/internal/topology"
)

// Topology builds the declared topology from the configuration. It reports
// every unparseable value at once; chain invariants are checked by
// topology.Desired.Validate.
func (c *Config) Topology() (*topology.Desired, error) {
	var errs []error

	retention := func(key, value string) time.Duration {
		d, err := ParseRetention(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}

		return d
	}

	duration := func(key, value string) time.Duration {
		d, err := ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}

		return d
	}

	d := &topology.Desired{Org: c.Org}

	names := [topology.TierCount]string{c.BucketRaw, c.Bucket1m, c.Bucket5m, c.Bucket1h}
	retentions := [topology.TierCount]time.Duration{
		retention("retention_raw", c.RetentionRaw),
		retention("retention_1m", c.Retention1m),
		retention("retention_5m", c.Retention5m),
		retention("retention_1h", c.Retention1h),
	}

	for i, tier := range topology.Tiers {
		d.Buckets[i] = topology.BucketSpec{Tier: tier, Name: names[i], Retention: retentions[i]}
	}

	offsets := [topology.TaskCount]time.Duration{
		duration("offset_1m", c.Offset1m),
		duration("offset_5m", c.Offset5m),
		duration("offset_1h", c.Offset1h),
	}
	lookbacks := [topology.TaskCount]time.Duration{
		duration("lookback_1m", c.Lookback1m),
		duration("lookback_5m", c.Lookback5m),
		duration("lookback_1h", c.Lookback1h),
	}

	for i := range d.Tasks {
		dest := topology.Tiers[i+1]

		d.Tasks[i] = topology.DownsampleTask{
			Name:        TaskName(c.TaskPrefix, dest),
			Org:         c.Org,
			Source:      names[i],
			Dest:        names[i+1],
			Measurement: c.Measurement,
			Field:       c.Field,
			Every:       dest.Window(),
			Offset:      offsets[i],
			Lookback:    lookbacks[i],
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return d, nil
}

// TaskName is the name of the task that fills the given tier.
func TaskName(prefix string, dest topology.Tier) string {
	return prefix + "_" + dest.String()
}

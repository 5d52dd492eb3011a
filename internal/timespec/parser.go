// Package timespec parses the deadline flags of season creation.
package timespec

import (
	"fmt"
	"strconv"
	"time"
)

// Parse parses a deadline specification into a Unix timestamp (seconds).
// Supports three formats:
//   - Go duration format: "1h", "30m", "72h", "1h30m"
//   - RFC3339 timestamps: "2025-10-29T13:00:00Z"
//   - Unix seconds: "1761742800"
//
// Durations are relative to base and point forward: "1h" means one hour after base.
func Parse(spec string, base time.Time) (int64, error) {
	if spec == "" {
		return 0, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.Unix(), nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("duration must be positive: %s", spec)
		}
		return base.Add(d).Unix(), nil
	}

	if ts, err := strconv.ParseInt(spec, 10, 64); err == nil && ts > 0 {
		return ts, nil
	}

	return 0, fmt.Errorf("invalid time specification: %s (use duration like '48h', RFC3339 like '2025-10-29T13:00:00Z' or Unix seconds)", spec)
}

// ParseSchedule parses the --funding-end and --voting-end flags.
// Returns (fundingEndTs, votingEndTs, error).
//
// A funding duration is relative to now. A voting duration is relative to the
// funding end, so "--funding-end 24h --voting-end 48h" gives a 48h voting window.
// Validates that funding ends in the future and before voting ends.
func ParseSchedule(fundingEnd, votingEnd string, now time.Time) (int64, int64, error) {
	fundingTs, err := Parse(fundingEnd, now)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --funding-end: %w", err)
	}

	votingTs, err := Parse(votingEnd, time.Unix(fundingTs, 0))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --voting-end: %w", err)
	}

	if fundingTs <= now.Unix() {
		return 0, 0, fmt.Errorf("--funding-end must be in the future")
	}
	if votingTs <= fundingTs {
		return 0, 0, fmt.Errorf("--voting-end must be after --funding-end")
	}

	return fundingTs, votingTs, nil
}

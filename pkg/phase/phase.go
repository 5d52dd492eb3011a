// Package phase maps a season's schedule onto its current phase.
package phase

import (
	"fmt"
	"time"
)

// Phase is the season-wide temporal state gating which operations are valid.
// Phases only move forward: Funding < Voting < Finalized.
type Phase int

const (
	// Funding accepts contributions to regions.
	Funding Phase = iota
	// Voting accepts bids and votes.
	Voting
	// Finalized accepts region finalization and payouts.
	Finalized
)

// String returns the lowercase phase name.
func (p Phase) String() string {
	switch p {
	case Funding:
		return "funding"
	case Voting:
		return "voting"
	case Finalized:
		return "finalized"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Parse converts a phase name back into a Phase.
func Parse(s string) (Phase, error) {
	switch s {
	case "funding":
		return Funding, nil
	case "voting":
		return Voting, nil
	case "finalized":
		return Finalized, nil
	default:
		return Funding, fmt.Errorf("unknown phase: %q", s)
	}
}

// Schedule is the subset of a season that determines its phase.
type Schedule struct {
	FundingEndTs int64 // Unix seconds
	VotingEndTs  int64 // Unix seconds
	IsFinalized  bool  // administrative override
}

// Evaluate returns the phase of s at now. It has no side effects.
//
// IsFinalized forces Finalized regardless of the clock. Otherwise the phase is
// Funding before FundingEndTs, Voting before VotingEndTs, and Finalized after.
func Evaluate(s Schedule, now time.Time) Phase {
	ts := now.Unix()
	switch {
	case s.IsFinalized:
		return Finalized
	case ts < s.FundingEndTs:
		return Funding
	case ts < s.VotingEndTs:
		return Voting
	default:
		return Finalized
	}
}

// Remaining formats the time left until endTs: "3d 4h", "2h 5m", "12m" or "Ended".
func Remaining(endTs int64, now time.Time) string {
	remaining := endTs - now.Unix()
	if remaining <= 0 {
		return "Ended"
	}

	days := remaining / 86400
	hours := (remaining % 86400) / 3600
	minutes := (remaining % 3600) / 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

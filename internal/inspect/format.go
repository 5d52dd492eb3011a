// Package inspect renders ledger records for the terminal: season summaries,
// the region grid, bid tables and the activity feed.
package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/mural/pkg/address"
	"github.com/dyluth/mural/pkg/ledger"
	"github.com/dyluth/mural/pkg/phase"
)

// OutputFormat selects table or machine-readable output.
type OutputFormat string

const (
	OutputFormatDefault OutputFormat = "default"
	OutputFormatJSONL   OutputFormat = "jsonl"
)

// ParseOutputFormat validates an --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputFormatDefault:
		return OutputFormatDefault, nil
	case OutputFormatJSONL:
		return OutputFormatJSONL, nil
	}
	return "", fmt.Errorf("invalid output format %q (must be 'default' or 'jsonl')", s)
}

// Grid cell markers.
const (
	markUnfunded = "."
	markFunded   = "$"
	markWinner   = "*"
	markPainted  = "#"
)

// FormatSeason writes a season summary with its phase and deadlines.
func FormatSeason(w io.Writer, s *ledger.Season, p phase.Phase, now time.Time) {
	fmt.Fprintf(w, "Season:       %s\n", s.Address)
	fmt.Fprintf(w, "Title:        %s\n", s.Title)
	if s.Description != "" {
		fmt.Fprintf(w, "Description:  %s\n", s.Description)
	}
	fmt.Fprintf(w, "Authority:    %s\n", s.Authority)
	fmt.Fprintf(w, "Phase:        %s\n", p)
	fmt.Fprintf(w, "Funding ends: %s (%s)\n", formatUnix(s.FundingEndTs), phase.Remaining(s.FundingEndTs, now))
	fmt.Fprintf(w, "Voting ends:  %s (%s)\n", formatUnix(s.VotingEndTs), phase.Remaining(s.VotingEndTs, now))
	fmt.Fprintf(w, "Min funding:  %s\n", FormatAmount(s.MinFundingPerRegion))
	fmt.Fprintf(w, "Funded:       %s across %d/%d regions\n", FormatAmount(s.TotalFunded), s.RegionsFunded, ledger.GridSize*ledger.GridSize)
	if s.FinalArtURI != nil {
		fmt.Fprintf(w, "Final art:    %s\n", *s.FinalArtURI)
	}
}

// FormatGrid draws the season canvas. Row labels are y, column labels x.
//
//	. unfunded   $ funded   * winner chosen   # painted
func FormatGrid(w io.Writer, regions []*ledger.Region) {
	cells := make(map[[2]uint8]*ledger.Region, len(regions))
	for _, r := range regions {
		cells[[2]uint8{r.X, r.Y}] = r
	}

	var b strings.Builder
	b.WriteString("   ")
	for x := 0; x < ledger.GridSize; x++ {
		fmt.Fprintf(&b, " %d", x)
	}
	b.WriteString("\n")
	for y := 0; y < ledger.GridSize; y++ {
		fmt.Fprintf(&b, "%2d ", y)
		for x := 0; x < ledger.GridSize; x++ {
			b.WriteString(" " + cellMarker(cells[[2]uint8{uint8(x), uint8(y)}]))
		}
		b.WriteString("\n")
	}
	fmt.Fprint(w, b.String())
	fmt.Fprintf(w, "\n%s unfunded  %s funded  %s winner chosen  %s painted\n", markUnfunded, markFunded, markWinner, markPainted)
}

func cellMarker(r *ledger.Region) string {
	switch {
	case r == nil:
		return markUnfunded
	case r.IsPainted:
		return markPainted
	case r.WinningBid != nil:
		return markWinner
	default:
		return markFunded
	}
}

// FormatRegion writes a region summary followed by its bids.
func FormatRegion(w io.Writer, r *ledger.Region, bids []*ledger.Bid) {
	fmt.Fprintf(w, "Region:       %s (%d,%d)\n", r.Address, r.X, r.Y)
	fmt.Fprintf(w, "Season:       %s\n", r.Season)
	fmt.Fprintf(w, "Vault:        %s\n", r.Vault)
	fmt.Fprintf(w, "Funded:       %s from %d contributor%s\n", FormatAmount(r.TotalFunded), r.ContributorCount, plural(int(r.ContributorCount)))
	fmt.Fprintf(w, "Winning bid:  %s\n", optionalShort(r.WinningBid))
	if r.FinalArtURI != nil {
		fmt.Fprintf(w, "Final art:    %s\n", *r.FinalArtURI)
	}
	fmt.Fprintln(w)
	FormatBids(w, bids)
}

// FormatBids writes bids in submission order as a table.
// Returns the number of bids formatted.
func FormatBids(w io.Writer, bids []*ledger.Bid) int {
	if len(bids) == 0 {
		fmt.Fprintln(w, "No bids submitted")
		return 0
	}

	fmt.Fprintf(w, "%-4s %-10s %-10s %-14s %-6s %-14s %-8s %s\n",
		"SEQ", "BID", "ARTIST", "REQUESTED", "VOTES", "WEIGHT", "STATUS", "SKETCH")
	fmt.Fprintf(w, "%-4s %-10s %-10s %-14s %-6s %-14s %-8s %s\n",
		"----", "----------", "----------", "--------------", "------", "--------------", "--------", "----------------------------------------")
	for _, b := range bids {
		fmt.Fprintf(w, "%-4d %-10s %-10s %-14s %-6d %-14s %-8s %s\n",
			b.Sequence,
			b.Address.Short(),
			b.Artist.Short(),
			FormatAmount(b.RequestedAmount),
			b.VoteCount,
			FormatAmount(b.VoteWeight),
			bidStatus(b),
			truncate(b.SketchURI, 40),
		)
	}

	fmt.Fprintf(w, "\n%d bid%s\n", len(bids), plural(len(bids)))
	return len(bids)
}

func bidStatus(b *ledger.Bid) string {
	switch {
	case b.FinalArtURI != nil:
		return "painted"
	case b.IsWinner:
		return "winner"
	default:
		return "-"
	}
}

// FormatContribution writes a funder's stake and vote.
func FormatContribution(w io.Writer, c *ledger.Contribution) {
	fmt.Fprintf(w, "Contribution: %s\n", c.Address)
	fmt.Fprintf(w, "Region:       %s\n", c.Region)
	fmt.Fprintf(w, "Contributor:  %s\n", c.Contributor)
	fmt.Fprintf(w, "Amount:       %s\n", FormatAmount(c.Amount))
	if c.HasVoted {
		fmt.Fprintf(w, "Voted for:    %s (weight %s)\n", optionalShort(c.VotedBid), FormatAmount(c.VotedWeight))
	} else {
		fmt.Fprintln(w, "Voted for:    -")
	}
}

// FormatEvent writes one activity feed line.
func FormatEvent(w io.Writer, ev *ledger.Event) {
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %-17s %-10s by %s", formatTimestamp(ev.CreatedAtMs), ev.Kind, ev.Subject.Short(), ev.Actor.Short())
	if ev.X != nil && ev.Y != nil {
		fmt.Fprintf(&b, " at (%d,%d)", *ev.X, *ev.Y)
	}
	if ev.Amount > 0 {
		fmt.Fprintf(&b, " amount %s", FormatAmount(ev.Amount))
	}
	if ev.Message != "" {
		fmt.Fprintf(&b, " %q", truncate(ev.Message, 60))
	}
	fmt.Fprintln(w, b.String())
}

// FormatJSONL writes each item as one compact JSON object per line.
func FormatJSONL[T any](w io.Writer, items []T) error {
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal record to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON writes v as pretty-printed JSON.
func FormatSingleJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

func optionalShort(a *address.Address) string {
	if a == nil {
		return "-"
	}
	return a.Short()
}

func truncate(s string, max int) string {
	if s == "" {
		return "-"
	}
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func formatUnix(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

// formatTimestamp formats a Unix millisecond timestamp as relative time: "5s ago", "2m ago".
func formatTimestamp(timestampMs int64) string {
	if timestampMs == 0 {
		return "-"
	}

	diff := time.Since(time.UnixMilli(timestampMs))
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}

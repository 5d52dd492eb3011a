package ledger

import (
	"fmt"

	"github.com/dyluth/mural/pkg/address"
	"github.com/dyluth/mural/pkg/phase"
)

// Protocol-level limits.
const (
	GridSize          = 8   // regions per side; 64 regions per season
	MaxTitleLen       = 64  // bytes
	MaxDescriptionLen = 256 // bytes
	MaxURILen         = 200 // bytes
)

// Season is a canvas created by an authority.
// TotalFunded and RegionsFunded only grow until the season is finalized.
type Season struct {
	Address             address.Address `json:"address"`
	Authority           address.Address `json:"authority"`
	Title               string          `json:"title"`
	Description         string          `json:"description"`
	FundingEndTs        int64           `json:"funding_end_ts"`         // Unix seconds
	VotingEndTs         int64           `json:"voting_end_ts"`          // Unix seconds
	MinFundingPerRegion uint64          `json:"min_funding_per_region"` // first contribution floor
	TotalFunded         uint64          `json:"total_funded"`
	RegionsFunded       uint32          `json:"regions_funded"`
	IsFinalized         bool            `json:"is_finalized"`
	FinalArtURI         *string         `json:"final_art_uri,omitempty"` // season-level artwork, set on finalize
	CreatedAtMs         int64           `json:"created_at_ms"`
}

// Schedule returns the fields the phase evaluator needs.
func (s *Season) Schedule() phase.Schedule {
	return phase.Schedule{
		FundingEndTs: s.FundingEndTs,
		VotingEndTs:  s.VotingEndTs,
		IsFinalized:  s.IsFinalized,
	}
}

// Region is one funded cell of a season's grid.
type Region struct {
	Address          address.Address  `json:"address"`
	Season           address.Address  `json:"season"`
	X                uint8            `json:"x"`
	Y                uint8            `json:"y"`
	Vault            address.Address  `json:"vault"`
	TotalFunded      uint64           `json:"total_funded"`
	ContributorCount uint32           `json:"contributor_count"`
	BidCount         uint32           `json:"bid_count"`
	WinningBid       *address.Address `json:"winning_bid,omitempty"`
	IsPainted        bool             `json:"is_painted"`
	FinalArtURI      *string          `json:"final_art_uri,omitempty"`
}

// Contribution is one funder's cumulative stake in a region.
type Contribution struct {
	Address     address.Address  `json:"address"`
	Region      address.Address  `json:"region"`
	Contributor address.Address  `json:"contributor"`
	Amount      uint64           `json:"amount"`
	HasVoted    bool             `json:"has_voted"`
	VotedBid    *address.Address `json:"voted_bid,omitempty"`
	VotedWeight uint64           `json:"voted_weight"` // Amount captured when the vote was cast
}

// Bid is an artist's proposal for a region.
type Bid struct {
	Address         address.Address `json:"address"`
	Region          address.Address `json:"region"`
	Artist          address.Address `json:"artist"`
	SketchURI       string          `json:"sketch_uri"`
	RequestedAmount uint64          `json:"requested_amount"`
	VoteCount       uint32          `json:"vote_count"`
	VoteWeight      uint64          `json:"vote_weight"`
	FinalArtURI     *string         `json:"final_art_uri,omitempty"`
	IsWinner        bool            `json:"is_winner"`
	Sequence        uint32          `json:"sequence"` // 1-based submission order within the region
	CreatedAtMs     int64           `json:"created_at_ms"`
}

// Validate checks the Season's structural invariants.
func (s *Season) Validate() error {
	if s.Address.IsZero() {
		return fmt.Errorf("season address cannot be zero")
	}
	if s.Authority.IsZero() {
		return fmt.Errorf("season authority cannot be zero")
	}
	if s.Title == "" || len(s.Title) > MaxTitleLen {
		return fmt.Errorf("invalid title length: %d (must be 1-%d bytes)", len(s.Title), MaxTitleLen)
	}
	if len(s.Description) > MaxDescriptionLen {
		return fmt.Errorf("invalid description length: %d (max %d bytes)", len(s.Description), MaxDescriptionLen)
	}
	if s.VotingEndTs <= s.FundingEndTs {
		return fmt.Errorf("voting_end_ts (%d) must be after funding_end_ts (%d)", s.VotingEndTs, s.FundingEndTs)
	}
	if s.FinalArtURI != nil && len(*s.FinalArtURI) > MaxURILen {
		return fmt.Errorf("final art URI too long: %d (max %d bytes)", len(*s.FinalArtURI), MaxURILen)
	}
	return nil
}

// Validate checks the Region's structural invariants.
func (r *Region) Validate() error {
	if r.Address.IsZero() || r.Season.IsZero() {
		return fmt.Errorf("region and season addresses cannot be zero")
	}
	if r.X >= GridSize || r.Y >= GridSize {
		return fmt.Errorf("region coordinates (%d,%d) outside %dx%d grid", r.X, r.Y, GridSize, GridSize)
	}
	if r.IsPainted && r.WinningBid == nil {
		return fmt.Errorf("region cannot be painted without a winning bid")
	}
	if r.IsPainted != (r.FinalArtURI != nil) {
		return fmt.Errorf("final art URI must be set exactly when the region is painted")
	}
	return nil
}

// Validate checks the Contribution's structural invariants.
func (c *Contribution) Validate() error {
	if c.Address.IsZero() || c.Region.IsZero() || c.Contributor.IsZero() {
		return fmt.Errorf("contribution addresses cannot be zero")
	}
	if c.Amount == 0 {
		return fmt.Errorf("contribution amount must be positive")
	}
	if c.HasVoted != (c.VotedBid != nil) {
		return fmt.Errorf("has_voted must be true exactly when voted_bid is set")
	}
	return nil
}

// Validate checks the Bid's structural invariants.
func (b *Bid) Validate() error {
	if b.Address.IsZero() || b.Region.IsZero() || b.Artist.IsZero() {
		return fmt.Errorf("bid addresses cannot be zero")
	}
	if len(b.SketchURI) > MaxURILen {
		return fmt.Errorf("sketch URI too long: %d (max %d bytes)", len(b.SketchURI), MaxURILen)
	}
	if b.RequestedAmount == 0 {
		return fmt.Errorf("requested amount must be positive")
	}
	if b.Sequence == 0 {
		return fmt.Errorf("bid sequence must be >= 1")
	}
	return nil
}

// InGrid reports whether (x, y) is a valid cell coordinate.
func InGrid(x, y int) bool {
	return x >= 0 && x < GridSize && y >= 0 && y < GridSize
}

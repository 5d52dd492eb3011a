package ledger

import (
	"fmt"
	"strconv"

	"github.com/dyluth/mural/pkg/address"
)

// Serialization helpers for converting between ledger records and Redis hashes
//
// Redis stores hashes as string-to-string maps. Addresses are hex, integers are
// decimal, booleans are "true"/"false" and nullable fields use the empty string
// for "unset".

// SeasonToHash converts a Season to Redis hash format.
func SeasonToHash(s *Season) map[string]interface{} {
	return map[string]interface{}{
		"address":                s.Address.String(),
		"authority":              s.Authority.String(),
		"title":                  s.Title,
		"description":            s.Description,
		"funding_end_ts":         s.FundingEndTs,
		"voting_end_ts":          s.VotingEndTs,
		"min_funding_per_region": strconv.FormatUint(s.MinFundingPerRegion, 10),
		"total_funded":           strconv.FormatUint(s.TotalFunded, 10),
		"regions_funded":         s.RegionsFunded,
		"is_finalized":           strconv.FormatBool(s.IsFinalized),
		"final_art_uri":          optionalString(s.FinalArtURI),
		"created_at_ms":          s.CreatedAtMs,
	}
}

// HashToSeason converts a Redis hash to a Season.
func HashToSeason(hash map[string]string) (*Season, error) {
	d := decoder{hash: hash}
	s := &Season{
		Address:             d.address("address"),
		Authority:           d.address("authority"),
		Title:               hash["title"],
		Description:         hash["description"],
		FundingEndTs:        d.int64("funding_end_ts"),
		VotingEndTs:         d.int64("voting_end_ts"),
		MinFundingPerRegion: d.uint64("min_funding_per_region"),
		TotalFunded:         d.uint64("total_funded"),
		RegionsFunded:       d.uint32("regions_funded"),
		IsFinalized:         d.bool("is_finalized"),
		FinalArtURI:         optionalPtr(hash["final_art_uri"]),
		CreatedAtMs:         d.int64("created_at_ms"),
	}
	if d.err != nil {
		return nil, d.err
	}
	return s, nil
}

// RegionToHash converts a Region to Redis hash format.
func RegionToHash(r *Region) map[string]interface{} {
	return map[string]interface{}{
		"address":           r.Address.String(),
		"season":            r.Season.String(),
		"x":                 r.X,
		"y":                 r.Y,
		"vault":             r.Vault.String(),
		"total_funded":      strconv.FormatUint(r.TotalFunded, 10),
		"contributor_count": r.ContributorCount,
		"bid_count":         r.BidCount,
		"winning_bid":       address.Optional(r.WinningBid),
		"is_painted":        strconv.FormatBool(r.IsPainted),
		"final_art_uri":     optionalString(r.FinalArtURI),
	}
}

// HashToRegion converts a Redis hash to a Region.
func HashToRegion(hash map[string]string) (*Region, error) {
	d := decoder{hash: hash}
	r := &Region{
		Address:          d.address("address"),
		Season:           d.address("season"),
		X:                d.uint8("x"),
		Y:                d.uint8("y"),
		Vault:            d.address("vault"),
		TotalFunded:      d.uint64("total_funded"),
		ContributorCount: d.uint32("contributor_count"),
		BidCount:         d.uint32("bid_count"),
		WinningBid:       d.optionalAddress("winning_bid"),
		IsPainted:        d.bool("is_painted"),
		FinalArtURI:      optionalPtr(hash["final_art_uri"]),
	}
	if d.err != nil {
		return nil, d.err
	}
	return r, nil
}

// ContributionToHash converts a Contribution to Redis hash format.
func ContributionToHash(c *Contribution) map[string]interface{} {
	return map[string]interface{}{
		"address":      c.Address.String(),
		"region":       c.Region.String(),
		"contributor":  c.Contributor.String(),
		"amount":       strconv.FormatUint(c.Amount, 10),
		"has_voted":    strconv.FormatBool(c.HasVoted),
		"voted_bid":    address.Optional(c.VotedBid),
		"voted_weight": strconv.FormatUint(c.VotedWeight, 10),
	}
}

// HashToContribution converts a Redis hash to a Contribution.
func HashToContribution(hash map[string]string) (*Contribution, error) {
	d := decoder{hash: hash}
	c := &Contribution{
		Address:     d.address("address"),
		Region:      d.address("region"),
		Contributor: d.address("contributor"),
		Amount:      d.uint64("amount"),
		HasVoted:    d.bool("has_voted"),
		VotedBid:    d.optionalAddress("voted_bid"),
		VotedWeight: d.uint64("voted_weight"),
	}
	if d.err != nil {
		return nil, d.err
	}
	return c, nil
}

// BidToHash converts a Bid to Redis hash format.
func BidToHash(b *Bid) map[string]interface{} {
	return map[string]interface{}{
		"address":          b.Address.String(),
		"region":           b.Region.String(),
		"artist":           b.Artist.String(),
		"sketch_uri":       b.SketchURI,
		"requested_amount": strconv.FormatUint(b.RequestedAmount, 10),
		"vote_count":       b.VoteCount,
		"vote_weight":      strconv.FormatUint(b.VoteWeight, 10),
		"final_art_uri":    optionalString(b.FinalArtURI),
		"is_winner":        strconv.FormatBool(b.IsWinner),
		"sequence":         b.Sequence,
		"created_at_ms":    b.CreatedAtMs,
	}
}

// HashToBid converts a Redis hash to a Bid.
func HashToBid(hash map[string]string) (*Bid, error) {
	d := decoder{hash: hash}
	b := &Bid{
		Address:         d.address("address"),
		Region:          d.address("region"),
		Artist:          d.address("artist"),
		SketchURI:       hash["sketch_uri"],
		RequestedAmount: d.uint64("requested_amount"),
		VoteCount:       d.uint32("vote_count"),
		VoteWeight:      d.uint64("vote_weight"),
		FinalArtURI:     optionalPtr(hash["final_art_uri"]),
		IsWinner:        d.bool("is_winner"),
		Sequence:        d.uint32("sequence"),
		CreatedAtMs:     d.int64("created_at_ms"),
	}
	if d.err != nil {
		return nil, d.err
	}
	return b, nil
}

// decoder parses hash fields and keeps the first error.
type decoder struct {
	hash map[string]string
	err  error
}

func (d *decoder) fail(field string, err error) {
	if d.err == nil {
		d.err = fmt.Errorf("invalid %s field: %w", field, err)
	}
}

func (d *decoder) address(field string) address.Address {
	a, err := address.Parse(d.hash[field])
	if err != nil {
		d.fail(field, err)
	}
	return a
}

func (d *decoder) optionalAddress(field string) *address.Address {
	a, err := address.ParseOptional(d.hash[field])
	if err != nil {
		d.fail(field, err)
	}
	return a
}

func (d *decoder) uint64(field string) uint64 {
	v, err := strconv.ParseUint(d.hash[field], 10, 64)
	if err != nil {
		d.fail(field, err)
	}
	return v
}

func (d *decoder) uint32(field string) uint32 {
	v, err := strconv.ParseUint(d.hash[field], 10, 32)
	if err != nil {
		d.fail(field, err)
	}
	return uint32(v)
}

func (d *decoder) uint8(field string) uint8 {
	v, err := strconv.ParseUint(d.hash[field], 10, 8)
	if err != nil {
		d.fail(field, err)
	}
	return uint8(v)
}

func (d *decoder) int64(field string) int64 {
	v, err := strconv.ParseInt(d.hash[field], 10, 64)
	if err != nil {
		d.fail(field, err)
	}
	return v
}

func (d *decoder) bool(field string) bool {
	v, err := strconv.ParseBool(d.hash[field])
	if err != nil {
		d.fail(field, err)
	}
	return v
}

func optionalString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optionalPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

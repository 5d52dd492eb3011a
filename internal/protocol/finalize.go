package protocol

import (
	"context"

	"github.com/dyluth/mural/pkg/address"
	"github.com/dyluth/mural/pkg/ledger"
	"github.com/dyluth/mural/pkg/phase"
	"github.com/sirupsen/logrus"
)

// FinalizeRegionRequest resolves the winning bid of a region.
type FinalizeRegionRequest struct {
	Season address.Address `json:"season"`
	Region address.Address `json:"region"`
}

// FinalizeRegion selects the winning bid once the season is Finalized. Anyone
// may call it. The bid with the highest vote weight wins; ties go to the
// earliest submitted bid. A region with no bids stays unresolved, and a region
// that already has a winner is left as is, so repeated calls are harmless.
func (e *Engine) FinalizeRegion(ctx context.Context, req FinalizeRegionRequest) (address.Address, error) {
	fields := logrus.Fields{"season": req.Season.Short(), "region": req.Region.Short()}

	return e.run(ctx, "finalize_region", fields, func(tx *ledger.Tx) (address.Address, error) {
		season, err := loadSeason(tx, req.Season)
		if err != nil {
			return address.Zero, err
		}
		if err := e.requirePhase(season, phase.Finalized); err != nil {
			return address.Zero, err
		}
		region, err := loadRegion(tx, req.Season, req.Region)
		if err != nil {
			return address.Zero, err
		}
		if region.WinningBid != nil {
			return region.Address, nil
		}

		bids, err := tx.Bids(region.Address)
		if err != nil {
			return address.Zero, err
		}
		winner := SelectWinner(bids)
		if winner == nil {
			return region.Address, nil
		}

		winner.IsWinner = true
		region.WinningBid = ptr(winner.Address)
		if err := tx.PutBid(winner); err != nil {
			return address.Zero, err
		}
		if err := tx.PutRegion(region); err != nil {
			return address.Zero, err
		}
		tx.Emit(&ledger.Event{
			Kind:    ledger.EventRegionFinalized,
			Season:  ptr(req.Season),
			Region:  ptr(region.Address),
			Subject: winner.Address,
			Actor:   winner.Artist,
			Amount:  winner.VoteWeight,
			X:       ptr(region.X),
			Y:       ptr(region.Y),
		})
		return region.Address, nil
	})
}

// SelectWinner returns the bid with the greatest vote weight, preferring the
// lowest sequence on ties. Returns nil for no bids. Input order is irrelevant.
func SelectWinner(bids []*ledger.Bid) *ledger.Bid {
	var best *ledger.Bid
	for _, b := range bids {
		if best == nil ||
			b.VoteWeight > best.VoteWeight ||
			(b.VoteWeight == best.VoteWeight && b.Sequence < best.Sequence) {
			best = b
		}
	}
	return best
}

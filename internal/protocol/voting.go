package protocol

import (
	"context"

	"github.com/dyluth/mural/pkg/address"
	"github.com/dyluth/mural/pkg/ledger"
	"github.com/dyluth/mural/pkg/phase"
	"github.com/sirupsen/logrus"
)

// VoteRequest casts a contributor's vote for a bid.
type VoteRequest struct {
	Season address.Address `json:"season"`
	Region address.Address `json:"region"`
	Bid    address.Address `json:"bid"`
	Voter  address.Address `json:"voter"`
}

// VoteForBid casts the voter's single vote in a region. The vote weighs the
// voter's contribution at the moment of voting, and that weight is frozen.
func (e *Engine) VoteForBid(ctx context.Context, req VoteRequest) (address.Address, error) {
	if err := requireIdentity("voter", req.Voter); err != nil {
		return address.Zero, err
	}

	fields := logrus.Fields{
		"season": req.Season.Short(),
		"region": req.Region.Short(),
		"bid":    req.Bid.Short(),
		"voter":  req.Voter.Short(),
	}

	return e.run(ctx, "vote_for_bid", fields, func(tx *ledger.Tx) (address.Address, error) {
		season, err := loadSeason(tx, req.Season)
		if err != nil {
			return address.Zero, err
		}
		if err := e.requirePhase(season, phase.Voting); err != nil {
			return address.Zero, err
		}
		region, err := loadRegion(tx, req.Season, req.Region)
		if err != nil {
			return address.Zero, err
		}

		bid, err := tx.Bid(req.Bid)
		if ledger.IsNotFound(err) {
			return address.Zero, newError(CodeBidNotFound, "bid %s does not exist", req.Bid.Short())
		}
		if err != nil {
			return address.Zero, err
		}
		if bid.Region != region.Address {
			return address.Zero, newError(CodeBidNotFound, "bid %s is not for region %s", req.Bid.Short(), req.Region.Short())
		}

		contributionAddr := address.Contribution(req.Season, region.X, region.Y, req.Voter)
		contribution, err := tx.Contribution(contributionAddr)
		if ledger.IsNotFound(err) {
			return address.Zero, newError(CodeNoContribution, "voter %s has not funded region %s", req.Voter.Short(), req.Region.Short())
		}
		if err != nil {
			return address.Zero, err
		}
		if contribution.HasVoted {
			return address.Zero, newError(CodeAlreadyVoted, "voter %s already voted in region %s", req.Voter.Short(), req.Region.Short())
		}

		weight := contribution.Amount
		if bid.VoteWeight, err = addChecked(bid.VoteWeight, weight, "bid vote weight"); err != nil {
			return address.Zero, err
		}
		bid.VoteCount++

		contribution.HasVoted = true
		contribution.VotedBid = ptr(bid.Address)
		contribution.VotedWeight = weight

		if err := tx.PutContribution(contribution); err != nil {
			return address.Zero, err
		}
		if err := tx.PutBid(bid); err != nil {
			return address.Zero, err
		}
		tx.Emit(&ledger.Event{
			Kind:    ledger.EventVoteCast,
			Season:  ptr(req.Season),
			Region:  ptr(req.Region),
			Subject: bid.Address,
			Actor:   req.Voter,
			Amount:  weight,
			X:       ptr(region.X),
			Y:       ptr(region.Y),
		})
		return contributionAddr, nil
	})
}

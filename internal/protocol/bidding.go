package protocol

import (
	"context"

	"github.com/dyluth/mural/pkg/address"
	"github.com/dyluth/mural/pkg/ledger"
	"github.com/dyluth/mural/pkg/phase"
	"github.com/sirupsen/logrus"
)

// SubmitBidRequest proposes a sketch for a funded region.
type SubmitBidRequest struct {
	Season          address.Address `json:"season"`
	Region          address.Address `json:"region"`
	Artist          address.Address `json:"artist"`
	SketchURI       string          `json:"sketch_uri"`
	RequestedAmount uint64          `json:"requested_amount"`
}

// SubmitBid records an artist's proposal during the Voting phase. An artist
// may bid once per region, and may not ask for more than the region holds.
func (e *Engine) SubmitBid(ctx context.Context, req SubmitBidRequest) (address.Address, error) {
	if err := requireIdentity("artist", req.Artist); err != nil {
		return address.Zero, err
	}
	if req.SketchURI == "" || len(req.SketchURI) > ledger.MaxURILen {
		return address.Zero, newError(CodeInvalidURI, "sketch URI must be 1-%d bytes, got %d", ledger.MaxURILen, len(req.SketchURI))
	}
	if req.RequestedAmount == 0 {
		return address.Zero, newError(CodeInvalidAmount, "requested amount must be positive")
	}

	bidAddr := address.Bid(req.Region, req.Artist)
	fields := logrus.Fields{
		"season":    req.Season.Short(),
		"region":    req.Region.Short(),
		"artist":    req.Artist.Short(),
		"requested": req.RequestedAmount,
	}

	return e.run(ctx, "submit_bid", fields, func(tx *ledger.Tx) (address.Address, error) {
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
		if req.RequestedAmount > region.TotalFunded {
			return address.Zero, newError(CodeInvalidAmount, "requested %d exceeds region funding of %d", req.RequestedAmount, region.TotalFunded)
		}

		_, err = tx.Bid(bidAddr)
		if err == nil {
			return address.Zero, newError(CodeDuplicateBid, "artist %s already bid on region %s", req.Artist.Short(), req.Region.Short())
		}
		if !ledger.IsNotFound(err) {
			return address.Zero, err
		}

		region.BidCount++
		bid := &ledger.Bid{
			Address:         bidAddr,
			Region:          req.Region,
			Artist:          req.Artist,
			SketchURI:       req.SketchURI,
			RequestedAmount: req.RequestedAmount,
			Sequence:        region.BidCount,
			CreatedAtMs:     e.clock.Now().UnixMilli(),
		}
		if err := tx.PutBid(bid); err != nil {
			return address.Zero, err
		}
		if err := tx.PutRegion(region); err != nil {
			return address.Zero, err
		}
		tx.Emit(&ledger.Event{
			Kind:    ledger.EventBidSubmitted,
			Season:  ptr(req.Season),
			Region:  ptr(req.Region),
			Subject: bidAddr,
			Actor:   req.Artist,
			Amount:  req.RequestedAmount,
			X:       ptr(region.X),
			Y:       ptr(region.Y),
			Message: req.SketchURI,
		})
		return bidAddr, nil
	})
}

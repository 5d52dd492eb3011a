package protocol

import (
	"context"

	"github.com/dyluth/mural/pkg/address"
	"github.com/dyluth/mural/pkg/ledger"
	"github.com/sirupsen/logrus"
)

// PayoutRequest claims the winning bid's payment and records the final artwork.
type PayoutRequest struct {
	Season      address.Address `json:"season"`
	Region      address.Address `json:"region"`
	Artist      address.Address `json:"artist"`
	FinalArtURI string          `json:"final_art_uri"`
}

// PayoutAndPaint pays the winning artist their requested amount from the
// region vault and marks the region painted. Only the winner may call it, once.
// Whatever the vault holds beyond the requested amount stays in the vault.
func (e *Engine) PayoutAndPaint(ctx context.Context, req PayoutRequest) (address.Address, error) {
	if err := requireIdentity("artist", req.Artist); err != nil {
		return address.Zero, err
	}
	if req.FinalArtURI == "" || len(req.FinalArtURI) > ledger.MaxURILen {
		return address.Zero, newError(CodeInvalidURI, "final art URI must be 1-%d bytes, got %d", ledger.MaxURILen, len(req.FinalArtURI))
	}

	fields := logrus.Fields{"season": req.Season.Short(), "region": req.Region.Short(), "artist": req.Artist.Short()}

	return e.run(ctx, "payout_and_paint", fields, func(tx *ledger.Tx) (address.Address, error) {
		region, err := loadRegion(tx, req.Season, req.Region)
		if err != nil {
			return address.Zero, err
		}
		if region.WinningBid == nil {
			return address.Zero, newError(CodeNotWinner, "region %s has no winning bid", req.Region.Short())
		}
		bid, err := tx.Bid(*region.WinningBid)
		if err != nil {
			return address.Zero, err
		}
		if bid.Artist != req.Artist {
			return address.Zero, newError(CodeNotWinner, "artist %s did not win region %s", req.Artist.Short(), req.Region.Short())
		}
		if region.IsPainted {
			return address.Zero, newError(CodeAlreadyPainted, "region %s is already painted", req.Region.Short())
		}

		if err := tx.Transfer(region.Vault, req.Artist, bid.RequestedAmount); err != nil {
			return address.Zero, fromLedger(err)
		}

		region.IsPainted = true
		region.FinalArtURI = ptr(req.FinalArtURI)
		bid.FinalArtURI = ptr(req.FinalArtURI)
		if err := tx.PutRegion(region); err != nil {
			return address.Zero, err
		}
		if err := tx.PutBid(bid); err != nil {
			return address.Zero, err
		}
		tx.Emit(&ledger.Event{
			Kind:    ledger.EventRegionPainted,
			Season:  ptr(req.Season),
			Region:  ptr(region.Address),
			Subject: region.Address,
			Actor:   req.Artist,
			Amount:  bid.RequestedAmount,
			X:       ptr(region.X),
			Y:       ptr(region.Y),
			Message: req.FinalArtURI,
		})
		return region.Address, nil
	})
}

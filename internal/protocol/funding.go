package protocol

import (
	"context"

	"github.com/dyluth/mural/pkg/address"
	"github.com/dyluth/mural/pkg/ledger"
	"github.com/dyluth/mural/pkg/phase"
	"github.com/sirupsen/logrus"
)

// FundRegionRequest pledges tokens to one grid cell of a season.
type FundRegionRequest struct {
	Season address.Address `json:"season"`
	X      int             `json:"x"`
	Y      int             `json:"y"`
	Funder address.Address `json:"funder"`
	Amount uint64          `json:"amount"`
}

// FundRegion moves Amount from the funder's account into the region's vault.
//
// The first contribution to a region creates it and must meet the season's
// minimum; later contributions of any positive size are additive. A funder
// holds one contribution record per region.
func (e *Engine) FundRegion(ctx context.Context, req FundRegionRequest) (address.Address, error) {
	if err := requireIdentity("funder", req.Funder); err != nil {
		return address.Zero, err
	}
	if !ledger.InGrid(req.X, req.Y) {
		return address.Zero, newError(CodeInvalidRegion, "coordinates (%d,%d) are outside the %dx%d grid", req.X, req.Y, ledger.GridSize, ledger.GridSize)
	}
	if req.Amount == 0 {
		return address.Zero, newError(CodeInvalidAmount, "funding amount must be positive")
	}

	x, y := uint8(req.X), uint8(req.Y)
	regionAddr := address.Region(req.Season, x, y)
	vault := address.Vault(req.Season, x, y)
	contributionAddr := address.Contribution(req.Season, x, y, req.Funder)
	fields := logrus.Fields{
		"season": req.Season.Short(),
		"x":      req.X,
		"y":      req.Y,
		"funder": req.Funder.Short(),
		"amount": req.Amount,
	}

	return e.run(ctx, "fund_region", fields, func(tx *ledger.Tx) (address.Address, error) {
		season, err := loadSeason(tx, req.Season)
		if err != nil {
			return address.Zero, err
		}
		if err := e.requirePhase(season, phase.Funding); err != nil {
			return address.Zero, err
		}

		region, err := tx.Region(regionAddr)
		newRegion := ledger.IsNotFound(err)
		if err != nil && !newRegion {
			return address.Zero, err
		}
		if newRegion {
			if req.Amount < season.MinFundingPerRegion {
				return address.Zero, newError(CodeInvalidAmount, "first contribution to a region must be at least %d, got %d", season.MinFundingPerRegion, req.Amount)
			}
			region = &ledger.Region{
				Address: regionAddr,
				Season:  req.Season,
				X:       x,
				Y:       y,
				Vault:   vault,
			}
		}

		contribution, err := tx.Contribution(contributionAddr)
		newContribution := ledger.IsNotFound(err)
		if err != nil && !newContribution {
			return address.Zero, err
		}
		if newContribution {
			contribution = &ledger.Contribution{
				Address:     contributionAddr,
				Region:      regionAddr,
				Contributor: req.Funder,
			}
		}

		if contribution.Amount, err = addChecked(contribution.Amount, req.Amount, "contribution total"); err != nil {
			return address.Zero, err
		}
		if region.TotalFunded, err = addChecked(region.TotalFunded, req.Amount, "region total"); err != nil {
			return address.Zero, err
		}
		if season.TotalFunded, err = addChecked(season.TotalFunded, req.Amount, "season total"); err != nil {
			return address.Zero, err
		}
		if newContribution {
			region.ContributorCount++
		}
		if newRegion {
			season.RegionsFunded++
		}

		if err := tx.Transfer(req.Funder, vault, req.Amount); err != nil {
			return address.Zero, fromLedger(err)
		}

		if err := tx.PutContribution(contribution); err != nil {
			return address.Zero, err
		}
		if err := tx.PutRegion(region); err != nil {
			return address.Zero, err
		}
		if err := tx.PutSeason(season); err != nil {
			return address.Zero, err
		}
		tx.Emit(&ledger.Event{
			Kind:    ledger.EventRegionFunded,
			Season:  ptr(req.Season),
			Region:  ptr(regionAddr),
			Subject: contributionAddr,
			Actor:   req.Funder,
			Amount:  req.Amount,
			X:       ptr(x),
			Y:       ptr(y),
		})
		return contributionAddr, nil
	})
}

package protocol

import (
	"context"

	"github.com/dyluth/mural/pkg/address"
	"github.com/dyluth/mural/pkg/ledger"
	"github.com/sirupsen/logrus"
)

// CreateSeasonRequest describes a new season.
type CreateSeasonRequest struct {
	Authority           address.Address `json:"authority"`
	Title               string          `json:"title"`
	Description         string          `json:"description"`
	FundingEndTs        int64           `json:"funding_end_ts"`
	VotingEndTs         int64           `json:"voting_end_ts"`
	MinFundingPerRegion uint64          `json:"min_funding_per_region"`
}

// CreateSeason registers a season. Its address derives from (authority, title),
// so one authority cannot reuse a title.
func (e *Engine) CreateSeason(ctx context.Context, req CreateSeasonRequest) (address.Address, error) {
	if err := requireIdentity("authority", req.Authority); err != nil {
		return address.Zero, err
	}
	if req.Title == "" || len(req.Title) > ledger.MaxTitleLen {
		return address.Zero, newError(CodeInvalidTitle, "title must be 1-%d bytes, got %d", ledger.MaxTitleLen, len(req.Title))
	}
	if len(req.Description) > ledger.MaxDescriptionLen {
		return address.Zero, newError(CodeInvalidDescription, "description must be at most %d bytes, got %d", ledger.MaxDescriptionLen, len(req.Description))
	}
	now := e.clock.Now().Unix()
	if req.FundingEndTs <= now {
		return address.Zero, newError(CodeInvalidTimestamp, "funding end %d is not in the future", req.FundingEndTs)
	}
	if req.VotingEndTs <= req.FundingEndTs {
		return address.Zero, newError(CodeInvalidTimestamp, "voting end %d must be after funding end %d", req.VotingEndTs, req.FundingEndTs)
	}

	seasonAddr := address.Season(req.Authority, req.Title)
	fields := logrus.Fields{"season": seasonAddr.Short(), "authority": req.Authority.Short()}

	return e.run(ctx, "create_season", fields, func(tx *ledger.Tx) (address.Address, error) {
		_, err := tx.Season(seasonAddr)
		if err == nil {
			return address.Zero, newError(CodeAlreadyExists, "season %q already exists for this authority", req.Title)
		}
		if !ledger.IsNotFound(err) {
			return address.Zero, err
		}

		season := &ledger.Season{
			Address:             seasonAddr,
			Authority:           req.Authority,
			Title:               req.Title,
			Description:         req.Description,
			FundingEndTs:        req.FundingEndTs,
			VotingEndTs:         req.VotingEndTs,
			MinFundingPerRegion: req.MinFundingPerRegion,
			CreatedAtMs:         e.clock.Now().UnixMilli(),
		}
		if err := tx.PutSeason(season); err != nil {
			return address.Zero, err
		}
		tx.Emit(&ledger.Event{
			Kind:    ledger.EventSeasonCreated,
			Season:  ptr(seasonAddr),
			Subject: seasonAddr,
			Actor:   req.Authority,
			Message: req.Title,
		})
		return seasonAddr, nil
	})
}

// FinalizeSeasonRequest closes a season early and records its composite artwork.
type FinalizeSeasonRequest struct {
	Season      address.Address `json:"season"`
	Authority   address.Address `json:"authority"`
	FinalArtURI string          `json:"final_art_uri"`
}

// FinalizeSeason is the authority's administrative override: it forces the
// season into the Finalized phase regardless of the clock. An empty URI leaves
// the composite artwork unset. A season can be finalized once.
func (e *Engine) FinalizeSeason(ctx context.Context, req FinalizeSeasonRequest) (address.Address, error) {
	if err := requireIdentity("authority", req.Authority); err != nil {
		return address.Zero, err
	}
	if len(req.FinalArtURI) > ledger.MaxURILen {
		return address.Zero, newError(CodeInvalidURI, "final art URI must be at most %d bytes, got %d", ledger.MaxURILen, len(req.FinalArtURI))
	}

	fields := logrus.Fields{"season": req.Season.Short(), "authority": req.Authority.Short()}

	return e.run(ctx, "finalize_season", fields, func(tx *ledger.Tx) (address.Address, error) {
		season, err := loadSeason(tx, req.Season)
		if err != nil {
			return address.Zero, err
		}
		if season.Authority != req.Authority {
			return address.Zero, newError(CodeNotAuthority, "only the season authority can finalize season %s", req.Season.Short())
		}
		if season.IsFinalized {
			return address.Zero, newError(CodeWrongPhase, "season %s is already finalized", req.Season.Short())
		}

		season.IsFinalized = true
		if req.FinalArtURI != "" {
			season.FinalArtURI = ptr(req.FinalArtURI)
		}
		if err := tx.PutSeason(season); err != nil {
			return address.Zero, err
		}
		tx.Emit(&ledger.Event{
			Kind:    ledger.EventSeasonFinalized,
			Season:  ptr(season.Address),
			Subject: season.Address,
			Actor:   req.Authority,
			Message: req.FinalArtURI,
		})
		return season.Address, nil
	})
}

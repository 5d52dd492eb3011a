package api

import (
	"github.com/dyluth/mural/pkg/address"
	"github.com/dyluth/mural/pkg/ledger"
	"github.com/dyluth/mural/pkg/phase"
)

// SeasonView is a season with its phase evaluated at Now (Unix seconds).
type SeasonView struct {
	ledger.Season
	Phase phase.Phase `json:"phase"`
	Now   int64       `json:"now"`
}

// PhaseView answers GET /v1/seasons/:addr/phase.
type PhaseView struct {
	Season       address.Address `json:"season"`
	Phase        phase.Phase     `json:"phase"`
	Now          int64           `json:"now"`
	FundingEndTs int64           `json:"funding_end_ts"`
	VotingEndTs  int64           `json:"voting_end_ts"`
	IsFinalized  bool            `json:"is_finalized"`
}

// List wraps collection responses.
type List[T any] struct {
	Items []T `json:"items"`
}

// BalanceView is an account balance in base units.
type BalanceView struct {
	Address address.Address `json:"address"`
	Balance uint64          `json:"balance"`
}

// ResolveView is the full address a prefix resolved to.
type ResolveView struct {
	Address address.Address `json:"address"`
}

// ErrorResponse is the body of every non-operation error.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Matches []address.Address `json:"matches,omitempty"`
}

// CreditRequest is the body of POST /v1/admin/credit.
type CreditRequest struct {
	Account address.Address `json:"account"`
	Amount  uint64          `json:"amount"`
}

// CommentRequest is the body of POST /v1/social/comments.
type CommentRequest struct {
	ProfileID string `json:"profile_id"`
	ContentID string `json:"content_id"`
	Text      string `json:"text"`
}

// LikeRequest is the body of POST and DELETE /v1/social/likes/:content_id.
type LikeRequest struct {
	ProfileID string `json:"profile_id"`
}

// LikesView is a content node's like count.
type LikesView struct {
	ContentID string `json:"content_id"`
	Likes     int    `json:"likes"`
}

// ProfileRequest is the body of POST /v1/social/profiles.
type ProfileRequest struct {
	Wallet string `json:"wallet"`
}

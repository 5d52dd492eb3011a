package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/dyluth/mural/pkg/address"
)

// Op names an operation on the wire.
type Op string

const (
	OpCreateSeason   Op = "create-season"
	OpFundRegion     Op = "fund-region"
	OpSubmitBid      Op = "submit-bid"
	OpVote           Op = "vote"
	OpFinalizeRegion Op = "finalize-region"
	OpPayoutAndPaint Op = "payout-and-paint"
	OpFinalizeSeason Op = "finalize-season"
)

// Ops lists every operation in lifecycle order.
var Ops = []Op{
	OpCreateSeason,
	OpFundRegion,
	OpSubmitBid,
	OpVote,
	OpFinalizeRegion,
	OpPayoutAndPaint,
	OpFinalizeSeason,
}

// Request is an operation request that can be signed and submitted.
type Request interface {
	Op() Op
	// Actor is the identity that must sign the request. ok is false for
	// permissionless operations, which any signer may submit.
	Actor() (actor address.Address, ok bool)
}

func (CreateSeasonRequest) Op() Op   { return OpCreateSeason }
func (FundRegionRequest) Op() Op     { return OpFundRegion }
func (SubmitBidRequest) Op() Op      { return OpSubmitBid }
func (VoteRequest) Op() Op           { return OpVote }
func (FinalizeRegionRequest) Op() Op { return OpFinalizeRegion }
func (PayoutRequest) Op() Op         { return OpPayoutAndPaint }
func (FinalizeSeasonRequest) Op() Op { return OpFinalizeSeason }

func (r CreateSeasonRequest) Actor() (address.Address, bool)   { return r.Authority, true }
func (r FundRegionRequest) Actor() (address.Address, bool)     { return r.Funder, true }
func (r SubmitBidRequest) Actor() (address.Address, bool)      { return r.Artist, true }
func (r VoteRequest) Actor() (address.Address, bool)           { return r.Voter, true }
func (r FinalizeRegionRequest) Actor() (address.Address, bool) { return address.Zero, false }
func (r PayoutRequest) Actor() (address.Address, bool)         { return r.Artist, true }
func (r FinalizeSeasonRequest) Actor() (address.Address, bool) { return r.Authority, true }

// ParseOp validates an operation name.
func ParseOp(s string) (Op, error) {
	for _, op := range Ops {
		if string(op) == s {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// DecodeRequest parses the JSON body of op. Unknown fields are rejected.
func DecodeRequest(op Op, body []byte) (Request, error) {
	var req Request
	var err error
	switch op {
	case OpCreateSeason:
		req, err = decode[CreateSeasonRequest](body)
	case OpFundRegion:
		req, err = decode[FundRegionRequest](body)
	case OpSubmitBid:
		req, err = decode[SubmitBidRequest](body)
	case OpVote:
		req, err = decode[VoteRequest](body)
	case OpFinalizeRegion:
		req, err = decode[FinalizeRegionRequest](body)
	case OpPayoutAndPaint:
		req, err = decode[PayoutRequest](body)
	case OpFinalizeSeason:
		req, err = decode[FinalizeSeasonRequest](body)
	default:
		return nil, newError(CodeInvalidRequest, "unknown operation %q", op)
	}
	if err != nil {
		return nil, newError(CodeInvalidRequest, "malformed %s request: %v", op, err)
	}
	return req, nil
}

func decode[T Request](body []byte) (Request, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Execute runs a decoded request.
func (e *Engine) Execute(ctx context.Context, req Request) (address.Address, error) {
	switch r := req.(type) {
	case CreateSeasonRequest:
		return e.CreateSeason(ctx, r)
	case FundRegionRequest:
		return e.FundRegion(ctx, r)
	case SubmitBidRequest:
		return e.SubmitBid(ctx, r)
	case VoteRequest:
		return e.VoteForBid(ctx, r)
	case FinalizeRegionRequest:
		return e.FinalizeRegion(ctx, r)
	case PayoutRequest:
		return e.PayoutAndPaint(ctx, r)
	case FinalizeSeasonRequest:
		return e.FinalizeSeason(ctx, r)
	default:
		return address.Zero, newError(CodeInvalidRequest, "unsupported request type %T", req)
	}
}

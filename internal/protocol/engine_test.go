package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/mural/pkg/address"
	"github.com/dyluth/mural/pkg/ledger"
	"github.com/dyluth/mural/pkg/phase"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1_700_000_000, 0)

type harness struct {
	engine *Engine
	ledger *ledger.Client
	clock  *ManualClock
	mr     *miniredis.Miniredis
}

func setupEngine(t *testing.T) *harness {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := ledger.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	clock := NewManualClock(epoch)
	return &harness{
		engine: NewEngine(client, clock, logger),
		ledger: client,
		clock:  clock,
		mr:     mr,
	}
}

func identity(b byte) address.Address {
	var a address.Address
	for i := range a {
		a[i] = b
	}
	return a
}

var (
	authority = identity(0xA0)
	alice     = identity(0xA1)
	bob       = identity(0xB0)
	carol     = identity(0xC0)
	dave      = identity(0xD0)
)

// createSeason creates a season ending funding at epoch+1000 and voting at epoch+2000.
func (h *harness) createSeason(t *testing.T, title string, minFunding uint64) address.Address {
	t.Helper()
	addr, err := h.engine.CreateSeason(context.Background(), CreateSeasonRequest{
		Authority:           authority,
		Title:               title,
		Description:         "community wall",
		FundingEndTs:        epoch.Unix() + 1000,
		VotingEndTs:         epoch.Unix() + 2000,
		MinFundingPerRegion: minFunding,
	})
	require.NoError(t, err)
	return addr
}

func (h *harness) credit(t *testing.T, account address.Address, amount uint64) {
	t.Helper()
	require.NoError(t, h.ledger.Credit(context.Background(), account, amount))
}

func (h *harness) toVoting()    { h.clock.Set(epoch.Add(1500 * time.Second)) }
func (h *harness) toFinalized() { h.clock.Set(epoch.Add(2500 * time.Second)) }

func assertCode(t *testing.T, err error, code Code) {
	t.Helper()
	require.Error(t, err)
	pe, ok := AsError(err)
	require.True(t, ok, "expected protocol error, got %T: %v", err, err)
	assert.Equal(t, code, pe.Code)
	assert.Equal(t, code.Kind(), pe.Kind)
}

func TestLifecycleScenario(t *testing.T) {
	h := setupEngine(t)
	ctx := context.Background()
	h.credit(t, alice, 1000)

	season := h.createSeason(t, "Spring", 100)

	_, err := h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 0, Y: 0, Funder: alice, Amount: 50})
	assertCode(t, err, CodeInvalidAmount)

	contribution, err := h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 0, Y: 0, Funder: alice, Amount: 150})
	require.NoError(t, err)
	assert.Equal(t, address.Contribution(season, 0, 0, alice), contribution)

	regionAddr := address.Region(season, 0, 0)
	region, err := h.ledger.GetRegion(ctx, regionAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), region.TotalFunded)

	s, err := h.ledger.GetSeason(ctx, season)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), s.RegionsFunded)

	h.toVoting()
	bidAddr, err := h.engine.SubmitBid(ctx, SubmitBidRequest{
		Season: season, Region: regionAddr, Artist: bob, SketchURI: "uri", RequestedAmount: 100,
	})
	require.NoError(t, err)

	_, err = h.engine.VoteForBid(ctx, VoteRequest{Season: season, Region: regionAddr, Bid: bidAddr, Voter: alice})
	require.NoError(t, err)

	bid, err := h.ledger.GetBid(ctx, bidAddr)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), bid.VoteCount)
	assert.Equal(t, uint64(150), bid.VoteWeight)

	_, err = h.engine.VoteForBid(ctx, VoteRequest{Season: season, Region: regionAddr, Bid: bidAddr, Voter: alice})
	assertCode(t, err, CodeAlreadyVoted)
	assert.True(t, IsExpected(err))

	h.toFinalized()
	_, err = h.engine.FinalizeRegion(ctx, FinalizeRegionRequest{Season: season, Region: regionAddr})
	require.NoError(t, err)

	bid, err = h.ledger.GetBid(ctx, bidAddr)
	require.NoError(t, err)
	assert.True(t, bid.IsWinner)

	region, err = h.ledger.GetRegion(ctx, regionAddr)
	require.NoError(t, err)
	require.NotNil(t, region.WinningBid)
	assert.Equal(t, bidAddr, *region.WinningBid)
}

func TestCreateSeason_Validation(t *testing.T) {
	h := setupEngine(t)
	ctx := context.Background()
	now := epoch.Unix()

	base := CreateSeasonRequest{
		Authority:    authority,
		Title:        "Spring",
		FundingEndTs: now + 1000,
		VotingEndTs:  now + 2000,
	}

	tests := []struct {
		name   string
		modify func(r *CreateSeasonRequest)
		code   Code
	}{
		{"empty title", func(r *CreateSeasonRequest) { r.Title = "" }, CodeInvalidTitle},
		{"title too long", func(r *CreateSeasonRequest) { r.Title = strings.Repeat("x", 65) }, CodeInvalidTitle},
		{"description too long", func(r *CreateSeasonRequest) { r.Description = strings.Repeat("d", 257) }, CodeInvalidDescription},
		{"funding end in the past", func(r *CreateSeasonRequest) { r.FundingEndTs = now - 1 }, CodeInvalidTimestamp},
		{"funding end now", func(r *CreateSeasonRequest) { r.FundingEndTs = now }, CodeInvalidTimestamp},
		{"voting end equals funding end", func(r *CreateSeasonRequest) { r.VotingEndTs = r.FundingEndTs }, CodeInvalidTimestamp},
		{"zero authority", func(r *CreateSeasonRequest) { r.Authority = address.Zero }, CodeInvalidIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.modify(&req)
			_, err := h.engine.CreateSeason(ctx, req)
			assertCode(t, err, tt.code)
		})
	}

	assert.Empty(t, h.mr.Keys(), "rejected creates must not write")
}

func TestCreateSeason_BoundaryLengthsAccepted(t *testing.T) {
	h := setupEngine(t)
	_, err := h.engine.CreateSeason(context.Background(), CreateSeasonRequest{
		Authority:    authority,
		Title:        strings.Repeat("t", 64),
		Description:  strings.Repeat("d", 256),
		FundingEndTs: epoch.Unix() + 1,
		VotingEndTs:  epoch.Unix() + 2,
	})
	require.NoError(t, err)
}

func TestCreateSeason_DuplicateTitle(t *testing.T) {
	h := setupEngine(t)
	first := h.createSeason(t, "Spring", 100)

	_, err := h.engine.CreateSeason(context.Background(), CreateSeasonRequest{
		Authority:    authority,
		Title:        "Spring",
		FundingEndTs: epoch.Unix() + 10,
		VotingEndTs:  epoch.Unix() + 20,
	})
	assertCode(t, err, CodeAlreadyExists)

	// Same title under another authority is a different season
	other, err := h.engine.CreateSeason(context.Background(), CreateSeasonRequest{
		Authority:    carol,
		Title:        "Spring",
		FundingEndTs: epoch.Unix() + 10,
		VotingEndTs:  epoch.Unix() + 20,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestFundRegion_AdditiveFunding(t *testing.T) {
	h := setupEngine(t)
	ctx := context.Background()
	h.credit(t, alice, 1000)
	h.credit(t, carol, 1000)
	season := h.createSeason(t, "Spring", 100)

	_, err := h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 3, Y: 4, Funder: alice, Amount: 150})
	require.NoError(t, err)
	// Later contributions below the minimum are fine once the region exists
	_, err = h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 3, Y: 4, Funder: alice, Amount: 10})
	require.NoError(t, err)
	_, err = h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 3, Y: 4, Funder: carol, Amount: 5})
	require.NoError(t, err)

	region, err := h.ledger.GetRegion(ctx, address.Region(season, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, uint64(165), region.TotalFunded)
	assert.Equal(t, uint32(2), region.ContributorCount)

	contribution, err := h.ledger.GetContribution(ctx, address.Contribution(season, 3, 4, alice))
	require.NoError(t, err)
	assert.Equal(t, uint64(160), contribution.Amount)

	s, err := h.ledger.GetSeason(ctx, season)
	require.NoError(t, err)
	assert.Equal(t, uint64(165), s.TotalFunded)
	assert.Equal(t, uint32(1), s.RegionsFunded)

	vault, err := h.ledger.Balance(ctx, address.Vault(season, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, uint64(165), vault)

	aliceBal, err := h.ledger.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(840), aliceBal)
}

func TestFundRegion_Rejections(t *testing.T) {
	h := setupEngine(t)
	ctx := context.Background()
	h.credit(t, alice, 100)
	season := h.createSeason(t, "Spring", 10)

	t.Run("outside grid", func(t *testing.T) {
		_, err := h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 8, Y: 0, Funder: alice, Amount: 10})
		assertCode(t, err, CodeInvalidRegion)
		_, err = h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 0, Y: -1, Funder: alice, Amount: 10})
		assertCode(t, err, CodeInvalidRegion)
	})

	t.Run("zero amount", func(t *testing.T) {
		_, err := h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 0, Y: 0, Funder: alice, Amount: 0})
		assertCode(t, err, CodeInvalidAmount)
	})

	t.Run("unknown season", func(t *testing.T) {
		_, err := h.engine.FundRegion(ctx, FundRegionRequest{Season: identity(0x55), X: 0, Y: 0, Funder: alice, Amount: 10})
		assertCode(t, err, CodeSeasonNotFound)
	})

	t.Run("insufficient balance leaves no trace", func(t *testing.T) {
		_, err := h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 1, Y: 1, Funder: alice, Amount: 500})
		assertCode(t, err, CodeInsufficientFunds)
		assert.Equal(t, KindResource, KindOf(err))

		_, err = h.ledger.GetRegion(ctx, address.Region(season, 1, 1))
		assert.True(t, ledger.IsNotFound(err))
		bal, err := h.ledger.Balance(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), bal)
	})

	t.Run("funding closed", func(t *testing.T) {
		h.toVoting()
		defer h.clock.Set(epoch)
		_, err := h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 0, Y: 0, Funder: alice, Amount: 10})
		assertCode(t, err, CodeWrongPhase)
		assert.Equal(t, KindPhase, KindOf(err))
	})
}

func TestVoteWeightIsFrozen(t *testing.T) {
	h := setupEngine(t)
	ctx := context.Background()
	h.credit(t, alice, 1000)
	season := h.createSeason(t, "Spring", 100)
	regionAddr := address.Region(season, 0, 0)

	_, err := h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 0, Y: 0, Funder: alice, Amount: 150})
	require.NoError(t, err)

	h.toVoting()
	bidAddr, err := h.engine.SubmitBid(ctx, SubmitBidRequest{Season: season, Region: regionAddr, Artist: bob, SketchURI: "ipfs://s", RequestedAmount: 100})
	require.NoError(t, err)
	_, err = h.engine.VoteForBid(ctx, VoteRequest{Season: season, Region: regionAddr, Bid: bidAddr, Voter: alice})
	require.NoError(t, err)

	// Funding is closed during voting
	_, err = h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 0, Y: 0, Funder: alice, Amount: 50})
	assertCode(t, err, CodeWrongPhase)

	// Even if the contribution grows, the recorded vote does not
	contributionAddr := address.Contribution(season, 0, 0, alice)
	require.NoError(t, h.ledger.Update(ctx, func(tx *ledger.Tx) error {
		c, err := tx.Contribution(contributionAddr)
		if err != nil {
			return err
		}
		c.Amount += 50
		return tx.PutContribution(c)
	}))

	bid, err := h.ledger.GetBid(ctx, bidAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), bid.VoteWeight)

	c, err := h.ledger.GetContribution(ctx, contributionAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), c.Amount)
	assert.Equal(t, uint64(150), c.VotedWeight)
	require.NotNil(t, c.VotedBid)
	assert.Equal(t, bidAddr, *c.VotedBid)
}

func TestSubmitBid_Rejections(t *testing.T) {
	h := setupEngine(t)
	ctx := context.Background()
	h.credit(t, alice, 1000)
	season := h.createSeason(t, "Spring", 100)
	regionAddr := address.Region(season, 0, 0)

	_, err := h.engine.SubmitBid(ctx, SubmitBidRequest{Season: season, Region: regionAddr, Artist: bob, SketchURI: "s", RequestedAmount: 10})
	assertCode(t, err, CodeWrongPhase)

	_, err = h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 0, Y: 0, Funder: alice, Amount: 150})
	require.NoError(t, err)
	h.toVoting()

	t.Run("requested exceeds funding", func(t *testing.T) {
		_, err := h.engine.SubmitBid(ctx, SubmitBidRequest{Season: season, Region: regionAddr, Artist: bob, SketchURI: "s", RequestedAmount: 151})
		assertCode(t, err, CodeInvalidAmount)
	})

	t.Run("requested equal to funding is allowed", func(t *testing.T) {
		_, err := h.engine.SubmitBid(ctx, SubmitBidRequest{Season: season, Region: regionAddr, Artist: bob, SketchURI: "s", RequestedAmount: 150})
		require.NoError(t, err)
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := h.engine.SubmitBid(ctx, SubmitBidRequest{Season: season, Region: regionAddr, Artist: bob, SketchURI: "other", RequestedAmount: 10})
		assertCode(t, err, CodeDuplicateBid)
		assert.True(t, IsExpected(err))
	})

	t.Run("uri too long", func(t *testing.T) {
		_, err := h.engine.SubmitBid(ctx, SubmitBidRequest{Season: season, Region: regionAddr, Artist: carol, SketchURI: strings.Repeat("u", 201), RequestedAmount: 10})
		assertCode(t, err, CodeInvalidURI)
	})

	t.Run("unfunded region", func(t *testing.T) {
		_, err := h.engine.SubmitBid(ctx, SubmitBidRequest{Season: season, Region: address.Region(season, 5, 5), Artist: carol, SketchURI: "s", RequestedAmount: 10})
		assertCode(t, err, CodeRegionNotFound)
	})
}

func TestVoteForBid_Rejections(t *testing.T) {
	h := setupEngine(t)
	ctx := context.Background()
	h.credit(t, alice, 1000)
	h.credit(t, carol, 1000)
	season := h.createSeason(t, "Spring", 100)
	r00 := address.Region(season, 0, 0)
	r11 := address.Region(season, 1, 1)

	_, err := h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 0, Y: 0, Funder: alice, Amount: 150})
	require.NoError(t, err)
	_, err = h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 1, Y: 1, Funder: carol, Amount: 150})
	require.NoError(t, err)

	h.toVoting()
	bid00, err := h.engine.SubmitBid(ctx, SubmitBidRequest{Season: season, Region: r00, Artist: bob, SketchURI: "s", RequestedAmount: 100})
	require.NoError(t, err)
	bid11, err := h.engine.SubmitBid(ctx, SubmitBidRequest{Season: season, Region: r11, Artist: bob, SketchURI: "s", RequestedAmount: 100})
	require.NoError(t, err)

	t.Run("non-contributor", func(t *testing.T) {
		_, err := h.engine.VoteForBid(ctx, VoteRequest{Season: season, Region: r00, Bid: bid00, Voter: carol})
		assertCode(t, err, CodeNoContribution)
	})

	t.Run("bid from another region", func(t *testing.T) {
		_, err := h.engine.VoteForBid(ctx, VoteRequest{Season: season, Region: r00, Bid: bid11, Voter: alice})
		assertCode(t, err, CodeBidNotFound)
	})

	t.Run("unknown bid", func(t *testing.T) {
		_, err := h.engine.VoteForBid(ctx, VoteRequest{Season: season, Region: r00, Bid: identity(0x77), Voter: alice})
		assertCode(t, err, CodeBidNotFound)
	})

	t.Run("after voting closes", func(t *testing.T) {
		h.toFinalized()
		defer h.toVoting()
		_, err := h.engine.VoteForBid(ctx, VoteRequest{Season: season, Region: r00, Bid: bid00, Voter: alice})
		assertCode(t, err, CodeWrongPhase)
	})
}

func TestFinalizeRegion_TieBreakAndIdempotence(t *testing.T) {
	h := setupEngine(t)
	ctx := context.Background()
	h.credit(t, alice, 1000)
	h.credit(t, carol, 1000)
	season := h.createSeason(t, "Spring", 100)
	regionAddr := address.Region(season, 2, 2)

	_, err := h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 2, Y: 2, Funder: alice, Amount: 200})
	require.NoError(t, err)
	_, err = h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 2, Y: 2, Funder: carol, Amount: 200})
	require.NoError(t, err)

	h.toVoting()
	first, err := h.engine.SubmitBid(ctx, SubmitBidRequest{Season: season, Region: regionAddr, Artist: bob, SketchURI: "first", RequestedAmount: 100})
	require.NoError(t, err)
	second, err := h.engine.SubmitBid(ctx, SubmitBidRequest{Season: season, Region: regionAddr, Artist: dave, SketchURI: "second", RequestedAmount: 100})
	require.NoError(t, err)

	// Equal weights: alice backs the second bid, carol the first
	_, err = h.engine.VoteForBid(ctx, VoteRequest{Season: season, Region: regionAddr, Bid: second, Voter: alice})
	require.NoError(t, err)
	_, err = h.engine.VoteForBid(ctx, VoteRequest{Season: season, Region: regionAddr, Bid: first, Voter: carol})
	require.NoError(t, err)

	_, err = h.engine.FinalizeRegion(ctx, FinalizeRegionRequest{Season: season, Region: regionAddr})
	assertCode(t, err, CodeWrongPhase)

	h.toFinalized()
	for i := 0; i < 3; i++ {
		got, err := h.engine.FinalizeRegion(ctx, FinalizeRegionRequest{Season: season, Region: regionAddr})
		require.NoError(t, err)
		assert.Equal(t, regionAddr, got)
	}

	region, err := h.ledger.GetRegion(ctx, regionAddr)
	require.NoError(t, err)
	require.NotNil(t, region.WinningBid)
	assert.Equal(t, first, *region.WinningBid, "tie goes to the earliest bid")

	loser, err := h.ledger.GetBid(ctx, second)
	require.NoError(t, err)
	assert.False(t, loser.IsWinner)
}

func TestFinalizeRegion_NoBids(t *testing.T) {
	h := setupEngine(t)
	ctx := context.Background()
	h.credit(t, alice, 1000)
	season := h.createSeason(t, "Spring", 100)

	_, err := h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 0, Y: 0, Funder: alice, Amount: 150})
	require.NoError(t, err)

	h.toFinalized()
	regionAddr := address.Region(season, 0, 0)
	_, err = h.engine.FinalizeRegion(ctx, FinalizeRegionRequest{Season: season, Region: regionAddr})
	require.NoError(t, err)

	region, err := h.ledger.GetRegion(ctx, regionAddr)
	require.NoError(t, err)
	assert.Nil(t, region.WinningBid)
}

func TestSelectWinner(t *testing.T) {
	bids := []*ledger.Bid{
		{Sequence: 3, VoteWeight: 50},
		{Sequence: 1, VoteWeight: 40},
		{Sequence: 2, VoteWeight: 50},
	}
	assert.Equal(t, uint32(2), SelectWinner(bids).Sequence)
	assert.Nil(t, SelectWinner(nil))

	zero := []*ledger.Bid{{Sequence: 2}, {Sequence: 1}}
	assert.Equal(t, uint32(1), SelectWinner(zero).Sequence, "unvoted bids still resolve")
}

func TestPayoutAndPaint(t *testing.T) {
	h := setupEngine(t)
	ctx := context.Background()
	h.credit(t, alice, 1000)
	season := h.createSeason(t, "Spring", 100)
	regionAddr := address.Region(season, 0, 0)
	vault := address.Vault(season, 0, 0)

	_, err := h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 0, Y: 0, Funder: alice, Amount: 150})
	require.NoError(t, err)

	h.toVoting()
	bidAddr, err := h.engine.SubmitBid(ctx, SubmitBidRequest{Season: season, Region: regionAddr, Artist: bob, SketchURI: "sketch", RequestedAmount: 100})
	require.NoError(t, err)
	_, err = h.engine.VoteForBid(ctx, VoteRequest{Season: season, Region: regionAddr, Bid: bidAddr, Voter: alice})
	require.NoError(t, err)

	payout := PayoutRequest{Season: season, Region: regionAddr, Artist: bob, FinalArtURI: "ipfs://final"}

	_, err = h.engine.PayoutAndPaint(ctx, payout)
	assertCode(t, err, CodeNotWinner)

	h.toFinalized()
	_, err = h.engine.FinalizeRegion(ctx, FinalizeRegionRequest{Season: season, Region: regionAddr})
	require.NoError(t, err)

	_, err = h.engine.PayoutAndPaint(ctx, PayoutRequest{Season: season, Region: regionAddr, Artist: dave, FinalArtURI: "ipfs://fake"})
	assertCode(t, err, CodeNotWinner)

	_, err = h.engine.PayoutAndPaint(ctx, PayoutRequest{Season: season, Region: regionAddr, Artist: bob})
	assertCode(t, err, CodeInvalidURI)

	_, err = h.engine.PayoutAndPaint(ctx, payout)
	require.NoError(t, err)

	bobBal, err := h.ledger.Balance(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bobBal)

	vaultBal, err := h.ledger.Balance(ctx, vault)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), vaultBal, "remainder stays in the vault")

	region, err := h.ledger.GetRegion(ctx, regionAddr)
	require.NoError(t, err)
	assert.True(t, region.IsPainted)
	require.NotNil(t, region.FinalArtURI)
	assert.Equal(t, "ipfs://final", *region.FinalArtURI)

	bid, err := h.ledger.GetBid(ctx, bidAddr)
	require.NoError(t, err)
	require.NotNil(t, bid.FinalArtURI)
	assert.Equal(t, "ipfs://final", *bid.FinalArtURI)

	_, err = h.engine.PayoutAndPaint(ctx, payout)
	assertCode(t, err, CodeAlreadyPainted)

	bobBal, err = h.ledger.Balance(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bobBal, "second payout must not pay")
}

func TestFinalizeSeason(t *testing.T) {
	h := setupEngine(t)
	ctx := context.Background()
	h.credit(t, alice, 1000)
	season := h.createSeason(t, "Spring", 100)

	_, err := h.engine.FinalizeSeason(ctx, FinalizeSeasonRequest{Season: season, Authority: carol})
	assertCode(t, err, CodeNotAuthority)

	_, err = h.engine.FinalizeSeason(ctx, FinalizeSeasonRequest{Season: season, Authority: authority, FinalArtURI: "ipfs://mural"})
	require.NoError(t, err)

	s, err := h.ledger.GetSeason(ctx, season)
	require.NoError(t, err)
	assert.True(t, s.IsFinalized)
	assert.Equal(t, phase.Finalized, h.engine.PhaseOf(s), "override applies during funding window")
	require.NotNil(t, s.FinalArtURI)
	assert.Equal(t, "ipfs://mural", *s.FinalArtURI)

	_, err = h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 0, Y: 0, Funder: alice, Amount: 150})
	assertCode(t, err, CodeWrongPhase)

	_, err = h.engine.FinalizeSeason(ctx, FinalizeSeasonRequest{Season: season, Authority: authority})
	assertCode(t, err, CodeWrongPhase)
}

func TestConcurrentFunding(t *testing.T) {
	h := setupEngine(t)
	ctx := context.Background()
	season := h.createSeason(t, "Spring", 1)

	funders := []address.Address{identity(0x11), identity(0x12), identity(0x13), identity(0x14), identity(0x15), identity(0x16)}
	for _, f := range funders {
		h.credit(t, f, 100)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(funders))
	for _, f := range funders {
		wg.Add(1)
		go func(f address.Address) {
			defer wg.Done()
			_, err := h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 4, Y: 4, Funder: f, Amount: 10})
			errs <- err
		}(f)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	region, err := h.ledger.GetRegion(ctx, address.Region(season, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, uint64(60), region.TotalFunded)
	assert.Equal(t, uint32(len(funders)), region.ContributorCount)

	s, err := h.ledger.GetSeason(ctx, season)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), s.TotalFunded)
	assert.Equal(t, uint32(1), s.RegionsFunded)

	vault, err := h.ledger.Balance(ctx, address.Vault(season, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, uint64(60), vault)
}

func TestConcurrentFunding_SameFunder(t *testing.T) {
	h := setupEngine(t)
	ctx := context.Background()
	season := h.createSeason(t, "Spring", 1)

	funder := identity(0x21)
	const calls = 32
	h.credit(t, funder, calls*10)

	var wg sync.WaitGroup
	errs := make(chan error, calls)
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 2, Y: 5, Funder: funder, Amount: 10})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	contribution, err := h.ledger.GetContribution(ctx, address.Contribution(season, 2, 5, funder))
	require.NoError(t, err)
	assert.Equal(t, uint64(calls*10), contribution.Amount)

	region, err := h.ledger.GetRegion(ctx, address.Region(season, 2, 5))
	require.NoError(t, err)
	assert.Equal(t, uint64(calls*10), region.TotalFunded)
	assert.Equal(t, uint32(1), region.ContributorCount)

	balance, err := h.ledger.Balance(ctx, funder)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestContentionIsRetryable(t *testing.T) {
	err := fromLedger(fmt.Errorf("fund region: %w", ledger.ErrContention))
	assertCode(t, err, CodeContention)
	assert.Equal(t, KindBusy, KindOf(err))
	assert.ErrorIs(t, err, ErrContention)
	assert.Equal(t, KindBusy, ResultOf(address.Zero, err).Err.Kind)
}

func TestEventsPublishedOnCommit(t *testing.T) {
	h := setupEngine(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := h.ledger.SubscribeEvents(ctx)
	require.NoError(t, err)
	defer sub.Close()

	season := h.createSeason(t, "Spring", 100)

	// Rejected operations publish nothing
	_, err = h.engine.FundRegion(ctx, FundRegionRequest{Season: season, X: 0, Y: 0, Funder: alice, Amount: 150})
	assertCode(t, err, CodeInsufficientFunds)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, ledger.EventSeasonCreated, ev.Kind)
		assert.Equal(t, season, ev.Subject)
	case <-ctx.Done():
		t.Fatal("timed out waiting for season_created")
	}

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event %s", ev.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestResult(t *testing.T) {
	addr := identity(0x42)

	ok := ResultOf(addr, nil)
	assert.True(t, ok.OK)
	got, err := ok.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, addr, got)

	failed := ResultOf(address.Zero, newError(CodeWrongPhase, "not yet"))
	assert.False(t, failed.OK)
	require.NotNil(t, failed.Err)
	assert.Equal(t, KindPhase, failed.Err.Kind)
	_, err = failed.Unwrap()
	assert.True(t, errors.Is(err, ErrWrongPhase))

	internal := ResultOf(address.Zero, errors.New("redis down"))
	assert.Equal(t, KindInternal, internal.Err.Kind)
	assert.Equal(t, CodeInternal, internal.Err.Code)
}

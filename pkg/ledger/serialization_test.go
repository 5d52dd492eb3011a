package ledger

import (
	"fmt"
	"math"
	"testing"

	"github.com/dyluth/mural/pkg/address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stringify mimics what Redis hands back from HGETALL.
func stringify(hash map[string]interface{}) map[string]string {
	out := make(map[string]string, len(hash))
	for k, v := range hash {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func TestRegionHash_NullableFields(t *testing.T) {
	season := address.Season(identity(1), "s")
	region := testRegion(season, 2, 5)

	decoded, err := HashToRegion(stringify(RegionToHash(region)))
	require.NoError(t, err)
	assert.Nil(t, decoded.WinningBid)
	assert.Nil(t, decoded.FinalArtURI)

	winner := address.Bid(region.Address, identity(9))
	uri := "ipfs://final"
	region.WinningBid = &winner
	region.IsPainted = true
	region.FinalArtURI = &uri

	decoded, err = HashToRegion(stringify(RegionToHash(region)))
	require.NoError(t, err)
	require.NotNil(t, decoded.WinningBid)
	assert.Equal(t, winner, *decoded.WinningBid)
	assert.Equal(t, uri, *decoded.FinalArtURI)
	assert.Equal(t, uint8(2), decoded.X)
	assert.Equal(t, uint8(5), decoded.Y)
}

func TestSeasonHash_LargeAmounts(t *testing.T) {
	season := testSeason(identity(1), "big")
	season.TotalFunded = math.MaxUint64
	season.MinFundingPerRegion = math.MaxUint64 - 1

	decoded, err := HashToSeason(stringify(SeasonToHash(season)))
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), decoded.TotalFunded)
	assert.Equal(t, uint64(math.MaxUint64-1), decoded.MinFundingPerRegion)
}

func TestContributionHash_VoteFields(t *testing.T) {
	season := address.Season(identity(1), "s")
	region := address.Region(season, 0, 0)
	bid := address.Bid(region, identity(3))
	c := &Contribution{
		Address:     address.Contribution(season, 0, 0, identity(2)),
		Region:      region,
		Contributor: identity(2),
		Amount:      150,
		HasVoted:    true,
		VotedBid:    &bid,
		VotedWeight: 150,
	}

	decoded, err := HashToContribution(stringify(ContributionToHash(c)))
	require.NoError(t, err)
	assert.Equal(t, c, decoded)
}

func TestHashToBid_CorruptField(t *testing.T) {
	region := address.Region(address.Season(identity(1), "s"), 0, 0)
	bid := &Bid{
		Address:         address.Bid(region, identity(4)),
		Region:          region,
		Artist:          identity(4),
		SketchURI:       "ipfs://x",
		RequestedAmount: 10,
		Sequence:        1,
	}
	hash := stringify(BidToHash(bid))
	hash["vote_weight"] = "-1"

	_, err := HashToBid(hash)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vote_weight")
}

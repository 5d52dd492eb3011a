package inspect

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dyluth/mural/pkg/address"
	"github.com/dyluth/mural/pkg/ledger"
	"github.com/dyluth/mural/pkg/phase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in       uint64
		expected string
	}{
		{0, "0"},
		{1, "0.000000001"},
		{1_000_000_000, "1"},
		{1_500_000_000, "1.5"},
		{123_456_789_012, "123.456789012"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatAmount(tt.in))
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected uint64
		wantErr  bool
	}{
		{name: "whole", in: "2", expected: 2_000_000_000},
		{name: "fraction", in: "1.5", expected: 1_500_000_000},
		{name: "leading dot", in: ".25", expected: 250_000_000},
		{name: "smallest unit", in: "0.000000001", expected: 1},
		{name: "too precise", in: "0.0000000001", wantErr: true},
		{name: "trailing dot", in: "1.", wantErr: true},
		{name: "negative", in: "-1", wantErr: true},
		{name: "empty", in: "", wantErr: true},
		{name: "garbage", in: "abc", wantErr: true},
		{name: "overflow", in: "18446744074", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseBaseUnits(t *testing.T) {
	v, err := ParseBaseUnits("1500u")
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), v)

	v, err = ParseBaseUnits("1.5")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), v)

	_, err = ParseBaseUnits("xu")
	assert.Error(t, err)
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("")
	require.NoError(t, err)
	assert.Equal(t, OutputFormatDefault, f)

	f, err = ParseOutputFormat("jsonl")
	require.NoError(t, err)
	assert.Equal(t, OutputFormatJSONL, f)

	_, err = ParseOutputFormat("yaml")
	assert.Error(t, err)
}

func testSeason() address.Address {
	return address.Season(address.Derive("test", []byte("authority")), "Spring")
}

func TestFormatGrid(t *testing.T) {
	season := testSeason()
	winner := address.Derive("test", []byte("bid"))
	uri := "ipfs://art"
	regions := []*ledger.Region{
		{Address: address.Region(season, 0, 0), Season: season, X: 0, Y: 0, TotalFunded: 10},
		{Address: address.Region(season, 3, 1), Season: season, X: 3, Y: 1, TotalFunded: 10, WinningBid: &winner},
		{Address: address.Region(season, 7, 7), Season: season, X: 7, Y: 7, TotalFunded: 10, WinningBid: &winner, IsPainted: true, FinalArtURI: &uri},
	}

	var buf bytes.Buffer
	FormatGrid(&buf, regions)
	lines := strings.Split(buf.String(), "\n")

	require.GreaterOrEqual(t, len(lines), 9)
	assert.Equal(t, "    0 1 2 3 4 5 6 7", lines[0])
	assert.Equal(t, " 0  $ . . . . . . .", lines[1])
	assert.Equal(t, " 1  . . . * . . . .", lines[2])
	assert.Equal(t, " 7  . . . . . . . #", lines[8])
	assert.Contains(t, buf.String(), "# painted")
}

func TestFormatBids(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Equal(t, 0, FormatBids(&buf, nil))
		assert.Equal(t, "No bids submitted\n", buf.String())
	})

	t.Run("rows in order", func(t *testing.T) {
		region := address.Region(testSeason(), 1, 1)
		artist := address.Derive("test", []byte("artist"))
		bids := []*ledger.Bid{
			{Address: address.Bid(region, artist), Artist: artist, SketchURI: "ipfs://a", RequestedAmount: 1_000_000_000, Sequence: 1, VoteCount: 2, VoteWeight: 3_000_000_000, IsWinner: true},
			{Address: address.Bid(region, region), Artist: region, SketchURI: strings.Repeat("x", 80), RequestedAmount: 5, Sequence: 2},
		}

		var buf bytes.Buffer
		assert.Equal(t, 2, FormatBids(&buf, bids))
		out := buf.String()
		assert.Contains(t, out, "SEQ")
		assert.Contains(t, out, "winner")
		assert.Contains(t, out, strings.Repeat("x", 37)+"...")
		assert.Contains(t, out, "2 bids")
		assert.Less(t, strings.Index(out, bids[0].Address.Short()), strings.Index(out, bids[1].Address.Short()))
	})
}

func TestFormatSeason(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := &ledger.Season{
		Address:             testSeason(),
		Title:               "Spring",
		FundingEndTs:        now.Unix() + 3600,
		VotingEndTs:         now.Unix() + 7200,
		MinFundingPerRegion: 1_000_000_000,
		TotalFunded:         2_500_000_000,
		RegionsFunded:       2,
	}

	var buf bytes.Buffer
	FormatSeason(&buf, s, phase.Funding, now)
	out := buf.String()
	assert.Contains(t, out, "Phase:        funding")
	assert.Contains(t, out, "(1h 0m)")
	assert.Contains(t, out, "Funded:       2.5 across 2/64 regions")
	assert.NotContains(t, out, "Description")
}

func TestFormatEvent(t *testing.T) {
	x, y := uint8(2), uint8(5)
	ev := &ledger.Event{
		Kind:        ledger.EventRegionFunded,
		Subject:     address.Derive("test", []byte("subject")),
		Actor:       address.Derive("test", []byte("actor")),
		Amount:      1_000_000_000,
		X:           &x,
		Y:           &y,
		CreatedAtMs: time.Now().UnixMilli(),
	}

	var buf bytes.Buffer
	FormatEvent(&buf, ev)
	out := buf.String()
	assert.Contains(t, out, "region_funded")
	assert.Contains(t, out, "at (2,5)")
	assert.Contains(t, out, "amount 1")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestFormatJSONL(t *testing.T) {
	bids := []*ledger.Bid{{Sequence: 1}, {Sequence: 2}}
	var buf bytes.Buffer
	require.NoError(t, FormatJSONL(&buf, bids))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var decoded ledger.Bid
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &decoded))
	assert.Equal(t, uint32(2), decoded.Sequence)
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "-", formatTimestamp(0))
	assert.Equal(t, "2m ago", formatTimestamp(time.Now().Add(-2*time.Minute-time.Second).UnixMilli()))
	assert.Equal(t, "3d ago", formatTimestamp(time.Now().Add(-73*time.Hour).UnixMilli()))
}

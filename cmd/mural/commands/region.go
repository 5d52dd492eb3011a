package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dyluth/mural/internal/inspect"
	"github.com/dyluth/mural/internal/muralclient"
	"github.com/dyluth/mural/internal/printer"
	"github.com/dyluth/mural/internal/protocol"
	"github.com/dyluth/mural/pkg/address"
	"github.com/spf13/cobra"
)

var (
	bidSketchURI string
	payoutArtURI string
	regionOutput string
	gridOutput   string
	gridSummary  bool
)

var fundCmd = &cobra.Command{
	Use:   "fund SEASON X Y AMOUNT",
	Short: "Contribute to a grid region during the funding phase",
	Long: `Move AMOUNT from your account into the region's vault.

The first contribution to a region must meet the season's minimum. Repeated
contributions from the same identity add to one contribution record.

AMOUNT is in tokens with up to 9 decimals ("1.5") or raw base units ("1500u").`,
	Args: cobra.ExactArgs(4),
	RunE: runFund,
}

var bidCmd = &cobra.Command{
	Use:   "bid SEASON X Y AMOUNT",
	Short: "Propose to paint a funded region during the voting phase",
	Args:  cobra.ExactArgs(4),
	RunE:  runBid,
}

var voteCmd = &cobra.Command{
	Use:   "vote SEASON X Y BID",
	Short: "Vote for a bid with your contribution to the region",
	Long: `Cast your single vote in a region. BID is the bid's address or its
submission number as listed by 'mural region'.`,
	Args: cobra.ExactArgs(4),
	RunE: runVote,
}

var finalizeRegionCmd = &cobra.Command{
	Use:   "finalize-region SEASON X Y",
	Short: "Select the winning bid of a region once the season is finalized",
	Args:  cobra.ExactArgs(3),
	RunE:  runFinalizeRegion,
}

var payoutCmd = &cobra.Command{
	Use:   "payout SEASON X Y",
	Short: "Collect your payment as the winning artist and record the artwork",
	Args:  cobra.ExactArgs(3),
	RunE:  runPayout,
}

var regionCmd = &cobra.Command{
	Use:   "region SEASON X Y",
	Short: "Show a region and its bids",
	Args:  cobra.ExactArgs(3),
	RunE:  runRegion,
}

var gridCmd = &cobra.Command{
	Use:   "grid SEASON",
	Short: "Render a season's canvas",
	Long: `Render the season's 8x8 canvas.

  .  unfunded
  $  funded
  *  winner chosen
  #  painted`,
	Args: cobra.ExactArgs(1),
	RunE: runGrid,
}

func init() {
	bidCmd.Flags().StringVar(&bidSketchURI, "sketch", "", "URI of your sketch (required)")
	bidCmd.MarkFlagRequired("sketch")

	payoutCmd.Flags().StringVar(&payoutArtURI, "art-uri", "", "URI of the finished artwork (required)")
	payoutCmd.MarkFlagRequired("art-uri")

	regionCmd.Flags().StringVarP(&regionOutput, "output", "o", "default", "Output format: default or jsonl")
	gridCmd.Flags().StringVarP(&gridOutput, "output", "o", "default", "Output format: default or jsonl")
	gridCmd.Flags().BoolVar(&gridSummary, "summary", true, "Print the season summary above the grid")

	rootCmd.AddCommand(fundCmd, bidCmd, voteCmd, finalizeRegionCmd, payoutCmd, regionCmd, gridCmd)
}

// cellTarget is a resolved SEASON X Y argument triple.
type cellTarget struct {
	season address.Address
	region address.Address
	x, y   uint8
}

func resolveCell(ctx context.Context, c *muralclient.Client, args []string) (cellTarget, error) {
	x, y, err := parseCell(args[1], args[2])
	if err != nil {
		return cellTarget{}, err
	}
	season, err := resolveSeason(ctx, c, args[0])
	if err != nil {
		return cellTarget{}, err
	}
	return cellTarget{season: season, region: address.Region(season, x, y), x: x, y: y}, nil
}

func runFund(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	amount, err := parseAmount(args[3])
	if err != nil {
		return err
	}
	c, err := newClient(true)
	if err != nil {
		return err
	}
	cell, err := resolveCell(ctx, c, args)
	if err != nil {
		return err
	}

	_, err = submit(ctx, c, protocol.FundRegionRequest{
		Season: cell.season,
		X:      int(cell.x),
		Y:      int(cell.y),
		Funder: c.Identity(),
		Amount: amount,
	})
	return err
}

func runBid(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	amount, err := parseAmount(args[3])
	if err != nil {
		return err
	}
	c, err := newClient(true)
	if err != nil {
		return err
	}
	cell, err := resolveCell(ctx, c, args)
	if err != nil {
		return err
	}

	_, err = submit(ctx, c, protocol.SubmitBidRequest{
		Season:          cell.season,
		Region:          cell.region,
		Artist:          c.Identity(),
		SketchURI:       bidSketchURI,
		RequestedAmount: amount,
	})
	return err
}

func runVote(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	c, err := newClient(true)
	if err != nil {
		return err
	}
	cell, err := resolveCell(ctx, c, args)
	if err != nil {
		return err
	}
	bid, err := resolveBid(ctx, c, cell.region, args[3])
	if err != nil {
		return err
	}

	_, err = submit(ctx, c, protocol.VoteRequest{
		Season: cell.season,
		Region: cell.region,
		Bid:    bid,
		Voter:  c.Identity(),
	})
	return err
}

// resolveBid accepts a full bid address or a 1-based submission number.
func resolveBid(ctx context.Context, c *muralclient.Client, region address.Address, arg string) (address.Address, error) {
	if len(arg) == address.Size*2 {
		bid, err := address.Parse(arg)
		if err != nil {
			return address.Zero, printer.Error("invalid bid address", err.Error(), nil)
		}
		return bid, nil
	}

	seq, err := strconv.ParseUint(arg, 10, 32)
	if err != nil || seq == 0 {
		return address.Zero, printer.Error(
			"invalid bid reference",
			fmt.Sprintf("%q is neither a bid address nor a bid number.", arg),
			[]string{"List the region's bids with:\n  mural region <season> <x> <y>"},
		)
	}
	bids, err := c.Bids(ctx, region)
	if err != nil {
		return address.Zero, apiFailure("bid lookup", err)
	}
	for _, b := range bids {
		if uint64(b.Sequence) == seq {
			return b.Address, nil
		}
	}
	return address.Zero, printer.Error(
		"bid not found",
		fmt.Sprintf("Region %s has no bid #%d.", region.Short(), seq),
		[]string{"List the region's bids with:\n  mural region <season> <x> <y>"},
	)
}

func runFinalizeRegion(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	c, err := newClient(true)
	if err != nil {
		return err
	}
	cell, err := resolveCell(ctx, c, args)
	if err != nil {
		return err
	}

	r, err := submit(ctx, c, protocol.FinalizeRegionRequest{Season: cell.season, Region: cell.region})
	if err != nil || !r.OK {
		return err
	}

	region, err := c.Region(ctx, cell.region)
	if err != nil {
		return apiFailure("region lookup", err)
	}
	if region.WinningBid == nil {
		printer.Info("   Region (%d,%d) has no bids; it stays unresolved\n", cell.x, cell.y)
		return nil
	}
	printer.Info("   Winning bid: %s\n", region.WinningBid)
	return nil
}

func runPayout(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	c, err := newClient(true)
	if err != nil {
		return err
	}
	cell, err := resolveCell(ctx, c, args)
	if err != nil {
		return err
	}

	r, err := submit(ctx, c, protocol.PayoutRequest{
		Season:      cell.season,
		Region:      cell.region,
		Artist:      c.Identity(),
		FinalArtURI: payoutArtURI,
	})
	if err != nil || !r.OK {
		return err
	}

	balance, err := c.Balance(ctx, c.Identity())
	if err != nil {
		return apiFailure("balance lookup", err)
	}
	printer.Info("   Balance: %s\n", inspect.FormatAmount(balance))
	return nil
}

func runRegion(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	format, err := parseOutput(regionOutput)
	if err != nil {
		return err
	}
	c, err := newClient(false)
	if err != nil {
		return err
	}
	cell, err := resolveCell(ctx, c, args)
	if err != nil {
		return err
	}

	region, err := c.Region(ctx, cell.region)
	if err != nil {
		if muralclient.IsNotFound(err) {
			return printer.Error(
				"region not funded",
				fmt.Sprintf("Region (%d,%d) of season %s has no contributions yet.", cell.x, cell.y, cell.season.Short()),
				[]string{fmt.Sprintf("Fund it during the funding phase:\n  mural fund %s %d %d <amount>", cell.season.Short(), cell.x, cell.y)},
			)
		}
		return apiFailure("region lookup", err)
	}
	bids, err := c.Bids(ctx, cell.region)
	if err != nil {
		return apiFailure("bid lookup", err)
	}

	if format == inspect.OutputFormatJSONL {
		if err := inspect.FormatJSONL(printer.Out, []interface{}{region}); err != nil {
			return err
		}
		return inspect.FormatJSONL(printer.Out, bids)
	}
	inspect.FormatRegion(printer.Out, region, bids)
	return nil
}

func runGrid(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	format, err := parseOutput(gridOutput)
	if err != nil {
		return err
	}
	c, err := newClient(false)
	if err != nil {
		return err
	}
	season, err := resolveSeason(ctx, c, args[0])
	if err != nil {
		return err
	}

	regions, err := c.Regions(ctx, season)
	if err != nil {
		return apiFailure("region listing", err)
	}
	if format == inspect.OutputFormatJSONL {
		return inspect.FormatJSONL(printer.Out, regions)
	}

	if gridSummary {
		view, err := c.Season(ctx, season.String())
		if err != nil {
			return apiFailure("season lookup", err)
		}
		printer.Info("%s  %s  %s funded\n\n", view.Title, printer.Phase(view.Phase), inspect.FormatAmount(view.TotalFunded))
	}
	inspect.FormatGrid(printer.Out, regions)
	return nil
}

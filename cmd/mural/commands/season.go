package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dyluth/mural/internal/inspect"
	"github.com/dyluth/mural/internal/printer"
	"github.com/dyluth/mural/internal/protocol"
	"github.com/dyluth/mural/internal/timespec"
	"github.com/dyluth/mural/internal/watch"
	"github.com/dyluth/mural/pkg/phase"
	"github.com/spf13/cobra"
)

var (
	seasonTitle       string
	seasonDescription string
	seasonFundingEnd  string
	seasonVotingEnd   string
	seasonMinFunding  string
	seasonArtURI      string
	seasonOutput      string
	seasonWaitPhase   string
	seasonWaitTimeout time.Duration
)

var seasonCmd = &cobra.Command{
	Use:   "season",
	Short: "Create, inspect and finalize seasons",
}

var seasonCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a season with you as its authority",
	Long: `Create a season. Its address is derived from your identity and the title,
so each authority can use a title once.

Deadlines accept a duration, an RFC3339 timestamp or Unix seconds. A duration
for --funding-end counts from now; a duration for --voting-end counts from the
funding deadline.

Examples:
  # Fund for a week, then vote for three days
  mural season create --title "Spring" --funding-end 168h --voting-end 72h --min-funding 0.5

  # Absolute deadlines
  mural season create --title "Summer" --funding-end 2026-06-01T00:00:00Z --voting-end 2026-06-08T00:00:00Z`,
	Args: cobra.NoArgs,
	RunE: runSeasonCreate,
}

var seasonShowCmd = &cobra.Command{
	Use:   "show SEASON",
	Short: "Show a season and its current phase",
	Long: `Show a season's schedule, phase and funding totals.

SEASON is the full address or a unique prefix of at least 6 hex characters.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeasonShow,
}

var seasonFinalizeCmd = &cobra.Command{
	Use:   "finalize SEASON",
	Short: "Close a season early (authority only)",
	Long: `Force a season into the finalized phase regardless of its deadlines and
optionally record the composite artwork.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeasonFinalize,
}

var seasonWaitCmd = &cobra.Command{
	Use:   "wait SEASON",
	Short: "Block until a season reaches a phase",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeasonWait,
}

func init() {
	seasonCreateCmd.Flags().StringVar(&seasonTitle, "title", "", "Season title (required)")
	seasonCreateCmd.Flags().StringVar(&seasonDescription, "description", "", "Season description")
	seasonCreateCmd.Flags().StringVar(&seasonFundingEnd, "funding-end", "", "End of the funding phase (required)")
	seasonCreateCmd.Flags().StringVar(&seasonVotingEnd, "voting-end", "", "End of the voting phase (required)")
	seasonCreateCmd.Flags().StringVar(&seasonMinFunding, "min-funding", "0u", "Minimum first contribution per region")
	seasonCreateCmd.MarkFlagRequired("title")
	seasonCreateCmd.MarkFlagRequired("funding-end")
	seasonCreateCmd.MarkFlagRequired("voting-end")

	seasonShowCmd.Flags().StringVarP(&seasonOutput, "output", "o", "default", "Output format: default or jsonl")

	seasonFinalizeCmd.Flags().StringVar(&seasonArtURI, "art-uri", "", "URI of the composite artwork")

	seasonWaitCmd.Flags().StringVar(&seasonWaitPhase, "phase", "voting", "Phase to wait for: voting or finalized")
	seasonWaitCmd.Flags().DurationVar(&seasonWaitTimeout, "wait-timeout", time.Hour, "Give up after this long")

	seasonCmd.AddCommand(seasonCreateCmd, seasonShowCmd, seasonFinalizeCmd, seasonWaitCmd)
	rootCmd.AddCommand(seasonCmd)
}

func runSeasonCreate(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	fundingEnd, votingEnd, err := timespec.ParseSchedule(seasonFundingEnd, seasonVotingEnd, time.Now())
	if err != nil {
		return printer.Error("invalid schedule", err.Error(), []string{
			"Use a duration (48h), an RFC3339 timestamp or Unix seconds",
		})
	}

	// Zero is a valid minimum.
	minFunding, err := inspect.ParseBaseUnits(seasonMinFunding)
	if err != nil {
		return printer.Error("invalid amount", err.Error(), nil)
	}

	c, err := newClient(true)
	if err != nil {
		return err
	}

	r, err := submit(ctx, c, protocol.CreateSeasonRequest{
		Authority:           c.Identity(),
		Title:               seasonTitle,
		Description:         seasonDescription,
		FundingEndTs:        fundingEnd,
		VotingEndTs:         votingEnd,
		MinFundingPerRegion: minFunding,
	})
	if err != nil || !r.OK {
		return err
	}
	printer.Info("   Funding ends %s, voting ends %s\n",
		time.Unix(fundingEnd, 0).UTC().Format(time.RFC3339),
		time.Unix(votingEnd, 0).UTC().Format(time.RFC3339))
	return nil
}

func runSeasonShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	format, err := parseOutput(seasonOutput)
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
	view, err := c.Season(ctx, season.String())
	if err != nil {
		return apiFailure("season lookup", err)
	}

	if format == inspect.OutputFormatJSONL {
		return inspect.FormatJSONL(printer.Out, []interface{}{view})
	}
	inspect.FormatSeason(printer.Out, &view.Season, view.Phase, time.Unix(view.Now, 0))
	return nil
}

func runSeasonFinalize(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	c, err := newClient(true)
	if err != nil {
		return err
	}
	season, err := resolveSeason(ctx, c, args[0])
	if err != nil {
		return err
	}

	_, err = submit(ctx, c, protocol.FinalizeSeasonRequest{
		Season:      season,
		Authority:   c.Identity(),
		FinalArtURI: seasonArtURI,
	})
	return err
}

func runSeasonWait(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	want, err := phase.Parse(seasonWaitPhase)
	if err != nil {
		return printer.Error("invalid phase", err.Error(), []string{"Valid phases: funding, voting, finalized"})
	}

	c, err := newClient(false)
	if err != nil {
		return err
	}
	season, err := resolveSeason(ctx, c, args[0])
	if err != nil {
		return err
	}

	printer.Step("Waiting for season %s to reach %s...\n", season.Short(), printer.Phase(want))
	if err := c.WaitForPhase(ctx, season, want, time.Second, seasonWaitTimeout); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		title := "wait failed"
		if errors.Is(err, watch.ErrTimeout) {
			title = "timed out waiting for phase"
		}
		return printer.ErrorWithContext(
			title,
			err.Error(),
			map[string]string{"season": season.String(), "phase": want.String()},
			[]string{fmt.Sprintf("Check the deadlines with:\n  mural season show %s", season.Short())},
		)
	}
	printer.Success("Season %s is %s\n", season.Short(), printer.Phase(want))
	return nil
}

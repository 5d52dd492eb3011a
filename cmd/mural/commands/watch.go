package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyluth/mural/internal/filter"
	"github.com/dyluth/mural/internal/inspect"
	"github.com/dyluth/mural/internal/printer"
	"github.com/dyluth/mural/internal/resolver"
	"github.com/dyluth/mural/internal/watch"
	"github.com/dyluth/mural/pkg/address"
	"github.com/dyluth/mural/pkg/ledger"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	watchRedisURL string
	watchInstance string
	watchOutput   string
	watchSeason   string
	watchRegion   string
	watchActor    string
	watchKind     string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream ledger activity as it happens",
	Long: `Stream ledger events (seasons created, regions funded, bids, votes,
payouts) as they are committed.

The feed is read straight from the ledger's Redis instance, so it needs
--redis and the daemon's --instance name rather than the API.

Output Formats:
  default - One human-readable line per event
  jsonl   - Line-delimited JSON for programmatic processing

Examples:
  # Everything on the local ledger
  mural watch

  # One season's bids
  mural watch --season 3fa9c1 --kind "bid_*"

  # Export events as JSON
  mural watch --output=jsonl > events.jsonl`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchRedisURL, "redis", envOr("MURAL_REDIS_URL", "redis://localhost:6379/0"), "Ledger Redis URL (env MURAL_REDIS_URL)")
	watchCmd.Flags().StringVar(&watchInstance, "instance", envOr("MURAL_INSTANCE", "mural"), "Ledger instance name (env MURAL_INSTANCE)")
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "default", "Output format (default or jsonl)")
	watchCmd.Flags().StringVar(&watchSeason, "season", "", "Only events of this season (address or prefix)")
	watchCmd.Flags().StringVar(&watchRegion, "region", "", "Only events of this region (full address)")
	watchCmd.Flags().StringVar(&watchActor, "actor", "", "Only events by this identity (full address)")
	watchCmd.Flags().StringVar(&watchKind, "kind", "", "Only events whose kind matches this glob")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	format, err := parseOutput(watchOutput)
	if err != nil {
		return err
	}

	redisOpts, err := redis.ParseURL(watchRedisURL)
	if err != nil {
		return printer.Error("invalid Redis URL", err.Error(), []string{"Use the form redis://host:6379/0"})
	}
	client, err := ledger.NewClient(redisOpts, watchInstance)
	if err != nil {
		return fmt.Errorf("failed to create ledger client: %w", err)
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		return printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", watchRedisURL),
			map[string]string{"error": err.Error()},
			[]string{"Check the daemon's redis.url and pass it with --redis or MURAL_REDIS_URL"},
		)
	}

	criteria, err := watchCriteria(ctx, client)
	if err != nil {
		return err
	}

	feed, err := watch.Subscribe(ctx, client, criteria)
	if err != nil {
		return printer.Error("could not subscribe to ledger events", err.Error(), nil)
	}
	defer feed.Close()

	if format == inspect.OutputFormatDefault {
		printer.Info("Watching ledger %s (Ctrl-C to stop)\n", watchInstance)
	}
	return watch.Stream(ctx, feed, format, printer.Out)
}

func watchCriteria(ctx context.Context, client *ledger.Client) (*filter.Criteria, error) {
	criteria := &filter.Criteria{KindGlob: watchKind}

	if watchSeason != "" {
		season, err := resolver.ResolveSeason(ctx, client, watchSeason)
		if err != nil {
			var ambiguous *resolver.AmbiguousError
			if errors.As(err, &ambiguous) {
				return nil, printer.Error("ambiguous season prefix", resolver.FormatAmbiguousError(ambiguous), []string{"Use a longer prefix or the full address"})
			}
			return nil, printer.Error("invalid --season", err.Error(), nil)
		}
		criteria.Season = &season
	}

	var err error
	if criteria.Region, err = address.ParseOptional(watchRegion); err != nil {
		return nil, printer.Error("invalid --region", err.Error(), nil)
	}
	if criteria.Actor, err = address.ParseOptional(watchActor); err != nil {
		return nil, printer.Error("invalid --actor", err.Error(), nil)
	}
	if err := criteria.Validate(); err != nil {
		return nil, printer.Error("invalid --kind", err.Error(), []string{`Use a glob such as "region_*"`})
	}
	return criteria, nil
}

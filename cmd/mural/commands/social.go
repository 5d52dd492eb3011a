package commands

import (
	"context"

	"github.com/dyluth/mural/internal/muralclient"
	"github.com/dyluth/mural/internal/printer"
	"github.com/spf13/cobra"
)

var (
	commentPost   string
	socialProfile string
	likeUndo      bool
)

var commentsCmd = &cobra.Command{
	Use:   "comments CONTENT_ID",
	Short: "List or post comments on a season, region or bid",
	Long: `List the comments attached to a ledger record, or post one with --post.

CONTENT_ID is the record's address. Comments live in the social service; when
it is unavailable the list is empty.`,
	Args: cobra.ExactArgs(1),
	RunE: runComments,
}

var likeCmd = &cobra.Command{
	Use:   "like CONTENT_ID",
	Short: "Like (or --undo) a season, region or bid",
	Args:  cobra.ExactArgs(1),
	RunE:  runLike,
}

func init() {
	commentsCmd.Flags().StringVar(&commentPost, "post", "", "Comment text to post")
	commentsCmd.Flags().StringVar(&socialProfile, "profile", "", "Social profile ID (default: the profile of your key)")
	likeCmd.Flags().StringVar(&socialProfile, "profile", "", "Social profile ID (default: the profile of your key)")
	likeCmd.Flags().BoolVar(&likeUndo, "undo", false, "Remove your like")
	rootCmd.AddCommand(commentsCmd, likeCmd)
}

// profileID returns --profile, or finds the profile of the key's identity.
func profileID(ctx context.Context, c *muralclient.Client) (string, error) {
	if socialProfile != "" {
		return socialProfile, nil
	}
	id, err := identity()
	if err != nil {
		return "", err
	}
	profile, err := c.Profile(ctx, id.String())
	if err != nil {
		return "", apiFailure("profile lookup", err)
	}
	if profile == nil {
		return "", printer.Error("social service unavailable", "Could not find or create your social profile.", []string{
			"Pass a profile ID with --profile",
		})
	}
	return profile.ID, nil
}

func runComments(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	c, err := newClient(false)
	if err != nil {
		return err
	}
	contentID := args[0]

	if commentPost != "" {
		profile, err := profileID(ctx, c)
		if err != nil {
			return err
		}
		comment, err := c.PostComment(ctx, profile, contentID, commentPost)
		if err != nil {
			return apiFailure("comment", err)
		}
		if comment == nil {
			printer.Warning("The social service did not store the comment\n")
			return nil
		}
		printer.Success("Comment posted: %s\n", comment.ID)
		return nil
	}

	comments, err := c.Comments(ctx, contentID)
	if err != nil {
		return apiFailure("comment listing", err)
	}
	if len(comments) == 0 {
		printer.Info("No comments\n")
		return nil
	}
	for _, cm := range comments {
		author := cm.ProfileID
		if cm.Profile != nil && cm.Profile.Username != "" {
			author = cm.Profile.Username
		}
		printer.Info("%s  %s\n", author, cm.Text)
	}
	return nil
}

func runLike(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	c, err := newClient(false)
	if err != nil {
		return err
	}
	profile, err := profileID(ctx, c)
	if err != nil {
		return err
	}

	contentID := args[0]
	likes, err := c.Like(ctx, profile, contentID, !likeUndo)
	if err != nil {
		return apiFailure("like", err)
	}
	printer.Info("%d like%s\n", likes, pluralS(likes))
	return nil
}

func pluralS(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

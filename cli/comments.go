package cli

import (
	"context"
	"strings"

	"github.com/genvid/genvid/cli/helpers"
	"github.com/genvid/genvid/engine/comment"
	"github.com/genvid/genvid/engine/core"
	"github.com/genvid/genvid/pkg/config"
	"github.com/genvid/genvid/pkg/logger"
	"github.com/spf13/cobra"
)

func CommentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comments",
		Short: "Read and write video comments",
	}
	cmd.AddCommand(commentsListCmd(), commentsPostCmd())
	return cmd
}

func commentsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <video-id>",
		Short: "Show the comment threads of a video",
		Args:  cobra.ExactArgs(1),
		RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			client, err := commentsClient(ctx)
			if err != nil {
				return err
			}
			flat, err := client.ListComments(ctx, core.ID(args[0]))
			if err != nil {
				return err
			}
			return newPrinter(cmd).Comments(comment.BuildTree(flat))
		}),
	}
}

func commentsPostCmd() *cobra.Command {
	var replyTo string
	cmd := &cobra.Command{
		Use:   "post <video-id> <text>",
		Short: "Comment on a video or reply to a comment",
		Args:  cobra.MinimumNArgs(2),
		RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			return runCommentsPost(ctx, cmd, core.ID(args[0]), strings.Join(args[1:], " "), core.ID(replyTo))
		}),
	}
	cmd.Flags().StringVar(&replyTo, "reply-to", "", "Id of the comment to reply to")
	return cmd
}

func runCommentsPost(ctx context.Context, cmd *cobra.Command, videoID core.ID, text string, replyTo core.ID) error {
	text = strings.TrimSpace(text)
	if err := helpers.ValidateRequired(text, "comment text"); err != nil {
		return err
	}
	client, _, err := authedClient(ctx, config.FromContext(ctx))
	if err != nil {
		return err
	}
	flat, err := client.ListComments(ctx, videoID)
	if err != nil {
		return err
	}
	tree := comment.BuildTree(flat)
	var parentID *core.ID
	if !replyTo.IsZero() {
		parentID = &replyTo
	}
	posted, err := client.PostComment(ctx, videoID, text, parentID)
	if err != nil {
		return err
	}
	return newPrinter(cmd).Comments(comment.Insert(tree, parentID, posted))
}

// commentsClient reads comments with the stored login when there is one.
// Listing does not require authentication.
func commentsClient(ctx context.Context) (*APIClient, error) {
	cfg := config.FromContext(ctx)
	token, err := resolveToken(ctx, cfg)
	if err != nil {
		logger.FromContext(ctx).Debug("listing comments anonymously", "reason", err)
		token = ""
	}
	return NewAPIClient(cfg, token)
}

package cli

import (
	"context"

	"github.com/genvid/genvid/engine/job"
	"github.com/genvid/genvid/pkg/config"
	"github.com/genvid/genvid/pkg/logger"
	"github.com/spf13/cobra"
)

func JobsCmd() *cobra.Command {
	var drafts bool
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List generation jobs, most recent first",
		Args:  cobra.NoArgs,
		RunE: runE(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			return runJobs(ctx, cmd, drafts)
		}),
	}
	cmd.Flags().BoolVar(&drafts, "drafts", false, "Only list finished jobs that are not published yet")
	return cmd
}

func runJobs(ctx context.Context, cmd *cobra.Command, drafts bool) error {
	client, _, err := authedClient(ctx, config.FromContext(ctx))
	if err != nil {
		return err
	}
	snaps, err := client.ListJobs(ctx)
	if err != nil {
		return err
	}
	store := job.NewStore(job.WithLogger(logger.FromContext(ctx)))
	for _, snap := range snaps {
		store.Ingest(snap)
	}
	list := store.All()
	if drafts {
		list = store.Drafts()
	}
	return newPrinter(cmd).Jobs(list, "")
}

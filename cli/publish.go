package cli

import (
	"context"

	"github.com/genvid/genvid/cli/helpers"
	"github.com/genvid/genvid/engine/core"
	"github.com/genvid/genvid/engine/transport"
	"github.com/genvid/genvid/pkg/config"
	"github.com/spf13/cobra"
)

func PublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <job-id>",
		Short: "Publish a finished draft",
		Args:  cobra.ExactArgs(1),
		RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			return runPublish(ctx, cmd, core.ID(args[0]))
		}),
	}
}

func runPublish(ctx context.Context, cmd *cobra.Command, id core.ID) error {
	if err := helpers.ValidateRequired(id.String(), "job id"); err != nil {
		return err
	}
	rt, err := newSyncRuntime(ctx, config.FromContext(ctx), runtimeOptions{Kind: transport.KindPoll})
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	snap, err := rt.client.GetJob(ctx, id)
	if err != nil {
		return err
	}
	rt.session.Ingest(ctx, snap)
	if err := rt.session.Select(id); err != nil {
		return err
	}
	published, err := rt.session.Publish(ctx)
	if err != nil {
		return err
	}
	printer := newPrinter(cmd)
	if printer.Mode() == helpers.ModeJSON {
		return printer.JSON(map[string]string{"job_id": id.String(), "video_id": published.String()})
	}
	return printer.Message("Published job %s as video %s.", id, published)
}

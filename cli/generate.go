package cli

import (
	"context"
	"strings"

	"github.com/genvid/genvid/pkg/config"
	"github.com/spf13/cobra"
)

func GenerateCmd() *cobra.Command {
	var watch, force bool
	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Start a new video generation",
		Long: `Submit a prompt for generation. Only one generation may be queued or running
at a time unless --force is given. With --watch the command follows the new
job until it is ready or has failed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runE(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			return runGenerate(ctx, cmd, strings.Join(args, " "), watch, force)
		}),
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Follow the job until it finishes")
	cmd.Flags().BoolVar(&force, "force", false, "Submit even while another job is in progress")
	return cmd
}

func runGenerate(ctx context.Context, cmd *cobra.Command, prompt string, watch, force bool) error {
	cfg := config.FromContext(ctx)
	printer := newPrinter(cmd)
	w := newWatcher(printer, cmd.ErrOrStderr(), false, true)
	opts := runtimeOptions{}
	if watch {
		opts.OnChange = w.onChange
	}
	rt, err := newSyncRuntime(ctx, cfg, opts)
	if err != nil {
		return err
	}
	w.rt = rt
	defer rt.Close(ctx)

	if err := rt.seed(ctx); err != nil {
		return err
	}
	if watch {
		if err := rt.session.Init(ctx, rt.token); err != nil {
			return err
		}
	}
	created, err := rt.session.CreateJob(ctx, prompt, force)
	if err != nil {
		return err
	}
	if !watch {
		return printer.Job(created)
	}
	return w.run(ctx)
}

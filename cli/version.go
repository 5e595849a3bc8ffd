package cli

import (
	"context"

	"github.com/genvid/genvid/cli/helpers"
	"github.com/genvid/genvid/pkg/version"
	"github.com/spf13/cobra"
)

func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: runE(func(_ context.Context, cmd *cobra.Command, _ []string) error {
			info := version.Get()
			printer := newPrinter(cmd)
			if printer.Mode() == helpers.ModeJSON {
				return printer.JSON(info)
			}
			return printer.Message("genvid %s (commit %s, built %s, %s %s)",
				info.Version, info.CommitHash, info.BuildDate, info.GoVersion, info.Platform)
		}),
	}
}

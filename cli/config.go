package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/genvid/genvid/cli/helpers"
	"github.com/genvid/genvid/pkg/config"
	"github.com/spf13/cobra"
)

// ConfigCmd returns the config command
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration diagnostics",
	}
	cmd.AddCommand(configShowCmd(), configValidateCmd())
	return cmd
}

// ConfigEntry is one resolved configuration value and where it came from.
type ConfigEntry struct {
	Path   string            `json:"path"`
	Value  string            `json:"value"`
	Source config.SourceType `json:"source"`
	EnvVar string            `json:"env_var"`
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show configuration values and their sources",
		Long: `Display every configuration value with the source that provided it.
Sources in increasing precedence: defaults, YAML file, environment, CLI flags.
Sensitive values are redacted.`,
		Args: cobra.NoArgs,
		RunE: runE(func(_ context.Context, cmd *cobra.Command, _ []string) error {
			cfg, svc, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			entries := collectEntries(cfg, svc)
			printer := newPrinter(cmd)
			if printer.Mode() == helpers.ModeJSON {
				return printer.JSON(entries)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tVALUE\tSOURCE\tENV")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Path, e.Value, e.Source, e.EnvVar)
			}
			return w.Flush()
		}),
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Args:  cobra.NoArgs,
		RunE: runE(func(_ context.Context, cmd *cobra.Command, _ []string) error {
			cfg, svc, err := loadConfig(cmd)
			if err != nil {
				return helpers.NewCliError("INVALID_CONFIG", "Configuration is invalid", err.Error()).Wrap(err)
			}
			if err := svc.Validate(cfg); err != nil {
				return helpers.NewCliError("INVALID_CONFIG", "Configuration is invalid", err.Error()).Wrap(err)
			}
			return newPrinter(cmd).Message("Configuration is valid.")
		}),
	}
}

// collectEntries lists every configuration key in path order.
func collectEntries(cfg *config.Config, svc config.Service) []ConfigEntry {
	keys := config.Keys()
	entries := make([]ConfigEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, ConfigEntry{
			Path:   k.Path,
			Value:  k.Value(cfg),
			Source: svc.GetSource(k.Path),
			EnvVar: k.EnvVar,
		})
	}
	return entries
}

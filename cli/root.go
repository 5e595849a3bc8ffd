package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/genvid/genvid/cli/helpers"
	"github.com/genvid/genvid/pkg/config"
	"github.com/genvid/genvid/pkg/logger"
	"github.com/spf13/cobra"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "genvid",
		Short:         "Generate, follow and publish genvid videos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return report(cmd, SetupGlobalConfig(cmd))
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "genvid.yaml", "Path to the configuration file")
	flags.String("env-file", ".env", "Path to the environment variables file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error, disabled)")
	flags.Bool("log-json", false, "Output logs in JSON format")
	flags.Bool("log-source", false, "Include source code location in logs")
	flags.String("base-url", "", "Backend base URL")
	flags.String("token", "", "Access token, overrides the stored login")
	flags.Bool("json", false, "Print results as JSON")

	root.AddCommand(
		LoginCmd(),
		SignupCmd(),
		LogoutCmd(),
		GenerateCmd(),
		JobsCmd(),
		WatchCmd(),
		PublishCmd(),
		CommentsCmd(),
		ConfigCmd(),
		VersionCmd(),
	)
	return root
}

// Execute runs the root command until it finishes or the process is
// interrupted. Usage errors that never reached a handler are printed here.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := RootCmd().ExecuteContext(ctx)
	var reported *reportedError
	if err != nil && !errors.As(err, &reported) {
		helpers.OutputError(os.Stderr, err, helpers.ModeText)
	}
	return err
}

// reportedError marks an error that has already been shown to the user.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string {
	return e.err.Error()
}

func (e *reportedError) Unwrap() error {
	return e.err
}

func report(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: helpers.HandleCommonErrors(cmd.ErrOrStderr(), classifyError(err), helpers.DetectMode(cmd))}
}

// SetupGlobalConfig loads the env file and configuration and stores the
// configuration and logger in the command context.
func SetupGlobalConfig(cmd *cobra.Command) error {
	if _, err := loadEnvFile(cmd); err != nil {
		return err
	}
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logSource, err := cmd.Flags().GetBool("log-source")
	if err != nil {
		return fmt.Errorf("failed to get log-source flag: %w", err)
	}
	log := logger.SetupLogger(cfg.Runtime.LogLevel, cfg.Runtime.LogJSON, logSource)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.ContextWithLogger(ctx, log)
	ctx = config.ContextWithConfig(ctx, cfg)
	cmd.SetContext(ctx)
	log.Debug("configuration loaded", "base_url", cfg.API.BaseURL, "transport", cfg.Transport.Kind)
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, config.Service, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	var sources []config.Source
	if configFile != "" {
		sources = append(sources, config.NewYAMLProvider(configFile))
	}
	if flags := changedFlags(cmd); len(flags) > 0 {
		sources = append(sources, config.NewCLIProvider(flags))
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc := config.NewService()
	cfg, err := svc.Load(ctx, sources...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, svc, nil
}

type handlerFunc func(ctx context.Context, cmd *cobra.Command, args []string) error

// runE adapts a handler to cobra, translating its error for the user.
func runE(fn handlerFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return report(cmd, fn(cmd.Context(), cmd, args))
	}
}

func newPrinter(cmd *cobra.Command) *Printer {
	return NewPrinter(cmd.OutOrStdout(), helpers.DetectMode(cmd))
}

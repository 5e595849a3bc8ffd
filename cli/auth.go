package cli

import (
	"context"
	"errors"

	"github.com/genvid/genvid/cli/helpers"
	"github.com/genvid/genvid/pkg/config"
	"github.com/genvid/genvid/pkg/logger"
	"github.com/genvid/genvid/pkg/tokenstore"
	"github.com/spf13/cobra"
)

func LoginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the access token",
		Args:  cobra.NoArgs,
		RunE: runE(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			return runLogin(ctx, cmd, username, password)
		}),
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func runLogin(ctx context.Context, cmd *cobra.Command, username, password string) error {
	cfg := config.FromContext(ctx)
	client, err := NewAPIClient(cfg, "")
	if err != nil {
		return err
	}
	token, err := client.Login(ctx, username, password)
	if err != nil {
		return err
	}
	store, err := openTokenStore(cfg)
	if err != nil {
		return err
	}
	if err := store.Save(ctx, token); err != nil {
		return err
	}
	logger.FromContext(ctx).Debug("token stored", "path", store.Path())
	return newPrinter(cmd).Message("Logged in as %s.", username)
}

func SignupCmd() *cobra.Command {
	var req SignupRequest
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: runE(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			required := []struct{ field, value string }{
				{"email", req.Email},
				{"username", req.Username},
				{"password", req.Password},
			}
			for _, r := range required {
				if err := helpers.ValidateRequired(r.value, r.field); err != nil {
					return err
				}
			}
			client, err := NewAPIClient(config.FromContext(ctx), "")
			if err != nil {
				return err
			}
			if err := client.Signup(ctx, req); err != nil {
				return err
			}
			return newPrinter(cmd).Message("Account %s created, run 'genvid login' to sign in.", req.Username)
		}),
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVarP(&req.Username, "username", "u", "", "Account username")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "Account password")
	return cmd
}

func LogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE: runE(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			store, err := openTokenStore(config.FromContext(ctx))
			if err != nil {
				return err
			}
			if err := store.Clear(ctx); err != nil && !errors.Is(err, tokenstore.ErrNotFound) {
				return err
			}
			return newPrinter(cmd).Message("Logged out.")
		}),
	}
}

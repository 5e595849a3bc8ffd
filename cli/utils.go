package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/genvid/genvid/cli/helpers"
	"github.com/genvid/genvid/pkg/config"
	"github.com/genvid/genvid/pkg/tokenstore"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// loadEnvFile loads the --env-file into the process environment. A missing
// file is not an error; a file outside the working directory is.
func loadEnvFile(cmd *cobra.Command) (string, error) {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return "", fmt.Errorf("failed to get env-file flag: %w", err)
	}
	if envFile == "" {
		return "", nil
	}
	pwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	if !filepath.IsAbs(envFile) {
		envFile = filepath.Join(pwd, envFile)
	}
	absPath, err := filepath.Abs(filepath.Clean(envFile))
	if err != nil {
		return "", fmt.Errorf("failed to resolve env file path: %w", err)
	}
	if !isPathWithinDirectory(absPath, pwd) {
		return "", fmt.Errorf("env file path '%s' is outside the working directory", envFile)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return absPath, nil
		}
		return "", fmt.Errorf("failed to stat env file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("env file path '%s' is not a regular file", envFile)
	}
	if err := godotenv.Load(absPath); err != nil {
		return "", fmt.Errorf("failed to load env file %s: %w", absPath, err)
	}
	return absPath, nil
}

func isPathWithinDirectory(path, dir string) bool {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return false
	}
	if absPath == absDir {
		return true
	}
	return strings.HasPrefix(absPath, absDir+string(filepath.Separator))
}

// changedFlags collects explicitly set flags that map onto configuration.
func changedFlags(cmd *cobra.Command) map[string]any {
	out := make(map[string]any)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if _, ok := config.CLIFlagPaths[f.Name]; ok {
			out[f.Name] = f.Value.String()
		}
	})
	return out
}

func openTokenStore(cfg *config.Config) (*tokenstore.Store, error) {
	store, err := tokenstore.NewOS(cfg.Auth.TokenDir)
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	return store, nil
}

// resolveToken prefers an explicitly configured token over the stored login.
func resolveToken(ctx context.Context, cfg *config.Config) (string, error) {
	if token := cfg.API.Token.Value(); token != "" {
		return token, nil
	}
	store, err := openTokenStore(cfg)
	if err != nil {
		return "", err
	}
	token, err := store.Load(ctx)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return "", helpers.NewAuthError("not logged in, run 'genvid login' first")
	}
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	return token, nil
}

// authedClient returns an API client carrying the resolved token.
func authedClient(ctx context.Context, cfg *config.Config) (*APIClient, string, error) {
	token, err := resolveToken(ctx, cfg)
	if err != nil {
		return nil, "", err
	}
	client, err := NewAPIClient(cfg, token)
	if err != nil {
		return nil, "", err
	}
	return client, token, nil
}

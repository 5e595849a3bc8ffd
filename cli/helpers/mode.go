package helpers

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// Mode selects how commands render their results.
type Mode string

const (
	ModeText Mode = "text"
	ModeJSON Mode = "json"
)

var ciVars = []string{
	"CI",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"CIRCLECI",
	"BUILDKITE",
	"JENKINS_URL",
	"TF_BUILD",
	"CODEBUILD_BUILD_ID",
	"CONTINUOUS_INTEGRATION",
}

func isRunningInCI() bool {
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

// IsInteractive reports whether stdout is a terminal a person is looking at.
func IsInteractive() bool {
	if isRunningInCI() {
		return false
	}
	fd := os.Stdout.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return false
	}
	term := os.Getenv("TERM")
	return term != "" && term != "dumb"
}

// DetectMode honors an explicit --json flag and otherwise renders text only
// for interactive terminals.
func DetectMode(cmd *cobra.Command) Mode {
	if asJSON, err := cmd.Flags().GetBool("json"); err == nil && asJSON {
		return ModeJSON
	}
	if !IsInteractive() {
		return ModeJSON
	}
	return ModeText
}

// UseColor reports whether styled output should be emitted.
func UseColor() bool {
	return os.Getenv("NO_COLOR") == "" && IsInteractive()
}

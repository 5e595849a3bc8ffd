package version

import (
	"fmt"
	"runtime"
)

// Set with -ldflags "-X github.com/genvid/genvid/pkg/version.Version=v0.3.0".
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildDate  string `json:"build_date"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

func Get() Info {
	return Info{
		Version:    Version,
		CommitHash: CommitHash,
		BuildDate:  BuildDate,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// UserAgent identifies the client to the backend.
func UserAgent() string {
	return fmt.Sprintf("genvid-cli/%s (%s)", Version, runtime.GOOS+"/"+runtime.GOARCH)
}

// Package version holds build metadata injected with -ldflags.
package version

import "fmt"

// Set at build time:
//
//	go build -ldflags "-X healthflow/internal/version.Version=v1.2.0 -X healthflow/internal/version.Commit=$(git rev-parse --short HEAD)"
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns a one-line build description.
func Info() string {
	return fmt.Sprintf("healthflow %s (commit %s, built %s)", Version, Commit, Date)
}

// UserAgent is sent on outbound HTTP requests.
func UserAgent() string {
	return "healthflow/" + Version
}

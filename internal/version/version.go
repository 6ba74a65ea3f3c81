// Package version reports the build version set at link time.
package version

import "fmt"

// Set with -ldflags "-X github.com/sujalbistaa/payboard/internal/version.Version=..."
var (
	Version    = "devel"
	CommitHash = "none"
)

func GetVersionString() string {
	return fmt.Sprintf("%s (commit %s)", Version, CommitHash)
}

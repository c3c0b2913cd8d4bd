// Package version holds build metadata stamped in at link time.
package version

// Set via -ldflags at build time, e.g.:
//
//	go build -ldflags "-X github.com/sydlexius/qrsift/internal/version.Version=v0.3.0 \
//	    -X github.com/sydlexius/qrsift/internal/version.Commit=$(git rev-parse --short HEAD)" ./cmd/qrsift
var (
	Version = "dev"
	Commit  = "unknown"
)

// String returns the version and commit in one line.
func String() string {
	return Version + " (" + Commit + ")"
}

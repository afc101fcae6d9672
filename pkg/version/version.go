// Package version is filled in at build time with -ldflags -X.
package version

var (
	Version   = "v0.0.0-dev"
	GitCommit = "unknown"
)

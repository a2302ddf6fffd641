// Package version holds build identification set via -ldflags.
package version

var (
	// Version is the application version, overridden at release build time.
	Version = "dev"
	// GitSHA identifies the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is when the binary was built.
	BuildTime = "unknown"
)

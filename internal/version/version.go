// Package version holds build metadata stamped in with -ldflags -X.
package version

// Set by the linker; see internal/magetasks.Ldflags.
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

package version

import "runtime"

// Build information. These variables are set at build time via -ldflags
var (
	// Version is the semantic version of the client
	Version = "v0.1.0"

	// Commit is the git commit hash
	Commit = "unknown"

	// BuiltAt is the build timestamp
	BuiltAt = "unknown"
)

// Info returns formatted version information
func Info() string {
	return Version
}

// FullInfo returns complete build information
func FullInfo() string {
	return "synapse " + Version + " commit=" + Commit + " built_at=" + BuiltAt + " go=" + runtime.Version()
}

// UserAgent is sent on every request to the backend.
func UserAgent() string {
	return "synapsehub-client/" + Version
}

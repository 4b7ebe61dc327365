// Package version exposes the build-stamped version identity of the
// prunefang binary.
package version

// Build metadata, overridden at link time via -ldflags.
var (
	// Version is the semantic version of the build.
	Version = "dev"

	// Commit is the VCS revision the binary was built from.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

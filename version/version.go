// Package version holds the build version, overridden at release time
// with -ldflags "-X bb-cli/version.Version=...".
package version

// Version is the current bb release.
var Version = "0.1.0"

// Package version provides version information for the iqdecode tools
package version

import (
	"fmt"
	"runtime"
)

// Build-time variables that can be set via ldflags
var (
	// Version is the main version number that is being run at the moment
	Version = "0.1"

	// GitCommit is the git sha1 that was compiled. This will be filled in by the compiler
	GitCommit = "unknown"

	// GitBranch is the git branch that was compiled. This will be filled in by the compiler
	GitBranch = "unknown"

	// BuildDate is the date the binary was built
	BuildDate = "unknown"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string
	GitCommit string
	GitBranch string
	BuildDate string
	GoVersion string
	Platform  string
}

// GetBuildInfo returns complete build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		GitBranch: GitBranch,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// GetVersion returns the version string
func GetVersion() string {
	return Version
}

// GetVersionInfo returns formatted version information
func GetVersionInfo(appName string) string {
	info := GetBuildInfo()

	result := fmt.Sprintf("%s version %s", appName, info.Version)
	if info.GitCommit != "unknown" {
		commit := info.GitCommit
		if len(commit) > 7 {
			commit = commit[:7]
		}
		result += fmt.Sprintf(" (commit %s)", commit)
	}
	if info.GitBranch != "unknown" {
		result += fmt.Sprintf(" on branch %s", info.GitBranch)
	}
	if info.BuildDate != "unknown" {
		result += fmt.Sprintf("\nBuilt: %s", info.BuildDate)
	}
	result += fmt.Sprintf("\nGo: %s", info.GoVersion)
	result += fmt.Sprintf("\nPlatform: %s", info.Platform)
	return result
}

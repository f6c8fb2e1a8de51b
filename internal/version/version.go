// Package version holds the release version of chessticulate-api and the
// semver comparison used by the CI version gate. The gate blocks merges
// whose declared version is not strictly greater than the previously
// released one; the same value tags the published container images.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime time.Time `json:"build_time"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
}

// These variables are set at build time using -ldflags
var (
	// Version is the semantic version of the application
	Version = "0.4.0"

	// GitCommit is the git commit hash when the binary was built
	GitCommit = "unknown"

	// BuildTime is the time when the binary was built (RFC3339 format)
	BuildTime = "unknown"
)

// GetBuildInfo returns comprehensive build information
func GetBuildInfo() *BuildInfo {
	return &BuildInfo{
		Version:   GetVersion(),
		GitCommit: GetGitCommit(),
		BuildTime: parseISOTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// GetVersion returns the application version
func GetVersion() string {
	return Version
}

// GetGitCommit returns the git commit hash, shortened to 12 characters
func GetGitCommit() string {
	if GitCommit != "unknown" && len(GitCommit) > 12 {
		return GitCommit[:12]
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && len(setting.Value) >= 12 {
				return setting.Value[:12]
			}
		}
	}

	return GitCommit
}

// Tag returns the version formatted as a container image tag ("v" prefixed).
func Tag() string {
	return "v" + strings.TrimPrefix(GetVersion(), "v")
}

// Compare compares two semantic versions the way the CI gate does.
// It returns -1, 0 or +1 when a is respectively lower than, equal to or
// greater than b. A leading "v" is optional on either argument.
func Compare(a, b string) int {
	return semver.Compare(canonical(a), canonical(b))
}

// IsValid reports whether s is a well-formed semantic version.
func IsValid(s string) bool {
	return semver.IsValid(canonical(s))
}

// Gate reports whether current may ship on top of previous: both versions
// must be valid semver and current must be strictly greater. This is the
// pass/fail signal the release pipeline's precondition consumes.
func Gate(current, previous string) error {
	if !IsValid(current) {
		return fmt.Errorf("current version %q is not valid semver", current)
	}
	if !IsValid(previous) {
		return fmt.Errorf("previous version %q is not valid semver", previous)
	}
	if Compare(current, previous) <= 0 {
		return fmt.Errorf("version %s must be greater than previous version %s",
			canonical(current), canonical(previous))
	}
	return nil
}

func canonical(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	return s
}

func parseISOTime(s string) time.Time {
	if s == "unknown" || s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Package version provides build-time metadata for the buildwatch binary.
// Version, GitCommit, and BuildDate are injected at compile time via -ldflags.
// The bundled esbuild version is read from the module build info.
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build-time values injected via -ldflags.
var (
	version   = "dev"
	gitCommit = "none"
	buildDate = "unknown"
)

const esbuildModule = "github.com/evanw/esbuild"

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Info holds the build metadata for the binary.
type Info struct {
	Version        string `json:"version"`
	GitCommit      string `json:"gitCommit"`
	BuildDate      string `json:"buildDate"`
	GoVersion      string `json:"goVersion"`
	Platform       string `json:"platform"`
	EsbuildVersion string `json:"esbuildVersion"`
}

// GetInfo returns the current build information.
func GetInfo() Info {
	return Info{
		Version:        version,
		GitCommit:      shortCommit(gitCommit),
		BuildDate:      buildDate,
		GoVersion:      runtime.Version(),
		Platform:       fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		EsbuildVersion: esbuildVersion(),
	}
}

// String returns a human-readable single-line version string.
func (i Info) String() string {
	return fmt.Sprintf("buildwatch %s (commit: %s, built: %s, esbuild %s, %s %s)",
		i.Version, i.GitCommit, i.BuildDate, i.EsbuildVersion, i.GoVersion, i.Platform)
}

// JSON returns the version info as indented JSON.
func (i Info) JSON() (string, error) {
	data, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling version info: %w", err)
	}

	return string(data), nil
}

// esbuildVersion reports the linked esbuild module version, honoring
// replace directives. Test binaries carry no dependency info.
func esbuildVersion() string {
	bi, ok := readBuildInfo()
	if !ok {
		return "unknown"
	}

	for _, dep := range bi.Deps {
		if dep.Path != esbuildModule {
			continue
		}

		if dep.Replace != nil && dep.Replace.Version != "" {
			return dep.Replace.Version
		}

		return dep.Version
	}

	return "unknown"
}

// shortCommit truncates a commit SHA to 7 characters.
func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}

	return commit
}

// Package buildinfo reports the version of the running binary.
//
// Release builds stamp the variables through ldflags:
//
//	go build -ldflags "-X github.com/matzehuels/lanegrid/pkg/buildinfo.Version=v0.3.0 \
//	    -X github.com/matzehuels/lanegrid/pkg/buildinfo.Commit=$(git rev-parse HEAD)"
//
// Unstamped builds fall back to the module version and VCS settings that the
// Go toolchain embeds, so `go install ...@latest` still reports something
// useful.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info is the resolved build information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
}

// Get resolves the build information, preferring ldflags values over the
// embedded module data.
func Get() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date, GoVersion: runtime.Version()}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "none" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Date == "unknown" {
				info.Date = s.Value
			}
		}
	}
	return info
}

// Template returns the version template for cobra.
func Template() string {
	info := Get()
	return fmt.Sprintf("{{.Name}} %s (commit %s, built %s, %s)\n", info.Version, short(info.Commit), info.Date, info.GoVersion)
}

func short(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build-time variables injected via ldflags:
//
//	-X streamystats/internal/version.Version=v0.3.0
//	-X streamystats/internal/version.CommitHash=$(git rev-parse HEAD)
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

// Info is served on /api/version and logged at startup
type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	Modified   bool   `json:"modified,omitempty"`
	BuildDate  string `json:"build_date"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get returns the current version information. When no commit was injected
// the VCS revision recorded by the Go toolchain is used instead.
func Get() Info {
	info := Info{
		Version:    Version,
		CommitHash: CommitHash,
		BuildDate:  BuildDate,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info.CommitHash == "unknown" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			applyBuildSettings(&info, bi.Settings)
		}
	}
	return info
}

func applyBuildSettings(info *Info, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			info.CommitHash = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		case "vcs.time":
			if info.BuildDate == "unknown" {
				info.BuildDate = s.Value
			}
		}
	}
}

// String returns a human-readable version string
func (i Info) String() string {
	if i.CommitHash == "unknown" || len(i.CommitHash) <= 7 {
		return i.Version
	}
	s := fmt.Sprintf("%s (%s)", i.Version, i.CommitHash[:7])
	if i.Modified {
		s += " modified"
	}
	return s
}

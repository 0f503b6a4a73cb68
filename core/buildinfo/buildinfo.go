// Package buildinfo reports what binary is running.
package buildinfo

import "runtime/debug"

// Set with -ldflags, e.g.
//
//	-X 'github.com/m3rciful/pagebot/core/buildinfo.Version=v0.3.0'
//	-X 'github.com/m3rciful/pagebot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/pagebot/core/buildinfo.Date=2026-10-01T09:00:00Z'
var (
	Version = "dev"
	Commit  = "local"
	Date    = ""
)

// Info is a snapshot of the build metadata.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date,omitempty"`
	Go      string `json:"go"`
}

// Read returns the linker-provided values, falling back to the VCS stamp
// embedded by the go tool when they were not set.
func Read() Info {
	return read(debug.ReadBuildInfo)
}

func read(source func() (*debug.BuildInfo, bool)) Info {
	info := Info{Version: Version, Commit: Commit, Date: Date}
	bi, ok := source()
	if !ok || bi == nil {
		return info
	}
	info.Go = bi.GoVersion
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "local" && s.Value != "" {
				info.Commit = shortRevision(s.Value)
			}
		case "vcs.time":
			if info.Date == "" {
				info.Date = s.Value
			}
		}
	}
	return info
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

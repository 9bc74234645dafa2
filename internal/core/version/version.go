// Package version reports build metadata, stamped with -ldflags or read from the Go build info
package version

import (
	"runtime"
	"runtime/debug"
)

// set with -ldflags "-X feedmirror/internal/core/version.version=v1.2.0"
var (
	version = "dev"
	commit  = ""
	date    = ""
)

// BuildInfo describes the running binary
type BuildInfo struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
}

var readBuildInfo = debug.ReadBuildInfo

// Info returns the stamped values, falling back to the vcs settings go build records
func Info() BuildInfo {
	bi := BuildInfo{Service: "feedmirror", Version: version, Commit: commit, Date: date, GoVersion: runtime.Version()}
	if info, ok := readBuildInfo(); ok && info != nil {
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && bi.Commit == "":
				bi.Commit = short(s.Value)
			case s.Key == "vcs.time" && bi.Date == "":
				bi.Date = s.Value
			}
		}
	}
	if bi.Commit == "" {
		bi.Commit = "unknown"
	}
	if bi.Date == "" {
		bi.Date = "unknown"
	}
	return bi
}

func short(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

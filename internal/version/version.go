// Package version carries build metadata injected with ldflags:
//
//	go build -ldflags "-X github.com/soyeahso/kairos/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/kairos/internal/version.Commit=abc123
//	  -X github.com/soyeahso/kairos/internal/version.Date=2026-01-01"
//
// Without ldflags, Commit and Date fall back to the VCS stamp the go tool
// records in the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info is the one-line description printed by `kairos version`.
func Info() string {
	commit, date := Build()
	return fmt.Sprintf("kairos %s (commit: %s, built: %s, %s/%s)",
		Version, short(commit), date, runtime.GOOS, runtime.GOARCH)
}

// UserAgent identifies outbound tool and search HTTP requests.
func UserAgent() string {
	commit, _ := Build()
	return fmt.Sprintf("kairos/%s (+%s)", Version, short(commit))
}

// Build returns the commit and build date, preferring ldflags values.
func Build() (commit, date string) {
	commit, date = Commit, Date
	if commit != "unknown" && date != "unknown" {
		return commit, date
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return commit, date
	}
	return fromSettings(bi.Settings, commit, date)
}

func fromSettings(settings []debug.BuildSetting, commit, date string) (string, string) {
	dirty := false
	rev, at := "", ""
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.time":
			at = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if commit == "unknown" && rev != "" {
		commit = rev
		if dirty {
			commit = short(rev) + "-dirty"
		}
	}
	if date == "unknown" && at != "" {
		date = at
	}
	return commit, date
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}

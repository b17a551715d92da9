// Package buildinfo holds version and build metadata stamped at compile
// time via -ldflags, e.g.
//
//	go build -ldflags "-X github.com/BzlZavLed/clubAdmin-sub000/internal/buildinfo.Version=1.2.0"
package buildinfo

import (
	"fmt"
	"runtime"
	"time"
)

// Set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitBranch = "unknown"
	BuildTime = "unknown"
)

var startTime = time.Now()

// Info returns build and runtime metadata as a flat map, suitable for
// JSON output on the version endpoint and the version command.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"git_branch": GitBranch,
		"build_time": BuildTime,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"uptime":     Uptime().String(),
	}
}

// Uptime returns the duration since process start, truncated to seconds.
func Uptime() time.Duration {
	return time.Since(startTime).Truncate(time.Second)
}

// UserAgent is sent on every outbound HTTP request.
func UserAgent() string {
	return "clubplanner/" + Version
}

// String returns a one-line summary for logging.
func String() string {
	return fmt.Sprintf("clubplanner %s (%s@%s) built %s", Version, GitCommit, GitBranch, BuildTime)
}

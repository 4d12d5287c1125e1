// Package build carries version information stamped in at build time via
// -ldflags, e.g.
//
//	go build -ldflags "-X github.com/good-yellow-bee/alertflow/pkg/build.Version=v1.0.0"
package build

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "unknown"
	Time    = "unknown"
)

// String returns the one-line version banner.
func String() string {
	return fmt.Sprintf("alertflow %s (%s) built %s with %s", Version, Commit, Time, runtime.Version())
}

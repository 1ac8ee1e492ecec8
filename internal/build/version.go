// Package build holds version information injected at link time:
//
//	go build -ldflags "-X github.com/ariel-frischer/symlog/internal/build.Version=v1.2.0"
//
// It has no internal dependencies so any package can import it.
package build

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// IsDevBuild reports whether this binary was built without release ldflags.
func IsDevBuild() bool {
	return Version == "dev"
}

// String returns a one-line version summary.
func String() string {
	return fmt.Sprintf("symlog %s (commit %s, built %s, %s/%s)", Version, Commit, BuildDate, runtime.GOOS, runtime.GOARCH)
}

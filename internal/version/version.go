// Package version carries build metadata stamped in by the linker.
package version

import "runtime"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func String() string {
	return "psadt-client " + Version + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ", os=" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}

package buildinfo

import (
	"fmt"
	"runtime/debug"
)

const Tool = "dgflow"

// Set at link time with -ldflags "-X".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// ModuleVersion returns Version, or the module version recorded by the Go
// toolchain when the binary was installed with go install.
func ModuleVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}

	return Version
}

func String() string {
	return fmt.Sprintf("%s %s (commit=%s, date=%s)", Tool, ModuleVersion(), Commit, Date)
}

// Package buildinfo contains build information.
//
// Build information should be set during compilation by passing
// -ldflags "-X src.repld.dev/pkg/buildinfo.VersionSuffix=value" to
// "go build".
package buildinfo

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"src.repld.dev/pkg/prog"
)

// Version identifies the version of repld. On development commits, it
// identifies the next release.
const Version = "0.4.0"

// VersionSuffix is appended to Version in the output of "repld -version" and
// "repld -buildinfo" to build the full version string. It can be overridden
// when building repld from a distribution package.
var VersionSuffix = "-dev.unknown"

// Type contains the build information fields.
type Type struct {
	Version   string `json:"version"`
	GoVersion string `json:"goversion"`
}

// Value contains the build information of the current binary.
var Value = Type{
	Version:   Version + VersionSuffix,
	GoVersion: runtime.Version(),
}

// Program is the buildinfo subprogram.
type Program struct{}

func (Program) Run(fds [3]*os.File, f *prog.Flags, _ []string) error {
	switch {
	case f.BuildInfo:
		if f.JSON {
			fmt.Fprintln(fds[1], mustToJSON(Value))
		} else {
			fmt.Fprintln(fds[1], "Version:", Value.Version)
			fmt.Fprintln(fds[1], "Go version:", Value.GoVersion)
		}
	case f.Version:
		if f.JSON {
			fmt.Fprintln(fds[1], mustToJSON(Value.Version))
		} else {
			fmt.Fprintln(fds[1], Value.Version)
		}
	default:
		return prog.ErrNotSuitable
	}
	return nil
}

func mustToJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

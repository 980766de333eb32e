// Package version reports which twentyq build produced a result.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/andywolf/twentyq/internal/version.Version=v1.0.0".
// Builds without ldflags (go install) fall back to the module build info.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

type build struct {
	version, commit, date string
}

func current() build {
	b := build{version: Version, commit: Commit, date: BuildDate}
	info, ok := readBuildInfo()
	if !ok {
		return b
	}
	if b.version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && b.commit == "unknown":
			b.commit = s.Value
		case s.Key == "vcs.time" && b.date == "unknown":
			b.date = s.Value
		}
	}
	return b
}

// Short returns the version, e.g. "v1.2.3" or "dev".
func Short() string {
	return current().version
}

// UserAgent identifies twentyq in outbound HTTP requests.
func UserAgent() string {
	return "twentyq/" + Short()
}

// Info is the one-line form printed by "twentyq version".
func Info() string {
	b := current()
	return fmt.Sprintf("twentyq %s (commit: %s, built: %s, go: %s)",
		b.version, shortCommit(b.commit), b.date, runtime.Version())
}

func shortCommit(c string) string {
	if len(c) > 7 {
		return c[:7]
	}
	return c
}

// Full is the multi-line form printed by "twentyq version -v".
func Full() string {
	b := current()
	return fmt.Sprintf(`twentyq %s
  Commit:     %s
  Built:      %s
  Go version: %s
  OS/Arch:    %s/%s`,
		b.version, b.commit, b.date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

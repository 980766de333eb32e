package version

import (
	"runtime"
	"runtime/debug"
	"strings"
	"testing"
)

// pin fixes the ldflag variables and build info for one test.
func pin(t *testing.T, version, commit, date string, info *debug.BuildInfo) {
	t.Helper()
	v, c, d, r := Version, Commit, BuildDate, readBuildInfo
	t.Cleanup(func() { Version, Commit, BuildDate, readBuildInfo = v, c, d, r })

	Version, Commit, BuildDate = version, commit, date
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
}

func TestShort(t *testing.T) {
	tests := []struct {
		name    string
		version string
		info    *debug.BuildInfo
		want    string
	}{
		{"ldflags win", "v1.2.3", &debug.BuildInfo{Main: debug.Module{Version: "v9.9.9"}}, "v1.2.3"},
		{"module version", "dev", &debug.BuildInfo{Main: debug.Module{Version: "v0.4.0"}}, "v0.4.0"},
		{"devel build", "dev", &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, "dev"},
		{"no build info", "dev", nil, "dev"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pin(t, tt.version, "unknown", "unknown", tt.info)
			if got := Short(); got != tt.want {
				t.Errorf("Short() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInfo(t *testing.T) {
	pin(t, "v1.0.0", "abc123456789abcdef", "2026-01-15T10:30:00Z", nil)

	got := Info()
	want := "twentyq v1.0.0 (commit: abc1234, built: 2026-01-15T10:30:00Z, go: " + runtime.Version() + ")"
	if got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}
}

func TestInfo_VCSSettings(t *testing.T) {
	pin(t, "dev", "unknown", "unknown", &debug.BuildInfo{Settings: []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2026-02-01T00:00:00Z"},
	}})

	got := Info()
	for _, part := range []string{"commit: 0123456,", "built: 2026-02-01T00:00:00Z"} {
		if !strings.Contains(got, part) {
			t.Errorf("Info() = %q, missing %q", got, part)
		}
	}
}

func TestInfo_ShortCommitKept(t *testing.T) {
	pin(t, "dev", "abc", "unknown", nil)
	if got := Info(); !strings.Contains(got, "commit: abc,") {
		t.Errorf("Info() = %q", got)
	}
}

func TestFull(t *testing.T) {
	pin(t, "v2.0.0", "deadbeefcafe", "2026-03-01", nil)

	lines := strings.Split(Full(), "\n")
	if len(lines) != 5 {
		t.Fatalf("Full() has %d lines, want 5", len(lines))
	}
	if lines[0] != "twentyq v2.0.0" {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "deadbeefcafe") {
		t.Errorf("commit line should keep the full SHA: %q", lines[1])
	}
	if want := runtime.GOOS + "/" + runtime.GOARCH; !strings.HasSuffix(lines[4], want) {
		t.Errorf("OS/Arch line = %q, want suffix %q", lines[4], want)
	}
}

func TestUserAgent(t *testing.T) {
	pin(t, "v0.3.0", "unknown", "unknown", nil)
	if got := UserAgent(); got != "twentyq/v0.3.0" {
		t.Errorf("UserAgent() = %q", got)
	}
}

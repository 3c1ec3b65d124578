package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

// stamp sets the ldflags variables for one test.
func stamp(t *testing.T, version, commit, built string) {
	t.Helper()
	v, c, b := Version, Commit, BuildDate
	t.Cleanup(func() { Version, Commit, BuildDate = v, c, b })
	Version, Commit, BuildDate = version, commit, built
}

func TestInfo(t *testing.T) {
	tests := []struct {
		commit string
		want   string
	}{
		{"unknown", "1.2.3"},
		{"abc", "1.2.3"},
		{"1234567", "1.2.3"},
		{"12345678", "1.2.3 (1234567)"},
		{"abc1234567890", "1.2.3 (abc1234)"},
	}
	for _, tt := range tests {
		t.Run(tt.commit, func(t *testing.T) {
			stamp(t, "1.2.3", tt.commit, "unknown")
			assert.Equal(t, tt.want, Info())
		})
	}
}

func TestFull(t *testing.T) {
	stamp(t, "1.2.3", "abc1234567890", "2020-10-15")
	assert.Equal(t, "cdconv version 1.2.3\nCommit: abc1234567890\nBuilt: 2020-10-15", Full())
}

func TestGet(t *testing.T) {
	stamp(t, "1.2.3", "feedface", "2020-10-15")
	assert.Equal(t, BuildInfo{
		Version:   "1.2.3",
		Commit:    "feedface",
		BuildDate: "2020-10-15",
		GoVersion: runtime.Version(),
	}, Get())
}

func TestGet_UnstampedCommit(t *testing.T) {
	stamp(t, "1.2.3", "unknown", "unknown")
	info := Get()
	assert.Equal(t, "1.2.3", info.Version)
	// Test binaries carry no VCS stamp, so the placeholder survives.
	assert.NotEmpty(t, info.Commit)
}

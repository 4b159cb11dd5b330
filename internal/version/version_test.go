package version

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func setBuild(t *testing.T, version, commit, date string) {
	t.Helper()
	v, c, d := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = v, c, d })
	Version, Commit, Date = version, commit, date
}

func TestInfo(t *testing.T) {
	setBuild(t, "1.2.3", "abc1234567890", "2026-01-15")

	info := Info()
	assert.Equal(t, "kairos 1.2.3 (commit: abc1234, built: 2026-01-15, "+runtime.GOOS+"/"+runtime.GOARCH+")", info)
}

func TestUserAgent(t *testing.T) {
	setBuild(t, "0.4.0", "deadbeefcafe", "2026-02-01")
	assert.Equal(t, "kairos/0.4.0 (+deadbee)", UserAgent())
}

func TestBuild_PrefersLdflags(t *testing.T) {
	setBuild(t, "1.0.0", "c0ffee", "2026-03-01")
	commit, date := Build()
	assert.Equal(t, "c0ffee", commit)
	assert.Equal(t, "2026-03-01", date)
}

func TestFromSettings(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2026-04-01T10:00:00Z"},
		{Key: "vcs.modified", Value: "false"},
	}

	tests := []struct {
		name       string
		settings   []debug.BuildSetting
		commit     string
		date       string
		wantCommit string
		wantDate   string
	}{
		{"vcs fills both", settings, "unknown", "unknown", "0123456789abcdef", "2026-04-01T10:00:00Z"},
		{"ldflags commit kept", settings, "feed", "unknown", "feed", "2026-04-01T10:00:00Z"},
		{"dirty tree", append(settings[:2:2], debug.BuildSetting{Key: "vcs.modified", Value: "true"}), "unknown", "unknown", "0123456-dirty", "2026-04-01T10:00:00Z"},
		{"no vcs stamp", nil, "unknown", "unknown", "unknown", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commit, date := fromSettings(tt.settings, tt.commit, tt.date)
			assert.Equal(t, tt.wantCommit, commit)
			assert.Equal(t, tt.wantDate, date)
		})
	}
}

func TestShort(t *testing.T) {
	assert.Equal(t, "abcdefg", short("abcdefghij"))
	assert.Equal(t, "abc", short("abc"))
	assert.Equal(t, "", short(""))
}

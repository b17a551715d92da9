package buildinfo

import (
	"strings"
	"testing"
)

func TestInfo_Keys(t *testing.T) {
	info := Info()
	for _, k := range []string{"version", "git_commit", "go_version", "uptime"} {
		if _, ok := info[k]; !ok {
			t.Errorf("Info() missing key %q", k)
		}
	}
}

func TestUserAgent(t *testing.T) {
	if ua := UserAgent(); !strings.HasPrefix(ua, "clubplanner/") {
		t.Errorf("UserAgent() = %q, want clubplanner/ prefix", ua)
	}
}

package version

import (
	"strings"
	"testing"
)

func TestStringIncludesBuildInfo(t *testing.T) {
	Version, Commit, BuildDate = "1.2.3", "abc123", "2025-03-14"
	t.Cleanup(func() { Version, Commit, BuildDate = "dev", "unknown", "unknown" })

	got := String()
	for _, want := range []string{"p2pwatcher 1.2.3", "commit: abc123", "built: 2025-03-14"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
}

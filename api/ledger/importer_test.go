package ledger

import "testing"

func TestStagingStatus(t *testing.T) {
	if got := stagingStatus(0); got != "processed" {
		t.Fatalf("clean sync expected processed, got %s", got)
	}
	if got := stagingStatus(3); got != "partial" {
		t.Fatalf("sync with row errors expected partial, got %s", got)
	}
}

func TestIsSynced(t *testing.T) {
	cases := []struct {
		status   string
		expected bool
	}{
		{"processed", true},
		{"partial", true},
		{"pending", false},
		{"processing", false},
		{"failed", false},
	}
	for _, tc := range cases {
		if got := isSynced(tc.status); got != tc.expected {
			t.Fatalf("isSynced(%q) expected %v, got %v", tc.status, tc.expected, got)
		}
	}
}

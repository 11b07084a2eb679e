package updater

import "testing"

func TestIsNewer(t *testing.T) {
	cases := []struct {
		latest, current string
		want            bool
	}{
		{"1.2.3", "1.2.2", true},
		{"1.2.3", "1.2.3", false},
		{"1.2.3", "1.2.4", false},
		{"2.0.0", "1.9.9", true},
		{"1.10.0", "1.9.0", true},
		{"0.0.1", "0.0.0", true},
		{"garbage", "1.0.0", false},
	}

	for _, tc := range cases {
		if got := isNewer(tc.latest, tc.current); got != tc.want {
			t.Errorf("isNewer(%q, %q) = %v, want %v", tc.latest, tc.current, got, tc.want)
		}
	}
}

func TestNormalizeVersion(t *testing.T) {
	if got := normalizeVersion(" v1.2.3 "); got != "1.2.3" {
		t.Errorf("normalizeVersion = %q, want 1.2.3", got)
	}
	if got := normalizeVersion("1.2.3"); got != "1.2.3" {
		t.Errorf("normalizeVersion = %q, want 1.2.3", got)
	}
}

func TestBackgroundCheckerNotifiesOncePerVersion(t *testing.T) {
	b := NewBackgroundChecker("1.0.0", 0, nil)

	notified := 0
	b.notify = func(r *Result) { notified++ }

	r := &Result{Available: true, LatestVersion: "v1.1.0"}
	b.record(r)
	b.record(r)
	if notified != 1 {
		t.Errorf("notified = %d, want 1 for repeated result", notified)
	}

	b.record(&Result{Available: false, LatestVersion: "v1.1.0"})
	if notified != 1 {
		t.Errorf("notified = %d, want 1 after unavailable result", notified)
	}

	b.record(&Result{Available: true, LatestVersion: "v1.2.0"})
	if notified != 2 {
		t.Errorf("notified = %d, want 2 for a new version", notified)
	}

	if got := b.LastResult(); got == nil || got.LatestVersion != "v1.2.0" {
		t.Errorf("LastResult = %+v, want cached v1.2.0", got)
	}
}

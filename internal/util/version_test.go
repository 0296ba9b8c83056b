package util

import "testing"

func TestIsSemverUpgrade(t *testing.T) {
	cases := []struct {
		installed string
		remote    string
		want      bool
	}{
		{"1.0.0", "1.0.1", true},
		{"v1.0.0", "1.1.0", true},
		{"1.2.0", "v2.0.0", true},
		{"1.0.1", "1.0.0", false},
		{"1.0.0", "1.0.0", false},
		{"unknown", "1.0.0", false},
		{"1.0.0", "unknown", false},
		{"", "1.0.0", false},
		{"1.0.0", "", false},
	}

	for _, tc := range cases {
		if got := IsSemverUpgrade(tc.installed, tc.remote); got != tc.want {
			t.Errorf("IsSemverUpgrade(%q, %q) = %v, want %v", tc.installed, tc.remote, got, tc.want)
		}
	}
}

package botapi

import (
	"errors"
	"testing"
)

func TestNormalizeMessage(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "all good", "all good"},
		{"error", errors.New("boom"), "boom"},
		{"map with message", map[string]any{"message": "from backend"}, "from backend"},
		{"map without message", map[string]any{"code": 1}, "map[code:1]"},
		{"number", 42, "42"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeMessage(tc.in); got != tc.want {
				t.Errorf("NormalizeMessage(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

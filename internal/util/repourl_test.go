package util

import "testing"

func TestToReadmeURL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain https", "https://github.com/owner/repo", "https://github.com/owner/repo#readme"},
		{"git suffix", "https://github.com/owner/repo.git", "https://github.com/owner/repo#readme"},
		{"trailing slash", "https://github.com/owner/repo/", "https://github.com/owner/repo#readme"},
		{"ssh ref", "git@github.com:owner/repo.git", "https://github.com/owner/repo#readme"},
		{"existing fragment", "https://github.com/owner/repo#usage", "https://github.com/owner/repo#usage"},
		{"tree path", "https://github.com/owner/repo/tree/main/plugin", "https://github.com/owner/repo/tree/main/plugin"},
		{"blob path", "https://github.com/owner/repo/blob/main/README.md", "https://github.com/owner/repo/blob/main/README.md"},
		{"not a url", "owner/repo", ""},
		{"empty", "", ""},
		{"whitespace", "   ", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToReadmeURL(tc.in)
			if got != tc.want {
				t.Errorf("ToReadmeURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
			// Feeding the output back in must not change it.
			if got != "" {
				if again := ToReadmeURL(got); again != got {
					t.Errorf("ToReadmeURL not idempotent: %q -> %q", got, again)
				}
			}
		})
	}
}

func TestToChangelogURL(t *testing.T) {
	got := ToChangelogURL("git@github.com:owner/repo.git")
	want := "https://github.com/owner/repo/blob/master/CHANGELOG.md"
	if got != want {
		t.Errorf("ToChangelogURL = %q, want %q", got, want)
	}

	if got := ToChangelogURL("not a url"); got != "" {
		t.Errorf("expected empty changelog URL for invalid input, got %q", got)
	}
}

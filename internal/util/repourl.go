package util

import (
	"regexp"
	"strings"
)

var (
	sshRepoRe   = regexp.MustCompile(`(?i)^git@([^:]+):(.+)$`)
	httpRe      = regexp.MustCompile(`(?i)^https?://`)
	gitSuffixRe = regexp.MustCompile(`(?i)\.git$`)
	blobTreeRe  = regexp.MustCompile(`(?i)/(blob|tree)/`)
	readmeRe    = regexp.MustCompile(`(?i)#readme$`)
)

// ToReadmeURL normalizes a plugin repo reference into a browsable readme
// link. SSH-style refs (git@host:owner/repo.git) are rewritten to https,
// trailing ".git" and slashes are stripped, and "#readme" is appended unless
// the URL already carries a fragment or points inside the tree. Returns ""
// when the reference cannot be turned into an http(s) URL. Idempotent.
func ToReadmeURL(repo string) string {
	raw := strings.TrimSpace(repo)
	if raw == "" {
		return ""
	}

	url := raw
	if m := sshRepoRe.FindStringSubmatch(raw); m != nil {
		url = "https://" + m[1] + "/" + m[2]
	}

	url = gitSuffixRe.ReplaceAllString(url, "")
	url = strings.TrimRight(url, "/")
	if !httpRe.MatchString(url) {
		return ""
	}

	if !strings.Contains(url, "#") && !blobTreeRe.MatchString(url) {
		url += "#readme"
	}
	return url
}

// ToChangelogURL derives a best-effort changelog link from a repo reference.
// Common forges serve this path; when they don't, the user still has the
// repo link itself.
func ToChangelogURL(repo string) string {
	base := strings.TrimSpace(repo)
	if base == "" {
		return ""
	}

	normalized := ToReadmeURL(base)
	if normalized == "" {
		return ""
	}
	repoURL := strings.TrimRight(readmeRe.ReplaceAllString(normalized, ""), "/")
	return repoURL + "/blob/master/CHANGELOG.md"
}

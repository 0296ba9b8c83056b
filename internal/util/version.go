package util

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// IsSemverUpgrade reports whether remote is a strictly newer semantic
// version than installed. Either side failing to parse yields false: the
// dashboard's update flag uses plain inequality, this check only gates the
// background "updates available" notification so downgrades and unparsable
// versions stay quiet.
func IsSemverUpgrade(installed, remote string) bool {
	cur, err := semver.NewVersion(strings.TrimPrefix(installed, "v"))
	if err != nil {
		return false
	}
	next, err := semver.NewVersion(strings.TrimPrefix(remote, "v"))
	if err != nil {
		return false
	}
	return next.GreaterThan(cur)
}

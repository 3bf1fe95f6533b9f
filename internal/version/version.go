// Package version compares the loosely semver-shaped version strings printed
// by package managers. Parsing is total: malformed input never fails, it
// degrades to zero segments.
package version

import (
	"regexp"
	"strconv"
	"strings"
)

// Version is a parsed version string.
type Version struct {
	Core []int
	Pre  string
}

var versionRe = regexp.MustCompile(`v?\d+(?:\.\d+)*(?:-[0-9A-Za-z.\-]+)?`)

// Parse splits s into numeric core segments and an optional pre-release tag.
// A leading "v" is stripped, the tag is everything after the first hyphen,
// and any segment that is not a non-negative integer counts as 0.
func Parse(s string) Version {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "v")

	core, pre, _ := strings.Cut(s, "-")
	parts := strings.Split(core, ".")
	segments := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			n = 0
		}
		segments[i] = n
	}
	return Version{Core: segments, Pre: pre}
}

// String renders v back into dotted form.
func (v Version) String() string {
	parts := make([]string, len(v.Core))
	for i, n := range v.Core {
		parts[i] = strconv.Itoa(n)
	}
	s := strings.Join(parts, ".")
	if v.Pre != "" {
		s += "-" + v.Pre
	}
	return s
}

// Compare returns -1, 0 or 1. Missing trailing segments compare as 0.
// A release sorts after any pre-release of the same core; two pre-release
// tags compare as plain strings.
func Compare(a, b Version) int {
	n := max(len(a.Core), len(b.Core))
	for i := 0; i < n; i++ {
		x, y := segment(a.Core, i), segment(b.Core, i)
		if x < y {
			return -1
		}
		if x > y {
			return 1
		}
	}

	switch {
	case a.Pre == b.Pre:
		return 0
	case a.Pre == "":
		return 1
	case b.Pre == "":
		return -1
	case a.Pre < b.Pre:
		return -1
	default:
		return 1
	}
}

// IsOlder reports whether current sorts strictly before latest.
func IsOlder(current, latest string) bool {
	return Compare(Parse(current), Parse(latest)) < 0
}

// Extract pulls the first version-looking token out of command output, or
// returns the trimmed output when nothing matches.
func Extract(output string) string {
	output = strings.TrimSpace(output)
	if m := versionRe.FindString(output); m != "" {
		return m
	}
	return output
}

func segment(core []int, i int) int {
	if i < len(core) {
		return core[i]
	}
	return 0
}

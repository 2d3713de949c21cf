package update

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// BaselineVersion is reported when no version has been recorded anywhere.
	BaselineVersion = "1.0.0.0"
	// MaxVersionLength bounds version strings accepted by IsValidVersion.
	MaxVersionLength = 50
)

// versionRegex matches dotted numeric versions with optional dash-separated
// alphanumeric suffixes, e.g. "1.2.3", "1.0.0.0", "2.1-beta-2".
var versionRegex = regexp.MustCompile(`^[0-9]+(\.[0-9]+)*(-[A-Za-z0-9]+)*$`)

// disallowedVersionChars matches everything SanitizeVersion strips.
var disallowedVersionChars = regexp.MustCompile(`[^0-9A-Za-z.\-]`)

// IsValidVersion reports whether s is safe to embed in an artifact file name
// and URL path segment. Path separators, whitespace, "..", and any character
// outside the grammar are rejected outright.
func IsValidVersion(s string) bool {
	if s == "" || len(s) > MaxVersionLength {
		return false
	}
	return versionRegex.MatchString(s)
}

// SanitizeVersion removes every character outside [0-9A-Za-z.-].
// It never repairs an invalid version into a usable one: callers must run
// IsValidVersion first and abort on failure.
func SanitizeVersion(s string) string {
	return disallowedVersionChars.ReplaceAllString(s, "")
}

// CompareVersions orders two valid versions by their numeric segments, with
// missing segments treated as zero. A version without a suffix sorts after
// the same version with one ("1.2" > "1.2-rc1"); suffixes compare lexically.
//
// Returns:
//
//	-1 if a < b
//	 0 if a == b
//	 1 if a > b
func CompareVersions(a, b string) (int, error) {
	if !IsValidVersion(a) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVersion, a)
	}
	if !IsValidVersion(b) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVersion, b)
	}

	coreA, preA := splitSuffix(a)
	coreB, preB := splitSuffix(b)
	segsA := strings.Split(coreA, ".")
	segsB := strings.Split(coreB, ".")

	for i := 0; i < len(segsA) || i < len(segsB); i++ {
		if c := compareNumeric(segment(segsA, i), segment(segsB, i)); c != 0 {
			return c, nil
		}
	}
	return compareSuffix(preA, preB), nil
}

func splitSuffix(v string) (core, suffix string) {
	if i := strings.IndexByte(v, '-'); i >= 0 {
		return v[:i], v[i+1:]
	}
	return v, ""
}

func segment(segs []string, i int) string {
	if i < len(segs) {
		return segs[i]
	}
	return "0"
}

// compareNumeric compares decimal digit strings of any length without parsing,
// so oversized segments cannot overflow.
func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func compareSuffix(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	default:
		return strings.Compare(a, b)
	}
}

// SPDX-License-Identifier: MPL-2.0

// Package semver implements version parsing, ordering, and constraint
// resolution for runtime version requests such as "20", "3.11", "^1.2.3",
// ">=1.0,<2.0", "1.2.*", or "latest".
package semver

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidVersion is the sentinel error wrapped by InvalidVersionError.
var ErrInvalidVersion = errors.New("invalid version")

type (
	// Version is a parsed version number with up to four numeric segments
	// and an optional prerelease suffix. Build metadata (+...) is stripped
	// during parsing and never participates in ordering.
	Version struct {
		// Major, Minor, Patch are the standard semantic version segments.
		Major, Minor, Patch int
		// Build is the optional fourth numeric segment some runtimes use
		// (e.g. "1.8.0.392"). Zero when absent.
		Build int
		// Prerelease is the suffix after '-' (e.g. "beta.1"). Empty for
		// stable versions.
		Prerelease string
		// Segments is how many numeric segments the source string carried
		// (1-4). Preserved so constraint parsing can distinguish "20" from
		// "20.0.0".
		Segments int
	}

	// Candidate is one installable version as reported by a versions
	// source. Immutable once constructed.
	Candidate struct {
		// Version is the literal version string as published.
		Version string
		// Parsed is the structured form of Version.
		Parsed Version
		// Prerelease marks the candidate as a pre-release build.
		Prerelease bool
		// LTS marks the candidate as a long-term-support release,
		// preferred when resolving "latest" with LTS preference enabled.
		LTS bool
	}

	// InvalidVersionError is returned when a version string cannot be
	// parsed. It wraps ErrInvalidVersion for errors.Is() compatibility.
	InvalidVersionError struct {
		Value  string
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid version %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidVersion for errors.Is() compatibility.
func (e *InvalidVersionError) Unwrap() error { return ErrInvalidVersion }

// Parse parses a version string into a Version. Accepted forms are 1-4
// dot-separated numeric segments with an optional "v" or "go" prefix, an
// optional "-prerelease" suffix (kept), and optional "+build" metadata
// (stripped).
func Parse(s string) (Version, error) {
	raw := s
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "go")
	s = strings.TrimPrefix(s, "v")

	if s == "" {
		return Version{}, &InvalidVersionError{Value: raw, Reason: "empty"}
	}

	// Build metadata never affects ordering.
	if idx := strings.IndexByte(s, '+'); idx >= 0 {
		s = s[:idx]
	}

	var pre string
	if idx := strings.IndexByte(s, '-'); idx >= 0 {
		pre = s[idx+1:]
		s = s[:idx]
		if pre == "" {
			return Version{}, &InvalidVersionError{Value: raw, Reason: "empty prerelease suffix"}
		}
	}

	parts := strings.Split(s, ".")
	if len(parts) == 0 || len(parts) > 4 {
		return Version{}, &InvalidVersionError{Value: raw, Reason: "expected 1-4 numeric segments"}
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, &InvalidVersionError{Value: raw, Reason: fmt.Sprintf("segment %q is not a non-negative integer", p)}
		}
		nums[i] = n
	}

	v := Version{Prerelease: pre, Segments: len(nums)}
	v.Major = nums[0]
	if len(nums) > 1 {
		v.Minor = nums[1]
	}
	if len(nums) > 2 {
		v.Patch = nums[2]
	}
	if len(nums) > 3 {
		v.Build = nums[3]
	}
	return v, nil
}

// MustParse is Parse that panics on error. Intended for static version
// literals in manifests and tests.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// NewCandidate builds a Candidate from a literal version string. The
// prerelease flag is derived from the parsed form.
func NewCandidate(version string, lts bool) (Candidate, error) {
	parsed, err := Parse(version)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{
		Version:    version,
		Parsed:     parsed,
		Prerelease: parsed.Prerelease != "",
		LTS:        lts,
	}, nil
}

// Compare orders two versions. It returns a negative number when a < b,
// zero when equal, and a positive number when a > b. Numeric segments are
// compared first; at equal numbers a stable version outranks a prerelease,
// and two prereleases compare lexically by suffix.
func Compare(a, b Version) int {
	if c := a.Major - b.Major; c != 0 {
		return c
	}
	if c := a.Minor - b.Minor; c != 0 {
		return c
	}
	if c := a.Patch - b.Patch; c != 0 {
		return c
	}
	if c := a.Build - b.Build; c != 0 {
		return c
	}
	switch {
	case a.Prerelease == "" && b.Prerelease == "":
		return 0
	case a.Prerelease == "":
		return 1
	case b.Prerelease == "":
		return -1
	default:
		return strings.Compare(a.Prerelease, b.Prerelease)
	}
}

// String renders the version using its original segment count, with the
// prerelease suffix when present.
func (v Version) String() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(v.Major))
	if v.Segments >= 2 {
		sb.WriteByte('.')
		sb.WriteString(strconv.Itoa(v.Minor))
	}
	if v.Segments >= 3 {
		sb.WriteByte('.')
		sb.WriteString(strconv.Itoa(v.Patch))
	}
	if v.Segments >= 4 {
		sb.WriteByte('.')
		sb.WriteString(strconv.Itoa(v.Build))
	}
	if v.Prerelease != "" {
		sb.WriteByte('-')
		sb.WriteString(v.Prerelease)
	}
	return sb.String()
}

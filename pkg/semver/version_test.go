// SPDX-License-Identifier: MPL-2.0

package semver

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Version
		wantErr bool
	}{
		{name: "single segment", input: "20", want: Version{Major: 20, Segments: 1}},
		{name: "two segments", input: "3.11", want: Version{Major: 3, Minor: 11, Segments: 2}},
		{name: "three segments", input: "1.2.3", want: Version{Major: 1, Minor: 2, Patch: 3, Segments: 3}},
		{name: "four segments", input: "1.8.0.392", want: Version{Major: 1, Minor: 8, Patch: 0, Build: 392, Segments: 4}},
		{name: "v prefix", input: "v1.2.3", want: Version{Major: 1, Minor: 2, Patch: 3, Segments: 3}},
		{name: "go prefix", input: "go1.22.1", want: Version{Major: 1, Minor: 22, Patch: 1, Segments: 3}},
		{name: "prerelease kept", input: "2.0.0-beta.1", want: Version{Major: 2, Patch: 0, Segments: 3, Prerelease: "beta.1"}},
		{name: "build metadata stripped", input: "1.2.3+sha.abc", want: Version{Major: 1, Minor: 2, Patch: 3, Segments: 3}},
		{name: "prerelease and metadata", input: "1.2.3-rc.1+linux", want: Version{Major: 1, Minor: 2, Patch: 3, Segments: 3, Prerelease: "rc.1"}},
		{name: "empty", input: "", wantErr: true},
		{name: "non numeric", input: "1.x.3", wantErr: true},
		{name: "too many segments", input: "1.2.3.4.5", wantErr: true},
		{name: "negative segment", input: "1.-2.3", wantErr: true},
		{name: "dangling prerelease", input: "1.2.3-", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) succeeded, want error", tt.input)
				}
				if !errors.Is(err, ErrInvalidVersion) {
					t.Errorf("Parse(%q) error does not wrap ErrInvalidVersion: %v", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want int // sign only
	}{
		{name: "major wins", a: "2.0.0", b: "1.9.9", want: 1},
		{name: "minor wins", a: "1.3.0", b: "1.2.9", want: 1},
		{name: "patch wins", a: "1.2.4", b: "1.2.3", want: 1},
		{name: "build wins", a: "1.8.0.400", b: "1.8.0.392", want: 1},
		{name: "equal", a: "1.2.3", b: "1.2.3", want: 0},
		{name: "stable beats prerelease", a: "2.0.0", b: "2.0.0-beta.1", want: 1},
		{name: "prereleases compare lexically", a: "2.0.0-beta.2", b: "2.0.0-beta.1", want: 1},
		{name: "prerelease below stable", a: "2.0.0-rc.1", b: "2.0.0", want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Compare(MustParse(tt.a), MustParse(tt.b))
			if sign(got) != tt.want {
				t.Errorf("Compare(%s, %s) = %d, want sign %d", tt.a, tt.b, got, tt.want)
			}
			if rev := Compare(MustParse(tt.b), MustParse(tt.a)); sign(rev) != -tt.want {
				t.Errorf("Compare(%s, %s) = %d, want sign %d", tt.b, tt.a, rev, -tt.want)
			}
		})
	}
}

func TestVersionString(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"20", "3.11", "1.2.3", "1.8.0.392", "2.0.0-beta.1"} {
		if got := MustParse(s).String(); got != s {
			t.Errorf("MustParse(%q).String() = %q, want round-trip", s, got)
		}
	}
}

func TestNewCandidate(t *testing.T) {
	t.Parallel()

	c, err := NewCandidate("2.0.0-beta.1", false)
	if err != nil {
		t.Fatalf("NewCandidate failed: %v", err)
	}
	if !c.Prerelease {
		t.Error("prerelease flag not derived from suffix")
	}

	if _, err := NewCandidate("not-a-version", false); err == nil {
		t.Error("NewCandidate accepted invalid version")
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

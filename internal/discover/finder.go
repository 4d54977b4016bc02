// SPDX-License-Identifier: MPL-2.0

// Package discover locates executables inside arbitrarily-shaped install
// trees and memoizes the results in persistent caches keyed by the exact
// (directory, name) pair they were resolved from.
package discover

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// maxSearchDepth bounds the phase-2 walk for raw executable searches.
	maxSearchDepth = 8
	// maxBinDirDepth bounds the phase-2 walk for bin-directory searches.
	maxBinDirDepth = 5
)

// prunedDirs are subtree names never descended into during the phase-2
// walk. They are either huge (node_modules), never contain the runtime's
// own entry point (lib, share), or both.
var prunedDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"__pycache__":  true,
	"site-packages": true,
	"lib":     true,
	"lib64":   true,
	"libexec": true,
	"share":   true,
	"include": true,
	"man":     true,
	"doc":     true,
	"docs":    true,
	"test":    true,
	"tests":   true,
}

// prunedSuffixes are directory name suffixes treated like prunedDirs
// (python packaging metadata directories).
var prunedSuffixes = []string{".dist-info", ".egg-info"}

type (
	// Finder performs the two-phase executable search. The zero value is
	// not usable; construct with NewFinder.
	Finder struct {
		goos   string
		goarch string
	}

	// match is one phase-2 hit with its ranking information.
	match struct {
		path string
		// exact is true for an unsuffixed name match. Exact matches beat
		// architecture-suffixed ones.
		exact bool
		// depth is the number of path components below the search root.
		// Among equal-priority matches the shallowest wins, so nested
		// shadow copies never beat the real entry point.
		depth int
	}
)

// NewFinder creates a Finder for the current platform.
func NewFinder() *Finder {
	return &Finder{goos: runtime.GOOS, goarch: runtime.GOARCH}
}

// newFinderFor creates a Finder for an explicit platform. Used by tests to
// exercise Windows extension handling on any host.
func newFinderFor(goos, goarch string) *Finder {
	return &Finder{goos: goos, goarch: goarch}
}

// FindExecutable searches dir for an executable called name. Phase 1
// probes the well-known spots (the file itself, bin/, one wrapper
// directory, its bin/) without recursion; phase 2 falls back to a bounded,
// pruned walk. Returns false when nothing matches.
func (f *Finder) FindExecutable(dir, name string) (string, bool) {
	if p, ok := f.probeKnownSpots(dir, name); ok {
		return p, true
	}
	return f.walk(dir, name, maxSearchDepth)
}

// FindBinDir locates the directory that holds the runtime's executable,
// for PATH construction. Same strategy as FindExecutable with a tighter
// walk ceiling.
func (f *Finder) FindBinDir(dir, name string) (string, bool) {
	if p, ok := f.probeKnownSpots(dir, name); ok {
		return filepath.Dir(p), true
	}
	if p, ok := f.walk(dir, name, maxBinDirDepth); ok {
		return filepath.Dir(p), true
	}
	return "", false
}

// probeKnownSpots is phase 1: O(entries) checks covering the flat, bin/,
// and single-wrapper-directory layouts nearly every real install tree uses.
func (f *Finder) probeKnownSpots(dir, name string) (string, bool) {
	for _, variant := range f.nameVariants(name) {
		if p := f.fileAt(filepath.Join(dir, variant)); p != "" {
			return p, true
		}
		if p := f.fileAt(filepath.Join(dir, "bin", variant)); p != "" {
			return p, true
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub := filepath.Join(dir, e.Name())
		for _, variant := range f.nameVariants(name) {
			if p := f.fileAt(filepath.Join(sub, variant)); p != "" {
				return p, true
			}
			if p := f.fileAt(filepath.Join(sub, "bin", variant)); p != "" {
				return p, true
			}
		}
	}
	return "", false
}

// walk is phase 2: a depth-bounded, pruned traversal collecting every
// matching file, ranked exact-before-suffixed and shallow-before-deep.
func (f *Finder) walk(dir, name string, maxDepth int) (string, bool) {
	root := filepath.Clean(dir)
	exactNames := f.nameVariants(name)
	suffixedNames := f.suffixedVariants(name)

	var best *match
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable entries are skipped, not fatal
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		depth := len(strings.Split(rel, string(filepath.Separator)))

		if d.IsDir() {
			// A directory at the ceiling cannot contain in-budget files.
			if depth >= maxDepth || f.pruned(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if depth > maxDepth {
			return nil
		}

		base := d.Name()
		exact := containsName(exactNames, base)
		if !exact && !containsName(suffixedNames, base) {
			return nil
		}
		if f.fileAt(path) == "" {
			return nil
		}

		m := match{path: path, exact: exact, depth: depth}
		if best == nil || m.better(*best) {
			best = &m
		}
		return nil
	})

	if best == nil {
		return "", false
	}
	return best.path, true
}

// better reports whether m outranks other: exact beats suffixed, then the
// shallowest path wins.
func (m match) better(other match) bool {
	if m.exact != other.exact {
		return m.exact
	}
	return m.depth < other.depth
}

func (f *Finder) pruned(name string) bool {
	if prunedDirs[name] {
		return true
	}
	for _, suffix := range prunedSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// nameVariants returns the exact file names to accept for an executable:
// the bare name everywhere, plus .exe/.cmd/.bat on Windows.
func (f *Finder) nameVariants(name string) []string {
	if f.goos == "windows" {
		return []string{name, name + ".exe", name + ".cmd", name + ".bat"}
	}
	return []string{name}
}

// suffixedVariants returns the platform/architecture-suffixed names some
// distributions ship (e.g. "tool-x64", "tool-arm64").
func (f *Finder) suffixedVariants(name string) []string {
	arches := []string{f.goarch}
	if alias := archAlias(f.goarch); alias != "" {
		arches = append(arches, alias)
	}
	var out []string
	for _, arch := range arches {
		out = append(out, f.nameVariants(name+"-"+arch)...)
		out = append(out, f.nameVariants(name+"-"+f.goos+"-"+arch)...)
	}
	return out
}

// archAlias maps GOARCH values to the names release archives commonly use.
func archAlias(goarch string) string {
	switch goarch {
	case "amd64":
		return "x64"
	case "386":
		return "x86"
	default:
		return ""
	}
}

// fileAt returns path when it names an executable regular file, else "".
// On Windows any regular file with a recognized name counts; elsewhere the
// file must carry an execute bit.
func (f *Finder) fileAt(path string) string {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	if f.goos != "windows" && info.Mode()&0o111 == 0 {
		return ""
	}
	return path
}

func containsName(names []string, s string) bool {
	for _, n := range names {
		if n == s {
			return true
		}
	}
	return false
}

// SPDX-License-Identifier: MPL-2.0

// Package store models the managed installation root where each runtime's
// versions live in a predictable layout: <root>/<store-name>/<version>/.
package store

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/loonghao/vx-sub002/pkg/semver"
)

// Store is the managed installation root. The zero value is not usable;
// construct with New.
type Store struct {
	root string
}

// New creates a Store rooted at the given directory.
func New(root string) Store {
	return Store{root: root}
}

// Root returns the store root directory.
func (s Store) Root() string { return s.root }

// RuntimeDir returns the directory holding all versions of a runtime.
// Bundled tools pass their parent's store name here.
func (s Store) RuntimeDir(storeName string) string {
	return filepath.Join(s.root, storeName)
}

// VersionDir returns the install tree of one runtime version.
func (s Store) VersionDir(storeName, version string) string {
	return filepath.Join(s.root, storeName, version)
}

// InstalledVersions lists the version directories present for a runtime,
// sorted descending so the newest comes first. Directory names that do not
// parse as versions are ignored.
func (s Store) InstalledVersions(storeName string) []string {
	entries, err := os.ReadDir(s.RuntimeDir(storeName))
	if err != nil {
		return nil
	}

	type parsed struct {
		raw string
		v   semver.Version
	}
	var versions []parsed
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, err := semver.Parse(e.Name())
		if err != nil {
			continue
		}
		versions = append(versions, parsed{raw: e.Name(), v: v})
	}

	sort.SliceStable(versions, func(i, j int) bool {
		return semver.Compare(versions[i].v, versions[j].v) > 0
	})

	out := make([]string, len(versions))
	for i, p := range versions {
		out[i] = p.raw
	}
	return out
}

// HasVersion reports whether a version directory exists for the runtime.
func (s Store) HasVersion(storeName, version string) bool {
	info, err := os.Stat(s.VersionDir(storeName, version))
	return err == nil && info.IsDir()
}

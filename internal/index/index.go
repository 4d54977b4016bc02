// SPDX-License-Identifier: MPL-2.0

// Package index maintains the persisted runtime index: a schema-versioned
// snapshot of which runtime versions are installed in the managed store and
// how bundled tools relate to their parents. The snapshot is a cache over
// the store directory and can always be rebuilt from it.
package index

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/loonghao/vx-sub002/internal/store"
	"github.com/loonghao/vx-sub002/pkg/provider"
	"github.com/loonghao/vx-sub002/pkg/semver"
)

// Schema is bumped on any layout change. A snapshot with a different
// schema, or recorded for a different OS/arch, is discarded wholesale
// rather than partially trusted.
const Schema = 2

type (
	// Entry is the per-runtime record.
	Entry struct {
		// Versions are the installed versions, newest first.
		Versions []string
		// ProvidedBy mirrors the catalog's bundling back-reference at
		// snapshot time, so diagnostics can explain where a bundled tool
		// lives without reloading manifests.
		ProvidedBy string
	}

	// snapshot is the persisted gob shape.
	snapshot struct {
		Schema   int
		OS, Arch string
		Runtimes map[string]Entry
	}

	// Index is the in-process view of the snapshot. Guarded by a lock for
	// in-process sharing; cross-process consistency relies on atomic
	// replace with last-writer-wins.
	Index struct {
		mu    sync.Mutex
		path  string
		data  snapshot
		dirty bool
	}
)

// Open loads the index persisted at path. A missing, corrupt, or
// mismatched (schema/OS/arch) file yields an empty index; callers rebuild
// from the store when they need authoritative contents.
func Open(path string) *Index {
	idx := &Index{path: path, data: emptySnapshot()}

	f, err := os.Open(path)
	if err != nil {
		return idx
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return idx
	}
	if snap.Schema != Schema || snap.OS != runtime.GOOS || snap.Arch != runtime.GOARCH {
		return idx
	}
	if snap.Runtimes == nil {
		snap.Runtimes = make(map[string]Entry)
	}
	idx.data = snap
	return idx
}

func emptySnapshot() snapshot {
	return snapshot{
		Schema:   Schema,
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		Runtimes: make(map[string]Entry),
	}
}

// InstalledVersions returns the recorded versions for a runtime, newest
// first. Nil when the runtime has no record.
func (i *Index) InstalledVersions(name string) []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	entry, ok := i.data.Runtimes[name]
	if !ok {
		return nil
	}
	out := make([]string, len(entry.Versions))
	copy(out, entry.Versions)
	return out
}

// Latest returns the newest recorded version for a runtime.
func (i *Index) Latest(name string) (string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	entry, ok := i.data.Runtimes[name]
	if !ok || len(entry.Versions) == 0 {
		return "", false
	}
	return entry.Versions[0], true
}

// AddVersion records a freshly installed version, keeping the entry in
// descending version order so Latest stays honest even when the install
// was a backport. Duplicates are ignored.
func (i *Index) AddVersion(name, version string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	entry := i.data.Runtimes[name]
	for _, v := range entry.Versions {
		if v == version {
			return
		}
	}
	entry.Versions = insertDescending(entry.Versions, version)
	i.data.Runtimes[name] = entry
	i.dirty = true
}

// insertDescending places version before the first entry it outranks.
// An unparseable version sinks to the end rather than poisoning the
// ordering of the rest.
func insertDescending(versions []string, version string) []string {
	at := len(versions)
	if v, err := semver.Parse(version); err == nil {
		for idx, existing := range versions {
			ev, err := semver.Parse(existing)
			if err != nil || semver.Compare(v, ev) > 0 {
				at = idx
				break
			}
		}
	}
	out := make([]string, 0, len(versions)+1)
	out = append(out, versions[:at]...)
	out = append(out, version)
	out = append(out, versions[at:]...)
	return out
}

// RemoveVersion drops a version record after an uninstall.
func (i *Index) RemoveVersion(name, version string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	entry, ok := i.data.Runtimes[name]
	if !ok {
		return
	}
	kept := entry.Versions[:0]
	for _, v := range entry.Versions {
		if v != version {
			kept = append(kept, v)
		}
	}
	if len(kept) == len(entry.Versions) {
		return
	}
	if len(kept) == 0 {
		delete(i.data.Runtimes, name)
	} else {
		entry.Versions = kept
		i.data.Runtimes[name] = entry
	}
	i.dirty = true
}

// Rebuild replaces the snapshot with a fresh scan of the store for every
// runtime the catalog knows. Bundled tools are recorded under their own
// name with the parent's installed versions and a ProvidedBy marker.
func (i *Index) Rebuild(st store.Store, catalog provider.Catalog) {
	fresh := emptySnapshot()
	for _, name := range catalog.KnownRuntimes() {
		spec, ok := catalog.GetSpec(name)
		if !ok {
			continue
		}
		storeName, ok := catalog.StoreName(name)
		if !ok {
			continue
		}
		versions := st.InstalledVersions(storeName)
		if len(versions) == 0 {
			continue
		}
		fresh.Runtimes[name] = Entry{Versions: versions, ProvidedBy: spec.ProvidedBy}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.data = fresh
	i.dirty = true
}

// Save persists the snapshot via write-temp-then-rename. No-op when
// nothing changed or the index has no backing path.
func (i *Index) Save() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.path == "" || !i.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(i.path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(i.path), filepath.Base(i.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(&i.data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), i.path); err != nil {
		return fmt.Errorf("failed to replace index file: %w", err)
	}
	i.dirty = false
	return nil
}

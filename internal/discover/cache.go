// SPDX-License-Identifier: MPL-2.0

package discover

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// cacheSchema is bumped whenever the persisted record layout changes; a
// mismatched file is discarded wholesale rather than partially trusted.
const cacheSchema = 1

// SourceKind records where a cached tool location came from.
type SourceKind int

const (
	// SourceManagedStore is a binary inside the vx-managed store.
	SourceManagedStore SourceKind = iota
	// SourceNpmManaged is a binary installed by npm (global prefix tree).
	SourceNpmManaged
	// SourcePipManaged is a binary installed by pip (user scripts tree).
	SourcePipManaged
	// SourceSystem is a binary found on the system PATH.
	SourceSystem
)

// String returns a human-readable source kind name.
func (k SourceKind) String() string {
	switch k {
	case SourceManagedStore:
		return "managed-store"
	case SourceNpmManaged:
		return "npm-managed"
	case SourcePipManaged:
		return "pip-managed"
	case SourceSystem:
		return "system"
	default:
		return "unknown"
	}
}

type (
	// Location is a resolved tool position. Cached instances are trusted
	// without re-verification against the filesystem; eviction is explicit
	// (install/uninstall), never time-based.
	Location struct {
		// Path is the absolute executable path.
		Path string
		// Version is the tool version the path belongs to, when known.
		Version string
		// Source records which mechanism owns the installation.
		Source SourceKind
	}

	// Cache memoizes (directory, name) → Location lookups in memory and
	// persists them between processes. The lock serializes access within
	// one process; cross-process safety relies on atomic replace of the
	// cache file, where concurrent writers may lose one update
	// (last-writer-wins); entries are regenerable so that is acceptable.
	Cache struct {
		mu      sync.Mutex
		path    string
		entries map[string]Location
		dirty   bool
	}

	// cacheFile is the persisted gob shape.
	cacheFile struct {
		Schema  int
		Entries map[string]Location
	}
)

// OpenCache loads the cache persisted at path, or starts empty when the
// file is absent, unreadable, or carries a different schema. Load problems
// are never fatal: the cache regenerates itself.
func OpenCache(path string) *Cache {
	c := &Cache{path: path, entries: make(map[string]Location)}

	f, err := os.Open(path)
	if err != nil {
		return c
	}
	defer f.Close()

	var file cacheFile
	if err := gob.NewDecoder(f).Decode(&file); err != nil || file.Schema != cacheSchema {
		return c
	}
	if file.Entries != nil {
		c.entries = file.Entries
	}
	return c
}

// NewMemoryCache creates a cache with no backing file. Save is a no-op.
func NewMemoryCache() *Cache {
	return &Cache{entries: make(map[string]Location)}
}

// Lookup returns the cached location for the exact (dir, name) pair.
func (c *Cache) Lookup(dir, name string) (Location, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	loc, ok := c.entries[cacheKey(dir, name)]
	return loc, ok
}

// Store records a resolved location, immediately visible to this process
// and flushed to disk at the next checkpoint.
func (c *Cache) Store(dir, name string, loc Location) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(dir, name)] = loc
	c.dirty = true
}

// Evict removes one cached pair. No-op when absent.
func (c *Cache) Evict(dir, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(dir, name)
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.dirty = true
	}
}

// EvictDir removes every entry whose keyed directory is dir or lives under
// it. Called after installs and uninstalls touch a store subtree.
func (c *Cache) EvictDir(dir string) {
	prefix := filepath.Clean(dir)
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		keyDir, _, _ := strings.Cut(key, "\x00")
		if keyDir == prefix || strings.HasPrefix(keyDir, prefix+string(filepath.Separator)) {
			delete(c.entries, key)
			c.dirty = true
		}
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Save flushes the cache to its backing file via write-temp-then-rename.
// Called at orchestrator-chosen checkpoints (after install/uninstall, end
// of command). A clean cache or a memory-only cache is a no-op.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.path == "" || !c.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	file := cacheFile{Schema: cacheSchema, Entries: c.entries}
	if err := gob.NewEncoder(tmp).Encode(&file); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	c.dirty = false
	return nil
}

func cacheKey(dir, name string) string {
	return filepath.Clean(dir) + "\x00" + name
}

type (
	// Discovery bundles the finder with its two independent cache
	// instances: one for single-executable lookups, one for bin-directory
	// lookups used in PATH building. Both share the search strategy.
	Discovery struct {
		finder   *Finder
		ExeCache *Cache
		BinCache *Cache
	}
)

// ErrNotFound is returned by convenience wrappers when no executable
// matches in the searched tree.
var ErrNotFound = errors.New("executable not found")

// NewDiscovery wires a platform finder to the given caches. Nil caches are
// replaced with memory-only instances.
func NewDiscovery(exeCache, binCache *Cache) *Discovery {
	if exeCache == nil {
		exeCache = NewMemoryCache()
	}
	if binCache == nil {
		binCache = NewMemoryCache()
	}
	return &Discovery{finder: NewFinder(), ExeCache: exeCache, BinCache: binCache}
}

// FindExecutable resolves name under dir, consulting the executable cache
// first. Hits are trusted without touching the filesystem (documented
// staleness trade-off); misses run the two-phase search and populate the
// cache.
func (d *Discovery) FindExecutable(dir, name string) (Location, bool) {
	if loc, ok := d.ExeCache.Lookup(dir, name); ok {
		return loc, true
	}
	path, ok := d.finder.FindExecutable(dir, name)
	if !ok {
		return Location{}, false
	}
	loc := Location{Path: path, Source: SourceManagedStore}
	d.ExeCache.Store(dir, name, loc)
	return loc, true
}

// FindBinDir resolves the executable-bearing directory under dir for PATH
// construction, with the same cache-first policy as FindExecutable.
func (d *Discovery) FindBinDir(dir, name string) (string, bool) {
	if loc, ok := d.BinCache.Lookup(dir, name); ok {
		return loc.Path, true
	}
	binDir, ok := d.finder.FindBinDir(dir, name)
	if !ok {
		return "", false
	}
	d.BinCache.Store(dir, name, Location{Path: binDir, Source: SourceManagedStore})
	return binDir, true
}

// Checkpoint flushes both caches. The orchestrator calls this after
// installs/uninstalls and at end of command so a killed process never
// leaves partial persisted state.
func (d *Discovery) Checkpoint() error {
	if err := d.ExeCache.Save(); err != nil {
		return err
	}
	return d.BinCache.Save()
}

// Evict drops all cached entries under dir from both caches.
func (d *Discovery) Evict(dir string) {
	d.ExeCache.EvictDir(dir)
	d.BinCache.EvictDir(dir)
}

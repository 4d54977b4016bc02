// SPDX-License-Identifier: MPL-2.0

package provider

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed manifests/*.yaml
var builtinManifests embed.FS

type (
	// Catalog is the read-only runtime spec lookup used by the resolver
	// and the pipeline. Implementations must be safe for concurrent reads.
	Catalog interface {
		// GetSpec returns the spec for a canonical name or alias.
		GetSpec(name string) (*RuntimeSpec, bool)
		// KnownRuntimes returns all canonical runtime names, sorted.
		KnownRuntimes() []string
		// StoreName resolves the managed-store directory name for a
		// runtime: bundled tools resolve under their parent's store name,
		// following provided_by links through the catalog.
		StoreName(name string) (string, bool)
	}

	// manifest is the on-disk shape of a provider manifest file.
	manifest struct {
		Runtimes []RuntimeSpec `yaml:"runtimes"`
	}

	// StaticCatalog is a Catalog backed by an in-memory spec table. It is
	// populated once from manifests and read-only afterward.
	StaticCatalog struct {
		specs   map[string]*RuntimeSpec
		aliases map[string]string
	}
)

// NewCatalog builds a catalog from the embedded builtin manifests plus any
// *.yaml manifests found in extraDirs (missing directories are skipped).
// Later manifests override earlier entries with the same canonical name, so
// user manifests can shadow builtins.
func NewCatalog(extraDirs ...string) (*StaticCatalog, error) {
	c := &StaticCatalog{
		specs:   make(map[string]*RuntimeSpec),
		aliases: make(map[string]string),
	}

	entries, err := fs.Glob(builtinManifests, "manifests/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to list builtin manifests: %w", err)
	}
	sort.Strings(entries)
	for _, name := range entries {
		data, err := builtinManifests.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read builtin manifest %s: %w", name, err)
		}
		if err := c.addManifest(name, data); err != nil {
			return nil, err
		}
	}

	for _, dir := range extraDirs {
		if err := c.loadDir(dir); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// NewCatalogFromSpecs builds a catalog directly from spec values. Intended
// for tests and embedders that construct specs programmatically.
func NewCatalogFromSpecs(specs ...RuntimeSpec) (*StaticCatalog, error) {
	c := &StaticCatalog{
		specs:   make(map[string]*RuntimeSpec),
		aliases: make(map[string]string),
	}
	for i := range specs {
		if err := c.add(&specs[i]); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *StaticCatalog) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read manifest directory %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read manifest %s: %w", path, err)
		}
		if err := c.addManifest(path, data); err != nil {
			return err
		}
	}
	return nil
}

func (c *StaticCatalog) addManifest(source string, data []byte) error {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to parse manifest %s: %w", source, err)
	}
	for i := range m.Runtimes {
		if err := c.add(&m.Runtimes[i]); err != nil {
			return fmt.Errorf("manifest %s: %w", source, err)
		}
	}
	return nil
}

func (c *StaticCatalog) add(spec *RuntimeSpec) error {
	if err := spec.validate(); err != nil {
		return err
	}
	// Overriding an existing entry drops its old aliases first.
	if old, ok := c.specs[spec.Name]; ok {
		for _, a := range old.Aliases {
			delete(c.aliases, a)
		}
	}
	c.specs[spec.Name] = spec
	for _, a := range spec.Aliases {
		if owner, taken := c.aliases[a]; taken && owner != spec.Name {
			return &InvalidSpecError{Name: spec.Name, Reason: fmt.Sprintf("alias %q already claimed by %q", a, owner)}
		}
		c.aliases[a] = spec.Name
	}
	return nil
}

// GetSpec returns the spec for a canonical name or alias.
func (c *StaticCatalog) GetSpec(name string) (*RuntimeSpec, bool) {
	if s, ok := c.specs[name]; ok {
		return s, true
	}
	if canonical, ok := c.aliases[name]; ok {
		return c.specs[canonical], true
	}
	return nil, false
}

// KnownRuntimes returns all canonical runtime names, sorted.
func (c *StaticCatalog) KnownRuntimes() []string {
	names := make([]string, 0, len(c.specs))
	for name := range c.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StoreName resolves the managed-store directory name for a runtime by
// following provided_by links. The walk is bounded by the spec count so a
// miswritten manifest cycle cannot loop forever.
func (c *StaticCatalog) StoreName(name string) (string, bool) {
	spec, ok := c.GetSpec(name)
	if !ok {
		return "", false
	}
	for range len(c.specs) {
		if spec.ProvidedBy == "" {
			return spec.Name, true
		}
		parent, ok := c.GetSpec(spec.ProvidedBy)
		if !ok {
			// Dangling provided_by: fall back to the tool's own name.
			return spec.Name, true
		}
		spec = parent
	}
	return spec.Name, true
}

// SPDX-License-Identifier: MPL-2.0

package provider

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBuiltinCatalog(t *testing.T) {
	t.Parallel()

	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}

	known := c.KnownRuntimes()
	for _, want := range []string{"node", "npm", "yarn", "python", "pip", "go", "rust", "cargo"} {
		found := false
		for _, name := range known {
			if name == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("builtin catalog missing runtime %q", want)
		}
	}

	// Alias lookup resolves to the canonical spec.
	spec, ok := c.GetSpec("nodejs")
	if !ok || spec.Name != "node" {
		t.Errorf("GetSpec(nodejs) = %v, %v; want node spec", spec, ok)
	}

	if _, ok := c.GetSpec("no-such-runtime"); ok {
		t.Error("GetSpec returned a spec for an unknown name")
	}
}

func TestStoreNameFollowsProvidedBy(t *testing.T) {
	t.Parallel()

	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}

	tests := []struct {
		runtime string
		want    string
	}{
		{"node", "node"},
		{"npm", "node"},
		{"pip", "python"},
		{"cargo", "rust"},
		{"yarn", "yarn"}, // proxy-managed, but not bundled
	}

	for _, tt := range tests {
		got, ok := c.StoreName(tt.runtime)
		if !ok || got != tt.want {
			t.Errorf("StoreName(%s) = %q, %v; want %q", tt.runtime, got, ok, tt.want)
		}
	}

	if _, ok := c.StoreName("no-such-runtime"); ok {
		t.Error("StoreName returned a name for an unknown runtime")
	}
}

func TestUserManifestOverridesBuiltin(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	manifest := `runtimes:
  - name: node
    executable: node-custom
  - name: deno
`
	if err := os.WriteFile(filepath.Join(dir, "custom.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := NewCatalog(dir)
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}

	spec, ok := c.GetSpec("node")
	if !ok || spec.ExecutableName() != "node-custom" {
		t.Errorf("user manifest did not override builtin node spec: %+v", spec)
	}
	if _, ok := c.GetSpec("deno"); !ok {
		t.Error("user manifest runtime not loaded")
	}
	// The overridden builtin's aliases are dropped with it.
	if _, ok := c.GetSpec("nodejs"); ok {
		t.Error("stale alias survived a manifest override")
	}
}

func TestCatalogMissingExtraDirIsSkipped(t *testing.T) {
	t.Parallel()

	if _, err := NewCatalog(filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Fatalf("missing manifest directory should be skipped, got: %v", err)
	}
}

func TestSpecValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec RuntimeSpec
	}{
		{name: "empty name", spec: RuntimeSpec{Name: " "}},
		{name: "windows reserved name", spec: RuntimeSpec{Name: "con"}},
		{name: "self provided_by", spec: RuntimeSpec{Name: "a", ProvidedBy: "a"}},
		{name: "self dependency", spec: RuntimeSpec{Name: "a", Dependencies: []Dependency{{Runtime: "a"}}}},
		{name: "proxy without parent", spec: RuntimeSpec{Name: "a", Proxy: &ProxyRule{MinVersion: "2.0.0"}}},
		{name: "proxy without min version", spec: RuntimeSpec{Name: "a", Proxy: &ProxyRule{Parent: "b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewCatalogFromSpecs(tt.spec)
			if err == nil {
				t.Fatal("invalid spec was admitted into the catalog")
			}
			if !errors.Is(err, ErrInvalidSpec) {
				t.Errorf("error does not wrap ErrInvalidSpec: %v", err)
			}
		})
	}
}

func TestRequiredDependencies(t *testing.T) {
	t.Parallel()

	spec := RuntimeSpec{
		Name: "tool",
		Dependencies: []Dependency{
			{Runtime: "a", Required: true},
			{Runtime: "b", Required: false},
			{Runtime: "c", Required: true},
		},
	}
	got := spec.RequiredDependencies()
	if len(got) != 2 || got[0].Runtime != "a" || got[1].Runtime != "c" {
		t.Errorf("RequiredDependencies = %+v, want a and c in order", got)
	}
}

func TestSupportsPlatform(t *testing.T) {
	t.Parallel()

	open := RuntimeSpec{Name: "any"}
	if !open.SupportsPlatform("plan9") {
		t.Error("empty platform list should allow every GOOS")
	}

	pinned := RuntimeSpec{Name: "winonly", Platforms: []string{"windows"}}
	if pinned.SupportsPlatform("linux") || !pinned.SupportsPlatform("windows") {
		t.Error("platform restriction not honored")
	}
}

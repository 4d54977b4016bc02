// SPDX-License-Identifier: MPL-2.0

// Package provider holds the static runtime declarations (specs) and the
// read-only catalog that resolves runtime names, aliases, and bundling
// relationships. Specs are loaded once at startup from YAML manifests and
// never mutated afterward.
package provider

import (
	"errors"
	"fmt"
	"strings"

	"github.com/loonghao/vx-sub002/pkg/platform"
)

var (
	// ErrInvalidSpec is the sentinel error wrapped by InvalidSpecError.
	ErrInvalidSpec = errors.New("invalid runtime spec")
	// ErrUnknownRuntime is returned by catalog lookups for names that no
	// loaded manifest declares.
	ErrUnknownRuntime = errors.New("unknown runtime")
)

type (
	// RuntimeSpec is the static declaration of one managed runtime or
	// tool. Instances are read-only after catalog load.
	RuntimeSpec struct {
		// Name is the canonical runtime name (e.g. "node", "npm").
		Name string `yaml:"name"`
		// Aliases are alternative names accepted on lookup (e.g. "nodejs").
		Aliases []string `yaml:"aliases,omitempty"`
		// Executable is the binary name to locate and spawn. Defaults to
		// Name when empty.
		Executable string `yaml:"executable,omitempty"`
		// CommandPrefix is prepended to the spawned command line (e.g.
		// ["python", "-m"] for pip-style module tools).
		CommandPrefix []string `yaml:"command_prefix,omitempty"`
		// ProvidedBy names the parent runtime whose installation ships
		// this tool (e.g. npm is provided by node). Bundled tools resolve
		// under the parent's store name and have no independent install
		// step. A back-reference resolved through the catalog, never an
		// embedded parent pointer.
		ProvidedBy string `yaml:"provided_by,omitempty"`
		// Dependencies declares runtimes this one needs at execution time.
		Dependencies []Dependency `yaml:"dependencies,omitempty"`
		// Platforms restricts the runtime to the listed GOOS values.
		// Empty means all platforms.
		Platforms []string `yaml:"platforms,omitempty"`
		// PreferLTS makes "latest" requests prefer LTS-flagged candidates.
		PreferLTS bool `yaml:"prefer_lts,omitempty"`
		// Env are spec-declared static environment variables, the lowest
		// precedence layer of the composed execution environment.
		Env map[string]string `yaml:"env,omitempty"`
		// Proxy describes versions that cannot be installed directly and
		// instead execute through another tool's own mechanism.
		Proxy *ProxyRule `yaml:"proxy,omitempty"`
	}

	// Dependency is one edge of the runtime dependency graph.
	Dependency struct {
		// Runtime is the canonical name of the required runtime.
		Runtime string `yaml:"runtime"`
		// Required marks the dependency as mandatory for execution.
		Required bool `yaml:"required,omitempty"`
		// MinVersion and MaxVersion bound acceptable installed versions.
		// Empty means unbounded on that side.
		MinVersion string `yaml:"min_version,omitempty"`
		MaxVersion string `yaml:"max_version,omitempty"`
		// RecommendedVersion is suggested to the user (and the installer)
		// when the dependency is missing or incompatible.
		RecommendedVersion string `yaml:"recommended,omitempty"`
	}

	// ProxyRule declares the version line of a tool that is not directly
	// installable: versions at or above MinVersion are enabled through the
	// Parent runtime's own mechanism and executed via CommandPrefix
	// instead of a store path (e.g. Yarn >= 2 through node's corepack).
	ProxyRule struct {
		MinVersion    string   `yaml:"min_version"`
		Parent        string   `yaml:"parent"`
		CommandPrefix []string `yaml:"command_prefix,omitempty"`
	}

	// InvalidSpecError is returned when a manifest entry fails validation.
	// It wraps ErrInvalidSpec for errors.Is() compatibility.
	InvalidSpecError struct {
		Name   string
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidSpecError) Error() string {
	return fmt.Sprintf("invalid runtime spec %q: %s", e.Name, e.Reason)
}

// Unwrap returns ErrInvalidSpec for errors.Is() compatibility.
func (e *InvalidSpecError) Unwrap() error { return ErrInvalidSpec }

// ExecutableName returns the binary name to search for, defaulting to the
// canonical runtime name.
func (s *RuntimeSpec) ExecutableName() string {
	if s.Executable != "" {
		return s.Executable
	}
	return s.Name
}

// RequiredDependencies returns only the dependencies marked required, in
// declaration order.
func (s *RuntimeSpec) RequiredDependencies() []Dependency {
	var out []Dependency
	for _, d := range s.Dependencies {
		if d.Required {
			out = append(out, d)
		}
	}
	return out
}

// SupportsPlatform reports whether the spec allows the given GOOS. An empty
// platform list means every platform is supported.
func (s *RuntimeSpec) SupportsPlatform(goos string) bool {
	if len(s.Platforms) == 0 {
		return true
	}
	for _, p := range s.Platforms {
		if p == goos {
			return true
		}
	}
	return false
}

// validate checks the invariants a manifest entry must hold before it is
// admitted into the catalog.
func (s *RuntimeSpec) validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return &InvalidSpecError{Name: s.Name, Reason: "name must not be empty"}
	}
	if strings.ContainsAny(s.Name, "/\\ ") {
		return &InvalidSpecError{Name: s.Name, Reason: "name must not contain separators or spaces"}
	}
	// Runtime names become store directory names on every platform.
	if platform.IsWindowsReservedName(s.Name) {
		return &InvalidSpecError{Name: s.Name, Reason: "name collides with a Windows reserved device name"}
	}
	if s.ProvidedBy == s.Name {
		return &InvalidSpecError{Name: s.Name, Reason: "provided_by must not reference itself"}
	}
	if s.Proxy != nil {
		if s.Proxy.Parent == "" {
			return &InvalidSpecError{Name: s.Name, Reason: "proxy rule requires a parent runtime"}
		}
		if s.Proxy.MinVersion == "" {
			return &InvalidSpecError{Name: s.Name, Reason: "proxy rule requires a min_version"}
		}
	}
	for _, d := range s.Dependencies {
		if strings.TrimSpace(d.Runtime) == "" {
			return &InvalidSpecError{Name: s.Name, Reason: "dependency with empty runtime name"}
		}
		if d.Runtime == s.Name {
			return &InvalidSpecError{Name: s.Name, Reason: "runtime cannot depend on itself"}
		}
	}
	return nil
}

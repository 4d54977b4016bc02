// SPDX-License-Identifier: MPL-2.0

// Package project loads per-project configuration from vx.toml.
//
// A project file pins runtime versions and declares extra tools that
// should be present in the composed environment whenever any pinned tool
// runs. Discovery walks upward from the working directory so commands
// behave the same from any subdirectory of a project.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the project configuration file name.
const FileName = "vx.toml"

// ErrNotFound is returned when no project file exists between the start
// directory and the filesystem root.
var ErrNotFound = errors.New("no vx.toml found")

type (
	// Config is a parsed project file.
	//
	//	[tools]
	//	node = "20"
	//	python = "3.11"
	//
	//	[env]
	//	NODE_ENV = "development"
	//
	//	[settings]
	//	auto_install = true
	Config struct {
		// Tools maps runtime names to version requests. Every entry is
		// both a pin for direct invocations and a companion marker for
		// the others.
		Tools map[string]string `toml:"tools"`
		// Env adds project-level environment variables to every
		// composed environment.
		Env map[string]string `toml:"env"`
		// Settings holds per-project policy overrides.
		Settings Settings `toml:"settings"`
	}

	// Settings are per-project overrides of global policy.
	Settings struct {
		// AutoInstall overrides the global auto-install policy when set.
		AutoInstall *bool `toml:"auto_install"`
	}
)

// Load parses a project file at an explicit path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Find walks upward from startDir looking for a vx.toml, returning the
// parsed config and the directory that contains it. A missing file is
// reported with ErrNotFound; a file that exists but fails to parse is a
// hard error, never silently skipped.
func Find(startDir string) (*Config, string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, "", fmt.Errorf("resolve project dir: %w", err)
	}

	for {
		path := filepath.Join(dir, FileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			cfg, err := Load(path)
			if err != nil {
				return nil, "", err
			}
			return cfg, dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, "", ErrNotFound
		}
		dir = parent
	}
}

// Pin returns the version request pinned for a tool, if any.
func (c *Config) Pin(tool string) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.Tools[tool]
	return v, ok
}

// Companions returns the tools declared alongside the given one, in
// sorted order. The invoked tool itself is excluded.
func (c *Config) Companions(invoked string) []string {
	if c == nil {
		return nil
	}
	var out []string
	for name := range c.Tools {
		if name != invoked {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// AutoInstall resolves the effective auto-install policy against the
// global default.
func (c *Config) AutoInstall(global bool) bool {
	if c == nil || c.Settings.AutoInstall == nil {
		return global
	}
	return *c.Settings.AutoInstall
}

// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// StatusOrderStoreFirst checks the managed store before the system PATH.
	StatusOrderStoreFirst StatusOrder = "store-first"
	// StatusOrderSystemFirst checks the system PATH before the managed store.
	StatusOrderSystemFirst StatusOrder = "system-first"

	// IsolationInherit passes the full host environment to spawned processes.
	IsolationInherit IsolationMode = "inherit"
	// IsolationAllowlist passes only the allowlisted host variables.
	IsolationAllowlist IsolationMode = "allowlist"
	// IsolationNone passes no host variables beyond what composition adds.
	IsolationNone IsolationMode = "none"
)

var (
	// ErrInvalidStatusOrder is returned when a StatusOrder value is not recognized.
	ErrInvalidStatusOrder = errors.New("invalid status check order")
	// ErrInvalidIsolationMode is returned when an IsolationMode value is not recognized.
	ErrInvalidIsolationMode = errors.New("invalid isolation mode")
	// ErrInvalidDirPath is returned when a configured directory path is whitespace-only.
	ErrInvalidDirPath = errors.New("invalid directory path")
)

type (
	// StatusOrder controls which location wins when a runtime exists both
	// in the managed store and on the system PATH.
	StatusOrder string

	// InvalidStatusOrderError is returned when a StatusOrder value is not
	// recognized. It wraps ErrInvalidStatusOrder for errors.Is() compatibility.
	InvalidStatusOrderError struct {
		Value StatusOrder
	}

	// IsolationMode controls how much of the host environment spawned
	// processes inherit.
	IsolationMode string

	// InvalidIsolationModeError is returned when an IsolationMode value is
	// not recognized. It wraps ErrInvalidIsolationMode for errors.Is() compatibility.
	InvalidIsolationModeError struct {
		Value IsolationMode
	}

	// DirPath represents a filesystem path to a directory.
	// The zero value ("") is valid and means "use the platform default".
	// Non-zero values must not be whitespace-only.
	DirPath string

	// InvalidDirPathError is returned when a DirPath value is non-empty but
	// whitespace-only. It wraps ErrInvalidDirPath for errors.Is() compatibility.
	InvalidDirPathError struct {
		Field string
		Value DirPath
	}

	// IsolationConfig controls the host environment passed to spawned processes.
	IsolationConfig struct {
		// Mode selects inherit, allowlist, or none.
		Mode IsolationMode `mapstructure:"mode"`
		// Allow lists the host variable names passed through in allowlist
		// mode. Ignored in the other modes.
		Allow []string `mapstructure:"allow"`
	}

	// PathsConfig overrides the store and cache locations.
	PathsConfig struct {
		// StoreDir is where managed runtime versions are installed.
		StoreDir DirPath `mapstructure:"store_dir"`
		// CacheDir holds the discovery caches and the runtime index.
		CacheDir DirPath `mapstructure:"cache_dir"`
	}

	// Config is the root application configuration.
	Config struct {
		// AutoInstall enables installing missing runtimes and dependencies
		// during execution.
		AutoInstall bool `mapstructure:"auto_install"`
		// Offline disables network installs; only offline bundles can
		// satisfy a missing runtime.
		Offline bool `mapstructure:"offline"`
		// PreferLTS biases "latest" resolution toward LTS releases.
		PreferLTS bool `mapstructure:"prefer_lts"`
		// IncludePrereleases admits prerelease versions into resolution
		// without requiring an explicit prerelease request.
		IncludePrereleases bool `mapstructure:"include_prereleases"`
		// StatusOrder controls store-vs-system precedence.
		StatusOrder StatusOrder `mapstructure:"status_order"`
		// SpawnTimeout bounds spawned process wall-clock time. Zero means
		// no timeout.
		SpawnTimeout time.Duration `mapstructure:"spawn_timeout"`
		// ManifestDirs lists extra directories of runtime manifests that
		// override the builtin catalog.
		ManifestDirs []string `mapstructure:"manifest_dirs"`

		Isolation IsolationConfig `mapstructure:"isolation"`
		Paths     PathsConfig     `mapstructure:"paths"`
	}
)

// Validate checks that the StatusOrder is one of the known values.
func (s StatusOrder) Validate() error {
	switch s {
	case StatusOrderStoreFirst, StatusOrderSystemFirst:
		return nil
	default:
		return &InvalidStatusOrderError{Value: s}
	}
}

// Error implements the error interface.
func (e *InvalidStatusOrderError) Error() string {
	return fmt.Sprintf("invalid status check order %q (must be %q or %q)",
		string(e.Value), StatusOrderStoreFirst, StatusOrderSystemFirst)
}

// Unwrap returns ErrInvalidStatusOrder for errors.Is() compatibility.
func (e *InvalidStatusOrderError) Unwrap() error { return ErrInvalidStatusOrder }

// Validate checks that the IsolationMode is one of the known values.
func (m IsolationMode) Validate() error {
	switch m {
	case IsolationInherit, IsolationAllowlist, IsolationNone:
		return nil
	default:
		return &InvalidIsolationModeError{Value: m}
	}
}

// Error implements the error interface.
func (e *InvalidIsolationModeError) Error() string {
	return fmt.Sprintf("invalid isolation mode %q (must be %q, %q, or %q)",
		string(e.Value), IsolationInherit, IsolationAllowlist, IsolationNone)
}

// Unwrap returns ErrInvalidIsolationMode for errors.Is() compatibility.
func (e *InvalidIsolationModeError) Unwrap() error { return ErrInvalidIsolationMode }

// Validate checks that a non-empty DirPath is not whitespace-only.
func (p DirPath) Validate(field string) error {
	if p != "" && strings.TrimSpace(string(p)) == "" {
		return &InvalidDirPathError{Field: field, Value: p}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidDirPathError) Error() string {
	return fmt.Sprintf("%s: %q is whitespace-only", e.Field, string(e.Value))
}

// Unwrap returns ErrInvalidDirPath for errors.Is() compatibility.
func (e *InvalidDirPathError) Unwrap() error { return ErrInvalidDirPath }

// Validate checks all config values for consistency.
func (c *Config) Validate() error {
	if err := c.StatusOrder.Validate(); err != nil {
		return err
	}
	if err := c.Isolation.Mode.Validate(); err != nil {
		return err
	}
	if err := c.Paths.StoreDir.Validate("paths.store_dir"); err != nil {
		return err
	}
	if err := c.Paths.CacheDir.Validate("paths.cache_dir"); err != nil {
		return err
	}
	return nil
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		AutoInstall: true,
		PreferLTS:   true,
		StatusOrder: StatusOrderStoreFirst,
		Isolation: IsolationConfig{
			Mode: IsolationInherit,
		},
	}
}

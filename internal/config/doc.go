// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with TOML as the file format.
//
// Configuration is loaded from ~/.config/vx/config.toml (or XDG equivalent on Linux,
// ~/Library/Application Support/vx/config.toml on macOS, %APPDATA%\vx\config.toml
// on Windows). The package provides type-safe configuration access covering the
// runtime store location, cache locations, installation policy, version resolution
// preferences, and environment isolation for spawned processes.
//
// Every value can also be set through VX_-prefixed environment variables
// (for example VX_AUTO_INSTALL=false), which take precedence over the file.
package config

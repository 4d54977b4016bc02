// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform compatibility utilities.
//
// This package contains utilities for handling platform-specific concerns,
// such as Windows reserved filenames that cannot be used as runtime or
// store directory names, and detection of application sandboxes (Flatpak,
// Snap) whose PATH does not reflect the host system.
package platform

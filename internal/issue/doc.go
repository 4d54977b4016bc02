// SPDX-License-Identifier: MPL-2.0

// Package issue defines the structured error taxonomy of the resolution
// and execution pipeline. Every condition a caller may want to branch on
// (install, abort, report, retry through a proxy) is a typed error that
// unwraps to a package sentinel, so callers use errors.Is and errors.As
// instead of matching message text. The package never renders output;
// presentation belongs to the CLI layer.
package issue

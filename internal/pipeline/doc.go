// SPDX-License-Identifier: MPL-2.0

// Package pipeline orchestrates tool execution end to end: resolve the
// request against the store and system, install whatever is missing,
// compose the process environment, and spawn the tool.
//
// The stages run strictly in order (Resolve, Ensure, Prepare, Execute)
// and any stage failure aborts with a structured error from
// internal/issue. Network access is confined to the Ensure stage through
// the VersionSource and Installer ports, so everything else stays
// testable with fakes. Cache and index checkpoints happen after
// execution regardless of the child's exit status.
package pipeline

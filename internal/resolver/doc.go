// SPDX-License-Identifier: MPL-2.0

// Package resolver determines where runtimes live and whether their
// dependency requirements hold before anything is executed.
//
// A runtime can be satisfied from the managed store (a versioned install
// under the store root) or from the system PATH. The resolver classifies
// each runtime into one of those states, validates declared dependency
// version bounds against what is actually installed, and computes the
// install order for whatever is missing: dependencies before dependents,
// the requested runtime last.
//
// The resolver never installs anything and never spawns the target tool;
// it only probes. Acting on the result belongs to the pipeline.
package resolver

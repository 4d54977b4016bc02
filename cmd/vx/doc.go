// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for vx.
//
// This package implements the Cobra command hierarchy for the vx CLI:
// the root command, the run/list/which/versions subcommands, and the
// composition root that wires configuration, the provider catalog, the
// discovery caches, and the execution pipeline together. It only
// renders; all resolution and execution logic lives in internal/.
package cmd

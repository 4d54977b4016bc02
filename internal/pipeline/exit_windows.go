// SPDX-License-Identifier: MPL-2.0

//go:build windows

package pipeline

import "os/exec"

// exitCode returns the child's exit code. Windows has no signal deaths,
// so no sentinel mapping is needed.
func exitCode(err *exec.ExitError) int {
	return err.ExitCode()
}

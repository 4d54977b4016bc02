// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package pipeline

import (
	"os/exec"
	"syscall"
)

// exitCode maps a terminated child to a shell-style exit code. A child
// killed by a signal reports 128+signal, the same sentinel shells use.
func exitCode(err *exec.ExitError) int {
	if ws, ok := err.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return err.ExitCode()
}

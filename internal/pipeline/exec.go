// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// execRunner is the production Runner: it forks the prepared command and
// maps its termination into a shell-style exit code.
type execRunner struct{}

// NewRunner returns the production process runner.
func NewRunner() Runner {
	return execRunner{}
}

// Run spawns the command and waits. The child's exit code is returned
// as-is; on Unix a signal death maps to 128+signal, matching shell
// convention, so callers can pass the code straight to os.Exit.
func (execRunner) Run(ctx context.Context, cmd Command) (int, error) {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir

	c.Stdin = cmd.Stdin
	if c.Stdin == nil {
		c.Stdin = os.Stdin
	}
	c.Stdout = cmd.Stdout
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	c.Stderr = cmd.Stderr
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}

	err := c.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitCode(exitErr), nil
	}

	// Spawn failure: the tool never ran.
	return -1, fmt.Errorf("spawn %s: %w", cmd.Path, err)
}

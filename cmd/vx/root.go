// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for vx.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/loonghao/vx-sub002/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// Verbose enables verbose output
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "vx",
		Short: "A multi-runtime version manager",
		Long: TitleStyle.Render("vx") + SubtitleStyle.Render(" - A multi-runtime version manager") + `

vx resolves a tool name and version request ("node@20", "python@3.11")
to a concrete installed version, assembles its execution environment,
and runs it in place of the real tool, forwarding arguments and exit
code. Per-project toolchains come from a 'vx.toml' file discovered by
walking up from the working directory.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Pin tool versions in a vx.toml under [tools]
  2. Run tools through vx: vx run node -- script.js
  3. Inspect what resolved with: vx which node

` + SubtitleStyle.Render("Examples:") + `
  vx run node@20 -- --version   Run node 20.x with an argument
  vx list                       Show install status for known runtimes
  vx which python               Print the resolved executable path
  vx versions node              List installed node versions`,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the platform config dir's config.toml)")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(whichCmd)
	rootCmd.AddCommand(versionsCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// GetVerbose returns the verbose flag value
func GetVerbose() bool {
	return verbose
}

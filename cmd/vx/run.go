// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/loonghao/vx-sub002/internal/pipeline"
	"github.com/loonghao/vx-sub002/pkg/types"

	"github.com/spf13/cobra"
)

var (
	// runWith injects extra runtimes into the environment for one run.
	runWith []string
	// runWorkdir overrides the tool's working directory.
	runWorkdir string

	runCmd = &cobra.Command{
		Use:   "run <tool>[@version] [args...]",
		Short: "Run a tool at its resolved version",
		Long: `Resolve a tool to a concrete installed version and run it,
forwarding arguments and exit code. The version request may ride along
as <tool>@<version>; without one the project pin applies, then "latest".

Examples:
  vx run node -- script.js
  vx run node@20 -- --version
  vx run python@3.11 --with go -- build.py`,
		Args:          cobra.MinimumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          runTool,
	}
)

func init() {
	runCmd.Flags().StringArrayVar(&runWith, "with", nil, "inject an extra runtime into the environment (repeatable)")
	runCmd.Flags().StringVar(&runWorkdir, "workdir", "", "working directory for the tool")
}

func runTool(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}

	tool, version := splitToolVersion(args[0])
	code, err := app.Pipeline.Execute(cmd.Context(), pipeline.ExecuteRequest{
		Tool:    tool,
		Version: version,
		Args:    args[1:],
		WorkDir: runWorkdir,
		Extras:  runWith,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
		if code < 0 {
			code = 1
		}
		return &ExitError{Code: types.ExitCode(code)}
	}

	if code != 0 {
		exitCode := types.ExitCode(code)
		if verbose {
			if exitCode.IsSignal() {
				fmt.Fprintf(os.Stdout, "%s %s killed by signal %d\n", WarningStyle.Render("!"), tool, exitCode.Signal())
			} else {
				fmt.Fprintf(os.Stdout, "%s %s exited with code %d\n", WarningStyle.Render("!"), tool, code)
			}
		}
		return &ExitError{Code: exitCode}
	}

	return nil
}

// splitToolVersion splits "node@20" into its tool and version parts.
// A bare tool name leaves the version empty.
func splitToolVersion(arg string) (tool, version string) {
	tool, version, _ = strings.Cut(arg, "@")
	return tool, version
}

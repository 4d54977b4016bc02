// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/loonghao/vx-sub002/internal/issue"

	"github.com/spf13/cobra"
)

var whichCmd = &cobra.Command{
	Use:   "which <tool>[@version]",
	Short: "Print the resolved executable path",
	Long: `Resolve a tool the same way 'vx run' would and print the
executable path it found, without running anything or installing
anything. Exits non-zero when the tool is not installed.`,
	Args: cobra.ExactArgs(1),
	RunE: whichTool,
}

func whichTool(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Checkpoint()

	tool, version := splitToolVersion(args[0])
	res, err := app.Resolver.Resolve(cmd.Context(), tool, version)
	if err != nil {
		return err
	}

	if res.NeedsInstall || !res.Status.Installed() {
		return issue.NewErrorContext().
			WithOperation("resolve executable").
			WithResource(args[0]).
			WithSuggestion(fmt.Sprintf("Run 'vx run %s' to install it automatically", args[0])).
			Wrap(fmt.Errorf("%s is not installed", args[0])).
			Build()
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.Executable)
	if verbose && res.Version != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s %s\n", VerboseStyle.Render("version:"), CmdStyle.Render(res.Version), VerboseStyle.Render("("+res.Status.Kind.String()+")"))
	}

	return nil
}

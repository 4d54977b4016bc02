// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// versionsRebuild forces a store rescan before listing.
	versionsRebuild bool

	versionsCmd = &cobra.Command{
		Use:   "versions <tool>",
		Short: "List installed versions of a runtime",
		Long: `List the versions of a runtime present in the managed store,
as recorded by the runtime index. Use --rebuild to rescan the store
first, e.g. after installing or removing versions by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: listVersions,
	}
)

func init() {
	versionsCmd.Flags().BoolVar(&versionsRebuild, "rebuild", false, "rescan the managed store before listing")
}

func listVersions(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Checkpoint()

	name := args[0]
	if versionsRebuild || len(app.Index.InstalledVersions(name)) == 0 {
		app.Index.Rebuild(app.Store, app.Catalog)
	}

	versions := app.Index.InstalledVersions(name)
	if len(versions) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no managed versions of %s installed\n", name)
		return nil
	}

	latest, _ := app.Index.Latest(name)
	out := cmd.OutOrStdout()
	for _, version := range versions {
		if version == latest {
			fmt.Fprintf(out, "%s %s\n", CmdStyle.Render(version), SubtitleStyle.Render("(latest)"))
			continue
		}
		fmt.Fprintln(out, version)
	}

	return nil
}

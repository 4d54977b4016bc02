// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/loonghao/vx-sub002/internal/resolver"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show install status for all known runtimes",
	Long: `List every runtime the provider catalog knows about, with where
it resolves from: the managed store (with version and path), the system
PATH, or nowhere.`,
	Args: cobra.NoArgs,
	RunE: listRuntimes,
}

func listRuntimes(cmd *cobra.Command, _ []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Checkpoint()

	out := cmd.OutOrStdout()
	for _, name := range app.Catalog.KnownRuntimes() {
		status := app.Resolver.CheckStatus(cmd.Context(), name, "")
		fmt.Fprintf(out, "%-12s %s\n", name, formatStatus(status))
	}

	return nil
}

// formatStatus renders one runtime status line.
func formatStatus(status resolver.Status) string {
	switch status.Kind {
	case resolver.StatusStoreManaged:
		return SuccessStyle.Render("managed ") + CmdStyle.Render(status.Version) + SubtitleStyle.Render("  "+status.Path)
	case resolver.StatusSystem:
		return SuccessStyle.Render("system  ") + SubtitleStyle.Render("  "+status.Path)
	default:
		return SubtitleStyle.Render(status.Kind.String())
	}
}

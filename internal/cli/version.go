package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/commitcanvas/pkg/buildinfo"
)

// versionCommand creates the version command.
func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildinfo.Get()
			printKeyValue(cmd.OutOrStdout(), "Version", info.Version)
			printKeyValue(cmd.OutOrStdout(), "Commit", info.Commit)
			printKeyValue(cmd.OutOrStdout(), "Built", info.Date)
			if info.GoVersion != "" {
				printKeyValue(cmd.OutOrStdout(), "Go", info.GoVersion)
			}
			return nil
		},
	}
}

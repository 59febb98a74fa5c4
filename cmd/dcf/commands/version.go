package commands

import (
	"github.com/dcfnet/dcf/src/plugin"
	"github.com/dcfnet/dcf/src/version"
	"github.com/spf13/cobra"
)

// VersionCmd displays the version of dcf being used
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	RunE: func(cmd *cobra.Command, args []string) error {
		return output(cmd.OutOrStdout(), version.Info(plugin.PluginVersion))
	},
}

package main

import (
	"os"

	cmd "github.com/dcfnet/dcf/cmd/dcf/commands"
)

func main() {
	rootCmd := cmd.RootCmd

	rootCmd.AddCommand(
		cmd.NewRunCmd(),
		cmd.NewSendCmd(),
		cmd.NewReceiveCmd(),
		cmd.NewStatusCmd(),
		cmd.NewPeersCmd(),
		cmd.NewHealthCheckCmd(),
		cmd.NewGroupPeersCmd(),
		cmd.NewSimulateFailureCmd(),
		cmd.NewHealCmd(),
		cmd.NewRelayCmd(),
		cmd.VersionCmd)

	//Do not print usage when error occurs
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

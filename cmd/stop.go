package cmd

import (
	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop SERVER",
	Short: "Stop a server",
	Long: `Stops a server by id or name and waits until it has terminated.
Stopping a server that is not running is a no-op; a server that hangs
past its timeout is killed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLifecycle(cmd, args[0], "Stopping", false, apiClient().StopServer)
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

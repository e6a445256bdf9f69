package cmd

import (
	"github.com/spf13/cobra"
)

var restartCmd = &cobra.Command{
	Use:   "restart SERVER",
	Short: "Restart a server",
	Long: `Restarts a server by id or name: stops it, then starts it again as
one atomic sequence, and waits until it is running again. A stopped
server is simply started.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLifecycle(cmd, args[0], "Restarting", true, apiClient().RestartServer)
	},
}

func init() {
	rootCmd.AddCommand(restartCmd)
}

package cmd

import (
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start SERVER",
	Short: "Start a server",
	Long: `Starts a server by id or name and waits until it is confirmed
running. Starting a server that is already running is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLifecycle(cmd, args[0], "Starting", true, apiClient().StartServer)
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete SERVER",
	Short: "Delete a server definition",
	Long: `Deletes a server definition by id or name. The server must be
stopped; stop it first if it is running.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	c := apiClient()
	srv, err := c.ResolveServer(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := c.DeleteServer(cmd.Context(), srv.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted server %s\n", srv.Name)
	return nil
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

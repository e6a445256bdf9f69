package cmd

import (
	"fmt"

	"mcpdeck/internal/api"

	"github.com/spf13/cobra"
)

var (
	createHost        string
	createPort        int
	createCommand     string
	createArgs        []string
	createEnv         map[string]string
	createAutoStart   bool
	createTimeoutMs   int
	createMaxConns    int
	createDescription string
)

var createCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Register a new server definition",
	Long: `Registers a server definition with the daemon. The server is created
in status stopped; use 'mcpdeck start' to launch it, or pass
--auto-start so the daemon starts it on boot and restarts it after
crashes.`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func runCreate(cmd *cobra.Command, args []string) error {
	srv, err := apiClient().CreateServer(cmd.Context(), args[0], api.ServerConfig{
		Host:           createHost,
		Port:           createPort,
		Command:        createCommand,
		Args:           createArgs,
		Env:            createEnv,
		AutoStart:      createAutoStart,
		TimeoutMs:      createTimeoutMs,
		MaxConnections: createMaxConns,
		Description:    createDescription,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created server %s (%s)\n", srv.Name, srv.ID)
	return nil
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVar(&createHost, "host", "localhost", "Host the server listens on")
	createCmd.Flags().IntVar(&createPort, "port", 0, "Port the server listens on")
	createCmd.Flags().StringVar(&createCommand, "command", "", "Executable that runs the server")
	createCmd.Flags().StringArrayVar(&createArgs, "arg", nil, "Argument passed to the command (repeatable)")
	createCmd.Flags().StringToStringVar(&createEnv, "env", nil, "Environment variable KEY=VALUE (repeatable)")
	createCmd.Flags().BoolVar(&createAutoStart, "auto-start", false, "Start on daemon boot and restart after crashes")
	createCmd.Flags().IntVar(&createTimeoutMs, "timeout-ms", 0, "Start/stop timeout in milliseconds (0 = daemon default)")
	createCmd.Flags().IntVar(&createMaxConns, "max-connections", 0, "Connection limit advertised to the server")
	createCmd.Flags().StringVar(&createDescription, "description", "", "Free-form description")
	createCmd.MarkFlagRequired("port")
	createCmd.MarkFlagRequired("command")
}

package cmd

import (
	"fmt"
	"os"

	"mcpdeck/internal/client"
	"mcpdeck/internal/config"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
)

// endpoint is the base URL of the daemon the client commands talk to.
var endpoint string

// rootCmd represents the base command for the mcpdeck application.
var rootCmd = &cobra.Command{
	Use:   "mcpdeck",
	Short: "Manage a fleet of MCP server processes",
	Long: `mcpdeck runs and supervises MCP servers: it starts and stops their
processes, samples their resource and request metrics, and streams
status to any number of dashboard sessions.

Run 'mcpdeck serve' to start the daemon, then use the other commands
against it.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from main with
// the build-time version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mcpdeck version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

// apiClient builds a client against the configured endpoint.
func apiClient() *client.Client {
	return client.New(endpoint)
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())

	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint",
		fmt.Sprintf("http://%s:%d", config.DefaultDashboardHost, config.DefaultDashboardPort),
		"Base URL of the mcpdeck daemon")
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"mcpdeck/internal/api"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

// lifecycleWait bounds how long the CLI waits for an operation to reach a
// resting status before giving up on observing the outcome.
const lifecycleWait = 60 * time.Second

// runLifecycle resolves the server reference, fires the operation and
// spins until the server reaches a resting status. With failOnError set,
// a final error status becomes a command failure; stop leaves it unset
// because stopping an errored server is a legitimate no-op.
func runLifecycle(cmd *cobra.Command, ref, verb string, failOnError bool,
	op func(context.Context, string) (*api.Server, error)) error {

	c := apiClient()
	srv, err := c.ResolveServer(cmd.Context(), ref)
	if err != nil {
		return err
	}
	if _, err := op(cmd.Context(), srv.ID); err != nil {
		return err
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = fmt.Sprintf(" %s %s...", verb, srv.Name)
	s.Writer = cmd.ErrOrStderr()
	s.Start()

	ctx, cancel := context.WithTimeout(cmd.Context(), lifecycleWait)
	defer cancel()
	final, err := c.WaitForStatus(ctx, srv.ID,
		api.StatusRunning, api.StatusStopped, api.StatusError)
	s.Stop()

	if err != nil {
		return fmt.Errorf("timed out waiting for %s: %w", srv.Name, err)
	}
	if failOnError && final.Status == api.StatusError {
		return fmt.Errorf("server %s entered error: %s", srv.Name, final.StatusDetail)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Server %s is %s\n", srv.Name, final.Status)
	return nil
}

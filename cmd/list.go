package cmd

import (
	"fmt"
	"time"

	"mcpdeck/internal/api"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var (
	listName   string
	listStatus string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List managed servers",
	Long: `Lists servers known to the daemon with their current status, address
and live metrics. Results can be narrowed with --name (substring match)
and --status.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	servers, err := apiClient().ListServers(cmd.Context(), api.ServerFilter{
		NameContains: listName,
		Status:       api.ServerStatus(listStatus),
	})
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No servers found.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"NAME", "STATUS", "ADDRESS", "UPTIME", "CPU%", "MEM%", "DETAIL"})

	for _, srv := range servers {
		cpu, mem := "-", "-"
		if srv.Metrics != nil {
			cpu = fmt.Sprintf("%.1f", srv.Metrics.CPUUsagePct)
			mem = fmt.Sprintf("%.1f", srv.Metrics.MemUsagePct)
		}
		t.AppendRow(table.Row{
			srv.Name,
			colorStatus(srv.Status),
			fmt.Sprintf("%s:%d", srv.Config.Host, srv.Config.Port),
			formatUptime(srv),
			cpu,
			mem,
			srv.StatusDetail,
		})
	}
	t.Render()
	return nil
}

func colorStatus(status api.ServerStatus) string {
	switch status {
	case api.StatusRunning:
		return text.FgGreen.Sprint(status)
	case api.StatusError:
		return text.FgRed.Sprint(status)
	case api.StatusStarting, api.StatusStopping:
		return text.FgYellow.Sprint(status)
	default:
		return string(status)
	}
}

func formatUptime(srv *api.Server) string {
	if srv.Status != api.StatusRunning {
		return "-"
	}
	return (time.Duration(srv.UptimeSeconds) * time.Second).String()
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listName, "name", "", "Filter by name substring")
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (stopped|starting|running|stopping|error)")
}

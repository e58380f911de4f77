package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"fanboxed/internal/daemon"
	"fanboxed/internal/daemonctl"
)

const (
	daemonStartTimeout = 10 * time.Second
	daemonStopGrace    = 10 * time.Second
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run or inspect the background download daemon",
	}

	daemonCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return daemon.Run(cmd.Context(), cfg, daemon.RunOptions{
				Ready: func(addr string) {
					fmt.Fprintf(out, "fanboxed daemon listening on %s\n", addr)
				},
			})
		},
	})

	daemonCmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.daemonClient()
			if err != nil {
				return err
			}
			executable, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), client, func() error {
				return daemonctl.Launch(executable, ctx.configPath)
			}, daemonStartTimeout)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(out, "Daemon already running (pid %d)\n", result.PID)
			default:
				fmt.Fprintf(out, "Daemon started (pid %d)\n", result.PID)
			}
			return nil
		},
	})

	daemonCmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.daemonClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			result, err := daemonctl.Stop(cmd.Context(), client, daemonctl.SignalProcess, daemonStopGrace)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(out, "Daemon did not exit in time; killed pid %d\n", result.PID)
				return nil
			}
			fmt.Fprintf(out, "Daemon stopped (pid %d)\n", result.PID)
			return nil
		},
	})

	daemonCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Report whether the daemon is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.daemonClient()
			if err != nil {
				return err
			}
			health, err := client.Health(cmd.Context())
			out := cmd.OutOrStdout()
			if errors.Is(err, daemon.ErrUnavailable) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			history := "disabled"
			if health.History {
				history = "enabled"
			}
			rows := [][]string{
				{"Status", health.Status},
				{"Version", health.Version},
				{"PID", fmt.Sprintf("%d", health.PID)},
				{"Started", humanize.Time(health.StartedAt)},
				{"Phase", strings.ToLower(string(health.Phase))},
				{"Queued", fmt.Sprintf("%d", health.Queue)},
				{"Observers", fmt.Sprintf("%d", health.Observers)},
				{"History", history},
			}
			fmt.Fprintln(out, renderTable([]string{"Daemon", "Value"}, rows, nil))
			return nil
		},
	})

	return daemonCmd
}

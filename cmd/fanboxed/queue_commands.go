package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fanboxed/internal/daemon"
	"fanboxed/internal/download"
	"fanboxed/internal/fanbox"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage the daemon's download queue",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueWatchCommand(ctx))

	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "add <post-id|post-url>...",
		Short: "Queue posts on the running daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.daemonClient()
			if err != nil {
				return err
			}
			resp, err := client.Enqueue(cmd.Context(), args, force)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, id := range resp.Added {
				fmt.Fprintf(out, "Queued post %s\n", id)
			}
			for _, id := range resp.Duplicate {
				fmt.Fprintf(out, "Post %s is already queued\n", id)
			}
			for _, id := range resp.Skipped {
				fmt.Fprintf(out, "Skipping post %s: already downloaded (use --force to download again)\n", id)
			}
			for _, value := range resp.Invalid {
				fmt.Fprintf(out, "Ignoring %q: not a post id or post URL\n", value)
			}
			if len(resp.Invalid) > 0 && len(resp.Added)+len(resp.Duplicate)+len(resp.Skipped) == 0 {
				return fmt.Errorf("no valid posts given")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Queue posts even if history records a completed download")
	return cmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the daemon's queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.daemonClient()
			if err != nil {
				return err
			}
			resp, err := client.Queue(cmd.Context())
			if err != nil {
				return err
			}
			handled, err := writeFormatted(cmd, format, resp)
			if handled {
				return err
			}

			out := cmd.OutOrStdout()
			if len(resp.Queue) == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}
			fmt.Fprintln(out, renderQueue(resp))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, json, or yaml")
	return cmd
}

func renderQueue(resp *daemon.QueueResponse) string {
	snap := download.Snapshot{
		Queue: resp.Queue,
		Head:  download.Status{Done: resp.Done, Total: resp.Total},
	}
	rows := make([][]string, 0, len(resp.Queue))
	for i, id := range resp.Queue {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			string(id),
			snap.StateOf(id).String(),
		})
	}
	return renderTable(
		[]string{"#", "Post", "State"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft},
	)
}

func newQueueWatchCommand(ctx *commandContext) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow download progress on the daemon",
		Long: "Print progress as the daemon works through its queue. Without --follow\n" +
			"the command returns once the queue is empty.",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.daemonClient()
			if err != nil {
				return err
			}
			return watchQueue(cmd.Context(), client, cmd.OutOrStdout(), follow)
		},
	}

	cmd.Flags().BoolVar(&follow, "follow", false, "Keep watching after the queue drains")
	return cmd
}

func watchQueue(ctx context.Context, client *daemon.Client, out io.Writer, follow bool) error {
	// Read the cursor first so no event between the two calls is lost.
	page, err := client.Events(ctx, 0, false)
	if err != nil {
		return err
	}
	cursor := page.Next

	queue, err := client.Queue(ctx)
	if err != nil {
		return err
	}
	if len(queue.Queue) == 0 && !follow {
		fmt.Fprintln(out, "Queue is empty")
		return nil
	}

	var last string
	if queue.Active != "" {
		last = watchLine(queue.Active, queue.Label, len(queue.Queue))
		fmt.Fprintln(out, last)
	}

	for {
		page, err := client.Events(ctx, cursor, true)
		if err != nil {
			return err
		}
		cursor = page.Next
		for _, ev := range page.Events {
			if ev.Active == "" {
				if last != "" {
					fmt.Fprintln(out, "Queue drained")
					last = ""
				}
				if !follow {
					return nil
				}
				continue
			}
			line := watchLine(ev.Active, ev.Label, len(ev.Queue))
			if line != last {
				fmt.Fprintln(out, line)
				last = line
			}
		}
	}
}

func watchLine(active fanbox.PostID, label string, queued int) string {
	line := fmt.Sprintf("post %s: %s", active, strings.TrimSpace(label))
	if queued > 1 {
		line += fmt.Sprintf(" [+%d queued]", queued-1)
	}
	return line
}

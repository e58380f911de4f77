package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"fanboxed/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect finished downloads",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))

	return historyCmd
}

func (c *commandContext) openHistory() (*history.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, errors.New("download history is disabled (set history.enabled = true)")
	}
	return history.Open(cfg)
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var (
		limit    int
		statuses []string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List finished downloads, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := make([]history.Status, 0, len(statuses))
			for _, value := range statuses {
				status, ok := history.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q (want completed or failed)", value)
				}
				filter = append(filter, status)
			}

			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit, filter...)
			if err != nil {
				return err
			}
			if entries == nil {
				entries = []*history.Entry{}
			}
			handled, err := writeFormatted(cmd, format, entries)
			if handled {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No downloads recorded")
				return nil
			}
			fmt.Fprintln(out, renderHistory(entries, shouldColorize(out)))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries (0 for all)")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (completed, failed)")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, json, or yaml")
	return cmd
}

func renderHistory(entries []*history.Entry, colorize bool) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		detail := e.FileName
		size := humanize.Bytes(uint64(e.Size))
		if e.Status == history.StatusFailed {
			detail = e.ErrorMessage
			size = ""
		}
		status := string(e.Status)
		if e.ErrorKind != "" {
			status += " (" + e.ErrorKind + ")"
		}
		rows = append(rows, []string{
			string(e.PostID),
			e.Title,
			colorStatus(status, e.Status == history.StatusCompleted, colorize),
			detail,
			size,
			humanize.Time(e.FinishedAt),
		})
	}
	return renderTable(
		[]string{"Post", "Title", "Status", "File", "Size", "Finished"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every history entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d history entries\n", removed)
			return nil
		},
	}
}

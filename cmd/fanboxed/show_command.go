package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fanboxed/internal/fanbox"
	"fanboxed/internal/logging"
	"fanboxed/internal/textutil"
	"fanboxed/internal/transport"
)

type postView struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Author      string   `json:"author" yaml:"author"`
	Published   string   `json:"published" yaml:"published"`
	Cover       string   `json:"cover,omitempty" yaml:"cover,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Assets      []string `json:"assets" yaml:"assets"`
	Fetches     int      `json:"fetches" yaml:"fetches"`
	FileName    string   `json:"file_name" yaml:"file_name"`
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <post-id|post-url>",
		Short: "Show post metadata without downloading assets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			id, err := fanbox.ParsePostID(args[0])
			if err != nil {
				return err
			}

			logger := logging.NewNop()
			getter := transport.New(nil, transport.Options{
				Timeout:   cfg.FetchTimeout(),
				UserAgent: cfg.Fanbox.UserAgent,
				Logger:    logger,
			})
			client := fanbox.NewClient(getter, fanbox.Options{
				BaseURL:      cfg.Fanbox.APIBaseURL,
				Origin:       cfg.Fanbox.Origin,
				SessionID:    cfg.Fanbox.SessionID,
				IncludeFiles: cfg.Fanbox.IncludeFiles,
				Location:     cfg.Location(),
				Logger:       logger,
			})
			post, err := client.RequestInfo(cmd.Context(), id)
			if err != nil {
				return err
			}

			view := postView{
				ID:          string(post.ID),
				Title:       post.Title,
				Author:      post.Author,
				Published:   post.Published.Format(time.RFC3339),
				Cover:       post.Cover,
				Description: post.Description,
				Assets:      post.Assets,
				Fetches:     post.TotalFetches(),
			}
			if view.Assets == nil {
				view.Assets = []string{}
			}
			if name, err := textutil.Format(cfg.Archive.FilenameTemplate, post.Fields()); err == nil {
				view.FileName = textutil.SanitizeFileName(name)
			}

			handled, err := writeFormatted(cmd, format, view)
			if handled {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderPostView(view))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, json, or yaml")
	return cmd
}

func renderPostView(view postView) string {
	cover := view.Cover
	if cover == "" {
		cover = "(none)"
	}
	description := strings.TrimSpace(view.Description)
	if len([]rune(description)) > 60 {
		description = string([]rune(description)[:57]) + "..."
	}
	rows := [][]string{
		{"ID", view.ID},
		{"Title", view.Title},
		{"Author", view.Author},
		{"Published", view.Published},
		{"Cover", cover},
		{"Assets", strconv.Itoa(len(view.Assets))},
		{"Fetches", strconv.Itoa(view.Fetches)},
		{"Archive", view.FileName},
	}
	if description != "" {
		rows = append(rows, []string{"Description", description})
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}

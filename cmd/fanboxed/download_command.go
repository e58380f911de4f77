package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"fanboxed/internal/download"
	"fanboxed/internal/fanbox"
	"fanboxed/internal/pipeline"
	"fanboxed/internal/services"
)

type downloadOptions struct {
	force      bool
	noProgress bool
	outputDir  string
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var opts downloadOptions

	cmd := &cobra.Command{
		Use:   "download <post-id|post-url>...",
		Short: "Download posts into zip archives",
		Long: "Download one or more posts in the order given. Each post is saved as a\n" +
			"zip archive in the configured output directory.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePostIDs(args)
			if err != nil {
				return err
			}
			return runDownload(cmd, ctx, ids, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Download posts even if history records a completed download")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable the progress bar")
	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "Override the output directory")
	return cmd
}

func runDownload(cmd *cobra.Command, ctx *commandContext, ids []fanbox.PostID, opts downloadOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if opts.outputDir != "" {
		override := *cfg
		override.Paths.OutputDir = opts.outputDir
		if err := override.EnsureDirectories(); err != nil {
			return err
		}
		cfg = &override
	}

	logger, err := ctx.fileLogger("download")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	stderr := cmd.ErrOrStderr()
	p, err := pipeline.New(cfg, logger, pipeline.Options{
		Warn: func() {
			fmt.Fprintln(stderr, "Downloads are still running; interrupt again to abort.")
		},
	})
	if err != nil {
		return err
	}
	defer p.Close()

	runCtx, stop := pipeline.InterruptContext(cmd.Context(), p.Guard, logger)
	defer stop()

	collector := &resultCollector{}
	p.Manager.AddResultHook(collector.add)

	queued := make([]fanbox.PostID, 0, len(ids))
	var skipped []fanbox.PostID
	for _, id := range ids {
		if !opts.force && cfg.History.SkipCompleted {
			entry, err := p.AlreadyCompleted(runCtx, id)
			if err != nil {
				return err
			}
			if entry != nil {
				skipped = append(skipped, id)
				continue
			}
		}
		queued = append(queued, id)
	}

	out := cmd.OutOrStdout()
	for _, id := range skipped {
		fmt.Fprintf(out, "Skipping post %s: already downloaded (use --force to download again)\n", id)
	}
	if len(queued) == 0 {
		return nil
	}

	var bar *progressBar
	if !opts.noProgress && isTerminal(stderr) {
		bar = newProgressBar(stderr, p.Manager)
		sub := p.Manager.Subscribe(bar)
		defer sub.Unsubscribe()
	}

	for _, id := range queued {
		p.Manager.Enqueue(id)
	}

	waitErr := p.Manager.Wait(runCtx)
	if bar != nil {
		bar.finish()
	}
	results := collector.snapshot()
	if len(results) > 0 {
		fmt.Fprintln(out, renderResults(results, shouldColorize(out)))
	}
	if waitErr != nil {
		if errors.Is(waitErr, context.Canceled) {
			return fmt.Errorf("download interrupted: %w", waitErr)
		}
		return waitErr
	}

	failed := 0
	for _, r := range results {
		if !r.Succeeded() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(results))
	}
	return nil
}

type resultCollector struct {
	mu      sync.Mutex
	results []download.Result
}

func (c *resultCollector) add(_ context.Context, result download.Result) {
	c.mu.Lock()
	c.results = append(c.results, result)
	c.mu.Unlock()
}

func (c *resultCollector) snapshot() []download.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]download.Result(nil), c.results...)
}

func renderResults(results []download.Result, colorize bool) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		title := ""
		if r.Post != nil {
			title = r.Post.Title
		}
		if r.Succeeded() {
			rows = append(rows, []string{
				string(r.PostID),
				title,
				colorStatus("saved", true, colorize),
				r.FileName,
				humanize.Bytes(uint64(r.Size)),
				r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
			})
			continue
		}
		detail := r.Err.Error()
		if hint := services.Hint(r.Err); hint != "" {
			detail += " (" + hint + ")"
		}
		rows = append(rows, []string{
			string(r.PostID),
			title,
			colorStatus(services.Kind(r.Err), false, colorize),
			detail,
			"",
			"",
		})
	}
	return renderTable(
		[]string{"Post", "Title", "Status", "File", "Size", "Elapsed"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	)
}

// progressBar mirrors the manager's head task on a terminal bar. It stays
// alive until finish is called.
type progressBar struct {
	manager *download.Manager

	mu     sync.Mutex
	bar    *progressbar.ProgressBar
	active fanbox.PostID
	done   bool
}

func newProgressBar(w io.Writer, manager *download.Manager) *progressBar {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(50*time.Millisecond),
	)
	return &progressBar{manager: manager, bar: bar}
}

func (p *progressBar) IsAlive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.done
}

func (p *progressBar) OnProgress(ev download.Event) {
	p.mu.Lock()
	tracked := p.active
	p.mu.Unlock()
	if tracked != "" && !ev.Concerns(tracked) {
		return
	}

	snap := p.manager.Snapshot()
	id, ok := snap.Active()
	if !ok {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	state := snap.StateOf(id)
	label := fmt.Sprintf("post %s: %s", id, state)
	if remaining := len(snap.Queue) - 1; remaining > 0 {
		label += fmt.Sprintf(" [+%d queued]", remaining)
	}
	if id != p.active {
		p.active = id
		p.bar.Reset()
		p.bar.ChangeMax(-1)
	}
	if snap.Head.Known() {
		p.bar.ChangeMax(snap.Head.Total)
		_ = p.bar.Set(snap.Head.Done)
	}
	p.bar.Describe(label)
}

func (p *progressBar) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.done = true
	_ = p.bar.Clear()
}

package archive

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"fanboxed/internal/fanbox"
	"fanboxed/internal/logging"
	"fanboxed/internal/services"
	"fanboxed/internal/textutil"
)

// AssetFetcher downloads a single asset URL.
type AssetFetcher interface {
	FetchAsset(ctx context.Context, url string) ([]byte, error)
}

// ProgressSink is called after each successful fetch with the number of
// fetches completed so far and the fixed total for the post.
type ProgressSink func(done, total int)

// Naming controls entry names. Cover and page templates may reference the
// post's fields plus {index} (1-based) and {ext}.
type Naming struct {
	DescriptionName string
	CoverTemplate   string
	PageTemplate    string
}

// DefaultNaming returns description.txt, cover.<ext>, page_NNN.<ext>.
func DefaultNaming() Naming {
	return Naming{
		DescriptionName: "description.txt",
		CoverTemplate:   "cover.{ext}",
		PageTemplate:    "page_{index:03}.{ext}",
	}
}

// Builder turns a PostDescriptor into an Archive.
type Builder struct {
	fetcher AssetFetcher
	naming  Naming
	logger  *slog.Logger
}

// NewBuilder constructs a Builder. Empty naming fields fall back to DefaultNaming.
func NewBuilder(fetcher AssetFetcher, naming Naming, logger *slog.Logger) *Builder {
	def := DefaultNaming()
	if naming.DescriptionName == "" {
		naming.DescriptionName = def.DescriptionName
	}
	if naming.CoverTemplate == "" {
		naming.CoverTemplate = def.CoverTemplate
	}
	if naming.PageTemplate == "" {
		naming.PageTemplate = def.PageTemplate
	}
	return &Builder{
		fetcher: fetcher,
		naming:  naming,
		logger:  logging.NewComponentLogger(logger, "archive"),
	}
}

// BuildArchive adds the description (when non-empty), then the cover (when
// present), then every asset in order. sink may be nil.
func (b *Builder) BuildArchive(ctx context.Context, post *fanbox.PostDescriptor, sink ProgressSink) (*Archive, error) {
	archive, err := b.build(ctx, post, sink)
	if err != nil {
		return nil, &services.PackagingError{PostID: string(post.ID), Err: err}
	}
	return archive, nil
}

func (b *Builder) build(ctx context.Context, post *fanbox.PostDescriptor, sink ProgressSink) (*Archive, error) {
	total := post.TotalFetches()
	done := 0
	out := newArchive()
	log := logging.WithContext(ctx, b.logger)

	if post.Description != "" {
		if err := out.add(Entry{Name: b.naming.DescriptionName, Data: []byte(post.Description), Modified: post.Published}); err != nil {
			return nil, err
		}
	}

	fetch := func(url, tmpl string, index int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		fields := post.Fields()
		fields["index"] = index
		fields["ext"] = textutil.Extension(url)
		name, err := textutil.Format(tmpl, fields)
		if err != nil {
			return err
		}
		data, err := b.fetcher.FetchAsset(ctx, url)
		if err != nil {
			return err
		}
		if err := out.add(Entry{Name: name, Data: data, Modified: post.Published}); err != nil {
			return err
		}
		done++
		log.Debug("asset fetched",
			logging.String("entry", name),
			logging.String("size", humanize.Bytes(uint64(len(data)))),
			logging.Int("done", done),
			logging.Int("total", total),
		)
		if sink != nil {
			sink(done, total)
		}
		return nil
	}

	if post.HasCover() {
		if err := fetch(post.Cover, b.naming.CoverTemplate, 0); err != nil {
			return nil, fmt.Errorf("cover: %w", err)
		}
	}
	for i, url := range post.Assets {
		if err := fetch(url, b.naming.PageTemplate, i+1); err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
	}
	return out, nil
}

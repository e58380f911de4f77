package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"fanboxed/internal/fileutil"
	"fanboxed/internal/logging"
	"fanboxed/internal/services"
)

// Trigger delivers a finished archive to the user and returns where it went.
type Trigger interface {
	Deliver(ctx context.Context, name string, data []byte) (string, error)
}

// freeSpaceMargin is kept free on the output filesystem after a write.
const freeSpaceMargin = 16 << 20

// DirTrigger writes archives into a directory. Existing files are never
// overwritten; a numbered suffix is added instead.
type DirTrigger struct {
	dir    string
	logger *slog.Logger
	// freeBytes is swapped in tests.
	freeBytes func(string) (uint64, error)
}

// NewDirTrigger constructs a DirTrigger for dir.
func NewDirTrigger(dir string, logger *slog.Logger) *DirTrigger {
	return &DirTrigger{
		dir:       dir,
		logger:    logging.NewComponentLogger(logger, "delivery"),
		freeBytes: fileutil.FreeBytes,
	}
}

func (t *DirTrigger) Deliver(ctx context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrDelivery, "deliver", "create output directory", err)
	}
	free, err := t.freeBytes(t.dir)
	if err != nil {
		return "", services.Wrap(services.ErrDelivery, "deliver", "probe free space", err)
	}
	need := uint64(len(data)) + freeSpaceMargin
	if free < need {
		return "", services.Wrap(services.ErrDelivery, "deliver",
			fmt.Sprintf("insufficient space: need %s, have %s", humanize.Bytes(need), humanize.Bytes(free)), nil)
	}

	path, err := fileutil.UniquePath(t.dir, name)
	if err != nil {
		return "", services.Wrap(services.ErrDelivery, "deliver", "choose file name", err)
	}
	if err := fileutil.WriteFileVerified(path, data, 0o644); err != nil {
		return "", services.Wrap(services.ErrDelivery, "deliver", "write archive", err)
	}
	logging.WithContext(ctx, t.logger).Info("archive saved",
		logging.String("path", path),
		logging.String("size", humanize.Bytes(uint64(len(data)))),
		logging.String(logging.FieldEventType, "archive_saved"),
	)
	return path, nil
}

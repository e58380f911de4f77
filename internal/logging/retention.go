package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	runLogPrefix = "fanboxed-"
	runLogSuffix = ".log"
)

// PruneRunLogs removes run logs in dir last modified more than retentionDays
// ago and returns their paths. Files named in keep survive regardless of age,
// so a caller can protect the log it is writing. retentionDays <= 0 disables
// pruning.
func PruneRunLogs(logger *slog.Logger, dir string, retentionDays int, keep ...string) []string {
	if retentionDays <= 0 || strings.TrimSpace(dir) == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	protected := make(map[string]bool, len(keep))
	for _, path := range keep {
		protected[filepath.Base(path)] = true
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	var removed []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || protected[name] || !isRunLog(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check file permissions on the state directory"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed = append(removed, path)
	}

	if len(removed) > 0 && logger != nil {
		logger.Info("old run logs pruned",
			Int("count", len(removed)),
			Int("retention_days", retentionDays),
			String(FieldEventType, "log_pruned"),
		)
	}
	return removed
}

func isRunLog(name string) bool {
	return strings.HasPrefix(name, runLogPrefix) && strings.HasSuffix(name, runLogSuffix)
}

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fanboxed/internal/download"
	"fanboxed/internal/fanbox"
	"fanboxed/internal/logging"
	"fanboxed/internal/services"
)

// Status is the outcome of a finished download.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ParseStatus validates a status name.
func ParseStatus(value string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusCompleted:
		return StatusCompleted, true
	case StatusFailed:
		return StatusFailed, true
	default:
		return "", false
	}
}

// Entry is one finished download.
type Entry struct {
	ID            int64         `json:"id"`
	PostID        fanbox.PostID `json:"post_id"`
	CorrelationID string        `json:"correlation_id,omitempty"`
	Title         string        `json:"title,omitempty"`
	Author        string        `json:"author,omitempty"`
	Status        Status        `json:"status"`
	FileName      string        `json:"file_name,omitempty"`
	Path          string        `json:"path,omitempty"`
	Size          int64         `json:"size_bytes"`
	Fetches       int           `json:"fetches"`
	ErrorKind     string        `json:"error_kind,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
}

const entryColumns = "id, post_id, correlation_id, title, author, status, file_name, path, size_bytes, fetches, error_kind, error_message, started_at, finished_at"

// Record stores a finished task.
func (s *Store) Record(ctx context.Context, result download.Result) (*Entry, error) {
	entry := entryFromResult(result)
	res, err := s.execWithRetry(ctx,
		`INSERT INTO downloads (
            post_id, correlation_id, title, author, status, file_name, path,
            size_bytes, fetches, error_kind, error_message, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(entry.PostID),
		nullableString(entry.CorrelationID),
		nullableString(entry.Title),
		nullableString(entry.Author),
		string(entry.Status),
		nullableString(entry.FileName),
		nullableString(entry.Path),
		entry.Size,
		entry.Fetches,
		nullableString(entry.ErrorKind),
		nullableString(entry.ErrorMessage),
		entry.StartedAt.UTC().Format(time.RFC3339Nano),
		entry.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert history entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	entry.ID = id
	return &entry, nil
}

func entryFromResult(result download.Result) Entry {
	entry := Entry{
		PostID:        result.PostID,
		CorrelationID: result.CorrelationID,
		Status:        StatusCompleted,
		FileName:      result.FileName,
		Path:          result.Path,
		Size:          result.Size,
		Fetches:       result.Fetches,
		StartedAt:     result.StartedAt,
		FinishedAt:    result.FinishedAt,
	}
	if result.Post != nil {
		entry.Title = result.Post.Title
		entry.Author = result.Post.Author
	}
	if result.Err != nil {
		entry.Status = StatusFailed
		entry.ErrorKind = services.Kind(result.Err)
		entry.ErrorMessage = result.Err.Error()
	}
	if entry.FinishedAt.IsZero() {
		entry.FinishedAt = time.Now()
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = entry.FinishedAt
	}
	return entry
}

// List returns the most recent entries first. A non-positive limit returns
// every row; statuses filters when non-empty.
func (s *Store) List(ctx context.Context, limit int, statuses ...Status) ([]*Entry, error) {
	query := "SELECT " + entryColumns + " FROM downloads"
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ",") + ")"
	}
	query += " ORDER BY finished_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// LastCompleted returns the newest successful entry for id, or nil.
func (s *Store) LastCompleted(ctx context.Context, id fanbox.PostID) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM downloads WHERE post_id = ? AND status = ? ORDER BY finished_at DESC, id DESC LIMIT 1",
		string(id), string(StatusCompleted),
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup history for %s: %w", id, err)
	}
	return entry, nil
}

// Clear removes every entry and reports how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM downloads")
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

// Hook returns a result hook that records every task. Write failures are
// logged since the download itself already finished.
func (s *Store) Hook(logger *slog.Logger) download.ResultHook {
	logger = logging.NewComponentLogger(logger, "history")
	return func(ctx context.Context, result download.Result) {
		if _, err := s.Record(ctx, result); err != nil {
			logging.WarnWithContext(logger, "history write failed", "history_write_failed",
				logging.String(logging.FieldPostID, string(result.PostID)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check free space and permissions on the state directory"),
				logging.String(logging.FieldImpact, "the post may be downloaded again"),
			)
		}
	}
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry         Entry
		postID        string
		status        string
		correlationID sql.NullString
		title         sql.NullString
		author        sql.NullString
		fileName      sql.NullString
		path          sql.NullString
		errorKind     sql.NullString
		errorMessage  sql.NullString
		startedRaw    string
		finishedRaw   string
	)
	if err := scanner.Scan(
		&entry.ID,
		&postID,
		&correlationID,
		&title,
		&author,
		&status,
		&fileName,
		&path,
		&entry.Size,
		&entry.Fetches,
		&errorKind,
		&errorMessage,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	entry.PostID = fanbox.PostID(postID)
	entry.Status = Status(status)
	entry.CorrelationID = correlationID.String
	entry.Title = title.String
	entry.Author = author.String
	entry.FileName = fileName.String
	entry.Path = path.String
	entry.ErrorKind = errorKind.String
	entry.ErrorMessage = errorMessage.String
	entry.StartedAt = parseTime(startedRaw)
	entry.FinishedAt = parseTime(finishedRaw)
	return &entry, nil
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

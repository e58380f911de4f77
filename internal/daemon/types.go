package daemon

import (
	"time"

	"fanboxed/internal/download"
	"fanboxed/internal/fanbox"
	"fanboxed/internal/history"
	"fanboxed/internal/progress"
)

// HealthResponse reports daemon liveness.
type HealthResponse struct {
	Status    string         `json:"status"`
	Version   string         `json:"version"`
	PID       int            `json:"pid"`
	StartedAt time.Time      `json:"started_at"`
	Queue     int            `json:"queue"`
	Phase     download.Phase `json:"phase"`
	Observers int            `json:"observers"`
	History   bool           `json:"history"`
}

// QueueResponse is the current queue with the head task's progress.
type QueueResponse struct {
	Queue   []fanbox.PostID `json:"queue"`
	Active  fanbox.PostID   `json:"active,omitempty"`
	Phase   download.Phase  `json:"phase"`
	Done    int             `json:"done"`
	Total   int             `json:"total"`
	Label   string          `json:"label,omitempty"`
	Running bool            `json:"running"`
}

// EnqueueRequest submits posts by id or URL.
type EnqueueRequest struct {
	Posts []string `json:"posts"`
	// Force queues posts even when history has a completed download.
	Force bool `json:"force,omitempty"`
}

// EnqueueResponse classifies every submitted post.
type EnqueueResponse struct {
	Added     []fanbox.PostID `json:"added"`
	Duplicate []fanbox.PostID `json:"duplicate,omitempty"`
	Skipped   []fanbox.PostID `json:"skipped,omitempty"`
	Invalid   []string        `json:"invalid,omitempty"`
}

// EventsResponse is one page of progress events.
type EventsResponse struct {
	Events []progress.Event `json:"events"`
	Next   uint64           `json:"next"`
}

// HistoryResponse lists finished downloads, newest first.
type HistoryResponse struct {
	Entries []*history.Entry `json:"entries"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func queueResponse(snap download.Snapshot) QueueResponse {
	resp := QueueResponse{
		Queue:   snap.Queue,
		Phase:   snap.Phase(),
		Done:    snap.Head.Done,
		Total:   snap.Head.Total,
		Running: snap.Running,
	}
	if resp.Queue == nil {
		resp.Queue = []fanbox.PostID{}
	}
	if active, ok := snap.Active(); ok {
		resp.Active = active
		resp.Label = snap.StateOf(active).String()
	}
	return resp
}

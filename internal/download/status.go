package download

import (
	"fmt"

	"fanboxed/internal/fanbox"
)

// UnknownTotal marks a Status whose post metadata has not been resolved yet.
const UnknownTotal = -1

// Phase names what the active task is doing.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseResolving   Phase = "resolving"
	PhaseDownloading Phase = "downloading"
	PhaseFinalizing  Phase = "finalizing"
)

// Status is the progress of the task at the head of the queue. Done never
// exceeds a known Total.
type Status struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

func resolvingStatus() Status { return Status{Done: 0, Total: UnknownTotal} }

// Known reports whether Total has been resolved.
func (s Status) Known() bool { return s.Total >= 0 }

// Phase derives the task phase from the counters.
func (s Status) Phase() Phase {
	switch {
	case !s.Known():
		return PhaseResolving
	case s.Done < s.Total:
		return PhaseDownloading
	default:
		return PhaseFinalizing
	}
}

// Snapshot is a consistent view of the queue and the head's status.
type Snapshot struct {
	Queue   []fanbox.PostID `json:"queue"`
	Head    Status          `json:"head"`
	Running bool            `json:"running"`
}

// Phase is PhaseIdle for an empty queue, otherwise the head's phase.
func (s Snapshot) Phase() Phase {
	if len(s.Queue) == 0 {
		return PhaseIdle
	}
	return s.Head.Phase()
}

// Active returns the post currently executing, if any.
func (s Snapshot) Active() (fanbox.PostID, bool) {
	if len(s.Queue) == 0 {
		return "", false
	}
	return s.Queue[0], true
}

// Position is the zero-based queue index of id, or -1 when not queued.
func (s Snapshot) Position(id fanbox.PostID) int {
	for i, queued := range s.Queue {
		if queued == id {
			return i
		}
	}
	return -1
}

// StateKind classifies a post relative to the queue.
type StateKind string

const (
	StateReady   StateKind = "ready"
	StatePending StateKind = "pending"
	StateActive  StateKind = "active"
)

// TaskState is what a per-post control should display.
type TaskState struct {
	Kind StateKind `json:"kind"`
	// Ahead is the number of posts queued in front of a pending post.
	Ahead  int    `json:"ahead,omitempty"`
	Status Status `json:"status"`
}

// StateOf reports the state of id within the snapshot.
func (s Snapshot) StateOf(id fanbox.PostID) TaskState {
	switch pos := s.Position(id); pos {
	case -1:
		return TaskState{Kind: StateReady}
	case 0:
		return TaskState{Kind: StateActive, Status: s.Head}
	default:
		return TaskState{Kind: StatePending, Ahead: pos}
	}
}

// String renders the state as a short label.
func (t TaskState) String() string {
	switch t.Kind {
	case StatePending:
		return fmt.Sprintf("Pending downloads (%d remaining)", t.Ahead)
	case StateActive:
		switch t.Status.Phase() {
		case PhaseResolving:
			return "Fetching post info..."
		case PhaseDownloading:
			return fmt.Sprintf("Downloading... (%d / %d)", t.Status.Done+1, t.Status.Total)
		default:
			return "Generating ZIP..."
		}
	default:
		return "Download"
	}
}

// Package progress buffers download manager events for remote clients.
//
// Hub subscribes to the manager like any other observer, turns every event
// into a self-contained snapshot, and keeps the most recent ones in a bounded
// buffer. HTTP clients long-poll Fetch with the last sequence they saw.
package progress

import (
	"context"
	"sync"
	"time"

	"fanboxed/internal/download"
	"fanboxed/internal/fanbox"
)

// Event is one observed state of the download queue.
type Event struct {
	Sequence  uint64          `json:"seq"`
	Timestamp time.Time       `json:"ts"`
	PostID    fanbox.PostID   `json:"post_id,omitempty"`
	Queue     []fanbox.PostID `json:"queue"`
	Active    fanbox.PostID   `json:"active,omitempty"`
	Done      int             `json:"done"`
	Total     int             `json:"total"`
	Phase     download.Phase  `json:"phase"`
	Label     string          `json:"label,omitempty"`
}

// Source exposes the manager state the hub records.
type Source interface {
	Snapshot() download.Snapshot
}

// Hub stores recent events and wakes waiters when new events arrive.
type Hub struct {
	source Source

	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
	closed   bool
}

// NewHub constructs a bounded buffer fed from source.
func NewHub(source Source, capacity int) *Hub {
	if capacity <= 0 {
		capacity = 512
	}
	h := &Hub{source: source, capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// IsAlive reports false once the hub is closed so the manager drops it.
func (h *Hub) IsAlive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed
}

// OnProgress records the manager state at the time of ev. The snapshot is
// taken under the hub lock so sequence order matches snapshot order.
func (h *Hub) OnProgress(ev download.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	snap := h.source.Snapshot()
	evt := Event{
		PostID: ev.PostID,
		Queue:  snap.Queue,
		Done:   snap.Head.Done,
		Total:  snap.Head.Total,
		Phase:  snap.Phase(),
	}
	if active, ok := snap.Active(); ok {
		evt.Active = active
		evt.Label = snap.StateOf(active).String()
	}
	h.publishLocked(evt)
}

// Publish appends evt, assigning its sequence number.
func (h *Hub) Publish(evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.publishLocked(evt)
}

func (h *Hub) publishLocked(evt Event) {
	if h.closed {
		return
	}
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	h.cond.Broadcast()
}

// Close stops recording and releases any blocked Fetch calls.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	h.cond.Broadcast()
	h.mu.Unlock()
}

// Fetch returns up to limit events with a sequence greater than since, plus
// the cursor to pass next time. When wait is true it blocks until an event
// arrives, the hub closes, or ctx ends.
func (h *Hub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		events, next := h.snapshotLocked(since, limit)
		if len(events) > 0 || !wait || h.closed {
			return events, next, ctx.Err()
		}
		if err := ctx.Err(); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
	}
}

// FirstSequence reports the smallest sequence number still buffered.
func (h *Hub) FirstSequence() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return h.nextSeq
	}
	return h.buffer[0].Sequence
}

// snapshotLocked returns events after since. The cursor is the last returned
// sequence so a truncated read resumes where it stopped.
func (h *Hub) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	start := len(h.buffer)
	for i, evt := range h.buffer {
		if evt.Sequence > since {
			start = i
			break
		}
	}
	if start == len(h.buffer) {
		if since > h.nextSeq {
			return nil, h.nextSeq
		}
		return nil, since
	}
	end := start + limit
	if end > len(h.buffer) {
		end = len(h.buffer)
	}
	out := make([]Event, end-start)
	copy(out, h.buffer[start:end])
	return out, out[len(out)-1].Sequence
}

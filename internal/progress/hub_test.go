package progress_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"fanboxed/internal/archive"
	"fanboxed/internal/download"
	"fanboxed/internal/fanbox"
	"fanboxed/internal/progress"
)

type staticSource struct {
	mu   sync.Mutex
	snap download.Snapshot
}

func (s *staticSource) set(snap download.Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

func (s *staticSource) Snapshot() download.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func TestHubRecordsSnapshots(t *testing.T) {
	source := &staticSource{}
	hub := progress.NewHub(source, 8)

	source.set(download.Snapshot{
		Queue:   []fanbox.PostID{"1", "2"},
		Head:    download.Status{Done: 1, Total: 3},
		Running: true,
	})
	hub.OnProgress(download.Event{PostID: "1"})
	source.set(download.Snapshot{})
	hub.OnProgress(download.Event{})

	events, next, err := hub.Fetch(context.Background(), 0, 0, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 2 || next != 2 {
		t.Fatalf("expected 2 events and cursor 2, got %d / %d", len(events), next)
	}
	first := events[0]
	if first.Active != "1" || first.Phase != download.PhaseDownloading || first.Label != "Downloading... (2 / 3)" {
		t.Fatalf("unexpected first event %+v", first)
	}
	if events[1].Phase != download.PhaseIdle || events[1].Active != "" || events[1].PostID != "" {
		t.Fatalf("unexpected idle event %+v", events[1])
	}
}

func TestHubFetchResumesFromCursor(t *testing.T) {
	hub := progress.NewHub(&staticSource{}, 8)
	for i := 0; i < 5; i++ {
		hub.Publish(progress.Event{})
	}

	events, next, _ := hub.Fetch(context.Background(), 0, 2, false)
	if len(events) != 2 || next != 2 {
		t.Fatalf("expected truncated read ending at 2, got %d / %d", len(events), next)
	}
	events, next, _ = hub.Fetch(context.Background(), next, 10, false)
	if len(events) != 3 || events[0].Sequence != 3 || next != 5 {
		t.Fatalf("unexpected resumed read %d events, cursor %d", len(events), next)
	}
	events, next, _ = hub.Fetch(context.Background(), next, 10, false)
	if len(events) != 0 || next != 5 {
		t.Fatalf("expected empty read at head, got %d / %d", len(events), next)
	}
}

func TestHubEvictsOldest(t *testing.T) {
	hub := progress.NewHub(&staticSource{}, 3)
	for i := 0; i < 5; i++ {
		hub.Publish(progress.Event{})
	}
	if first := hub.FirstSequence(); first != 3 {
		t.Fatalf("expected oldest buffered seq 3, got %d", first)
	}
	events, next, err := hub.Fetch(context.Background(), 0, 0, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 3 || events[0].Sequence != 3 || next != 5 {
		t.Fatalf("unexpected events %+v next=%d", events, next)
	}
}

func TestHubFetchWaitsForEvent(t *testing.T) {
	hub := progress.NewHub(&staticSource{}, 8)
	done := make(chan []progress.Event, 1)
	go func() {
		events, _, _ := hub.Fetch(context.Background(), 0, 0, true)
		done <- events
	}()

	time.Sleep(20 * time.Millisecond)
	hub.Publish(progress.Event{PostID: "7"})

	select {
	case events := <-done:
		if len(events) != 1 || events[0].PostID != "7" {
			t.Fatalf("unexpected events %+v", events)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Fetch did not wake up")
	}
}

func TestHubFetchHonorsContext(t *testing.T) {
	hub := progress.NewHub(&staticSource{}, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, _, err := hub.Fetch(ctx, 0, 0, true)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestHubCloseMarksDead(t *testing.T) {
	hub := progress.NewHub(&staticSource{}, 8)
	if !hub.IsAlive() {
		t.Fatal("expected new hub alive")
	}
	hub.Close()
	if hub.IsAlive() {
		t.Fatal("expected closed hub dead")
	}
	events, _, err := hub.Fetch(context.Background(), 0, 0, true)
	if err != nil || len(events) != 0 {
		t.Fatalf("expected closed hub to return immediately, got %v %v", events, err)
	}
}

func TestHubAsManagerObserver(t *testing.T) {
	var _ download.Observer = (*progress.Hub)(nil)
}

type longPost struct {
	post *fanbox.PostDescriptor
}

func (p longPost) RequestInfo(context.Context, fanbox.PostID) (*fanbox.PostDescriptor, error) {
	return p.post, nil
}

// gatedAssets holds the final asset until release is closed.
type gatedAssets struct {
	last    string
	release chan struct{}
}

func (a *gatedAssets) FetchAsset(ctx context.Context, url string) ([]byte, error) {
	if url == a.last {
		select {
		case <-a.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []byte(url), nil
}

type discardTrigger struct{}

func (discardTrigger) Deliver(_ context.Context, name string, _ []byte) (string, error) {
	return "mem://" + name, nil
}

func TestHubDoneNeverRegressesUnderConcurrentEnqueue(t *testing.T) {
	const assetCount = 2000
	assets := make([]string, assetCount)
	for i := range assets {
		assets[i] = fmt.Sprintf("https://img.example/%d.png", i)
	}
	fetcher := &gatedAssets{last: assets[assetCount-1], release: make(chan struct{})}
	manager := download.NewManager(download.Deps{
		Fetcher: longPost{post: &fanbox.PostDescriptor{
			ID: "1", Author: "A", Title: "Long", Year: 2024, Month: 1, Day: 2, Assets: assets,
		}},
		Builder:          archive.NewBuilder(fetcher, archive.DefaultNaming(), nil),
		Trigger:          discardTrigger{},
		FilenameTemplate: "{title}.zip",
	})
	t.Cleanup(manager.Close)
	hub := progress.NewHub(manager, 1<<14)
	t.Cleanup(hub.Close)
	manager.Subscribe(hub)

	manager.Enqueue("1")
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 500 {
				manager.Enqueue("1")
			}
		}()
	}
	wg.Wait()
	close(fetcher.release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := manager.Wait(ctx); err != nil {
		t.Fatalf("queue did not drain: %v", err)
	}

	events, _, err := hub.Fetch(context.Background(), 0, 0, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	last := -1
	var lastSeq uint64
	for _, evt := range events {
		if evt.Sequence <= lastSeq {
			t.Fatalf("sequence %d after %d", evt.Sequence, lastSeq)
		}
		lastSeq = evt.Sequence
		if evt.Active != "1" {
			continue
		}
		if evt.Done < last {
			t.Fatalf("seq %d: done %d after %d", evt.Sequence, evt.Done, last)
		}
		last = evt.Done
	}
	if last < assetCount-1 {
		t.Fatalf("expected progress up to %d, last seen %d", assetCount-1, last)
	}
}

package download_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"fanboxed/internal/archive"
	"fanboxed/internal/download"
	"fanboxed/internal/fanbox"
	"fanboxed/internal/services"
)

type fakeFetcher struct {
	mu          sync.Mutex
	posts       map[fanbox.PostID]*fanbox.PostDescriptor
	gates       map[fanbox.PostID]chan struct{}
	calls       []fanbox.PostID
	inflight    int
	maxInflight int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		posts: make(map[fanbox.PostID]*fanbox.PostDescriptor),
		gates: make(map[fanbox.PostID]chan struct{}),
	}
}

func (f *fakeFetcher) add(id fanbox.PostID, cover string, assets ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[id] = &fanbox.PostDescriptor{
		ID:     id,
		Author: "A",
		Title:  "Post " + string(id),
		Year:   2024,
		Month:  1,
		Day:    2,
		Cover:  cover,
		Assets: assets,
	}
}

func (f *fakeFetcher) block(id fanbox.PostID) func() {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[id] = gate
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *fakeFetcher) RequestInfo(ctx context.Context, id fanbox.PostID) (*fanbox.PostDescriptor, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	gate := f.gates[id]
	post, ok := f.posts[id]
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, &services.APIError{Message: "failed to call an API: general_error"}
	}
	return post, nil
}

func (f *fakeFetcher) callOrder() []fanbox.PostID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fanbox.PostID(nil), f.calls...)
}

type fakeAssets struct {
	mu   sync.Mutex
	fail map[string]bool
}

func (a *fakeAssets) FetchAsset(_ context.Context, url string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail[url] {
		return nil, &services.TransportError{URL: url, Message: fmt.Sprintf("failed to download '%s'", url)}
	}
	return []byte(url), nil
}

type memTrigger struct {
	mu    sync.Mutex
	names []string
}

func (t *memTrigger) Deliver(_ context.Context, name string, data []byte) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(data) == 0 {
		return "", errors.New("empty archive")
	}
	t.names = append(t.names, name)
	return "mem://" + name, nil
}

func (t *memTrigger) delivered() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.names...)
}

type recordingReporter struct {
	mu     sync.Mutex
	errors map[fanbox.PostID]error
}

func (r *recordingReporter) Report(_ context.Context, id fanbox.PostID, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errors == nil {
		r.errors = make(map[fanbox.PostID]error)
	}
	r.errors[id] = err
}

func (r *recordingReporter) get(id fanbox.PostID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errors[id]
}

type countingGuard struct {
	mu       sync.Mutex
	installs int
	removes  int
	active   bool
}

func (g *countingGuard) Install() {
	g.mu.Lock()
	g.installs++
	g.active = true
	g.mu.Unlock()
}

func (g *countingGuard) Remove() {
	g.mu.Lock()
	g.removes++
	g.active = false
	g.mu.Unlock()
}

func (g *countingGuard) counts() (int, int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.installs, g.removes, g.active
}

type harness struct {
	manager  *download.Manager
	fetcher  *fakeFetcher
	assets   *fakeAssets
	trigger  *memTrigger
	reporter *recordingReporter
	guard    *countingGuard
}

func newHarness(t *testing.T, template string) *harness {
	t.Helper()
	h := &harness{
		fetcher:  newFakeFetcher(),
		assets:   &fakeAssets{fail: make(map[string]bool)},
		trigger:  &memTrigger{},
		reporter: &recordingReporter{},
		guard:    &countingGuard{},
	}
	if template == "" {
		template = "{author} - {title}.zip"
	}
	h.manager = download.NewManager(download.Deps{
		Fetcher:          h.fetcher,
		Builder:          archive.NewBuilder(h.assets, archive.DefaultNaming(), nil),
		Trigger:          h.trigger,
		Reporter:         h.reporter,
		Guard:            h.guard,
		FilenameTemplate: template,
	})
	t.Cleanup(h.manager.Close)
	return h
}

func waitIdle(t *testing.T, m *download.Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("queue did not drain: %v", err)
	}
}

func waitForCall(t *testing.T, f *fakeFetcher, id fanbox.PostID) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, called := range f.callOrder() {
			if called == id {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("post %s was never requested", id)
}

func TestEnqueueDeduplicatesAndRunsInOrder(t *testing.T) {
	h := newHarness(t, "")
	for _, id := range []fanbox.PostID{"1", "2", "3"} {
		h.fetcher.add(id, "")
	}
	release := h.fetcher.block("1")

	results := []bool{
		h.manager.Enqueue("1"),
		h.manager.Enqueue("2"),
		h.manager.Enqueue("1"),
		h.manager.Enqueue("3"),
		h.manager.Enqueue("2"),
	}
	if !reflect.DeepEqual(results, []bool{true, true, false, true, false}) {
		t.Fatalf("unexpected enqueue results %v", results)
	}
	snap := h.manager.Snapshot()
	if !reflect.DeepEqual(snap.Queue, []fanbox.PostID{"1", "2", "3"}) {
		t.Fatalf("queue = %v", snap.Queue)
	}
	if !snap.Running {
		t.Fatal("expected loop running")
	}

	release()
	waitIdle(t, h.manager)

	if got := h.fetcher.callOrder(); !reflect.DeepEqual(got, []fanbox.PostID{"1", "2", "3"}) {
		t.Fatalf("execution order = %v", got)
	}
	want := []string{"A - Post 1.zip", "A - Post 2.zip", "A - Post 3.zip"}
	if got := h.trigger.delivered(); !reflect.DeepEqual(got, want) {
		t.Fatalf("delivered = %v, want %v", got, want)
	}
	if snap := h.manager.Snapshot(); len(snap.Queue) != 0 || snap.Running || snap.Phase() != download.PhaseIdle {
		t.Fatalf("expected idle manager, got %+v", snap)
	}
}

func TestSingleLoopPerBusyPeriod(t *testing.T) {
	h := newHarness(t, "")
	release := h.fetcher.block("1")
	for _, id := range []fanbox.PostID{"1", "2", "3", "4"} {
		h.fetcher.add(id, "", "https://cdn/"+string(id)+".png")
		h.manager.Enqueue(id)
	}
	if installs, _, active := h.guard.counts(); installs != 1 || !active {
		t.Fatalf("expected one guard install while busy, got %d active=%v", installs, active)
	}
	release()
	waitIdle(t, h.manager)

	h.fetcher.mu.Lock()
	maxInflight := h.fetcher.maxInflight
	h.fetcher.mu.Unlock()
	if maxInflight != 1 {
		t.Fatalf("expected strictly sequential execution, saw %d concurrent tasks", maxInflight)
	}
	installs, removes, active := h.guard.counts()
	if installs != 1 || removes != 1 || active {
		t.Fatalf("expected guard removed after drain, got installs=%d removes=%d active=%v", installs, removes, active)
	}

	h.fetcher.add("5", "")
	h.manager.Enqueue("5")
	waitIdle(t, h.manager)
	if installs, removes, _ := h.guard.counts(); installs != 2 || removes != 2 {
		t.Fatalf("expected a fresh loop after drain, got installs=%d removes=%d", installs, removes)
	}
}

func TestProgressSequence(t *testing.T) {
	h := newHarness(t, "")
	h.fetcher.add("1", "https://cdn/cover.jpg", "https://cdn/a.png", "https://cdn/b.png", "https://cdn/c.png")

	var mu sync.Mutex
	var seen []download.Status
	h.manager.Subscribe(download.ObserverFunc(func(ev download.Event) {
		if ev.PostID != "1" {
			return
		}
		mu.Lock()
		seen = append(seen, h.manager.Status())
		mu.Unlock()
	}))

	h.manager.Enqueue("1")
	waitIdle(t, h.manager)

	mu.Lock()
	defer mu.Unlock()
	want := []download.Status{
		{Done: 0, Total: download.UnknownTotal},
		{Done: 0, Total: 4},
		{Done: 1, Total: 4},
		{Done: 2, Total: 4},
		{Done: 3, Total: 4},
		{Done: 4, Total: 4},
	}
	if !reflect.DeepEqual(seen, want) {
		t.Fatalf("status sequence = %v, want %v", seen, want)
	}
	if want[0].Phase() != download.PhaseResolving || want[2].Phase() != download.PhaseDownloading || want[5].Phase() != download.PhaseFinalizing {
		t.Fatal("unexpected phase derivation")
	}
}

func TestDeadObserverIsPrunedAndNeverCalled(t *testing.T) {
	h := newHarness(t, "")
	h.fetcher.add("1", "")

	var deadCalls, liveCalls int
	var mu sync.Mutex
	h.manager.Subscribe(download.WithLiveness(func() bool { return false }, func(download.Event) {
		mu.Lock()
		deadCalls++
		mu.Unlock()
	}))
	h.manager.Subscribe(download.ObserverFunc(func(download.Event) {
		mu.Lock()
		liveCalls++
		mu.Unlock()
	}))
	if h.manager.Observers() != 2 {
		t.Fatalf("expected 2 observers, got %d", h.manager.Observers())
	}

	h.manager.Enqueue("1")
	waitIdle(t, h.manager)

	mu.Lock()
	defer mu.Unlock()
	if deadCalls != 0 {
		t.Fatalf("dead observer invoked %d times", deadCalls)
	}
	if liveCalls == 0 {
		t.Fatal("expected live observer to be notified")
	}
	if h.manager.Observers() != 1 {
		t.Fatalf("expected dead observer pruned, %d remain", h.manager.Observers())
	}
}

func TestEventConcerns(t *testing.T) {
	if !(download.Event{}).Concerns("1") {
		t.Fatal("expected a global event to concern every post")
	}
	if !(download.Event{PostID: "1"}).Concerns("1") {
		t.Fatal("expected an event to concern its own post")
	}
	if (download.Event{PostID: "2"}).Concerns("1") {
		t.Fatal("expected an event for another post to be ignored")
	}
}

func TestObserverLivenessFlipsMidStream(t *testing.T) {
	h := newHarness(t, "")
	h.fetcher.add("1", "", "https://cdn/a.png", "https://cdn/b.png")

	var mu sync.Mutex
	alive := true
	calls := 0
	h.manager.Subscribe(download.WithLiveness(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return alive
	}, func(download.Event) {
		mu.Lock()
		calls++
		if calls == 2 {
			alive = false
		}
		mu.Unlock()
	}))

	release := h.fetcher.block("1")
	h.manager.Enqueue("1")
	waitForCall(t, h.fetcher, "1")
	release()
	waitIdle(t, h.manager)

	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Fatalf("expected exactly 2 deliveries before death, got %d", calls)
	}
	if h.manager.Observers() != 0 {
		t.Fatal("expected observer pruned once it reported dead")
	}
}

func TestPanickingObserverDoesNotStopOthers(t *testing.T) {
	h := newHarness(t, "")
	h.fetcher.add("1", "")

	h.manager.Subscribe(download.ObserverFunc(func(download.Event) { panic("boom") }))
	var mu sync.Mutex
	calls := 0
	h.manager.Subscribe(download.ObserverFunc(func(download.Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	}))

	h.manager.Enqueue("1")
	waitIdle(t, h.manager)

	mu.Lock()
	defer mu.Unlock()
	if calls == 0 {
		t.Fatal("expected second observer to keep receiving events")
	}
	if got := h.trigger.delivered(); len(got) != 1 {
		t.Fatalf("expected task to complete despite panic, got %v", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := newHarness(t, "")
	h.fetcher.add("1", "", "https://cdn/a.png")
	release := h.fetcher.block("1")
	h.manager.Enqueue("1")
	waitForCall(t, h.fetcher, "1")

	var mu sync.Mutex
	calls := 0
	var sub *download.Subscription
	sub = h.manager.Subscribe(download.ObserverFunc(func(download.Event) {
		mu.Lock()
		calls++
		mu.Unlock()
		sub.Unsubscribe()
	}))

	release()
	waitIdle(t, h.manager)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected one delivery before unsubscribe, got %d", calls)
	}
	if sub.Active() || h.manager.Observers() != 0 {
		t.Fatal("expected subscription removed")
	}
}

func TestFailedTaskIsReportedAndQueueContinues(t *testing.T) {
	h := newHarness(t, "")
	h.fetcher.add("1", "https://cdn/cover.jpg", "https://cdn/a.png", "https://cdn/bad.png", "https://cdn/c.png")
	h.fetcher.add("2", "", "https://cdn/d.png")
	h.assets.fail["https://cdn/bad.png"] = true

	var results []download.Result
	var mu sync.Mutex
	h.manager.AddResultHook(func(_ context.Context, r download.Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})

	h.manager.Enqueue("1")
	h.manager.Enqueue("2")
	waitIdle(t, h.manager)
	h.manager.Close()

	if got := h.trigger.delivered(); !reflect.DeepEqual(got, []string{"A - Post 2.zip"}) {
		t.Fatalf("expected only post 2 delivered, got %v", got)
	}
	err := h.reporter.get("1")
	if !errors.Is(err, services.ErrPackaging) {
		t.Fatalf("expected packaging failure for post 1, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad.png") {
		t.Fatalf("expected failing url in report, got %q", err.Error())
	}
	if h.reporter.get("2") != nil {
		t.Fatal("expected no failure for post 2")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 2 || results[0].Succeeded() || !results[1].Succeeded() {
		t.Fatalf("unexpected results %+v", results)
	}
	if results[1].Path != "mem://A - Post 2.zip" || results[1].CorrelationID == "" {
		t.Fatalf("unexpected success result %+v", results[1])
	}
}

func TestFailureKinds(t *testing.T) {
	tests := []struct {
		name     string
		template string
		setup    func(*harness)
		marker   error
	}{
		{"unknown post", "", func(*harness) {}, services.ErrAPI},
		{"bad template", "{missing}.zip", func(h *harness) { h.fetcher.add("1", "") }, services.ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.template)
			tt.setup(h)
			h.manager.Enqueue("1")
			waitIdle(t, h.manager)
			h.manager.Close()
			if err := h.reporter.get("1"); !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
			if len(h.trigger.delivered()) != 0 {
				t.Fatal("expected nothing delivered")
			}
		})
	}
}

func TestCloseCancelsActiveTaskAndDropsQueue(t *testing.T) {
	h := newHarness(t, "")
	h.fetcher.add("1", "")
	h.fetcher.add("2", "")
	h.fetcher.block("1")

	h.manager.Enqueue("1")
	h.manager.Enqueue("2")

	done := make(chan struct{})
	go func() {
		h.manager.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	if got := h.fetcher.callOrder(); !reflect.DeepEqual(got, []fanbox.PostID{"1"}) {
		t.Fatalf("expected queued post dropped, calls = %v", got)
	}
	if h.reporter.get("1") != nil {
		t.Fatal("expected cancellation not reported as a failure")
	}
	if h.manager.Enqueue("3") {
		t.Fatal("expected enqueue after close to be rejected")
	}
}

func TestSnapshotStateOf(t *testing.T) {
	snap := download.Snapshot{Queue: []fanbox.PostID{"1", "2", "3"}, Head: download.Status{Done: 1, Total: 4}}
	tests := []struct {
		id   fanbox.PostID
		want string
		kind download.StateKind
	}{
		{"1", "Downloading... (2 / 4)", download.StateActive},
		{"3", "Pending downloads (2 remaining)", download.StatePending},
		{"9", "Download", download.StateReady},
	}
	for _, tt := range tests {
		state := snap.StateOf(tt.id)
		if state.String() != tt.want || state.Kind != tt.kind {
			t.Fatalf("StateOf(%s) = %q (%s), want %q (%s)", tt.id, state, state.Kind, tt.want, tt.kind)
		}
	}

	snap.Head = download.Status{Done: 4, Total: 4}
	if got := snap.StateOf("1").String(); got != "Generating ZIP..." {
		t.Fatalf("unexpected finalizing label %q", got)
	}
	snap.Head = download.Status{Done: 0, Total: download.UnknownTotal}
	if got := snap.StateOf("1").String(); got != "Fetching post info..." {
		t.Fatalf("unexpected resolving label %q", got)
	}
}

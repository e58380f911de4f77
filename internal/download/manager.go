package download

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fanboxed/internal/archive"
	"fanboxed/internal/fanbox"
	"fanboxed/internal/logging"
)

// InfoFetcher resolves a post into its descriptor.
type InfoFetcher interface {
	RequestInfo(ctx context.Context, id fanbox.PostID) (*fanbox.PostDescriptor, error)
}

// ArchiveBuilder assembles a post's archive, reporting each completed fetch.
type ArchiveBuilder interface {
	BuildArchive(ctx context.Context, post *fanbox.PostDescriptor, sink archive.ProgressSink) (*archive.Archive, error)
}

// Result describes a finished task.
type Result struct {
	PostID        fanbox.PostID
	CorrelationID string
	Post          *fanbox.PostDescriptor
	FileName      string
	Path          string
	Size          int64
	Fetches       int
	Err           error
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Succeeded reports whether the archive was delivered.
func (r Result) Succeeded() bool { return r.Err == nil }

// ResultHook runs on the loop goroutine after every task, before the post
// leaves the queue. Hooks must return promptly.
type ResultHook func(ctx context.Context, result Result)

// Deps are the collaborators a Manager drives.
type Deps struct {
	Fetcher  InfoFetcher
	Builder  ArchiveBuilder
	Trigger  Trigger
	Reporter Reporter
	Guard    Guard
	Logger   *slog.Logger

	// FilenameTemplate renders the delivered archive name from the post fields.
	FilenameTemplate string
	// Compress deflates archive entries instead of storing them.
	Compress bool
}

// Manager is the download queue. The zero value is not usable; construct it
// with NewManager.
type Manager struct {
	fetcher  InfoFetcher
	builder  ArchiveBuilder
	trigger  Trigger
	reporter Reporter
	guard    Guard
	logger   *slog.Logger
	template string
	compress bool

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	queue   []fanbox.PostID
	status  Status
	running bool
	closed  bool
	idle    chan struct{}
	subs    []*Subscription
	hooks   []ResultHook

	// notifyMu serializes delivery passes. It is never held with mu.
	notifyMu sync.Mutex

	loopWG   sync.WaitGroup
	reportWG sync.WaitGroup
}

// NewManager constructs a Manager. Reporter and Guard are optional.
func NewManager(deps Deps) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	guard := deps.Guard
	if guard == nil {
		guard = noopGuard{}
	}
	logger := logging.NewComponentLogger(deps.Logger, "download")
	reporter := deps.Reporter
	if reporter == nil {
		reporter = LogReporter(deps.Logger)
	}
	idle := make(chan struct{})
	close(idle)
	return &Manager{
		fetcher:  deps.Fetcher,
		builder:  deps.Builder,
		trigger:  deps.Trigger,
		reporter: reporter,
		guard:    guard,
		logger:   logger,
		template: deps.FilenameTemplate,
		compress: deps.Compress,
		ctx:      ctx,
		cancel:   cancel,
		status:   resolvingStatus(),
		idle:     idle,
	}
}

// AddResultHook registers a hook that observes every finished task.
func (m *Manager) AddResultHook(hook ResultHook) {
	if hook == nil {
		return
	}
	m.mu.Lock()
	m.hooks = append(m.hooks, hook)
	m.mu.Unlock()
}

// Enqueue appends id unless it is already queued. The loop is started only
// when the queue goes from empty to non-empty. A global event is published
// on every call, including duplicates. It reports whether id was added.
func (m *Manager) Enqueue(id fanbox.PostID) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	added := !containsID(m.queue, id)
	if added {
		m.queue = append(m.queue, id)
		if len(m.queue) == 1 {
			m.startLocked()
		}
	}
	depth := len(m.queue)
	m.mu.Unlock()

	if added {
		m.logger.Info("post queued",
			logging.String(logging.FieldPostID, string(id)),
			logging.Int("queue_depth", depth),
			logging.String(logging.FieldEventType, "post_queued"),
		)
	}
	m.notify(Event{})
	return added
}

// Subscribe registers an observer. Observers are delivered events in
// registration order and pruned once IsAlive reports false.
func (m *Manager) Subscribe(observer Observer) *Subscription {
	sub := &Subscription{manager: m, observer: observer}
	m.mu.Lock()
	m.subs = append(m.subs, sub)
	m.mu.Unlock()
	return sub
}

// Snapshot returns the queue and head status as one consistent view.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	head := m.status
	if len(m.queue) == 0 {
		head = Status{}
	}
	return Snapshot{
		Queue:   append([]fanbox.PostID(nil), m.queue...),
		Head:    head,
		Running: m.running,
	}
}

// Status returns the head task's progress.
func (m *Manager) Status() Status {
	return m.Snapshot().Head
}

// Observers reports how many subscriptions are registered.
func (m *Manager) Observers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Wait blocks until the queue drains or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	idle := m.idle
	m.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels the active task, discards queued posts, and waits for the
// loop and any in-flight failure reports to finish.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()
	m.loopWG.Wait()
	m.reportWG.Wait()
}

func (m *Manager) startLocked() {
	m.running = true
	m.idle = make(chan struct{})
	m.guard.Install()
	m.loopWG.Add(1)
	go m.loop()
}

func (m *Manager) loop() {
	defer m.loopWG.Done()
	m.logger.Debug("download loop started")

	for {
		m.mu.Lock()
		head := m.queue[0]
		m.status = resolvingStatus()
		m.mu.Unlock()
		m.notify(Event{PostID: head})

		result := m.runTask(head)
		cancelled := m.ctx.Err() != nil
		if result.Err != nil && !cancelled {
			m.dispatchReport(head, result.Err)
		}

		if !cancelled {
			m.mu.Lock()
			hooks := append([]ResultHook(nil), m.hooks...)
			m.mu.Unlock()
			for _, hook := range hooks {
				m.runHook(hook, result)
			}
		}

		m.mu.Lock()
		m.queue = m.queue[1:]
		if cancelled {
			m.queue = nil
		}
		drained := len(m.queue) == 0
		if drained {
			m.running = false
			m.status = resolvingStatus()
			m.guard.Remove()
			close(m.idle)
		}
		m.mu.Unlock()

		m.notify(Event{})
		if drained {
			m.logger.Debug("download loop drained")
			return
		}
	}
}

func (m *Manager) dispatchReport(id fanbox.PostID, err error) {
	m.reportWG.Add(1)
	go func() {
		defer m.reportWG.Done()
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("failure reporter panicked", logging.Any("panic", r))
			}
		}()
		m.reporter.Report(context.WithoutCancel(m.ctx), id, err)
	}()
}

func (m *Manager) runHook(hook ResultHook, result Result) {
	defer func() {
		if r := recover(); r != nil {
			logging.WarnWithContext(m.logger, "result hook panicked", "hook_panic",
				logging.String(logging.FieldPostID, string(result.PostID)),
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldImpact, "task side effects such as history may be missing"),
			)
		}
	}()
	hook(context.WithoutCancel(m.ctx), result)
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// notify delivers ev to every live observer outside the manager lock so
// observers may read the manager. Passes never overlap, so an observer that
// reads Snapshot sees the state move forward only.
func (m *Manager) notify(ev Event) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	subs := append([]*Subscription(nil), m.subs...)
	m.mu.Unlock()

	var dead []*Subscription
	for _, sub := range subs {
		if sub.dead.Load() {
			continue
		}
		if !m.alive(sub) {
			sub.dead.Store(true)
			dead = append(dead, sub)
			continue
		}
		m.deliver(sub, ev)
	}
	if len(dead) > 0 {
		m.prune(dead)
	}
}

func (m *Manager) alive(sub *Subscription) (alive bool) {
	defer func() {
		if r := recover(); r != nil {
			alive = false
		}
	}()
	return sub.observer.IsAlive()
}

func (m *Manager) deliver(sub *Subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.WarnWithContext(m.logger, "observer panicked; event dropped", "observer_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldImpact, "one progress display may be stale"),
			)
		}
	}()
	sub.observer.OnProgress(ev)
}

func (m *Manager) prune(dead []*Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.subs[:0]
	for _, sub := range m.subs {
		if !containsSub(dead, sub) {
			kept = append(kept, sub)
		}
	}
	for i := len(kept); i < len(m.subs); i++ {
		m.subs[i] = nil
	}
	m.subs = kept
}

func containsID(ids []fanbox.PostID, id fanbox.PostID) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

func containsSub(subs []*Subscription, target *Subscription) bool {
	for _, sub := range subs {
		if sub == target {
			return true
		}
	}
	return false
}

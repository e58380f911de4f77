package download

import (
	"sync/atomic"

	"fanboxed/internal/fanbox"
)

// Event tells observers what changed. A zero PostID means a global change
// (a post was queued or finished) that every observer should re-read.
type Event struct {
	PostID fanbox.PostID
}

// Global reports whether the event concerns every post.
func (e Event) Global() bool { return e.PostID == "" }

// Concerns reports whether an observer tracking id should react.
func (e Event) Concerns(id fanbox.PostID) bool { return e.Global() || e.PostID == id }

// Observer receives progress events. IsAlive is evaluated before every
// delivery; once it returns false the observer is dropped and never called
// again. Events arrive one at a time, never concurrently. OnProgress must not
// block for long or call Enqueue: it runs on the goroutine that changed the
// state while other notifications wait.
type Observer interface {
	IsAlive() bool
	OnProgress(Event)
}

// ObserverFunc adapts a function into an always-alive Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) IsAlive() bool { return true }

func (f ObserverFunc) OnProgress(ev Event) { f(ev) }

// WithLiveness pairs a callback with a liveness predicate.
func WithLiveness(alive func() bool, fn func(Event)) Observer {
	return livenessObserver{alive: alive, fn: fn}
}

type livenessObserver struct {
	alive func() bool
	fn    func(Event)
}

func (o livenessObserver) IsAlive() bool { return o.alive == nil || o.alive() }

func (o livenessObserver) OnProgress(ev Event) { o.fn(ev) }

// Subscription is a registered observer.
type Subscription struct {
	manager  *Manager
	observer Observer
	dead     atomic.Bool
}

// Unsubscribe removes the observer. It is safe to call more than once and
// from within OnProgress.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.dead.Swap(true) {
		return
	}
	s.manager.prune([]*Subscription{s})
}

// Active reports whether the subscription still receives events.
func (s *Subscription) Active() bool {
	return s != nil && !s.dead.Load()
}

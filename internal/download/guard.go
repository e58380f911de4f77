package download

import (
	"sync"
)

// Guard is installed while the download loop is active and removed when
// it drains. Both calls happen under the manager's lock and must not block.
type Guard interface {
	Install()
	Remove()
}

// InterruptGuard intercepts the first shutdown request while downloads are
// in flight so in-progress work is not lost by accident. A second request
// within the same busy period goes through.
type InterruptGuard struct {
	mu     sync.Mutex
	active bool
	warned bool
	warn   func()
}

// NewInterruptGuard returns a guard that calls warn when it swallows an
// interrupt. warn may be nil.
func NewInterruptGuard(warn func()) *InterruptGuard {
	return &InterruptGuard{warn: warn}
}

func (g *InterruptGuard) Install() {
	g.mu.Lock()
	g.active = true
	g.warned = false
	g.mu.Unlock()
}

func (g *InterruptGuard) Remove() {
	g.mu.Lock()
	g.active = false
	g.warned = false
	g.mu.Unlock()
}

// Active reports whether the guard is installed.
func (g *InterruptGuard) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Intercept reports whether an interrupt should be swallowed. It returns
// true exactly once per busy period and fires the warning callback then.
func (g *InterruptGuard) Intercept() bool {
	g.mu.Lock()
	swallow := g.active && !g.warned
	if swallow {
		g.warned = true
	}
	warn := g.warn
	g.mu.Unlock()
	if swallow && warn != nil {
		warn()
	}
	return swallow
}

type noopGuard struct{}

func (noopGuard) Install() {}
func (noopGuard) Remove()  {}

// Guards installs several guards in order and removes them in reverse.
type Guards []Guard

func (g Guards) Install() {
	for _, guard := range g {
		if guard != nil {
			guard.Install()
		}
	}
}

func (g Guards) Remove() {
	for i := len(g) - 1; i >= 0; i-- {
		if g[i] != nil {
			g[i].Remove()
		}
	}
}

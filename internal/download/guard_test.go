package download

import "testing"

func TestInterruptGuardSwallowsOncePerBusyPeriod(t *testing.T) {
	warnings := 0
	g := NewInterruptGuard(func() { warnings++ })

	if g.Intercept() {
		t.Fatal("expected idle guard to let interrupts through")
	}

	g.Install()
	if !g.Active() {
		t.Fatal("expected guard active after install")
	}
	if !g.Intercept() {
		t.Fatal("expected first interrupt to be swallowed")
	}
	if g.Intercept() {
		t.Fatal("expected second interrupt to go through")
	}
	if warnings != 1 {
		t.Fatalf("expected one warning, got %d", warnings)
	}

	g.Remove()
	if g.Active() || g.Intercept() {
		t.Fatal("expected removed guard to be inert")
	}

	g.Install()
	if !g.Intercept() {
		t.Fatal("expected a fresh busy period to swallow again")
	}
	if warnings != 2 {
		t.Fatalf("expected two warnings, got %d", warnings)
	}
}

// Package daemonctl starts and stops a detached daemon process from the CLI.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"fanboxed/internal/daemon"
)

// Prober reports daemon health. *daemon.Client satisfies it.
type Prober interface {
	Health(ctx context.Context) (*daemon.HealthResponse, error)
}

// Signaler delivers a signal to a process.
type Signaler func(pid int, sig syscall.Signal) error

// ErrDaemonNotRunning means no daemon answered the health probe.
var ErrDaemonNotRunning = errors.New("daemon not running")

const pollInterval = 200 * time.Millisecond

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// StopResult captures daemon stop outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Launch starts a detached `daemon run` process of executablePath.
func Launch(executablePath, configPath string) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon", "run"}
	if cfg := strings.TrimSpace(configPath); cfg != "" {
		args = append(args, "--config", cfg)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// EnsureStarted launches the daemon unless it already answers, then waits up
// to timeout for it to become healthy.
func EnsureStarted(ctx context.Context, probe Prober, launch func() error, timeout time.Duration) (StartResult, error) {
	if health, err := probe.Health(ctx); err == nil {
		return StartResult{State: StartStateAlreadyRunning, PID: health.PID}, nil
	} else if !errors.Is(err, daemon.ErrUnavailable) {
		return StartResult{}, err
	}

	if err := launch(); err != nil {
		return StartResult{}, err
	}
	health, err := waitForHealth(ctx, probe, timeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, PID: health.PID}, nil
}

func waitForHealth(ctx context.Context, probe Prober, timeout time.Duration) (*daemon.HealthResponse, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		health, err := probe.Health(ctx)
		if err == nil {
			return health, nil
		}
		lastErr = err
		if err := sleep(ctx, pollInterval); err != nil {
			return nil, err
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// Stop asks the daemon to exit with SIGTERM. A daemon with downloads in
// flight ignores the first interrupt, so the signal is repeated once. If the
// daemon is still answering after grace it is killed.
func Stop(ctx context.Context, probe Prober, signal Signaler, grace time.Duration) (StopResult, error) {
	health, err := probe.Health(ctx)
	if errors.Is(err, daemon.ErrUnavailable) {
		return StopResult{}, ErrDaemonNotRunning
	}
	if err != nil {
		return StopResult{}, err
	}
	pid := health.PID
	if pid <= 0 {
		return StopResult{}, fmt.Errorf("daemon did not report its pid")
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	result := StopResult{PID: pid}
	for range 2 {
		if err := signal(pid, syscall.SIGTERM); err != nil {
			return result, fmt.Errorf("signal daemon %d: %w", pid, err)
		}
		stopped, err := waitForShutdown(ctx, probe, grace/2)
		if err != nil {
			return result, err
		}
		if stopped {
			return result, nil
		}
	}

	if err := signal(pid, syscall.SIGKILL); err != nil {
		return result, fmt.Errorf("kill daemon %d: %w", pid, err)
	}
	result.ForcedKill = true
	return result, nil
}

func waitForShutdown(ctx context.Context, probe Prober, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		if _, err := probe.Health(ctx); errors.Is(err, daemon.ErrUnavailable) {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		if err := sleep(ctx, pollInterval); err != nil {
			return false, err
		}
	}
}

// SignalProcess is the Signaler used outside tests.
func SignalProcess(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(sig)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

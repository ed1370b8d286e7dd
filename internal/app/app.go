// Package app is the process supervisor: it runs the gateway and consumer
// tasks, handles interrupts, and sequences graceful shutdown.
//
// The first SIGINT runs each registered shutdown callback exactly once —
// typically closing the gateway socket and cancelling open orders — which
// lets tasks drain and exit. A second SIGINT, or SIGTERM, cancels the root
// context and forces every task down.
package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// RunFunc is a long-running task driven by the supervisor. It should return
// when ctx is cancelled; a non-nil error brings the whole app down.
type RunFunc func(ctx context.Context) error

// App owns the root context and the registered tasks.
type App struct {
	name   string
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	runCbs      []RunFunc
	shutdownCbs []func()
	shutdownOne sync.Once
	interrupted bool

	wg   sync.WaitGroup
	errs chan error
}

// New creates a supervisor.
func New(name string, logger *slog.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		name:   name,
		logger: logger.With("component", "app", "name", name),
		ctx:    ctx,
		cancel: cancel,
		errs:   make(chan error, 1),
	}
}

// AddRunCallback registers a task to run when the app starts, with an
// optional shutdown callback.
func (a *App) AddRunCallback(run RunFunc, shutdown func()) {
	a.runCbs = append(a.runCbs, run)
	if shutdown != nil {
		a.AddShutdownCallback(shutdown)
	}
}

// AddShutdownCallback registers a callback for the first interrupt. Each
// callback runs exactly once.
func (a *App) AddShutdownCallback(cb func()) {
	a.shutdownCbs = append(a.shutdownCbs, cb)
}

// Run starts every registered task and blocks until they have all exited.
// Returns the first task error, if any.
func (a *App) Run() error {
	a.logger.Info("starting", "tasks", len(a.runCbs))

	for _, run := range a.runCbs {
		a.wg.Add(1)
		go func(run RunFunc) {
			defer a.wg.Done()
			if err := run(a.ctx); err != nil && a.ctx.Err() == nil {
				a.logger.Error("task failed", "error", err)
				select {
				case a.errs <- err:
				default:
				}
				// One dead task takes the app down; partial pipelines
				// produce silently stale data.
				a.Shutdown()
				a.cancel()
			}
		}(run)
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGTERM {
				a.logger.Info("received SIGTERM, stopping")
				a.Shutdown()
				a.cancel()
				continue
			}
			a.onInterrupt()
		case <-done:
			a.cancel()
			select {
			case err := <-a.errs:
				return err
			default:
				return nil
			}
		}
	}
}

// Shutdown runs the registered shutdown callbacks exactly once.
func (a *App) Shutdown() {
	a.shutdownOne.Do(func() {
		a.logger.Info("running shutdown callbacks", "count", len(a.shutdownCbs))
		for _, cb := range a.shutdownCbs {
			cb()
		}
	})
}

// onInterrupt implements the two-stage SIGINT policy. Only called from Run's
// goroutine, so the interrupted flag needs no lock.
func (a *App) onInterrupt() {
	if a.interrupted {
		a.logger.Warn("second interrupt, cancelling all tasks")
		a.cancel()
		return
	}
	a.interrupted = true
	a.logger.Info("interrupt received, shutting down gracefully (interrupt again to force)")
	a.Shutdown()
}

// Package daemon binds the queue store, scheduler, and feed scanner into a
// single lifecycle with flock-based locking to prevent multiple concurrent
// instances from claiming the same jobs.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"podscrub/internal/config"
	"podscrub/internal/logging"
	"podscrub/internal/pipeline"
	"podscrub/internal/queue"
	"podscrub/internal/scanner"
	"podscrub/internal/scheduler"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	scheduler *scheduler.Scheduler
	scanner   *scanner.Scanner

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with production wiring.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	orchestrator := pipeline.New(cfg, store, logger)
	sched := scheduler.New(cfg, store, orchestrator, logger)
	return NewWithServices(cfg, store, sched, scanner.New(cfg, store, logger), logger)
}

// NewWithServices constructs a daemon with explicit services (used in tests).
func NewWithServices(cfg *config.Config, store *queue.Store, sched *scheduler.Scheduler, scan *scanner.Scanner, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || sched == nil || scan == nil {
		return nil, errors.New("daemon requires config, store, scheduler, and scanner")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "podscrubd.lock")
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		scheduler: sched,
		scanner:   scan,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, recovers jobs orphaned by a previous crash,
// and launches the scheduler and scanner.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another podscrub daemon instance is already running")
	}

	// Jobs left running by a crashed instance can never complete;
	// reset them so this instance's poll loop can reclaim the work.
	if reset, err := d.store.ResetStuckRunning(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("reset stuck jobs: %w", err)
	} else if reset > 0 {
		d.logger.Info("reset stuck running jobs from previous instance", logging.Int64("count", reset))
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.scheduler.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := d.scanner.Start(runCtx); err != nil {
		d.scheduler.Stop()
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start scanner: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("podscrub daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts the scanner, drains the scheduler, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.scanner.Stop()
	d.scheduler.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("podscrub daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Scheduler exposes the scheduler for CLI operations.
func (d *Daemon) Scheduler() *scheduler.Scheduler {
	return d.scheduler
}

// Running reports whether the daemon's services are active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"podscrub/internal/config"
	"podscrub/internal/logging"
	"podscrub/internal/pipeline"
	"podscrub/internal/queue"
	"podscrub/internal/services"
)

// Processor runs the stage sequence for one claimed job.
type Processor interface {
	Process(ctx context.Context, job *queue.Job, progress pipeline.ProgressFunc) error
}

// Scheduler owns the bounded worker pool: it polls the queue, claims eligible
// jobs, and dispatches each claimed job to the processor on its own
// goroutine. At most Concurrency jobs run at once.
type Scheduler struct {
	cfg       *config.Config
	store     *queue.Store
	processor Processor
	logger    *slog.Logger

	slots         *semaphore.Weighted
	pollInterval  time.Duration
	drainTimeout  time.Duration
	retryInterval time.Duration

	inFlight atomic.Int64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New constructs a scheduler over the store and processor.
func New(cfg *config.Config, store *queue.Store, processor Processor, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	concurrency := cfg.Scheduler.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		cfg:           cfg,
		store:         store,
		processor:     processor,
		logger:        logging.NewComponentLogger(logger, "scheduler"),
		slots:         semaphore.NewWeighted(int64(concurrency)),
		pollInterval:  time.Duration(cfg.Scheduler.PollInterval) * time.Second,
		drainTimeout:  time.Duration(cfg.Scheduler.DrainTimeout) * time.Second,
		retryInterval: time.Duration(cfg.Scheduler.RetryInterval) * time.Second,
	}
}

// Start begins the poll loop. It returns immediately; processing happens on
// background goroutines until Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(runCtx)
	return nil
}

// Stop halts the poll loop and drains in-flight jobs best-effort: it waits,
// polling once a second, until the in-flight counter reaches zero or the
// drain timeout elapses. Jobs still running at the deadline are abandoned to
// finish (or fail) on their own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	<-done

	deadline := time.Now().Add(s.drainTimeout)
	for s.inFlight.Load() > 0 {
		if time.Now().After(deadline) {
			s.logger.Warn("drain timeout elapsed with jobs still in flight",
				logging.Int64("in_flight", s.inFlight.Load()))
			return
		}
		time.Sleep(time.Second)
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var retryC <-chan time.Time
	if s.retryInterval > 0 {
		retryTicker := time.NewTicker(s.retryInterval)
		defer retryTicker.Stop()
		retryC = retryTicker.C
	}

	s.dispatch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatch(ctx)
		case <-retryC:
			if count, err := s.RetryAllFailed(ctx); err != nil {
				s.logger.Error("retry sweep failed", logging.Error(err))
			} else if count > 0 {
				s.logger.Info("retry sweep reset failed jobs", logging.Int64("count", count))
			}
		}
	}
}

// dispatch claims and launches jobs until the pool is full or the queue has
// nothing eligible. A worker slot is reserved and the in-flight counter is
// incremented before the job goroutine is spawned, so Stop never observes a
// claimed job it cannot see.
func (s *Scheduler) dispatch(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if !s.slots.TryAcquire(1) {
			return
		}

		job, err := s.store.NextEligible(ctx)
		if err != nil {
			s.slots.Release(1)
			s.logger.Error("failed to fetch next job", logging.Error(err))
			return
		}
		if job == nil {
			s.slots.Release(1)
			return
		}

		if err := s.store.Claim(ctx, job.ID); err != nil {
			s.slots.Release(1)
			if errors.Is(err, queue.ErrClaimConflict) {
				continue
			}
			s.logger.Error("failed to claim job",
				logging.Int64(logging.FieldJobID, job.ID),
				logging.Error(err))
			return
		}

		s.inFlight.Add(1)
		go s.runJob(context.WithoutCancel(ctx), job)
	}
}

func (s *Scheduler) runJob(ctx context.Context, job *queue.Job) {
	defer func() {
		s.inFlight.Add(-1)
		s.slots.Release(1)
	}()

	runID := uuid.NewString()
	ctx = services.WithRequestID(ctx, runID)
	logger := s.logger.With(logging.Args(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldEpisode, job.EpisodeGUID),
		logging.String(logging.FieldCorrelationID, runID))...)
	logger.Info("job started", logging.String("reason", string(job.Reason)))

	progress := func(percent int, label string) {
		if err := s.store.UpdateProgress(ctx, job.ID, float64(percent), label); err != nil {
			logger.Warn("progress update failed", logging.Error(err))
		}
	}

	start := time.Now()
	if err := s.processor.Process(ctx, job, progress); err != nil {
		if markErr := s.store.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			logger.Error("failed to record job failure", logging.Error(markErr))
		}
		logger.Error("job failed",
			logging.Duration("elapsed", time.Since(start)),
			logging.Error(err))
		return
	}
	if err := s.store.MarkCompleted(ctx, job.ID); err != nil {
		logger.Error("failed to record job completion", logging.Error(err))
		return
	}
	logger.Info("job completed", logging.Duration("elapsed", time.Since(start)))
}

// Enqueue adds a job to the queue. Manual enqueues are refused with
// queue.ErrDuplicateActiveJob while the episode already has an active job.
func (s *Scheduler) Enqueue(ctx context.Context, req queue.NewJob) (int64, error) {
	id, err := s.store.Enqueue(ctx, req)
	if err != nil {
		return 0, err
	}
	s.logger.Info("job enqueued",
		logging.Int64(logging.FieldJobID, id),
		logging.String(logging.FieldEpisode, req.EpisodeGUID),
		logging.String("reason", string(req.Reason)))
	return id, nil
}

// ProcessEpisode enqueues a job for the episode and runs it through the
// processor inline, blocking until it reaches a terminal state. The job
// occupies a worker slot like any polled job, so a synchronous run still
// counts against the concurrency bound. The returned job carries the
// terminal status and any recorded error.
func (s *Scheduler) ProcessEpisode(ctx context.Context, req queue.NewJob) (*queue.Job, error) {
	id, err := s.store.Enqueue(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire worker slot: %w", err)
	}
	if err := s.store.Claim(ctx, id); err != nil {
		s.slots.Release(1)
		return nil, fmt.Errorf("claim job %d: %w", id, err)
	}
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		s.slots.Release(1)
		return nil, err
	}

	s.inFlight.Add(1)
	s.runJob(ctx, job)

	return s.store.GetByID(ctx, id)
}

// Stats reports queue counts per lifecycle state.
func (s *Scheduler) Stats(ctx context.Context) (queue.Stats, error) {
	return s.store.Stats(ctx)
}

// InFlight reports how many jobs currently occupy worker slots.
func (s *Scheduler) InFlight() int64 {
	return s.inFlight.Load()
}

// RetryJob resets one failed job to pending. Attempts are preserved; the
// recorded error is cleared when the job next completes.
func (s *Scheduler) RetryJob(ctx context.Context, id int64) error {
	if err := s.store.ResetToPending(ctx, id); err != nil {
		return fmt.Errorf("retry job %d: %w", id, err)
	}
	s.logger.Info("job reset for retry", logging.Int64(logging.FieldJobID, id))
	return nil
}

// RetryAllFailed resets every failed job to pending and reports how many
// were reset.
func (s *Scheduler) RetryAllFailed(ctx context.Context) (int64, error) {
	return s.store.RetryAllFailed(ctx)
}

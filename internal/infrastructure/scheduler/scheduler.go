package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of periodic work
type Task func(ctx context.Context) error

// IntervalScheduler runs a single named task on a fixed interval. The task
// runs once immediately on start, then on every tick until Stop. Runs never
// overlap: a tick that fires while the task is still executing waits for
// the next one.
type IntervalScheduler struct {
	name     string
	interval time.Duration
	task     Task
	logger   *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewIntervalScheduler creates a scheduler for one periodic task
func NewIntervalScheduler(name string, interval time.Duration, task Task, logger *zap.Logger) *IntervalScheduler {
	return &IntervalScheduler{
		name:     name,
		interval: interval,
		task:     task,
		logger:   logger,
	}
}

// Start launches the scheduling loop. Calling Start on a running scheduler
// is a no-op.
func (s *IntervalScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Scheduler started",
		zap.String("task", s.name),
		zap.Duration("interval", s.interval),
	)
	return nil
}

// Stop cancels the loop and waits for an in-flight run to finish
func (s *IntervalScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	s.logger.Info("Scheduler stopped", zap.String("task", s.name))
}

// IsRunning reports whether the loop is active
func (s *IntervalScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *IntervalScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *IntervalScheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := s.task(ctx); err != nil {
		s.logger.Error("Scheduled task failed",
			zap.String("task", s.name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("Scheduled task completed",
		zap.String("task", s.name),
		zap.Duration("duration", time.Since(start)),
	)
}

// Package worker runs timesheet files through the service outside of the
// request path: bounded batches and a polling drop folder.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Worker defines the interface for background workers
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// WorkerManager manages lifecycle of multiple workers. Workers start in
// registration order and stop in reverse.
type WorkerManager struct {
	workers []Worker
	logger  *zap.Logger

	mu      sync.Mutex
	started []Worker
}

// NewWorkerManager creates a new worker manager
func NewWorkerManager(logger *zap.Logger) *WorkerManager {
	return &WorkerManager{logger: logger}
}

// Register adds a worker to be managed
func (m *WorkerManager) Register(w Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workers = append(m.workers, w)
	m.logger.Info("Worker registered",
		zap.String("worker_name", w.Name()),
		zap.Int("total_workers", len(m.workers)))
}

// StartAll starts every registered worker. If one fails, the workers
// already started are stopped again and the error is returned.
func (m *WorkerManager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started != nil {
		return fmt.Errorf("workers already running")
	}

	started := make([]Worker, 0, len(m.workers))
	for _, w := range m.workers {
		if err := w.Start(ctx); err != nil {
			m.logger.Error("Failed to start worker", zap.String("worker_name", w.Name()), zap.Error(err))
			_ = stopReverse(started, m.logger)
			return fmt.Errorf("start %s: %w", w.Name(), err)
		}
		started = append(started, w)
	}
	m.started = started

	m.logger.Info("All workers started", zap.Int("count", len(started)))
	return nil
}

// StopAll stops the running workers and joins their errors
func (m *WorkerManager) StopAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started == nil {
		return nil
	}
	err := stopReverse(m.started, m.logger)
	m.started = nil
	return err
}

// IsRunning returns whether workers are running
func (m *WorkerManager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started != nil
}

// Count returns the number of registered workers
func (m *WorkerManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers)
}

func stopReverse(workers []Worker, logger *zap.Logger) error {
	var errs []error
	for i := len(workers) - 1; i >= 0; i-- {
		if err := workers[i].Stop(); err != nil {
			logger.Error("Failed to stop worker", zap.String("worker_name", workers[i].Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("stop %s: %w", workers[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}

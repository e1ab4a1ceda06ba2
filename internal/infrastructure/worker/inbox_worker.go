package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sub-directories of the inbox that handled files are moved into
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// InboxConfig holds configuration for the inbox worker
type InboxConfig struct {
	Dir          string
	PollInterval time.Duration
	Batch        BatchConfig
}

// InboxWorker polls a drop folder for scanned timesheets. Each poll runs
// the files found through a BatchProcessor and moves them to processed/ or
// failed/ so a file is only picked up once.
type InboxWorker struct {
	config InboxConfig
	batch  *BatchProcessor
	logger *zap.Logger

	// Runtime state
	mu             sync.RWMutex
	cancel         context.CancelFunc
	done           chan struct{}
	isRunning      bool
	processedCount int
	failedCount    int
	lastPoll       time.Time
	lastError      error
}

// NewInboxWorker creates a new inbox worker
func NewInboxWorker(config InboxConfig, processor ImageProcessor, logger *zap.Logger) *InboxWorker {
	if config.PollInterval <= 0 {
		config.PollInterval = 30 * time.Second
	}
	return &InboxWorker{
		config: config,
		batch:  NewBatchProcessor(config.Batch, processor, logger),
		logger: logger,
	}
}

// Start creates the inbox folders and begins the polling loop
func (w *InboxWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("inbox worker already running")
	}
	for _, dir := range []string{w.config.Dir, filepath.Join(w.config.Dir, ProcessedDir), filepath.Join(w.config.Dir, FailedDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create inbox directory: %w", err)
		}
	}

	var loopCtx context.Context
	loopCtx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("InboxWorker started",
		zap.String("dir", w.config.Dir),
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("workers", w.batch.config.Workers))

	go w.pollLoop(loopCtx)
	return nil
}

// Stop cancels the polling loop and waits for the current poll to finish
func (w *InboxWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.mu.RLock()
	defer w.mu.RUnlock()
	w.logger.Info("InboxWorker stopped",
		zap.Int("processed_count", w.processedCount),
		zap.Int("failed_count", w.failedCount))
	return nil
}

// Name returns the worker name for identification
func (w *InboxWorker) Name() string {
	return "InboxWorker"
}

// Stats returns the number of processed and failed files so far
func (w *InboxWorker) Stats() (processed, failed int) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.processedCount, w.failedCount
}

func (w *InboxWorker) pollLoop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll processes whatever is in the inbox right now
func (w *InboxWorker) poll(ctx context.Context) {
	paths, err := ListImages(w.config.Dir)
	w.mu.Lock()
	w.lastPoll = time.Now()
	w.lastError = err
	w.mu.Unlock()
	if err != nil {
		w.logger.Error("Failed to scan inbox", zap.Error(err))
		return
	}
	if len(paths) == 0 {
		return
	}

	results := w.batch.Run(ctx, paths)

	var processed, failed int
	for _, r := range results {
		// Skipped files stay in the inbox for the next poll
		if r.Status == "skipped" {
			continue
		}
		target := ProcessedDir
		if r.Failed() {
			target = FailedDir
			failed++
		} else {
			processed++
		}
		dest := filepath.Join(w.config.Dir, target, filepath.Base(r.Path))
		if err := os.Rename(r.Path, dest); err != nil {
			w.logger.Error("Failed to move inbox file", zap.String("path", r.Path), zap.String("dest", dest), zap.Error(err))
		}
	}

	w.mu.Lock()
	w.processedCount += processed
	w.failedCount += failed
	w.mu.Unlock()
}

package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/timesheet-ocr/internal/application/service"
	"github.com/garyjia/timesheet-ocr/pkg/utils"
)

// ImageProcessor is the part of the timesheet service a batch needs
type ImageProcessor interface {
	ProcessImage(ctx context.Context, filename string, data []byte, mimeType string) (*service.Outcome, error)
}

// BatchConfig holds configuration for batch processing
type BatchConfig struct {
	Workers        int
	ProcessTimeout time.Duration
	MaxFileBytes   int64
}

// DefaultBatchConfig returns default configuration
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Workers:        4,
		ProcessTimeout: 120 * time.Second,
		MaxFileBytes:   20 << 20,
	}
}

// FileResult is the outcome of one file of a batch
type FileResult struct {
	Path      string `json:"path"`
	RunID     string `json:"run_id,omitempty"`
	Status    string `json:"status"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Failed reports whether the file produced no stored entries
func (r FileResult) Failed() bool {
	return r.Error != ""
}

// BatchProcessor runs a set of timesheet images through the service with a
// fixed number of goroutines. Each file is an independent invocation.
type BatchProcessor struct {
	config    BatchConfig
	processor ImageProcessor
	logger    *zap.Logger
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(config BatchConfig, processor ImageProcessor, logger *zap.Logger) *BatchProcessor {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &BatchProcessor{
		config:    config,
		processor: processor,
		logger:    logger,
	}
}

// Run processes every path and returns results in input order. Cancelling
// ctx stops files that have not started yet.
func (b *BatchProcessor) Run(ctx context.Context, paths []string) []FileResult {
	results := make([]FileResult, len(paths))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < b.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					results[idx] = skipped(paths[idx], ctx.Err())
					continue
				}
				results[idx] = b.processFile(ctx, paths[idx])
			}
		}()
	}

	for i := range paths {
		if ctx.Err() != nil {
			results[i] = skipped(paths[i], ctx.Err())
			continue
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			results[i] = skipped(paths[i], ctx.Err())
		}
	}
	close(jobs)
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	b.logger.Info("Batch finished",
		zap.Int("files", len(paths)),
		zap.Int("failed", failed),
		zap.Int("workers", b.config.Workers))
	return results
}

func skipped(path string, err error) FileResult {
	return FileResult{Path: path, Status: "skipped", Error: err.Error()}
}

func (b *BatchProcessor) processFile(ctx context.Context, path string) FileResult {
	result := FileResult{Path: path}
	name := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		result.Status = "failed"
		result.Error = fmt.Sprintf("failed to read file: %v", err)
		return result
	}
	mimeType := utils.MimeTypeFromExtension(name)
	if err := utils.ValidateUpload(name, len(data), mimeType, b.config.MaxFileBytes); err != nil {
		result.Status = "failed"
		result.Error = err.Error()
		return result
	}

	processCtx := ctx
	if b.config.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		processCtx, cancel = context.WithTimeout(ctx, b.config.ProcessTimeout)
		defer cancel()
	}

	outcome, err := b.processor.ProcessImage(processCtx, name, data, mimeType)
	if outcome != nil && outcome.Run != nil {
		result.RunID = outcome.Run.ID
		result.Status = outcome.Run.Status
		result.ErrorKind = outcome.Run.ErrorKind
	}
	if err != nil {
		if result.Status == "" {
			result.Status = "failed"
		}
		result.Error = err.Error()
		b.logger.Warn("Timesheet file failed", zap.String("path", path), zap.Error(err))
	}
	return result
}

// ListImages returns the supported timesheet files directly under dir, sorted by name
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if utils.MimeTypeFromExtension(e.Name()) == "" {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/timesheet-ocr/internal/application/port"
	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
	"github.com/garyjia/timesheet-ocr/internal/pipeline"
	"github.com/garyjia/timesheet-ocr/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Error kinds recorded on failed runs that do not come from the pipeline
const (
	KindExtractionRequest = "EXTRACTION_REQUEST"
	KindConversion        = "CONVERSION"
	KindReference         = "REFERENCE_DATA"
	KindPersistence       = "PERSISTENCE"
)

// ErrInvalidInput is returned for requests that cannot be processed at all
var ErrInvalidInput = errors.New("invalid input")

// Outcome is what one invocation produced
type Outcome struct {
	Run    *entity.ProcessingRun `json:"run"`
	Result *pipeline.Result      `json:"result,omitempty"`
}

// TimesheetService runs uploads through extraction, normalization and persistence
type TimesheetService interface {
	// ProcessImage stores the upload, extracts it and normalizes the reply
	ProcessImage(ctx context.Context, filename string, data []byte, mimeType string) (*Outcome, error)
	// ProcessExtraction normalizes an already extracted document. With dryRun
	// nothing is persisted or audited.
	ProcessExtraction(ctx context.Context, sourceImageRef string, content []byte, dryRun bool) (*Outcome, error)
	GetRun(ctx context.Context, id string) (*entity.ProcessingRun, error)
	ListRuns(ctx context.Context, limit int) ([]*entity.ProcessingRun, error)
	ListEntries(ctx context.Context, resourceKey string, weekStart time.Time) ([]entity.CanonicalEntry, error)
}

// Option customizes the service
type Option func(*timesheetServiceImpl)

// WithClock overrides the wall clock used for persistence timestamps
func WithClock(now func() time.Time) Option {
	return func(s *timesheetServiceImpl) { s.now = now }
}

// WithIDGenerator overrides run and image id generation
func WithIDGenerator(newID func() string) Option {
	return func(s *timesheetServiceImpl) { s.newID = newID }
}

type timesheetServiceImpl struct {
	extractor  port.Extractor
	converter  port.DocumentConverter
	images     port.ImageStore
	references port.ReferenceProvider
	entries    port.EntryRepository
	runs       port.RunRepository
	audit      port.AuditSink
	txManager  port.TransactionManager
	normalizer *pipeline.Normalizer
	logger     Logger
	now        func() time.Time
	newID      func() string
}

// Dependencies groups the collaborators of the service
type Dependencies struct {
	Extractor  port.Extractor
	Converter  port.DocumentConverter
	Images     port.ImageStore
	References port.ReferenceProvider
	Entries    port.EntryRepository
	Runs       port.RunRepository
	Audit      port.AuditSink
	TxManager  port.TransactionManager
	Normalizer *pipeline.Normalizer
}

// NewTimesheetService creates a new TimesheetService. Audit defaults to Runs.
func NewTimesheetService(deps Dependencies, logger Logger, opts ...Option) TimesheetService {
	s := &timesheetServiceImpl{
		extractor:  deps.Extractor,
		converter:  deps.Converter,
		images:     deps.Images,
		references: deps.References,
		entries:    deps.Entries,
		runs:       deps.Runs,
		audit:      deps.Audit,
		txManager:  deps.TxManager,
		normalizer: deps.Normalizer,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	if s.audit == nil && deps.Runs != nil {
		s.audit = deps.Runs
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessImage stores the upload, converts it if needed, extracts and normalizes it
func (s *timesheetServiceImpl) ProcessImage(ctx context.Context, filename string, data []byte, mimeType string) (*Outcome, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrInvalidInput)
	}
	if s.extractor == nil {
		return nil, fmt.Errorf("%w: no extractor configured", ErrInvalidInput)
	}

	run := s.newRun("")
	run.SourceImageRef = imageKey(run.ID, filename)
	s.logger.Info("Processing timesheet image", "run_id", run.ID, "source_image_ref", run.SourceImageRef, "size", len(data))

	if s.images != nil {
		if err := s.images.Save(ctx, run.SourceImageRef, data); err != nil {
			return s.fail(ctx, run, KindPersistence, fmt.Errorf("failed to store image: %w", err))
		}
	}

	image, imageType := data, mimeType
	if s.converter != nil {
		converted, convertedType, err := s.converter.ToImage(ctx, data, mimeType)
		if err != nil {
			return s.fail(ctx, run, KindConversion, fmt.Errorf("failed to convert upload: %w", err))
		}
		image, imageType = converted, convertedType
	}

	resp, err := s.extractor.Extract(ctx, image, imageType)
	if err != nil {
		return s.fail(ctx, run, KindExtractionRequest, fmt.Errorf("extraction request failed: %w", err))
	}
	run.ModelID = resp.ModelID

	return s.normalize(ctx, run, []byte(resp.Content), false)
}

// ProcessExtraction normalizes an extraction document produced elsewhere
func (s *timesheetServiceImpl) ProcessExtraction(ctx context.Context, sourceImageRef string, content []byte, dryRun bool) (*Outcome, error) {
	if strings.TrimSpace(sourceImageRef) == "" {
		return nil, fmt.Errorf("%w: source image reference is required", ErrInvalidInput)
	}

	run := s.newRun(sourceImageRef)
	s.logger.Info("Processing extraction document", "run_id", run.ID, "source_image_ref", sourceImageRef, "dry_run", dryRun)
	return s.normalize(ctx, run, content, dryRun)
}

func (s *timesheetServiceImpl) normalize(ctx context.Context, run *entity.ProcessingRun, content []byte, dryRun bool) (*Outcome, error) {
	snapshot, err := s.references.Load(ctx)
	if err != nil {
		return s.failWith(ctx, run, KindReference, fmt.Errorf("failed to load reference data: %w", err), dryRun)
	}

	inv := pipeline.Invocation{SourceImageRef: run.SourceImageRef}
	if s.entries != nil {
		inv.History = &repositoryHistory{ctx: ctx, repo: s.entries, logger: s.logger}
	}

	result, err := s.normalizer.Normalize(content, snapshot, inv)
	if err != nil {
		kind := pipeline.KindOf(err)
		if kind == "" {
			kind = pipeline.KindExtractionParse
		}
		return s.failWith(ctx, run, kind, err, dryRun)
	}

	run.ResourceKey = result.Identity.StorageKey
	run.WeekStart = result.Week.StartKey()
	run.EntryCount = len(result.Entries)
	run.Corrections = result.Corrections
	run.Warnings = result.Warnings
	run.Status = entity.RunStatusProcessed
	if result.NeedsReview {
		run.Status = entity.RunStatusNeedsReview
	}

	if dryRun {
		return &Outcome{Run: run, Result: result}, nil
	}

	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		return s.entries.UpsertEntries(ctx, result.Entries, s.now().UTC())
	})
	if err != nil {
		return s.fail(ctx, run, KindPersistence, fmt.Errorf("failed to persist entries: %w", err))
	}

	s.record(ctx, run)
	s.logger.Info("Timesheet processed",
		"run_id", run.ID,
		"resource_key", run.ResourceKey,
		"week_start", run.WeekStart,
		"entries", run.EntryCount,
		"corrections", len(run.Corrections),
		"warnings", len(run.Warnings),
		"status", run.Status)

	return &Outcome{Run: run, Result: result}, nil
}

// GetRun returns the audit record of one invocation
func (s *timesheetServiceImpl) GetRun(ctx context.Context, id string) (*entity.ProcessingRun, error) {
	if s.runs == nil {
		return nil, fmt.Errorf("run history is not available")
	}
	return s.runs.GetByID(ctx, id)
}

// ListRuns returns the newest audit records first
func (s *timesheetServiceImpl) ListRuns(ctx context.Context, limit int) ([]*entity.ProcessingRun, error) {
	if s.runs == nil {
		return nil, fmt.Errorf("run history is not available")
	}
	return s.runs.ListRecent(ctx, limit)
}

// ListEntries returns the stored entries of a resource for one week
func (s *timesheetServiceImpl) ListEntries(ctx context.Context, resourceKey string, weekStart time.Time) ([]entity.CanonicalEntry, error) {
	if weekStart.Weekday() != time.Monday {
		return nil, fmt.Errorf("%w: week start must be a Monday", ErrInvalidInput)
	}
	return s.entries.ListByResourceWeek(ctx, resourceKey, weekStart)
}

func (s *timesheetServiceImpl) newRun(sourceImageRef string) *entity.ProcessingRun {
	return &entity.ProcessingRun{
		ID:             s.newID(),
		SourceImageRef: sourceImageRef,
		CreatedAt:      s.now().UTC(),
	}
}

func (s *timesheetServiceImpl) fail(ctx context.Context, run *entity.ProcessingRun, kind string, err error) (*Outcome, error) {
	return s.failWith(ctx, run, kind, err, false)
}

// failWith marks the run failed and records it. Nothing has been persisted at this point.
func (s *timesheetServiceImpl) failWith(ctx context.Context, run *entity.ProcessingRun, kind string, err error, dryRun bool) (*Outcome, error) {
	run.Status = entity.RunStatusFailed
	run.ErrorKind = kind
	run.ErrorMessage = err.Error()
	run.EntryCount = 0

	s.logger.Error("Timesheet processing failed", "run_id", run.ID, "error_kind", kind, "error", err)
	if !dryRun {
		s.record(ctx, run)
	}
	return &Outcome{Run: run}, err
}

func (s *timesheetServiceImpl) record(ctx context.Context, run *entity.ProcessingRun) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, run); err != nil {
		s.logger.Error("Failed to record processing run", "run_id", run.ID, "error", err)
	}
}

// repositoryHistory adapts EntryRepository to the pipeline's history lookup
type repositoryHistory struct {
	ctx    context.Context
	repo   port.EntryRepository
	logger Logger
}

func (h *repositoryHistory) KnownProjects(resourceKey string, weekStart time.Time) []entity.KnownProject {
	projects, err := h.repo.KnownProjects(h.ctx, resourceKey, weekStart)
	if err != nil {
		h.logger.Error("Failed to load known projects", "resource_key", resourceKey, "error", err)
		return nil
	}
	return projects
}

// imageKey builds the storage key of an upload: timesheets/<id>/<safe name>
func imageKey(id, filename string) string {
	return fmt.Sprintf("timesheets/%s/%s", id, utils.SanitizeFilename(filename))
}

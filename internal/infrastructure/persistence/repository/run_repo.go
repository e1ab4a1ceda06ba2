package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/timesheet-ocr/internal/application/port"
	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
)

const defaultRecentRuns = 50

// RunRepository implements port.RunRepository. Runs are append-only.
type RunRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRunRepository creates a new processing run repository
func NewRunRepository(db *sql.DB, logger *zap.Logger) port.RunRepository {
	return &RunRepository{
		db:     db,
		logger: logger,
	}
}

// Record inserts the audit record of one invocation
func (r *RunRepository) Record(ctx context.Context, run *entity.ProcessingRun) error {
	query := `
		INSERT INTO processing_runs (
			id, source_image_ref, resource_key, week_start, status,
			error_kind, error_message, entry_count,
			corrections, warnings, model_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	corrections, err := marshalList(run.Corrections)
	if err != nil {
		return fmt.Errorf("failed to marshal corrections: %w", err)
	}
	warnings, err := marshalList(run.Warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}

	_, err = getExecutor(ctx, r.db).ExecContext(ctx, query,
		run.ID,
		run.SourceImageRef,
		nullString(run.ResourceKey),
		nullString(run.WeekStart),
		run.Status,
		nullString(run.ErrorKind),
		nullString(run.ErrorMessage),
		run.EntryCount,
		corrections,
		warnings,
		nullString(run.ModelID),
		run.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to record processing run",
			zap.String("id", run.ID),
			zap.String("status", run.Status),
			zap.Error(err))
		return fmt.Errorf("failed to record processing run: %w", err)
	}
	return nil
}

const runColumns = `
	id, source_image_ref, resource_key, week_start, status,
	error_kind, error_message, entry_count,
	corrections, warnings, model_id, created_at
`

// GetByID returns the run with the given id, or nil when there is none
func (r *RunRepository) GetByID(ctx context.Context, id string) (*entity.ProcessingRun, error) {
	query := `SELECT ` + runColumns + ` FROM processing_runs WHERE id = ?`

	run, err := scanRun(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get processing run by ID",
			zap.String("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get processing run: %w", err)
	}
	return run, nil
}

// ListRecent returns the newest runs first
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]*entity.ProcessingRun, error) {
	if limit <= 0 {
		limit = defaultRecentRuns
	}
	query := `SELECT ` + runColumns + ` FROM processing_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to list processing runs", zap.Error(err))
		return nil, fmt.Errorf("failed to list processing runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*entity.ProcessingRun, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan processing run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*entity.ProcessingRun, error) {
	var (
		run                                             entity.ProcessingRun
		resourceKey, weekStart, errorKind, errorMessage sql.NullString
		modelID                                         sql.NullString
		corrections, warnings                           string
	)

	err := row.Scan(
		&run.ID,
		&run.SourceImageRef,
		&resourceKey,
		&weekStart,
		&run.Status,
		&errorKind,
		&errorMessage,
		&run.EntryCount,
		&corrections,
		&warnings,
		&modelID,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(corrections), &run.Corrections); err != nil {
		return nil, fmt.Errorf("invalid stored corrections: %w", err)
	}
	if err := json.Unmarshal([]byte(warnings), &run.Warnings); err != nil {
		return nil, fmt.Errorf("invalid stored warnings: %w", err)
	}

	run.ResourceKey = resourceKey.String
	run.WeekStart = weekStart.String
	run.ErrorKind = errorKind.String
	run.ErrorMessage = errorMessage.String
	run.ModelID = modelID.String
	return &run, nil
}

func marshalList[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Verify interface compliance
var _ port.RunRepository = (*RunRepository)(nil)

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/timesheet-ocr/internal/application/port"
	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
)

// EntryRepository implements port.EntryRepository on SQLite
type EntryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEntryRepository creates a new timesheet entry repository
func NewEntryRepository(db *sql.DB, logger *zap.Logger) port.EntryRepository {
	return &EntryRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertEntries writes entries keyed by (resource_key, sort_key). An existing
// row for the key is overwritten, including its source image reference.
func (r *EntryRepository) UpsertEntries(ctx context.Context, entries []entity.CanonicalEntry, processedAt time.Time) error {
	query := `
		INSERT INTO timesheet_entries (
			resource_key, sort_key, resource_name, entry_date,
			project_code, project_name, hours,
			is_bank_holiday, holiday_name, is_zero_hour_week, zero_hour_reason,
			source_image_ref, corrections_applied, needs_review, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (resource_key, sort_key) DO UPDATE SET
			resource_name = excluded.resource_name,
			entry_date = excluded.entry_date,
			project_code = excluded.project_code,
			project_name = excluded.project_name,
			hours = excluded.hours,
			is_bank_holiday = excluded.is_bank_holiday,
			holiday_name = excluded.holiday_name,
			is_zero_hour_week = excluded.is_zero_hour_week,
			zero_hour_reason = excluded.zero_hour_reason,
			source_image_ref = excluded.source_image_ref,
			corrections_applied = excluded.corrections_applied,
			needs_review = excluded.needs_review,
			processed_at = excluded.processed_at,
			updated_at = CURRENT_TIMESTAMP
	`

	exec := getExecutor(ctx, r.db)
	for _, e := range entries {
		if e.ResourceKey == "" {
			return fmt.Errorf("entry %s has no resource key", e.SortKey())
		}
		if !e.Keep() {
			return fmt.Errorf("entry %s/%s carries no hours, holiday or zero-hour marker", e.ResourceKey, e.SortKey())
		}

		corrections := e.CorrectionsApplied
		if corrections == nil {
			corrections = []string{}
		}
		correctionsJSON, err := json.Marshal(corrections)
		if err != nil {
			return fmt.Errorf("failed to marshal corrections: %w", err)
		}

		_, err = exec.ExecContext(ctx, query,
			e.ResourceKey,
			e.SortKey(),
			e.ResourceName,
			e.Date.Format(entity.DateLayout),
			nullString(e.ProjectCode),
			nullString(e.ProjectName),
			e.Hours.String(),
			e.IsBankHoliday,
			nullString(e.HolidayName),
			e.IsZeroHourWeek,
			nullString(e.ZeroHourReason),
			e.SourceImageRef,
			string(correctionsJSON),
			e.NeedsReview,
			processedAt,
		)
		if err != nil {
			r.logger.Error("Failed to upsert timesheet entry",
				zap.String("resource_key", e.ResourceKey),
				zap.String("sort_key", e.SortKey()),
				zap.Error(err))
			return fmt.Errorf("failed to upsert timesheet entry: %w", err)
		}
	}

	r.logger.Debug("Upserted timesheet entries", zap.Int("count", len(entries)))
	return nil
}

// ListByResourceWeek returns the entries of one resource dated within the
// seven days starting at weekStart
func (r *EntryRepository) ListByResourceWeek(ctx context.Context, resourceKey string, weekStart time.Time) ([]entity.CanonicalEntry, error) {
	query := `
		SELECT resource_key, resource_name, entry_date,
			project_code, project_name, hours,
			is_bank_holiday, holiday_name, is_zero_hour_week, zero_hour_reason,
			source_image_ref, corrections_applied, needs_review
		FROM timesheet_entries
		WHERE resource_key = ? AND entry_date >= ? AND entry_date <= ?
		ORDER BY entry_date, sort_key
	`

	from, to := weekBounds(weekStart)
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, resourceKey, from, to)
	if err != nil {
		r.logger.Error("Failed to list timesheet entries",
			zap.String("resource_key", resourceKey),
			zap.String("week_start", from),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list timesheet entries: %w", err)
	}
	defer rows.Close()

	var entries []entity.CanonicalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// KnownProjects returns the distinct project codes already stored for the
// resource and week, once per source image. UNKNOWN rows are not offered as history.
func (r *EntryRepository) KnownProjects(ctx context.Context, resourceKey string, weekStart time.Time) ([]entity.KnownProject, error) {
	query := `
		SELECT project_code, MIN(COALESCE(project_name, '')), source_image_ref
		FROM timesheet_entries
		WHERE resource_key = ? AND entry_date >= ? AND entry_date <= ?
			AND is_zero_hour_week = 0
			AND project_code IS NOT NULL AND project_code <> ?
		GROUP BY project_code, source_image_ref
		ORDER BY project_code, source_image_ref
	`

	from, to := weekBounds(weekStart)
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, resourceKey, from, to, entity.UnknownProjectCode)
	if err != nil {
		r.logger.Error("Failed to query known projects",
			zap.String("resource_key", resourceKey),
			zap.String("week_start", from),
			zap.Error(err))
		return nil, fmt.Errorf("failed to query known projects: %w", err)
	}
	defer rows.Close()

	var projects []entity.KnownProject
	for rows.Next() {
		var p entity.KnownProject
		if err := rows.Scan(&p.Code, &p.Name, &p.SourceImageRef); err != nil {
			return nil, fmt.Errorf("failed to scan known project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func weekBounds(weekStart time.Time) (string, string) {
	return weekStart.Format(entity.DateLayout), weekStart.AddDate(0, 0, 6).Format(entity.DateLayout)
}

func scanEntry(rows *sql.Rows) (entity.CanonicalEntry, error) {
	var (
		e                                                 entity.CanonicalEntry
		date, hours, correctionsJSON                      string
		projectCode, projectName, holidayName, zeroReason sql.NullString
	)

	err := rows.Scan(
		&e.ResourceKey,
		&e.ResourceName,
		&date,
		&projectCode,
		&projectName,
		&hours,
		&e.IsBankHoliday,
		&holidayName,
		&e.IsZeroHourWeek,
		&zeroReason,
		&e.SourceImageRef,
		&correctionsJSON,
		&e.NeedsReview,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan timesheet entry: %w", err)
	}

	if e.Date, err = time.Parse(entity.DateLayout, date); err != nil {
		return e, fmt.Errorf("invalid stored entry date %q: %w", date, err)
	}
	if e.Hours, err = decimal.NewFromString(hours); err != nil {
		return e, fmt.Errorf("invalid stored hours %q: %w", hours, err)
	}
	if correctionsJSON != "" {
		if err := json.Unmarshal([]byte(correctionsJSON), &e.CorrectionsApplied); err != nil {
			return e, fmt.Errorf("invalid stored corrections: %w", err)
		}
	}
	if len(e.CorrectionsApplied) == 0 {
		e.CorrectionsApplied = nil
	}

	e.ProjectCode = projectCode.String
	e.ProjectName = projectName.String
	e.HolidayName = holidayName.String
	e.ZeroHourReason = zeroReason.String
	return e, nil
}

// Verify interface compliance
var _ port.EntryRepository = (*EntryRepository)(nil)

package port

import (
	"context"
	"time"

	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
)

// EntryRepository defines persistence operations for CanonicalEntry.
// Writes are idempotent upserts keyed by (resource_key, sort_key); the last
// writer for a key wins and replaces the previous source image reference.
type EntryRepository interface {
	UpsertEntries(ctx context.Context, entries []entity.CanonicalEntry, processedAt time.Time) error
	ListByResourceWeek(ctx context.Context, resourceKey string, weekStart time.Time) ([]entity.CanonicalEntry, error)

	// KnownProjects returns the distinct (code, name) pairs stored for a
	// resource within the week starting at weekStart
	KnownProjects(ctx context.Context, resourceKey string, weekStart time.Time) ([]entity.KnownProject, error)
}

// RunRepository defines persistence operations for ProcessingRun
type RunRepository interface {
	AuditSink
	GetByID(ctx context.Context, id string) (*entity.ProcessingRun, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.ProcessingRun, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

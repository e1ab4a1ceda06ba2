package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/timesheet-ocr/internal/application/port"
	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
	"github.com/garyjia/timesheet-ocr/internal/pipeline"
	"github.com/garyjia/timesheet-ocr/internal/reference"
	"github.com/garyjia/timesheet-ocr/pkg/utils"
)

const sampleExtraction = `{
  "resource_name": "Jane Smith",
  "date_range": "10/03/2025 - 16/03/2025",
  "is_zero_hour": false,
  "projects": [
    {"project_name": "Network Upgrade (PJ024483)", "project_code": "PJ024483", "hours_by_day": ["0", "0", "7.5", "0", "0", "0", "0"]}
  ],
  "weekly_total": "7.5"
}`

type mockExtractor struct {
	content  string
	err      error
	gotType  string
	gotImage []byte
}

func (m *mockExtractor) Extract(ctx context.Context, image []byte, mimeType string) (*port.ExtractionResponse, error) {
	m.gotImage, m.gotType = image, mimeType
	if m.err != nil {
		return nil, m.err
	}
	return &port.ExtractionResponse{Content: m.content, ModelID: "gpt-4o"}, nil
}

type mockConverter struct{}

func (m *mockConverter) ToImage(ctx context.Context, data []byte, mimeType string) ([]byte, string, error) {
	if mimeType == "application/pdf" {
		return []byte("jpeg"), "image/jpeg", nil
	}
	return data, mimeType, nil
}

type mockImageStore struct {
	saved map[string][]byte
}

func (m *mockImageStore) Save(ctx context.Context, key string, content []byte) error {
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[key] = content
	return nil
}

func (m *mockImageStore) Read(ctx context.Context, key string) ([]byte, error) {
	if c, ok := m.saved[key]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockImageStore) Exists(ctx context.Context, key string) bool {
	_, ok := m.saved[key]
	return ok
}

func (m *mockImageStore) Delete(ctx context.Context, key string) error {
	delete(m.saved, key)
	return nil
}

func (m *mockImageStore) GetFullPath(key string) string {
	return "/data/" + key
}

type mockReferences struct {
	err error
}

func (m *mockReferences) Load(ctx context.Context) (*reference.Snapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	return reference.NewSnapshot(
		[]string{"Jane Smith"},
		nil,
		[]entity.ProjectCodeRecord{{CanonicalCode: "PJ024483", CanonicalName: "Network Upgrade"}},
		reference.DefaultUKHolidays(),
		reference.DefaultPrefixRules(),
	), nil
}

type mockEntryRepo struct {
	upserted     []entity.CanonicalEntry
	processedAt  time.Time
	upsertErr    error
	historyKey   string
	historyWeek  time.Time
	historyCalls int
}

func (m *mockEntryRepo) UpsertEntries(ctx context.Context, entries []entity.CanonicalEntry, processedAt time.Time) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, entries...)
	m.processedAt = processedAt
	return nil
}

func (m *mockEntryRepo) ListByResourceWeek(ctx context.Context, resourceKey string, weekStart time.Time) ([]entity.CanonicalEntry, error) {
	return m.upserted, nil
}

func (m *mockEntryRepo) KnownProjects(ctx context.Context, resourceKey string, weekStart time.Time) ([]entity.KnownProject, error) {
	m.historyCalls++
	m.historyKey, m.historyWeek = resourceKey, weekStart
	return nil, nil
}

type mockRunRepo struct {
	recorded []*entity.ProcessingRun
}

func (m *mockRunRepo) Record(ctx context.Context, run *entity.ProcessingRun) error {
	m.recorded = append(m.recorded, run)
	return nil
}

func (m *mockRunRepo) GetByID(ctx context.Context, id string) (*entity.ProcessingRun, error) {
	for _, r := range m.recorded {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (m *mockRunRepo) ListRecent(ctx context.Context, limit int) ([]*entity.ProcessingRun, error) {
	return m.recorded, nil
}

type mockTxManager struct {
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type fixture struct {
	extractor *mockExtractor
	images    *mockImageStore
	refs      *mockReferences
	entries   *mockEntryRepo
	runs      *mockRunRepo
	tx        *mockTxManager
	service   TimesheetService
}

var fixedNow = time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC)

func newFixture(content string) *fixture {
	f := &fixture{
		extractor: &mockExtractor{content: content},
		images:    &mockImageStore{},
		refs:      &mockReferences{},
		entries:   &mockEntryRepo{},
		runs:      &mockRunRepo{},
		tx:        &mockTxManager{},
	}
	ids := 0
	f.service = NewTimesheetService(Dependencies{
		Extractor:  f.extractor,
		Converter:  &mockConverter{},
		Images:     f.images,
		References: f.refs,
		Entries:    f.entries,
		Runs:       f.runs,
		TxManager:  f.tx,
		Normalizer: pipeline.NewNormalizer(pipeline.DefaultConfig(), zap.NewNop()),
	}, utils.NewKeyValueLogger(zap.NewNop()),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("run-%d", ids)
		}))
	return f
}

func TestTimesheetService_ProcessImage(t *testing.T) {
	f := newFixture(sampleExtraction)

	outcome, err := f.service.ProcessImage(context.Background(), "../week 11.pdf", []byte("%PDF"), "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, "run-1", outcome.Run.ID)
	assert.Equal(t, "timesheets/run-1/week_11.pdf", outcome.Run.SourceImageRef)
	assert.Equal(t, []byte("%PDF"), f.images.saved["timesheets/run-1/week_11.pdf"])
	assert.Equal(t, "image/jpeg", f.extractor.gotType)
	assert.Equal(t, []byte("jpeg"), f.extractor.gotImage)

	assert.Equal(t, entity.RunStatusProcessed, outcome.Run.Status)
	assert.Equal(t, "Jane_Smith", outcome.Run.ResourceKey)
	assert.Equal(t, "2025-03-10", outcome.Run.WeekStart)
	assert.Equal(t, "gpt-4o", outcome.Run.ModelID)
	assert.Equal(t, 1, outcome.Run.EntryCount)

	require.Len(t, f.entries.upserted, 1)
	assert.Equal(t, "timesheets/run-1/week_11.pdf", f.entries.upserted[0].SourceImageRef)
	assert.Equal(t, fixedNow, f.entries.processedAt)
	assert.Equal(t, 1, f.tx.calls)
	assert.Equal(t, "Jane_Smith", f.entries.historyKey)
	assert.Equal(t, 1, f.entries.historyCalls)

	require.Len(t, f.runs.recorded, 1)
	assert.Same(t, outcome.Run, f.runs.recorded[0])
}

func TestTimesheetService_ProcessImage_Failures(t *testing.T) {
	t.Run("extraction request error", func(t *testing.T) {
		f := newFixture("")
		f.extractor.err = errors.New("timeout")

		outcome, err := f.service.ProcessImage(context.Background(), "a.png", []byte("png"), "image/png")
		require.Error(t, err)

		assert.Equal(t, entity.RunStatusFailed, outcome.Run.Status)
		assert.Equal(t, KindExtractionRequest, outcome.Run.ErrorKind)
		assert.Empty(t, f.entries.upserted)
		assert.Len(t, f.runs.recorded, 1)
	})

	t.Run("unparseable reply", func(t *testing.T) {
		f := newFixture("I cannot read this timesheet")

		outcome, err := f.service.ProcessImage(context.Background(), "a.png", []byte("png"), "image/png")
		require.Error(t, err)

		assert.True(t, pipeline.IsKind(err, pipeline.KindExtractionParse))
		assert.Equal(t, pipeline.KindExtractionParse, outcome.Run.ErrorKind)
		assert.Nil(t, outcome.Result)
		assert.Empty(t, f.entries.upserted)
		assert.Equal(t, 0, f.tx.calls)
		require.Len(t, f.runs.recorded, 1)
		assert.Equal(t, entity.RunStatusFailed, f.runs.recorded[0].Status)
	})

	t.Run("bad date range", func(t *testing.T) {
		f := newFixture(`{"resource_name": "Jane Smith", "date_range": "next week", "projects": []}`)

		outcome, err := f.service.ProcessImage(context.Background(), "a.png", []byte("png"), "image/png")
		require.Error(t, err)
		assert.Equal(t, pipeline.KindDateParse, outcome.Run.ErrorKind)
		assert.Empty(t, f.entries.upserted)
	})

	t.Run("persistence error", func(t *testing.T) {
		f := newFixture(sampleExtraction)
		f.entries.upsertErr = errors.New("disk full")

		outcome, err := f.service.ProcessImage(context.Background(), "a.png", []byte("png"), "image/png")
		require.Error(t, err)
		assert.Equal(t, KindPersistence, outcome.Run.ErrorKind)
		assert.Equal(t, 0, outcome.Run.EntryCount)
	})

	t.Run("reference data error", func(t *testing.T) {
		f := newFixture(sampleExtraction)
		f.refs.err = errors.New("roster is malformed")

		outcome, err := f.service.ProcessImage(context.Background(), "a.png", []byte("png"), "image/png")
		require.Error(t, err)
		assert.Equal(t, KindReference, outcome.Run.ErrorKind)
	})

	t.Run("empty upload", func(t *testing.T) {
		f := newFixture(sampleExtraction)

		_, err := f.service.ProcessImage(context.Background(), "a.png", nil, "image/png")
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Empty(t, f.runs.recorded)
	})
}

func TestTimesheetService_ProcessExtraction(t *testing.T) {
	t.Run("needs review", func(t *testing.T) {
		f := newFixture("")
		content := `{"resource_name": "Somebody Else", "date_range": "10/03/2025 - 16/03/2025",
			"projects": [{"project_name": "Network Upgrade (PJ024483)", "project_code": "PJ024483", "hours_by_day": ["8", "", "", "", "", "", ""]}]}`

		outcome, err := f.service.ProcessExtraction(context.Background(), "s3://bucket/a.png", []byte(content), false)
		require.NoError(t, err)

		assert.Equal(t, entity.RunStatusNeedsReview, outcome.Run.Status)
		require.Len(t, f.entries.upserted, 1)
		assert.True(t, f.entries.upserted[0].NeedsReview)
		assert.Equal(t, "s3://bucket/a.png", f.entries.upserted[0].SourceImageRef)
	})

	t.Run("dry run persists nothing", func(t *testing.T) {
		f := newFixture("")

		outcome, err := f.service.ProcessExtraction(context.Background(), "local.png", []byte(sampleExtraction), true)
		require.NoError(t, err)

		assert.Len(t, outcome.Result.Entries, 1)
		assert.Empty(t, f.entries.upserted)
		assert.Empty(t, f.runs.recorded)
		assert.Equal(t, 0, f.tx.calls)
	})

	t.Run("reprocessing is idempotent", func(t *testing.T) {
		f := newFixture("")

		first, err := f.service.ProcessExtraction(context.Background(), "a.png", []byte(sampleExtraction), false)
		require.NoError(t, err)
		second, err := f.service.ProcessExtraction(context.Background(), "a.png", []byte(sampleExtraction), false)
		require.NoError(t, err)

		assert.Equal(t, first.Result.Entries, second.Result.Entries)
	})

	t.Run("source reference is required", func(t *testing.T) {
		f := newFixture("")
		_, err := f.service.ProcessExtraction(context.Background(), " ", []byte(sampleExtraction), false)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestTimesheetService_ListEntries(t *testing.T) {
	f := newFixture("")

	_, err := f.service.ListEntries(context.Background(), "Jane_Smith", time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.service.ListEntries(context.Background(), "Jane_Smith", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
}

func TestImageKey(t *testing.T) {
	assert.Equal(t, "timesheets/id/sheet.png", imageKey("id", "sheet.png"))
	assert.Equal(t, "timesheets/id/upload", imageKey("id", ".."))
	assert.Equal(t, "timesheets/id/upload", imageKey("id", ""))
	assert.Equal(t, "timesheets/id/passwd", imageKey("id", "../../etc/passwd"))
}

func TestTimesheetService_Runs(t *testing.T) {
	f := newFixture("")

	outcome, err := f.service.ProcessExtraction(context.Background(), "a.png", []byte(sampleExtraction), false)
	require.NoError(t, err)

	run, err := f.service.GetRun(context.Background(), outcome.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, outcome.Run, run)

	missing, err := f.service.GetRun(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	runs, err := f.service.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

package container

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/timesheet-ocr/internal/config"
	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
)

const extraction = `{
  "resource_name": "Jane Smith",
  "date_range": "10/03/2025 - 16/03/2025",
  "projects": [
    {"project_name": "Network Upgrade (PJ024483)", "project_code": "PJ024483", "hours_by_day": ["0", "0", "7.5", "0", "0", "0", "0"]}
  ]
}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")

	dir := t.TempDir()
	roster := filepath.Join(dir, "roster.yaml")
	projects := filepath.Join(dir, "projects.yaml")
	require.NoError(t, os.WriteFile(roster, []byte("team_members:\n  - Jane Smith\n"), 0644))
	require.NoError(t, os.WriteFile(projects, []byte("projects:\n  - code: PJ024483\n    name: Network Upgrade\n"), 0644))

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Database.Path = filepath.Join(dir, "db", "timesheets.db")
	cfg.Storage.BaseDir = filepath.Join(dir, "images")
	cfg.Reference.RosterPath = roster
	cfg.Reference.ProjectsPath = projects
	cfg.Reference.HolidaysPath = ""
	return cfg
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Database.Path = ""
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	assert.False(t, c.Ready())

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx), "second start must fail")

	health := c.Health()
	assert.True(t, health.Overall)
	assert.True(t, health.Components["database"].Healthy)
	assert.Equal(t, "disabled", health.Components["extraction"].Message)
	assert.NotContains(t, health.Components, "kafka")

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(ctx))
}

func TestContainer_ProcessExtraction(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	defer c.Close()

	svc := c.TimesheetService()

	outcome, err := svc.ProcessExtraction(ctx, "week_11.png", []byte(extraction), false)
	require.NoError(t, err)
	assert.Equal(t, "Jane_Smith", outcome.Run.ResourceKey)
	assert.Equal(t, "2025-03-10", outcome.Run.WeekStart)
	assert.Equal(t, 1, outcome.Run.EntryCount)

	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	entries, err := svc.ListEntries(ctx, "Jane_Smith", monday)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "PJ024483", entries[0].ProjectCode)
	assert.Equal(t, "2025-03-12", entries[0].Date.Format(entity.DateLayout))

	run, err := svc.GetRun(ctx, outcome.Run.ID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, outcome.Run.Status, run.Status)

	_, err = svc.ProcessImage(ctx, "week_11.png", []byte("png"), "image/png")
	assert.Error(t, err, "uploads need an extractor")
}

func TestContainer_FailedStartClosesDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.OpenAI.APIKey = "sk-test"
	cfg.OpenAI.PromptsPath = filepath.Join(t.TempDir(), "missing.yaml")

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)

	err = c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "external adapters")
	assert.False(t, c.Ready())
	assert.Empty(t, c.closers)
	assert.False(t, c.Health().Overall)
	assert.Error(t, c.Start(context.Background()))
}

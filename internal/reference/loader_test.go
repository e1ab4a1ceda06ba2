package reference

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	logger := zap.NewNop()

	roster := writeFile(t, dir, "team.json", `{
		"team_members": ["Jane Smith", "  Adam   Burrows "],
		"name_aliases": {"J. Smith": "Jane Smith"}
	}`)
	projects := writeFile(t, dir, "projects.yaml", `
projects:
  - code: PJ024483
    name: Network Upgrade
    aliases:
      codes: [PJ924483]
      names: [Net Upgrade]
  - code: PJ032403
    name: Design phase
prefix_rules:
  confusions:
    NTCS: NTC5
    HCST: PJHCST
`)
	holidays := writeFile(t, dir, "holidays.json", `{"holidays": [{"date": "2025-12-25", "name": "Christmas Day"}]}`)

	loader := NewLoader(LoaderConfig{
		RosterPath:   roster,
		ProjectsPath: projects,
		HolidaysPath: holidays,
	}, logger)

	snapshot, err := loader.Load(context.Background())
	require.NoError(t, err)

	t.Run("roster and aliases", func(t *testing.T) {
		assert.Equal(t, []string{"Jane Smith", "Adam Burrows"}, snapshot.Roster)
		canonical, ok := snapshot.AliasFor("j. smith")
		assert.True(t, ok)
		assert.Equal(t, "Jane Smith", canonical)
	})

	t.Run("projects with aliases", func(t *testing.T) {
		require.Len(t, snapshot.Projects, 2)
		p, ok := snapshot.ProjectByCode("PJ024483")
		require.True(t, ok)
		assert.True(t, p.HasDigitVariant("PJ924483"))
		assert.True(t, p.HasNameVariant("net upgrade"))
	})

	t.Run("prefix rules merged over defaults", func(t *testing.T) {
		assert.Equal(t, "PJ", snapshot.Prefixes.StandardPrefix)
		assert.Equal(t, 6, snapshot.Prefixes.DigitCount)
		assert.Equal(t, "PJHCST", snapshot.Prefixes.Confusions["HCST"])
		assert.Equal(t, []string{"HCST", "NTCS"}, snapshot.Prefixes.ConfusionKeys())
	})

	t.Run("holiday file replaces defaults", func(t *testing.T) {
		assert.Equal(t, 1, snapshot.Holidays.Len())
		assert.True(t, snapshot.Holidays.IsHoliday(time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)))
		assert.False(t, snapshot.Holidays.IsHoliday(time.Date(2025, 12, 26, 0, 0, 0, 0, time.UTC)))
	})
}

func TestLoader_MissingFilesDegrade(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(LoaderConfig{
		RosterPath:   filepath.Join(dir, "missing.json"),
		ProjectsPath: filepath.Join(dir, "missing.yaml"),
	}, zap.NewNop())

	snapshot, err := loader.Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, snapshot.Roster)
	assert.False(t, snapshot.HasProjects())
	assert.Equal(t, DefaultPrefixRules().StandardPrefix, snapshot.Prefixes.StandardPrefix)
	assert.Equal(t, 24, snapshot.Holidays.Len(), "built-in calendar used when no holiday file is configured")
}

func TestLoader_EmptyFileDegrades(t *testing.T) {
	dir := t.TempDir()
	roster := writeFile(t, dir, "team.json", "  \n")

	snapshot, err := NewLoader(LoaderConfig{RosterPath: roster}, zap.NewNop()).Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, snapshot.Roster)
}

func TestLoader_MalformedFileFails(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		cfg  LoaderConfig
	}{
		{"roster", LoaderConfig{RosterPath: writeFile(t, dir, "team.json", `{"team_members": [`)}},
		{"projects", LoaderConfig{ProjectsPath: writeFile(t, dir, "projects.json", `{"projects": 7}`)}},
		{"holiday date", LoaderConfig{HolidaysPath: writeFile(t, dir, "holidays.json", `{"holidays": [{"date": "25/12/2025"}]}`)}},
		{"yaml roster", LoaderConfig{RosterPath: writeFile(t, dir, "roster.yaml", "team_members: [Jane Smith\n")}},
		{"yaml projects shape", LoaderConfig{ProjectsPath: writeFile(t, dir, "projects.yaml", "projects: seven\n")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(tt.cfg, zap.NewNop()).Load(context.Background())
			require.Error(t, err)
		})
	}
}

func TestLoader_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	roster := writeFile(t, dir, "roster.yaml", "team_members:\n  - Jane Smith\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snapshot, err := NewLoader(LoaderConfig{RosterPath: roster}, zap.NewNop()).Load(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, snapshot)
}

func TestLoader_ProjectsWorkbook(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "projects.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Project Code", "Project Name", "Digit Variants", "Name Variants"},
		{"PJ024483", "Network Upgrade", "PJ924483; PJ024488", "Net Upgrade"},
		{"", "blank row is skipped", "", ""},
		{"REAG042910", "Regional Audit", "", ""},
	}
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellRef, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	snapshot, err := NewLoader(LoaderConfig{ProjectsPath: path}, zap.NewNop()).Load(context.Background())
	require.NoError(t, err)

	require.Len(t, snapshot.Projects, 2)
	p, ok := snapshot.ProjectByCode("PJ024483")
	require.True(t, ok)
	assert.Equal(t, "Network Upgrade", p.CanonicalName)
	assert.Equal(t, []string{"PJ924483", "PJ024488"}, p.KnownDigitVariants)
	assert.True(t, p.HasNameVariant("Net Upgrade"))
}

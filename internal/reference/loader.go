package reference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
)

// LoaderConfig names the reference files. Empty paths are skipped.
type LoaderConfig struct {
	RosterPath    string
	ProjectsPath  string
	ProjectsSheet string
	HolidaysPath  string
	Prefixes      PrefixRules
}

// Loader reads reference files from disk and builds a fresh Snapshot on every call
type Loader struct {
	cfg    LoaderConfig
	logger *zap.Logger
}

// NewLoader creates a new reference data loader
func NewLoader(cfg LoaderConfig, logger *zap.Logger) *Loader {
	return &Loader{
		cfg:    cfg,
		logger: logger,
	}
}

// rosterFile is the on-disk roster shape
type rosterFile struct {
	TeamMembers []string          `json:"team_members" yaml:"team_members"`
	NameAliases map[string]string `json:"name_aliases" yaml:"name_aliases"`
}

// projectsFile is the on-disk project master list shape
type projectsFile struct {
	Projects    []projectRow `json:"projects" yaml:"projects"`
	PrefixRules *PrefixRules `json:"prefix_rules,omitempty" yaml:"prefix_rules,omitempty"`
}

type projectRow struct {
	Code               string   `json:"code" yaml:"code"`
	Name               string   `json:"name" yaml:"name"`
	KnownDigitVariants []string `json:"known_digit_variants" yaml:"known_digit_variants"`
	KnownNameVariants  []string `json:"known_name_variants" yaml:"known_name_variants"`
	Aliases            struct {
		Codes []string `json:"codes" yaml:"codes"`
		Names []string `json:"names" yaml:"names"`
	} `json:"aliases" yaml:"aliases"`
}

// holidaysFile is the on-disk holiday calendar shape
type holidaysFile struct {
	Holidays []struct {
		Date string `json:"date" yaml:"date"`
		Name string `json:"name" yaml:"name"`
	} `json:"holidays" yaml:"holidays"`
}

// Load reads every configured file. Missing or empty files degrade to empty
// tables with a warning; malformed files are errors. A cancelled ctx stops
// the load before the next file is read.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("reference load cancelled: %w", err)
	}
	roster, aliases, err := l.loadRoster()
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("reference load cancelled: %w", err)
	}
	projects, prefixes, err := l.loadProjects()
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("reference load cancelled: %w", err)
	}
	holidays, err := l.loadHolidays()
	if err != nil {
		return nil, err
	}

	snapshot := NewSnapshot(roster, aliases, projects, holidays, prefixes)

	l.logger.Debug("Reference data loaded",
		zap.Int("roster", len(snapshot.Roster)),
		zap.Int("aliases", len(snapshot.Aliases)),
		zap.Int("projects", len(snapshot.Projects)),
		zap.Int("holidays", snapshot.Holidays.Len()))

	return snapshot, nil
}

func (l *Loader) loadRoster() ([]string, map[string]string, error) {
	var rf rosterFile
	found, err := l.decode(l.cfg.RosterPath, "roster", &rf)
	if err != nil || !found {
		return nil, nil, err
	}
	if len(rf.TeamMembers) == 0 {
		l.logger.Warn("Roster file has no team members, identity matching degrades to aliases",
			zap.String("path", l.cfg.RosterPath))
	}
	return rf.TeamMembers, rf.NameAliases, nil
}

func (l *Loader) loadProjects() ([]entity.ProjectCodeRecord, PrefixRules, error) {
	prefixes := l.cfg.Prefixes
	if prefixes.StandardPrefix == "" {
		prefixes = DefaultPrefixRules()
	}

	path := l.cfg.ProjectsPath
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		if !l.exists(path, "projects") {
			return nil, prefixes, nil
		}
		records, err := ReadProjectsWorkbook(path, l.cfg.ProjectsSheet)
		if err != nil {
			return nil, prefixes, err
		}
		l.warnIfEmpty(len(records), path)
		return records, prefixes, nil
	}

	var pf projectsFile
	found, err := l.decode(path, "projects", &pf)
	if err != nil || !found {
		return nil, prefixes, err
	}

	if pf.PrefixRules != nil {
		prefixes = mergePrefixRules(prefixes, *pf.PrefixRules)
	}

	records := make([]entity.ProjectCodeRecord, 0, len(pf.Projects))
	for _, row := range pf.Projects {
		records = append(records, entity.ProjectCodeRecord{
			CanonicalCode:      row.Code,
			CanonicalName:      row.Name,
			KnownDigitVariants: append(row.KnownDigitVariants, row.Aliases.Codes...),
			KnownNameVariants:  append(row.KnownNameVariants, row.Aliases.Names...),
		})
	}
	l.warnIfEmpty(len(records), path)
	return records, prefixes, nil
}

func (l *Loader) loadHolidays() (*HolidayTable, error) {
	if l.cfg.HolidaysPath == "" {
		return DefaultUKHolidays(), nil
	}

	var hf holidaysFile
	found, err := l.decode(l.cfg.HolidaysPath, "holidays", &hf)
	if err != nil {
		return nil, err
	}
	if !found {
		return NewHolidayTable(nil), nil
	}

	holidays := make([]Holiday, 0, len(hf.Holidays))
	for _, h := range hf.Holidays {
		d, err := time.Parse(entity.DateLayout, strings.TrimSpace(h.Date))
		if err != nil {
			return nil, fmt.Errorf("invalid holiday date %q in %s: %w", h.Date, l.cfg.HolidaysPath, err)
		}
		holidays = append(holidays, Holiday{Date: d, Name: h.Name})
	}
	if len(holidays) == 0 {
		l.logger.Warn("Holiday calendar is empty, no bank holiday overrides will apply",
			zap.String("path", l.cfg.HolidaysPath))
	}
	return NewHolidayTable(holidays), nil
}

// decode reads path into v as JSON or YAML by extension. It returns false
// without error when the path is unset, missing or empty.
func (l *Loader) decode(path, kind string, v interface{}) (bool, error) {
	if !l.exists(path, kind) {
		return false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s file: %w", kind, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		l.logger.Warn("Reference file is empty", zap.String("kind", kind), zap.String("path", path))
		return false, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	default:
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return false, fmt.Errorf("malformed %s file %s: %w", kind, path, err)
	}
	return true, nil
}

func (l *Loader) exists(path, kind string) bool {
	if path == "" {
		return false
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("Reference file not found", zap.String("kind", kind), zap.String("path", path))
		} else {
			l.logger.Warn("Reference file not readable", zap.String("kind", kind), zap.String("path", path), zap.Error(err))
		}
		return false
	}
	return true
}

func (l *Loader) warnIfEmpty(n int, path string) {
	if n == 0 {
		l.logger.Warn("Project master list is empty, digit correction is disabled",
			zap.String("path", path))
	}
}

// mergePrefixRules overlays non-empty fields of override on base
func mergePrefixRules(base, override PrefixRules) PrefixRules {
	if override.StandardPrefix != "" {
		base.StandardPrefix = strings.ToUpper(override.StandardPrefix)
	}
	if override.DigitCount > 0 {
		base.DigitCount = override.DigitCount
	}
	if len(override.AlternatePrefixes) > 0 {
		base.AlternatePrefixes = override.AlternatePrefixes
	}
	if len(override.Confusions) > 0 {
		base.Confusions = override.Confusions
	}
	return base
}

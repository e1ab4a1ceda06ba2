// Package reference holds the read-only lookup data the normalization pipeline
// consults: the staff roster and aliases, the project master list, the public
// holiday calendar and the project code prefix rules.
package reference

import (
	"sort"
	"strings"

	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
)

// PrefixRules describes which project code shapes are accepted
type PrefixRules struct {
	StandardPrefix    string            `json:"standard_prefix" yaml:"standard_prefix" mapstructure:"standard_prefix"`
	DigitCount        int               `json:"digit_count" yaml:"digit_count" mapstructure:"digit_count"`
	AlternatePrefixes []string          `json:"alternate_prefixes" yaml:"alternate_prefixes" mapstructure:"alternate_prefixes"`
	Confusions        map[string]string `json:"confusions" yaml:"confusions" mapstructure:"confusions"`
}

// DefaultPrefixRules returns the PJ + 6 digit scheme with the known alternate prefixes
func DefaultPrefixRules() PrefixRules {
	return PrefixRules{
		StandardPrefix:    "PJ",
		DigitCount:        6,
		AlternatePrefixes: []string{"REAG", "HCST", "NTC5", "PJHCST"},
		Confusions:        map[string]string{"NTCS": "NTC5"},
	}
}

// ConfusionKeys returns the confusable prefixes, longest first then alphabetical
func (p PrefixRules) ConfusionKeys() []string {
	keys := make([]string, 0, len(p.Confusions))
	for k := range p.Confusions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Snapshot is an immutable view of all reference data for one invocation
type Snapshot struct {
	Roster   []string
	Aliases  map[string]string
	Projects []entity.ProjectCodeRecord
	Holidays *HolidayTable
	Prefixes PrefixRules

	byCode map[string]int
}

// NewSnapshot indexes the given data. Aliases are keyed case-insensitively.
func NewSnapshot(roster []string, aliases map[string]string, projects []entity.ProjectCodeRecord, holidays *HolidayTable, prefixes PrefixRules) *Snapshot {
	s := &Snapshot{
		Roster:   make([]string, 0, len(roster)),
		Aliases:  make(map[string]string, len(aliases)),
		Projects: make([]entity.ProjectCodeRecord, 0, len(projects)),
		Holidays: holidays,
		Prefixes: prefixes,
		byCode:   make(map[string]int, len(projects)),
	}
	if s.Holidays == nil {
		s.Holidays = NewHolidayTable(nil)
	}

	for _, name := range roster {
		if n := CollapseSpaces(name); n != "" {
			s.Roster = append(s.Roster, n)
		}
	}
	for alias, canonical := range aliases {
		key := AliasKey(alias)
		if key == "" || strings.TrimSpace(canonical) == "" {
			continue
		}
		s.Aliases[key] = CollapseSpaces(canonical)
	}
	for _, p := range projects {
		p.CanonicalCode = strings.ToUpper(strings.TrimSpace(p.CanonicalCode))
		if p.CanonicalCode == "" {
			continue
		}
		if _, dup := s.byCode[p.CanonicalCode]; dup {
			continue
		}
		p.CanonicalName = strings.TrimSpace(p.CanonicalName)
		variants := make([]string, 0, len(p.KnownDigitVariants))
		for _, v := range p.KnownDigitVariants {
			if v = strings.ToUpper(strings.TrimSpace(v)); v != "" {
				variants = append(variants, v)
			}
		}
		p.KnownDigitVariants = variants
		p.KnownNameVariants = append([]string(nil), p.KnownNameVariants...)
		s.byCode[p.CanonicalCode] = len(s.Projects)
		s.Projects = append(s.Projects, p)
	}

	return s
}

// ProjectByCode returns the master record for an exact canonical code
func (s *Snapshot) ProjectByCode(code string) (entity.ProjectCodeRecord, bool) {
	i, ok := s.byCode[strings.ToUpper(code)]
	if !ok {
		return entity.ProjectCodeRecord{}, false
	}
	return s.Projects[i], true
}

// AliasFor returns the canonical roster name registered for an alias
func (s *Snapshot) AliasFor(name string) (string, bool) {
	canonical, ok := s.Aliases[AliasKey(name)]
	return canonical, ok
}

// HasProjects reports whether a master list was loaded
func (s *Snapshot) HasProjects() bool {
	return len(s.Projects) > 0
}

// CollapseSpaces trims a name and collapses internal runs of whitespace
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// AliasKey is the lookup form of a name: whitespace-collapsed and lower-cased
func AliasKey(s string) string {
	return strings.ToLower(CollapseSpaces(s))
}

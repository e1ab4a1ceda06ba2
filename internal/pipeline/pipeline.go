// Package pipeline converts one noisy timesheet extraction into canonical,
// deduplicated entries plus the corrections and warnings applied on the way.
//
// The stages run in a fixed order: identity, date range, project code/name,
// holiday enforcement, materialization and validation. Run is a pure function
// of its inputs: reference data arrives as an immutable snapshot and nothing
// is read from the clock or the network.
package pipeline

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
	"github.com/garyjia/timesheet-ocr/internal/reference"
)

// History supplies the projects already stored for a resource and week
type History interface {
	KnownProjects(resourceKey string, weekStart time.Time) []entity.KnownProject
}

// Invocation carries the per-image inputs that are not part of the extraction
type Invocation struct {
	SourceImageRef string
	History        History
}

// Result is the outcome of one successful pipeline run
type Result struct {
	Identity          entity.Identity          `json:"identity"`
	Week              entity.CanonicalWeek     `json:"week"`
	Entries           []entity.CanonicalEntry  `json:"entries"`
	Corrections       []entity.CorrectionEvent `json:"corrections"`
	Warnings          []entity.Warning         `json:"warnings"`
	WeeklyTotal       decimal.Decimal          `json:"weekly_total"`
	StatedWeeklyTotal *decimal.Decimal         `json:"stated_weekly_total,omitempty"`
	NeedsReview       bool                     `json:"needs_review"`
}

// Normalizer wires the pipeline stages together
type Normalizer struct {
	cfg          Config
	dates        DateResolver
	resources    ResourceResolver
	projects     ProjectNormalizer
	holidays     HolidayEnforcer
	materializer Materializer
	validator    Validator
	logger       *zap.Logger
}

// NewNormalizer creates a new pipeline
func NewNormalizer(cfg Config, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		cfg:          cfg,
		dates:        NewDateResolver(cfg),
		resources:    NewResourceResolver(cfg),
		projects:     NewProjectNormalizer(cfg),
		materializer: NewMaterializer(cfg),
		validator:    NewValidator(cfg),
		logger:       logger,
	}
}

// Normalize decodes the extraction reply and runs the pipeline on it
func (n *Normalizer) Normalize(content []byte, snapshot *reference.Snapshot, inv Invocation) (*Result, error) {
	raw, err := DecodeExtraction(content)
	if err != nil {
		return nil, err
	}
	return n.Run(raw, snapshot, inv)
}

// Run normalizes a decoded extraction. Fatal problems return a tagged *Error
// and no entries; everything else is reported as corrections and warnings.
func (n *Normalizer) Run(raw *entity.RawExtraction, snapshot *reference.Snapshot, inv Invocation) (*Result, error) {
	if raw == nil {
		return nil, extractionParseError("extraction is missing", nil)
	}
	if snapshot == nil {
		snapshot = reference.NewSnapshot(nil, nil, nil, nil, reference.DefaultPrefixRules())
	}

	identity, identityEvents := n.resources.Resolve(raw.ResourceName, snapshot)

	week, dateEvents, err := n.dates.Resolve(raw.DateRange)
	if err != nil {
		n.logger.Warn("Failed to resolve date range",
			zap.String("date_range", raw.DateRange),
			zap.Error(err))
		return nil, err
	}

	lookup := ProjectLookup{Sheet: n.writtenProjects(raw, snapshot)}
	if inv.History != nil {
		lookup.History = otherImages(inv.History.KnownProjects(identity.StorageKey, week.StartDate), inv.SourceImageRef)
	}

	sheet, projectEvents, warnings := n.buildSheet(raw, week, snapshot, lookup)

	var holidayEvents []entity.CorrectionEvent
	if !raw.IsZeroHour {
		holidayEvents = n.holidays.Enforce(sheet, snapshot.Holidays)
	}

	var base []string
	for _, e := range identityEvents {
		base = appendKind(base, e.Kind)
	}
	for _, e := range dateEvents {
		base = appendKind(base, e.Kind)
	}

	entries, mergeEvents, materializeWarnings := n.materializer.Materialize(MaterializeInput{
		Identity:        identity,
		Sheet:           sheet,
		IsZeroHour:      raw.IsZeroHour,
		ZeroHourReason:  raw.ZeroHourReason,
		Holidays:        snapshot.Holidays,
		SourceImageRef:  inv.SourceImageRef,
		BaseCorrections: base,
	})
	warnings = append(warnings, materializeWarnings...)
	warnings = append(warnings, n.validator.Validate(identity, sheet, entries, snapshot.Prefixes)...)

	corrections := make([]entity.CorrectionEvent, 0, len(identityEvents)+len(dateEvents)+len(projectEvents)+len(holidayEvents)+len(mergeEvents))
	corrections = append(corrections, identityEvents...)
	corrections = append(corrections, dateEvents...)
	corrections = append(corrections, projectEvents...)
	corrections = append(corrections, holidayEvents...)
	corrections = append(corrections, mergeEvents...)

	result := &Result{
		Identity:    identity,
		Week:        week,
		Entries:     entries,
		Corrections: corrections,
		Warnings:    warnings,
		WeeklyTotal: sheet.Total(),
	}
	if sheet.HasStatedWeekly {
		stated := sheet.StatedWeekly
		result.StatedWeeklyTotal = &stated
	}
	for _, w := range warnings {
		if w.IsHigh() {
			result.NeedsReview = true
			break
		}
	}
	for i := range result.Entries {
		result.Entries[i].NeedsReview = result.Entries[i].NeedsReview || result.NeedsReview
	}

	n.logger.Debug("Timesheet normalized",
		zap.String("resource_key", identity.StorageKey),
		zap.String("match_type", identity.MatchType),
		zap.String("week_start", week.StartKey()),
		zap.Int("entries", len(entries)),
		zap.Int("corrections", len(corrections)),
		zap.Int("warnings", len(warnings)),
		zap.Bool("needs_review", result.NeedsReview))

	return result, nil
}

// buildSheet normalizes every project row and parses its hours
func (n *Normalizer) buildSheet(raw *entity.RawExtraction, week entity.CanonicalWeek, snapshot *reference.Snapshot, lookup ProjectLookup) (*Sheet, []entity.CorrectionEvent, []entity.Warning) {
	sheet := &Sheet{Week: week}
	var (
		events   []entity.CorrectionEvent
		warnings []entity.Warning
	)

	for i, rp := range raw.Projects {
		if isBlankRow(rp) {
			continue
		}

		np := n.projects.Normalize(rp.ProjectName, rp.ProjectCode, snapshot, lookup)
		events = append(events, np.Corrections...)
		warnings = append(warnings, np.Warnings...)

		row := &ProjectHours{
			Code:      np.Code,
			Name:      np.Name,
			Ambiguous: np.Ambiguous,
		}
		for _, c := range np.Corrections {
			row.Corrections = appendKind(row.Corrections, c.Kind)
		}

		hours, hw := parseWeek(rp.HoursByDay, fmt.Sprintf("project %d (%s)", i+1, np.Code))
		row.Hours = hours
		for j := range hw {
			hw[j].ProjectCode = np.Code
		}
		warnings = append(warnings, hw...)

		sheet.Projects = append(sheet.Projects, row)
	}

	if hasValues(raw.DailyTotals) {
		daily, hw := parseWeek(raw.DailyTotals, "daily totals")
		sheet.StatedDaily = daily
		sheet.HasStatedDaily = true
		warnings = append(warnings, hw...)
	}
	if raw.WeeklyTotal != nil && !raw.WeeklyTotal.IsBlank() {
		if total, err := ParseHours(*raw.WeeklyTotal); err == nil {
			sheet.StatedWeekly = total
			sheet.HasStatedWeekly = true
		} else {
			warnings = append(warnings, entity.Warning{
				Kind:     entity.WarningInvalidHours,
				Severity: entity.SeverityLow,
				Message:  fmt.Sprintf("weekly total ignored: %v", err),
			})
		}
	}

	return sheet, events, warnings
}

// writtenProjects normalizes every row on its own and keeps those whose code
// was written on the sheet, in the code column or the name. Rows whose code
// had to be looked up by description are left out.
func (n *Normalizer) writtenProjects(raw *entity.RawExtraction, snapshot *reference.Snapshot) []entity.KnownProject {
	var known []entity.KnownProject
	for _, rp := range raw.Projects {
		if isBlankRow(rp) {
			continue
		}
		np := n.projects.Normalize(rp.ProjectName, rp.ProjectCode, snapshot, ProjectLookup{})
		if np.Code == entity.UnknownProjectCode || np.Ambiguous || n.cfg.isCategoryLabel(np.Code) || lookedUp(np.Corrections) {
			continue
		}
		known = append(known, entity.KnownProject{Code: np.Code, Name: np.Name})
	}
	return known
}

func lookedUp(corrections []entity.CorrectionEvent) bool {
	for _, c := range corrections {
		if c.Kind == entity.CorrectionCategoryLabel {
			return true
		}
		if c.Kind == entity.CorrectionCodeFromName && c.Confidence != entity.ConfidenceHigh {
			return true
		}
	}
	return false
}

// otherImages drops history rows written by the image being processed, so a
// re-run sees the same history as the first run did
func otherImages(history []entity.KnownProject, sourceImageRef string) []entity.KnownProject {
	if sourceImageRef == "" {
		return history
	}
	out := make([]entity.KnownProject, 0, len(history))
	for _, h := range history {
		if h.SourceImageRef != sourceImageRef {
			out = append(out, h)
		}
	}
	return out
}

// parseWeek reads seven hours cells. Short rows are padded with zero, long rows
// truncated, and unreadable cells count as zero; each case raises a warning.
func parseWeek(cells []entity.HoursCell, label string) ([7]decimal.Decimal, []entity.Warning) {
	var (
		hours    [7]decimal.Decimal
		warnings []entity.Warning
	)
	if len(cells) != 7 {
		warnings = append(warnings, entity.Warning{
			Kind:     entity.WarningMissingData,
			Severity: entity.SeverityMedium,
			Message:  fmt.Sprintf("%s: expected 7 daily values, got %d", label, len(cells)),
		})
	}

	for i := 0; i < 7; i++ {
		hours[i] = decimal.Zero
		if i >= len(cells) {
			continue
		}
		h, err := ParseHours(cells[i])
		if err != nil {
			warnings = append(warnings, entity.Warning{
				Kind:     entity.WarningInvalidHours,
				Severity: entity.SeverityMedium,
				Message:  fmt.Sprintf("%s, day %d: %v; counted as 0", label, i+1, err),
			})
			continue
		}
		hours[i] = h
	}
	return hours, warnings
}

func isBlankRow(rp entity.RawProject) bool {
	if reference.CollapseSpaces(rp.ProjectName) != "" || reference.CollapseSpaces(rp.ProjectCode) != "" {
		return false
	}
	return !hasValues(rp.HoursByDay)
}

func hasValues(cells []entity.HoursCell) bool {
	for _, c := range cells {
		if !c.IsBlank() {
			return true
		}
	}
	return false
}

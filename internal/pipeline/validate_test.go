package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
	"github.com/garyjia/timesheet-ocr/internal/reference"
)

func warningKinds(warnings []entity.Warning) []string {
	kinds := make([]string, 0, len(warnings))
	for _, w := range warnings {
		kinds = append(kinds, w.Kind)
	}
	return kinds
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(DefaultConfig())
	prefixes := reference.DefaultPrefixRules()

	t.Run("clean sheet", func(t *testing.T) {
		sheet := &Sheet{Week: testWeek(t, "2025-03-10"), Projects: []*ProjectHours{{Code: "PJ024483", Hours: hoursRow("7.5", "7.5")}}}
		entries := []entity.CanonicalEntry{
			{ProjectCode: "PJ024483", ProjectName: "Network Upgrade (PJ024483)"},
			{ProjectCode: "REAG0042", ProjectName: "Reagent stock (REAG0042)"},
		}

		assert.Empty(t, v.Validate(testIdentity(), sheet, entries, prefixes))
	})

	t.Run("format problems", func(t *testing.T) {
		sheet := &Sheet{Week: testWeek(t, "2025-03-10"), Projects: []*ProjectHours{{Code: "XY12", Hours: hoursRow("25", "0.25")}}}
		entries := []entity.CanonicalEntry{{ProjectCode: "XY12", ProjectName: "Something"}}

		warnings := v.Validate(testIdentity(), sheet, entries, prefixes)

		assert.Equal(t, []string{
			entity.WarningCodeFormat,
			entity.WarningNameFormat,
			entity.WarningExcessiveDailyHours,
			entity.WarningFractionalTotal,
		}, warningKinds(warnings))
		assert.Equal(t, entity.SeverityHigh, warnings[2].Severity)
	})

	t.Run("suspicious totals", func(t *testing.T) {
		sheet := &Sheet{
			Week: testWeek(t, "2025-03-10"),
			Projects: []*ProjectHours{
				{Code: "PJ024483", Hours: hoursRow("12", "12", "12", "12", "12")},
				{Code: "PJ032403", Hours: hoursRow("2", "2", "2")},
			},
		}

		warnings := v.Validate(testIdentity(), sheet, nil, prefixes)

		assert.Equal(t, []string{entity.WarningSuspiciousTotal, entity.WarningSuspiciousTotal}, warningKinds(warnings))
		assert.Equal(t, entity.SeverityMedium, warnings[0].Severity)
		assert.Equal(t, "PJ024483", warnings[0].ProjectCode)
		assert.Equal(t, entity.SeverityHigh, warnings[1].Severity)
	})

	t.Run("low confidence identity", func(t *testing.T) {
		sheet := &Sheet{Week: testWeek(t, "2025-03-10")}
		id := entity.Identity{CanonicalName: "Bob Jones", StorageKey: "Bob_Jones", MatchType: entity.MatchUnresolved, Confidence: entity.ConfidenceLow}

		warnings := v.Validate(id, sheet, nil, prefixes)

		assert.Equal(t, []string{entity.WarningLowConfidenceIdentity}, warningKinds(warnings))
		assert.True(t, warnings[0].IsHigh())
	})

	t.Run("unknown and zero-hour entries skip format checks", func(t *testing.T) {
		sheet := &Sheet{Week: testWeek(t, "2025-03-10")}
		entries := []entity.CanonicalEntry{
			{ProjectCode: entity.UnknownProjectCode, ProjectName: "Misc"},
			{IsZeroHourWeek: true},
		}

		assert.Empty(t, v.Validate(testIdentity(), sheet, entries, prefixes))
	})
}

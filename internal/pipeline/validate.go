package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
	"github.com/garyjia/timesheet-ocr/internal/reference"
)

// Validator runs the advisory checks. It never removes entries.
type Validator struct {
	maxDaily    decimal.Decimal
	projectWeek decimal.Decimal
	weekly      decimal.Decimal
}

// NewValidator creates a validator from pipeline settings
func NewValidator(cfg Config) Validator {
	return Validator{
		maxDaily:    decimal.NewFromFloat(cfg.MaxDailyHours),
		projectWeek: decimal.NewFromFloat(cfg.ProjectWeekWarnHours),
		weekly:      decimal.NewFromFloat(cfg.WeeklyWarnHours),
	}
}

// Validate returns the warnings for a materialized sheet
func (v Validator) Validate(identity entity.Identity, sheet *Sheet, entries []entity.CanonicalEntry, prefixes reference.PrefixRules) []entity.Warning {
	var warnings []entity.Warning

	if identity.Confidence != entity.ConfidenceHigh && identity.Confidence != entity.ConfidenceMedium {
		msg := fmt.Sprintf("resource %q did not match the roster", identity.CanonicalName)
		if identity.CanonicalName == "" {
			msg = "resource name is missing"
		}
		warnings = append(warnings, entity.Warning{
			Kind:     entity.WarningLowConfidenceIdentity,
			Severity: entity.SeverityHigh,
			Message:  msg,
		})
	}

	standard := standardCodePattern(prefixes)
	checked := make(map[string]bool)
	for _, e := range entries {
		if e.IsZeroHourWeek || checked[e.ProjectCode] {
			continue
		}
		checked[e.ProjectCode] = true

		if e.ProjectCode != entity.UnknownProjectCode && !validCode(e.ProjectCode, standard, prefixes) {
			warnings = append(warnings, entity.Warning{
				Kind:        entity.WarningCodeFormat,
				Severity:    entity.SeverityMedium,
				Message:     fmt.Sprintf("project code %s does not match the expected format", e.ProjectCode),
				ProjectCode: e.ProjectCode,
			})
		}
		if e.ProjectCode != entity.UnknownProjectCode && !strings.Contains(e.ProjectName, "("+e.ProjectCode+")") {
			warnings = append(warnings, entity.Warning{
				Kind:        entity.WarningNameFormat,
				Severity:    entity.SeverityLow,
				Message:     fmt.Sprintf("project name %q does not contain its code", e.ProjectName),
				ProjectCode: e.ProjectCode,
			})
		}
	}

	for _, p := range sheet.Projects {
		for i, h := range p.Hours {
			if h.GreaterThan(v.maxDaily) {
				warnings = append(warnings, entity.Warning{
					Kind:        entity.WarningExcessiveDailyHours,
					Severity:    entity.SeverityHigh,
					Message:     fmt.Sprintf("%s hours on %s exceeds %s", h.String(), sheet.Week.Days[i].Format(entity.DateLayout), v.maxDaily.String()),
					ProjectCode: p.Code,
				})
			}
		}
		if total := p.Total(); total.GreaterThan(v.projectWeek) {
			warnings = append(warnings, entity.Warning{
				Kind:        entity.WarningSuspiciousTotal,
				Severity:    entity.SeverityMedium,
				Message:     fmt.Sprintf("project week total %s exceeds %s, possibly posted actuals were read", total.String(), v.projectWeek.String()),
				ProjectCode: p.Code,
			})
		}
	}

	total := sheet.Total()
	if !total.Mul(decimal.NewFromInt(2)).IsInteger() {
		warnings = append(warnings, entity.Warning{
			Kind:     entity.WarningFractionalTotal,
			Severity: entity.SeverityMedium,
			Message:  fmt.Sprintf("weekly total %s is not a multiple of half an hour", total.String()),
		})
	}
	if total.GreaterThan(v.weekly) {
		warnings = append(warnings, entity.Warning{
			Kind:     entity.WarningSuspiciousTotal,
			Severity: entity.SeverityHigh,
			Message:  fmt.Sprintf("weekly total %s exceeds %s", total.String(), v.weekly.String()),
		})
	}
	return warnings
}

func standardCodePattern(prefixes reference.PrefixRules) *regexp.Regexp {
	digits := `\d+`
	if prefixes.DigitCount > 0 {
		digits = fmt.Sprintf(`\d{%d}`, prefixes.DigitCount)
	}
	return regexp.MustCompile("^" + regexp.QuoteMeta(prefixes.StandardPrefix) + digits + "$")
}

func validCode(code string, standard *regexp.Regexp, prefixes reference.PrefixRules) bool {
	if standard.MatchString(code) {
		return true
	}
	for _, p := range prefixes.AlternatePrefixes {
		p = strings.ToUpper(p)
		if len(code) > len(p) && strings.HasPrefix(code, p) && codeLikePattern.MatchString(code[len(p):]) {
			return true
		}
	}
	return false
}

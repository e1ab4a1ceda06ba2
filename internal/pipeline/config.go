package pipeline

import (
	"fmt"
	"strings"
)

// Rules toggles the individual project code/name corrections
type Rules struct {
	CategoryLabel       bool `mapstructure:"category_label"`
	CodeFromName        bool `mapstructure:"code_from_name"`
	PrefixNormalization bool `mapstructure:"prefix_normalization"`
	DigitConfusion      bool `mapstructure:"digit_confusion"`
	NameVariants        bool `mapstructure:"name_variants"`
	NameConsistency     bool `mapstructure:"name_consistency"`
}

// Config holds the tunables of the normalization pipeline
type Config struct {
	// Two-digit years below the pivot are 20yy, the rest 19yy
	PivotYear int `mapstructure:"pivot_year"`
	// DayFirst reads 03/04/2025 as 3 April
	DayFirst bool `mapstructure:"day_first"`

	NameAcceptThreshold  float64 `mapstructure:"name_accept_threshold"`
	NameHighThreshold    float64 `mapstructure:"name_high_threshold"`
	ProjectNameThreshold float64 `mapstructure:"project_name_threshold"`

	TotalsTolerance      float64 `mapstructure:"totals_tolerance"`
	MaxDailyHours        float64 `mapstructure:"max_daily_hours"`
	ProjectWeekWarnHours float64 `mapstructure:"project_week_warn_hours"`
	WeeklyWarnHours      float64 `mapstructure:"weekly_warn_hours"`

	// Each entry is a two-digit pair, applied in both directions
	DigitSubstitutions []string `mapstructure:"digit_substitutions"`
	// Each entry is "from" then "to"; these substitutions produce high confidence corrections
	HighConfidenceSubstitutions []string `mapstructure:"high_confidence_substitutions"`
	CategoryLabels              []string `mapstructure:"category_labels"`

	Rules Rules `mapstructure:"rules"`
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		PivotYear:                   70,
		DayFirst:                    true,
		NameAcceptThreshold:         0.85,
		NameHighThreshold:           0.95,
		ProjectNameThreshold:        0.90,
		TotalsTolerance:             0.01,
		MaxDailyHours:               24,
		ProjectWeekWarnHours:        50,
		WeeklyWarnHours:             60,
		DigitSubstitutions:          []string{"09", "08", "65", "23", "17"},
		HighConfidenceSubstitutions: []string{"90"},
		CategoryLabels:              []string{"DESIGN", "DESIGNA", "LABOUR", "TESTING", "BUILD", "DEPLOY", "BLDDPLYTEST"},
		Rules: Rules{
			CategoryLabel:       true,
			CodeFromName:        true,
			PrefixNormalization: true,
			DigitConfusion:      true,
			NameVariants:        true,
			NameConsistency:     true,
		},
	}
}

// Validate checks thresholds and substitution tables
func (c Config) Validate() error {
	if c.PivotYear < 0 || c.PivotYear > 99 {
		return fmt.Errorf("pivot_year must be between 0 and 99")
	}
	for name, v := range map[string]float64{
		"name_accept_threshold":  c.NameAcceptThreshold,
		"name_high_threshold":    c.NameHighThreshold,
		"project_name_threshold": c.ProjectNameThreshold,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0, 1]", name)
		}
	}
	if c.NameHighThreshold < c.NameAcceptThreshold {
		return fmt.Errorf("name_high_threshold must not be below name_accept_threshold")
	}
	if c.TotalsTolerance < 0 {
		return fmt.Errorf("totals_tolerance must not be negative")
	}
	for _, pair := range append(append([]string{}, c.DigitSubstitutions...), c.HighConfidenceSubstitutions...) {
		if len(pair) != 2 || !isDigit(pair[0]) || !isDigit(pair[1]) || pair[0] == pair[1] {
			return fmt.Errorf("invalid digit substitution %q", pair)
		}
	}
	return nil
}

func (c Config) isCategoryLabel(code string) bool {
	for _, l := range c.CategoryLabels {
		if strings.EqualFold(l, code) {
			return true
		}
	}
	return referenceLabelPattern.MatchString(code)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

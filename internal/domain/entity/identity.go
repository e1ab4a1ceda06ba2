package entity

import "strings"

// Identity is the resolved person a timesheet belongs to
type Identity struct {
	CanonicalName string  `json:"canonical_name"`
	StorageKey    string  `json:"storage_key"`
	MatchType     string  `json:"match_type"`
	Score         float64 `json:"score"`
	Confidence    string  `json:"confidence"`
}

// StorageKeyFor derives the partition key for a display name
func StorageKeyFor(name string) string {
	return strings.ReplaceAll(strings.Join(strings.Fields(name), " "), " ", "_")
}

// ProjectCodeRecord is one entry of the project master list
type ProjectCodeRecord struct {
	CanonicalCode      string   `json:"code" yaml:"code"`
	CanonicalName      string   `json:"name" yaml:"name"`
	KnownDigitVariants []string `json:"known_digit_variants,omitempty" yaml:"known_digit_variants,omitempty"`
	KnownNameVariants  []string `json:"known_name_variants,omitempty" yaml:"known_name_variants,omitempty"`
}

// HasDigitVariant reports whether code is a curated misreading of this record
func (p ProjectCodeRecord) HasDigitVariant(code string) bool {
	for _, v := range p.KnownDigitVariants {
		if strings.EqualFold(v, code) {
			return true
		}
	}
	return false
}

// HasNameVariant reports whether name is a known alternative description
func (p ProjectCodeRecord) HasNameVariant(name string) bool {
	for _, v := range p.KnownNameVariants {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

// KnownProject is a (code, name) pair previously stored for a resource and week
type KnownProject struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	SourceImageRef string `json:"source_image_ref,omitempty"`
}

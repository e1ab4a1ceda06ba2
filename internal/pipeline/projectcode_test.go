package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
	"github.com/garyjia/timesheet-ocr/internal/reference"
)

func masterSnapshot(projects ...entity.ProjectCodeRecord) *reference.Snapshot {
	return reference.NewSnapshot(nil, nil, projects, nil, reference.DefaultPrefixRules())
}

func TestProjectNormalizer_DigitConfusion(t *testing.T) {
	n := NewProjectNormalizer(DefaultConfig())

	t.Run("adopts the single matching variant", func(t *testing.T) {
		snapshot := masterSnapshot(entity.ProjectCodeRecord{CanonicalCode: "PJ024483", CanonicalName: "Network Upgrade"})

		res := n.Normalize("Network Upgrade (PJ024483)", "PJ924483", snapshot, ProjectLookup{})

		assert.Equal(t, "PJ024483", res.Code)
		assert.Equal(t, "Network Upgrade (PJ024483)", res.Name)
		assert.False(t, res.Ambiguous)
		assert.Len(t, res.Corrections, 1)
		assert.Equal(t, entity.CorrectionDigitConfusion, res.Corrections[0].Kind)
		assert.Equal(t, "PJ924483", res.Corrections[0].Before)
		assert.Equal(t, "PJ024483", res.Corrections[0].After)
		assert.Equal(t, entity.ConfidenceHigh, res.Corrections[0].Confidence)
	})

	t.Run("rarer substitutions are medium confidence", func(t *testing.T) {
		snapshot := masterSnapshot(entity.ProjectCodeRecord{CanonicalCode: "PJ024453", CanonicalName: "Network Upgrade"})

		res := n.Normalize("Network Upgrade", "PJ024463", snapshot, ProjectLookup{})

		assert.Equal(t, "PJ024453", res.Code)
		assert.Equal(t, entity.ConfidenceMedium, res.Corrections[0].Confidence)
	})

	t.Run("leaves an unmatched code unchanged and flags it", func(t *testing.T) {
		snapshot := masterSnapshot(entity.ProjectCodeRecord{CanonicalCode: "PJ111111", CanonicalName: "Other"})

		res := n.Normalize("Network Upgrade (PJ924483)", "PJ924483", snapshot, ProjectLookup{})

		assert.Equal(t, "PJ924483", res.Code)
		assert.True(t, res.Ambiguous)
		assert.Empty(t, res.Corrections)
		assert.Len(t, res.Warnings, 1)
		assert.Equal(t, entity.WarningAmbiguousCorrection, res.Warnings[0].Kind)
		assert.Contains(t, res.Warnings[0].Message, "suspected error, needs review")
	})

	t.Run("never picks between several variants", func(t *testing.T) {
		snapshot := masterSnapshot(
			entity.ProjectCodeRecord{CanonicalCode: "PJ224483"},
			entity.ProjectCodeRecord{CanonicalCode: "PJ324482"},
		)

		res := n.Normalize("Cabling (PJ324483)", "PJ324483", snapshot, ProjectLookup{})

		assert.Equal(t, "PJ324483", res.Code)
		assert.True(t, res.Ambiguous)
		assert.Contains(t, res.Warnings[0].Message, "PJ224483, PJ324482")
	})

	t.Run("curated digit variants win over substitutions", func(t *testing.T) {
		snapshot := masterSnapshot(entity.ProjectCodeRecord{
			CanonicalCode:      "PJ024483",
			CanonicalName:      "Network Upgrade",
			KnownDigitVariants: []string{"PJ024488"},
		})

		res := n.Normalize("Network Upgrade (PJ024483)", "PJ024488", snapshot, ProjectLookup{})

		assert.Equal(t, "PJ024483", res.Code)
		assert.Equal(t, entity.ConfidenceHigh, res.Corrections[0].Confidence)
	})

	t.Run("letters inside the digits are fixed", func(t *testing.T) {
		snapshot := masterSnapshot(entity.ProjectCodeRecord{CanonicalCode: "PJ024483", CanonicalName: "Network Upgrade"})

		res := n.Normalize("Network Upgrade (PJ024483)", "pjO24483", snapshot, ProjectLookup{})

		assert.Equal(t, "PJ024483", res.Code)
		assert.Equal(t, []string{entity.CorrectionDigitConfusion}, correctionKinds(res.Corrections))
	})

	t.Run("disabled rule leaves the code alone", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Rules.DigitConfusion = false
		snapshot := masterSnapshot(entity.ProjectCodeRecord{CanonicalCode: "PJ024483"})

		res := NewProjectNormalizer(cfg).Normalize("Network Upgrade (PJ924483)", "PJ924483", snapshot, ProjectLookup{})

		assert.Equal(t, "PJ924483", res.Code)
		assert.Empty(t, res.Corrections)
		assert.False(t, res.Ambiguous)
	})
}

func TestProjectNormalizer_CategoryLabels(t *testing.T) {
	n := NewProjectNormalizer(DefaultConfig())
	snapshot := masterSnapshot(
		entity.ProjectCodeRecord{CanonicalCode: "PJ032403", CanonicalName: "Design phase"},
		entity.ProjectCodeRecord{CanonicalCode: "PJ040001", CanonicalName: "Survey works"},
		entity.ProjectCodeRecord{CanonicalCode: "PJ040002", CanonicalName: "Survey works north"},
	)

	tests := []struct {
		name         string
		projectName  string
		projectCode  string
		expectedCode string
		expectedName string
		expectedKind []string
		ambiguous    bool
	}{
		{
			name:         "label in name with real code",
			projectName:  "Design phase (DESIGN)",
			projectCode:  "PJ032403",
			expectedCode: "PJ032403",
			expectedName: "Design phase (PJ032403)",
			expectedKind: []string{entity.CorrectionCategoryLabel},
		},
		{
			name:         "label as code resolved from master list",
			projectName:  "Design phase",
			projectCode:  "DESIGN",
			expectedCode: "PJ032403",
			expectedName: "Design phase (PJ032403)",
			expectedKind: []string{entity.CorrectionCategoryLabel, entity.CorrectionMissingCodeInName},
		},
		{
			name:         "reference label with digits",
			projectName:  "Design phase (PJ032403)",
			projectCode:  "INFRA2",
			expectedCode: "PJ032403",
			expectedName: "Design phase (PJ032403)",
			expectedKind: []string{entity.CorrectionCategoryLabel},
		},
		{
			name:         "label with several candidates is flagged",
			projectName:  "Survey",
			projectCode:  "TESTING",
			expectedCode: "TESTING",
			expectedName: "Survey (TESTING)",
			expectedKind: []string{entity.CorrectionMissingCodeInName},
			ambiguous:    true,
		},
		{
			name:         "labels and codes stacked in the name",
			projectName:  "Design phase (DESIGN) (PJ032403)",
			projectCode:  "PJ032403",
			expectedCode: "PJ032403",
			expectedName: "Design phase (PJ032403)",
			expectedKind: []string{entity.CorrectionCategoryLabel},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := n.Normalize(tt.projectName, tt.projectCode, snapshot, ProjectLookup{})
			assert.Equal(t, tt.expectedCode, res.Code)
			assert.Equal(t, tt.expectedName, res.Name)
			assert.Equal(t, tt.expectedKind, correctionKinds(res.Corrections))
			assert.Equal(t, tt.ambiguous, res.Ambiguous)
		})
	}
}

func TestProjectNormalizer_NameConsistency(t *testing.T) {
	n := NewProjectNormalizer(DefaultConfig())
	snapshot := masterSnapshot()

	tests := []struct {
		name         string
		projectName  string
		projectCode  string
		expectedCode string
		expectedName string
		expectedKind []string
	}{
		{
			name:         "already consistent",
			projectName:  "Fibre rollout (PJ024483)",
			projectCode:  "PJ024483",
			expectedCode: "PJ024483",
			expectedName: "Fibre rollout (PJ024483)",
		},
		{
			name:         "missing code is appended",
			projectName:  "Fibre rollout",
			projectCode:  "PJ024483",
			expectedCode: "PJ024483",
			expectedName: "Fibre rollout (PJ024483)",
			expectedKind: []string{entity.CorrectionMissingCodeInName},
		},
		{
			name:         "wrong code is replaced",
			projectName:  "Fibre rollout (PJ024488)",
			projectCode:  "PJ024483",
			expectedCode: "PJ024483",
			expectedName: "Fibre rollout (PJ024483)",
			expectedKind: []string{entity.CorrectionWrongCodeInName},
		},
		{
			name:         "duplicated code is collapsed",
			projectName:  "Fibre rollout (PJ024483) (PJ024483)",
			projectCode:  "PJ024483",
			expectedCode: "PJ024483",
			expectedName: "Fibre rollout (PJ024483)",
			expectedKind: []string{entity.CorrectionWrongCodeInName},
		},
		{
			name:         "code recovered from name",
			projectName:  "Fibre rollout (PJ024483)",
			projectCode:  "",
			expectedCode: "PJ024483",
			expectedName: "Fibre rollout (PJ024483)",
			expectedKind: []string{entity.CorrectionCodeFromName},
		},
		{
			name:         "descriptive parentheses are kept",
			projectName:  "Fibre rollout (phase two)",
			projectCode:  "PJ024483",
			expectedCode: "PJ024483",
			expectedName: "Fibre rollout (phase two) (PJ024483)",
			expectedKind: []string{entity.CorrectionMissingCodeInName},
		},
		{
			name:         "prefix confusion",
			projectName:  "Legacy support (NTC51234)",
			projectCode:  "NTCS1234",
			expectedCode: "NTC51234",
			expectedName: "Legacy support (NTC51234)",
			expectedKind: []string{entity.CorrectionPrefixConfusion},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := n.Normalize(tt.projectName, tt.projectCode, snapshot, ProjectLookup{})
			assert.Equal(t, tt.expectedCode, res.Code)
			assert.Equal(t, tt.expectedName, res.Name)
			if tt.expectedKind == nil {
				assert.Empty(t, res.Corrections)
			} else {
				assert.Equal(t, tt.expectedKind, correctionKinds(res.Corrections))
			}
			for _, c := range res.Corrections {
				assert.Equal(t, tt.expectedCode, c.Project)
			}
		})
	}
}

func TestProjectNormalizer_MissingCode(t *testing.T) {
	n := NewProjectNormalizer(DefaultConfig())

	res := n.Normalize("Misc", "", masterSnapshot(entity.ProjectCodeRecord{CanonicalCode: "PJ024483", CanonicalName: "Network Upgrade"}), ProjectLookup{})

	assert.Equal(t, entity.UnknownProjectCode, res.Code)
	assert.Equal(t, "Misc", res.Name)
	assert.Len(t, res.Warnings, 1)
	assert.Equal(t, entity.WarningMissingData, res.Warnings[0].Kind)
	assert.Equal(t, entity.SeverityHigh, res.Warnings[0].Severity)
}

func TestProjectNormalizer_NameVariants(t *testing.T) {
	n := NewProjectNormalizer(DefaultConfig())
	snapshot := masterSnapshot(entity.ProjectCodeRecord{
		CanonicalCode:     "PJ024483",
		CanonicalName:     "Network Upgrade",
		KnownNameVariants: []string{"Netwrk Upgrde"},
	})

	t.Run("known variant is replaced", func(t *testing.T) {
		res := n.Normalize("Netwrk Upgrde (PJ024483)", "PJ024483", snapshot, ProjectLookup{})
		assert.Equal(t, "Network Upgrade (PJ024483)", res.Name)
		assert.Equal(t, []string{entity.CorrectionProjectNameVariant}, correctionKinds(res.Corrections))
	})

	t.Run("empty name takes the canonical name", func(t *testing.T) {
		res := n.Normalize("", "PJ024483", snapshot, ProjectLookup{})
		assert.Equal(t, "Network Upgrade (PJ024483)", res.Name)
		assert.Equal(t, []string{entity.CorrectionProjectNameVariant, entity.CorrectionMissingCodeInName}, correctionKinds(res.Corrections))
	})

	t.Run("code from name by description", func(t *testing.T) {
		res := n.Normalize("Netwrk Upgrde", "", snapshot, ProjectLookup{})
		assert.Equal(t, "PJ024483", res.Code)
		assert.Equal(t, "Network Upgrade (PJ024483)", res.Name)
	})
}

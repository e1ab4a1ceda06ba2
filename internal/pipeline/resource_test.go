package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
)

func TestResourceResolver_Resolve(t *testing.T) {
	r := NewResourceResolver(DefaultConfig())
	snapshot := testSnapshot()

	tests := []struct {
		name          string
		input         string
		expectedName  string
		expectedKey   string
		expectedMatch string
		confidence    string
		event         string
	}{
		{
			name:          "exact",
			input:         "Jane Smith",
			expectedName:  "Jane Smith",
			expectedKey:   "Jane_Smith",
			expectedMatch: entity.MatchExact,
			confidence:    entity.ConfidenceHigh,
		},
		{
			name:          "exact ignores case and spacing",
			input:         "  jane   SMITH ",
			expectedName:  "Jane Smith",
			expectedKey:   "Jane_Smith",
			expectedMatch: entity.MatchExact,
			confidence:    entity.ConfidenceHigh,
		},
		{
			name:          "alias",
			input:         "j smith",
			expectedName:  "Jane Smith",
			expectedKey:   "Jane_Smith",
			expectedMatch: entity.MatchAlias,
			confidence:    entity.ConfidenceHigh,
			event:         entity.CorrectionNameAlias,
		},
		{
			name:          "fuzzy medium",
			input:         "Jane Smyth",
			expectedName:  "Jane Smith",
			expectedKey:   "Jane_Smith",
			expectedMatch: entity.MatchFuzzy,
			confidence:    entity.ConfidenceMedium,
			event:         entity.CorrectionNameFuzzy,
		},
		{
			name:          "fuzzy high",
			input:         "Christopher Welington",
			expectedName:  "Christopher Wellington",
			expectedKey:   "Christopher_Wellington",
			expectedMatch: entity.MatchFuzzy,
			confidence:    entity.ConfidenceHigh,
			event:         entity.CorrectionNameFuzzy,
		},
		{
			name:          "accents are folded",
			input:         "Jané Smith-",
			expectedName:  "Jane Smith",
			expectedKey:   "Jane_Smith",
			expectedMatch: entity.MatchFuzzy,
			confidence:    entity.ConfidenceHigh,
			event:         entity.CorrectionNameFuzzy,
		},
		{
			name:          "unresolved passes through",
			input:         "Bob Jones",
			expectedName:  "Bob Jones",
			expectedKey:   "Bob_Jones",
			expectedMatch: entity.MatchUnresolved,
			confidence:    entity.ConfidenceLow,
		},
		{
			name:          "missing name",
			input:         "",
			expectedKey:   "UNKNOWN",
			expectedMatch: entity.MatchUnresolved,
			confidence:    entity.ConfidenceLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, events := r.Resolve(tt.input, snapshot)
			assert.Equal(t, tt.expectedName, id.CanonicalName)
			assert.Equal(t, tt.expectedKey, id.StorageKey)
			assert.Equal(t, tt.expectedMatch, id.MatchType)
			assert.Equal(t, tt.confidence, id.Confidence)
			if tt.event == "" {
				assert.Empty(t, events)
			} else {
				assert.Len(t, events, 1)
				assert.Equal(t, tt.event, events[0].Kind)
				assert.Equal(t, tt.expectedName, events[0].After)
			}
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("jane smith", "jane smith"))
	assert.Equal(t, 0.0, Similarity("", ""))
	assert.InDelta(t, 0.9, Similarity("jane smyth", "jane smith"), 0.0001)
	assert.Less(t, Similarity("bob jones", "jane smith"), 0.5)
}

func TestFoldName(t *testing.T) {
	assert.Equal(t, "jose alvarez", FoldName("  José  Álvarez "))
	assert.Equal(t, "mary jane obrien", FoldName("Mary-Jane O'Brien"))
}

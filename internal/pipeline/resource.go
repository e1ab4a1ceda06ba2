package pipeline

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
	"github.com/garyjia/timesheet-ocr/internal/reference"
)

// unknownResourceKey is used when the sheet carried no name at all
const unknownResourceKey = "UNKNOWN"

// ResourceResolver maps an extracted person name onto the roster
type ResourceResolver struct {
	accept float64
	high   float64
}

// NewResourceResolver creates a resolver from pipeline settings
func NewResourceResolver(cfg Config) ResourceResolver {
	return ResourceResolver{accept: cfg.NameAcceptThreshold, high: cfg.NameHighThreshold}
}

// Resolve applies exact, alias and similarity matching in that order. An
// unresolved name is passed through unchanged with MatchUnresolved and low
// confidence; no correction event is produced for it.
func (r ResourceResolver) Resolve(raw string, snapshot *reference.Snapshot) (entity.Identity, []entity.CorrectionEvent) {
	name := reference.CollapseSpaces(raw)
	if name == "" {
		return entity.Identity{
			StorageKey: unknownResourceKey,
			MatchType:  entity.MatchUnresolved,
			Confidence: entity.ConfidenceLow,
		}, nil
	}

	key := reference.AliasKey(name)
	for _, member := range snapshot.Roster {
		if reference.AliasKey(member) == key {
			return identity(member, entity.MatchExact, 1, entity.ConfidenceHigh), nil
		}
	}

	if canonical, ok := snapshot.AliasFor(name); ok {
		return identity(canonical, entity.MatchAlias, 1, entity.ConfidenceHigh), []entity.CorrectionEvent{{
			Kind:       entity.CorrectionNameAlias,
			Before:     name,
			After:      canonical,
			Confidence: entity.ConfidenceHigh,
		}}
	}

	best, bestScore := "", 0.0
	folded := FoldName(name)
	for _, member := range snapshot.Roster {
		if score := Similarity(folded, FoldName(member)); score > bestScore {
			best, bestScore = member, score
		}
	}

	if best != "" && bestScore >= r.accept {
		confidence := entity.ConfidenceMedium
		if bestScore >= r.high {
			confidence = entity.ConfidenceHigh
		}
		return identity(best, entity.MatchFuzzy, bestScore, confidence), []entity.CorrectionEvent{{
			Kind:       entity.CorrectionNameFuzzy,
			Before:     name,
			After:      best,
			Confidence: confidence,
		}}
	}

	return identity(name, entity.MatchUnresolved, bestScore, entity.ConfidenceLow), nil
}

func identity(name, match string, score float64, confidence string) entity.Identity {
	return entity.Identity{
		CanonicalName: name,
		StorageKey:    entity.StorageKeyFor(name),
		MatchType:     match,
		Score:         score,
		Confidence:    confidence,
	}
}

// FoldName lower-cases s, strips accents and punctuation and collapses spaces
func FoldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_':
			b.WriteRune(' ')
		}
	}
	return reference.CollapseSpaces(b.String())
}

// Similarity is 1 - edit distance / longer length, over runes
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.Distance(a, b, nil))/float64(longest)
}

package pipeline

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
	"github.com/garyjia/timesheet-ocr/internal/reference"
)

var (
	referenceLabelPattern = regexp.MustCompile(`^(INFRA|DATA)\d*$`)
	trailingParenPattern  = regexp.MustCompile(`\s*\(([^()]*)\)\s*$`)
	codeLikePattern       = regexp.MustCompile(`^[A-Z0-9]+$`)
)

// NormalizedProject is the outcome of normalizing one project row's code and name
type NormalizedProject struct {
	Code        string
	Name        string
	Description string
	Corrections []entity.CorrectionEvent
	Warnings    []entity.Warning
	Ambiguous   bool
}

// ProjectLookup holds the known (code, name) pairs consulted when a row's
// code has to be recovered from its description. Sheet wins over History.
type ProjectLookup struct {
	// Sheet holds the codes written on the other rows of the same extraction
	Sheet []entity.KnownProject
	// History holds the projects stored for the resource and week by other images
	History []entity.KnownProject
}

// ProjectNormalizer reconciles a row's structured code with its free-text name
type ProjectNormalizer struct {
	cfg Config
}

// NewProjectNormalizer creates a normalizer from pipeline settings
func NewProjectNormalizer(cfg Config) ProjectNormalizer {
	return ProjectNormalizer{cfg: cfg}
}

// Normalize runs the enabled rules in order: letter cleanup, category label
// lookup, code recovery from the name, prefix confusion, digit confusion,
// known name variants, and finally name/code consistency. lookup holds the
// codes written elsewhere on the sheet and those already stored for the
// resource and week.
func (n ProjectNormalizer) Normalize(rawName, rawCode string, snapshot *reference.Snapshot, lookup ProjectLookup) NormalizedProject {
	var res NormalizedProject
	rules := n.cfg.Rules
	prefixes := snapshot.Prefixes

	originalName := reference.CollapseSpaces(rawName)
	desc, parens := n.splitName(originalName)
	code := cleanCode(rawCode)

	if fixed := fixLetterDigits(code, prefixes); fixed != code {
		res.addCorrection(entity.CorrectionDigitConfusion, code, fixed, entity.ConfidenceHigh)
		code = fixed
	}

	if rules.CategoryLabel && code != "" && n.cfg.isCategoryLabel(code) {
		if resolved, ok := n.resolveByName(desc, snapshot, lookup); ok {
			res.addCorrection(entity.CorrectionCategoryLabel, code, resolved, entity.ConfidenceMedium)
			code = resolved
		} else {
			res.addAmbiguous(fmt.Sprintf("category label %s used as project code for %q and no unique real code was found", code, desc))
		}
	}

	if rules.CodeFromName && code == "" {
		if candidate := lastCodeParen(parens, n.cfg); candidate != "" {
			recovered := fixLetterDigits(candidate, prefixes)
			res.addCorrection(entity.CorrectionCodeFromName, "", recovered, entity.ConfidenceHigh)
			code = recovered
		} else if resolved, ok := n.resolveByName(desc, snapshot, lookup); ok {
			res.addCorrection(entity.CorrectionCodeFromName, "", resolved, entity.ConfidenceMedium)
			code = resolved
		}
	}

	if code == "" {
		code = entity.UnknownProjectCode
		res.Warnings = append(res.Warnings, entity.Warning{
			Kind:     entity.WarningMissingData,
			Severity: entity.SeverityHigh,
			Message:  fmt.Sprintf("no project code could be determined for %q", originalName),
		})
	}
	resolvable := code != entity.UnknownProjectCode && !n.cfg.isCategoryLabel(code)

	if rules.PrefixNormalization && resolvable {
		for _, from := range prefixes.ConfusionKeys() {
			to := prefixes.Confusions[from]
			if strings.HasPrefix(code, from) && !strings.HasPrefix(code, to) {
				fixed := to + code[len(from):]
				res.addCorrection(entity.CorrectionPrefixConfusion, code, fixed, entity.ConfidenceMedium)
				code = fixed
				break
			}
		}
	}

	if rules.DigitConfusion && resolvable && snapshot.HasProjects() {
		code = n.correctDigits(code, snapshot, &res)
	}

	record, known := snapshot.ProjectByCode(code)
	if rules.NameVariants && known && record.CanonicalName != "" {
		switch {
		case desc == "":
			res.addCorrection(entity.CorrectionProjectNameVariant, "", record.CanonicalName, entity.ConfidenceMedium)
			desc = record.CanonicalName
		case desc != record.CanonicalName && record.HasNameVariant(desc):
			res.addCorrection(entity.CorrectionProjectNameVariant, desc, record.CanonicalName, entity.ConfidenceHigh)
			desc = record.CanonicalName
		}
	}

	if rules.NameConsistency && code != entity.UnknownProjectCode {
		res.Name = composeName(desc, code)
		n.reconcileName(originalName, parens, code, &res)
	} else {
		res.Name = composeName(desc, parens...)
	}

	res.Code = code
	res.Description = desc
	for i := range res.Corrections {
		res.Corrections[i].Project = code
	}
	for i := range res.Warnings {
		res.Warnings[i].ProjectCode = code
	}
	return res
}

// reconcileName records how the name's parenthetical code differed from the structured code
func (n ProjectNormalizer) reconcileName(originalName string, parens []string, code string, res *NormalizedProject) {
	if len(parens) == 0 {
		res.addCorrection(entity.CorrectionMissingCodeInName, originalName, res.Name, entity.ConfidenceHigh)
		return
	}

	for _, p := range parens {
		if p == code {
			continue
		}
		if n.cfg.isCategoryLabel(p) {
			res.addCorrection(entity.CorrectionCategoryLabel, originalName, res.Name, entity.ConfidenceMedium)
		} else {
			res.addCorrection(entity.CorrectionWrongCodeInName, originalName, res.Name, entity.ConfidenceHigh)
		}
		return
	}

	if len(parens) > 1 {
		res.addCorrection(entity.CorrectionWrongCodeInName, originalName, res.Name, entity.ConfidenceHigh)
	}
}

// correctDigits applies curated digit variants, then single substitutions from the confusion table
func (n ProjectNormalizer) correctDigits(code string, snapshot *reference.Snapshot, res *NormalizedProject) string {
	if _, ok := snapshot.ProjectByCode(code); ok {
		return code
	}

	var curated []string
	for _, p := range snapshot.Projects {
		if p.HasDigitVariant(code) {
			curated = append(curated, p.CanonicalCode)
		}
	}
	if len(curated) == 1 {
		res.addCorrection(entity.CorrectionDigitConfusion, code, curated[0], entity.ConfidenceHigh)
		return curated[0]
	}
	if len(curated) > 1 {
		res.addAmbiguous(fmt.Sprintf("suspected error, needs review: %s is a known variant of %s", code, strings.Join(curated, ", ")))
		return code
	}

	variants := n.substitutions(code)
	var matches []string
	for variant := range variants {
		if _, ok := snapshot.ProjectByCode(variant); ok {
			matches = append(matches, variant)
		}
	}
	sort.Strings(matches)

	switch len(matches) {
	case 1:
		confidence := entity.ConfidenceMedium
		if variants[matches[0]] {
			confidence = entity.ConfidenceHigh
		}
		res.addCorrection(entity.CorrectionDigitConfusion, code, matches[0], confidence)
		return matches[0]
	case 0:
		res.addAmbiguous(fmt.Sprintf("suspected error, needs review: %s is not in the project master list", code))
	default:
		res.addAmbiguous(fmt.Sprintf("suspected error, needs review: %s could be any of %s", code, strings.Join(matches, ", ")))
	}
	return code
}

// substitutions returns every single-digit variant of code; the value is true
// when the substitution is one of the high confidence ones
func (n ProjectNormalizer) substitutions(code string) map[string]bool {
	out := make(map[string]bool)
	high := make(map[string]bool, len(n.cfg.HighConfidenceSubstitutions))
	for _, s := range n.cfg.HighConfidenceSubstitutions {
		high[s] = true
	}

	b := []byte(code)
	for i, ch := range b {
		if !isDigit(ch) {
			continue
		}
		for _, pair := range n.cfg.DigitSubstitutions {
			if len(pair) != 2 {
				continue
			}
			var to byte
			switch ch {
			case pair[0]:
				to = pair[1]
			case pair[1]:
				to = pair[0]
			default:
				continue
			}
			variant := make([]byte, len(b))
			copy(variant, b)
			variant[i] = to
			key := string(variant)
			out[key] = out[key] || high[string([]byte{ch, to})]
		}
	}
	return out
}

// resolveByName finds the unique real code for a description, first among
// the other rows of the sheet, then among the projects already stored for
// the resource and week, then in the master list
func (n ProjectNormalizer) resolveByName(desc string, snapshot *reference.Snapshot, lookup ProjectLookup) (string, bool) {
	folded := FoldName(desc)
	if folded == "" {
		return "", false
	}

	for _, known := range [][]entity.KnownProject{lookup.Sheet, lookup.History} {
		matches := n.matchKnown(folded, known)
		if len(matches) == 1 {
			return matches[0], true
		}
		if len(matches) > 1 {
			return "", false
		}
	}

	var fromMaster []string
	for _, p := range snapshot.Projects {
		names := append([]string{p.CanonicalName}, p.KnownNameVariants...)
		for _, name := range names {
			if name != "" && descriptionMatches(folded, FoldName(name)) {
				fromMaster = append(fromMaster, p.CanonicalCode)
				break
			}
		}
	}
	if len(fromMaster) == 1 {
		return fromMaster[0], true
	}
	if len(fromMaster) > 1 {
		return "", false
	}

	best, bestScore, tie := "", 0.0, false
	for _, p := range snapshot.Projects {
		score := 0.0
		for _, name := range append([]string{p.CanonicalName}, p.KnownNameVariants...) {
			if s := Similarity(folded, FoldName(name)); s > score {
				score = s
			}
		}
		switch {
		case score > bestScore:
			best, bestScore, tie = p.CanonicalCode, score, false
		case score == bestScore && score > 0:
			tie = true
		}
	}
	if best != "" && !tie && bestScore >= n.cfg.ProjectNameThreshold {
		return best, true
	}
	return "", false
}

// matchKnown returns the distinct real codes whose description matches folded
func (n ProjectNormalizer) matchKnown(folded string, known []entity.KnownProject) []string {
	seen := make(map[string]bool)
	var matches []string
	for _, k := range known {
		code := cleanCode(k.Code)
		if code == "" || code == entity.UnknownProjectCode || n.cfg.isCategoryLabel(code) || seen[code] {
			continue
		}
		kd, _ := n.splitName(k.Name)
		if descriptionMatches(folded, FoldName(kd)) {
			seen[code] = true
			matches = append(matches, code)
		}
	}
	return matches
}

// splitName separates trailing code-like parentheticals from the description.
// "Design (DESIGN) (PJ032403)" gives "Design" and [DESIGN PJ032403].
func (n ProjectNormalizer) splitName(name string) (string, []string) {
	desc := reference.CollapseSpaces(name)
	var parens []string
	for {
		loc := trailingParenPattern.FindStringSubmatchIndex(desc)
		if loc == nil {
			break
		}
		content := strings.TrimSpace(desc[loc[2]:loc[3]])
		upper := strings.ToUpper(strings.Join(strings.Fields(content), ""))
		codeLike := codeLikePattern.MatchString(content) && strings.IndexFunc(content, unicode.IsDigit) >= 0
		if !codeLike && !n.cfg.isCategoryLabel(upper) {
			break
		}
		parens = append([]string{upper}, parens...)
		desc = strings.TrimSpace(desc[:loc[0]])
	}
	return desc, parens
}

func (r *NormalizedProject) addCorrection(kind, before, after, confidence string) {
	r.Corrections = append(r.Corrections, entity.CorrectionEvent{
		Kind:       kind,
		Before:     before,
		After:      after,
		Confidence: confidence,
	})
}

func (r *NormalizedProject) addAmbiguous(message string) {
	r.Ambiguous = true
	r.Warnings = append(r.Warnings, entity.Warning{
		Kind:     entity.WarningAmbiguousCorrection,
		Severity: entity.SeverityMedium,
		Message:  message,
	})
}

func lastCodeParen(parens []string, cfg Config) string {
	for i := len(parens) - 1; i >= 0; i-- {
		if !cfg.isCategoryLabel(parens[i]) {
			return parens[i]
		}
	}
	return ""
}

func descriptionMatches(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	const minPrefix = 3
	return (len(a) >= minPrefix && strings.HasPrefix(b, a+" ")) ||
		(len(b) >= minPrefix && strings.HasPrefix(a, b+" "))
}

func composeName(desc string, codes ...string) string {
	var b strings.Builder
	b.WriteString(desc)
	for _, c := range codes {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("(" + c + ")")
	}
	return b.String()
}

func cleanCode(code string) string {
	return strings.ToUpper(strings.Join(strings.Fields(code), ""))
}

// fixLetterDigits maps O to 0 and I or L to 1 inside the numeric tail of a standard code
func fixLetterDigits(code string, prefixes reference.PrefixRules) string {
	p := prefixes.StandardPrefix
	if p == "" || !strings.HasPrefix(code, p) {
		return code
	}
	tail := code[len(p):]
	if prefixes.DigitCount > 0 && len(tail) != prefixes.DigitCount {
		return code
	}

	fixed := strings.Map(func(r rune) rune {
		switch r {
		case 'O':
			return '0'
		case 'I', 'L':
			return '1'
		}
		return r
	}, tail)
	if fixed == tail || strings.IndexFunc(fixed, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return code
	}
	return p + fixed
}

package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
)

type dateLayout struct {
	layout  string
	twoYear bool
}

var (
	textualLayouts = []dateLayout{
		{layout: "Jan 2 2006"},
		{layout: "Jan 2, 2006"},
		{layout: "January 2 2006"},
		{layout: "January 2, 2006"},
		{layout: "2 Jan 2006"},
		{layout: "2 Jan, 2006"},
		{layout: "2 January 2006"},
		{layout: "2 January, 2006"},
		{layout: "2006-01-02"},
		{layout: "2006/01/02"},
		{layout: "Jan 2 06", twoYear: true},
		{layout: "Jan 2, 06", twoYear: true},
		{layout: "2 Jan 06", twoYear: true},
		{layout: "January 2 06", twoYear: true},
		{layout: "2 January 06", twoYear: true},
	}
	dayFirstLayouts = []dateLayout{
		{layout: "2/1/2006"},
		{layout: "2.1.2006"},
		{layout: "2-1-2006"},
		{layout: "2/1/06", twoYear: true},
		{layout: "2.1.06", twoYear: true},
		{layout: "2-1-06", twoYear: true},
	}
	monthFirstLayouts = []dateLayout{
		{layout: "1/2/2006"},
		{layout: "1.2.2006"},
		{layout: "1-2-2006"},
		{layout: "1/2/06", twoYear: true},
		{layout: "1.2.06", twoYear: true},
		{layout: "1-2-06", twoYear: true},
	}
	yearlessTextual    = []string{"Jan 2", "January 2", "2 Jan", "2 January"}
	yearlessDayFirst   = []string{"2/1", "2.1"}
	yearlessMonthFirst = []string{"1/2", "1.2"}

	ordinalPattern   = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	septPattern      = regexp.MustCompile(`(?i)\bsept\b\.?`)
	weekdayPattern   = regexp.MustCompile(`(?i)\b(mon|tue|tues|wed|thu|thur|thurs|fri|sat|sun)(day|nesday|sday|rsday|urday)?\b\.?,?`)
	prefixPattern    = regexp.MustCompile(`(?i)^(week\s+(commencing|beginning|starting|ending)|w/c|w/e|w\.c\.|w\.e\.|wc\b|we\b)\s*:?\s*`)
	spacedSeparators = []string{" - ", " – ", " — ", " to ", " until ", " through "}
	bareDayPattern   = regexp.MustCompile(`^(\d{1,2})(,?\s+(\d{4}))?$`)
)

// DateResolver turns a free-text date range into a Monday-to-Sunday week
type DateResolver struct {
	pivotYear int
	dayFirst  bool
}

// NewDateResolver creates a resolver from pipeline settings
func NewDateResolver(cfg Config) DateResolver {
	return DateResolver{pivotYear: cfg.PivotYear, dayFirst: cfg.DayFirst}
}

type parsedDate struct {
	t       time.Time
	hasYear bool
}

// Resolve parses text into a CanonicalWeek. A range that is not exactly one
// Monday-to-Sunday week is snapped to the week containing its start date and a
// DATE_RANGE_ADJUSTED correction is returned. Unparseable text is a DateParse error.
func (r DateResolver) Resolve(text string) (entity.CanonicalWeek, []entity.CorrectionEvent, error) {
	original := strings.TrimSpace(text)
	if original == "" {
		return entity.CanonicalWeek{}, nil, dateParseError("date range is empty", nil)
	}

	cleaned := r.clean(original)
	endsWeek := false
	if m := prefixPattern.FindStringSubmatch(cleaned); m != nil {
		switch strings.ToLower(strings.TrimSpace(m[1])) {
		case "w/e", "w.e.", "we":
			endsWeek = true
		default:
			endsWeek = strings.HasSuffix(strings.ToLower(m[1]), "ending")
		}
		cleaned = strings.TrimSpace(cleaned[len(m[0]):])
	}

	start, end, err := r.parseRange(cleaned)
	if err != nil {
		single, serr := r.parseSingle(cleaned)
		if serr != nil {
			return entity.CanonicalWeek{}, nil, dateParseError(fmt.Sprintf("unrecognised date range %q", original), err)
		}
		if endsWeek {
			start, end = single.AddDate(0, 0, -6), single
		} else {
			start, end = single, single.AddDate(0, 0, 6)
		}
	}

	if end.Before(start) {
		start, end = end, start
	}

	monday := start.AddDate(0, 0, -((int(start.Weekday()) + 6) % 7))
	week, err := entity.NewCanonicalWeek(monday)
	if err != nil {
		return entity.CanonicalWeek{}, nil, dateParseError("failed to build week", err)
	}

	var events []entity.CorrectionEvent
	if !start.Equal(week.StartDate) || !end.Equal(week.EndDate) {
		events = append(events, entity.CorrectionEvent{
			Kind:       entity.CorrectionDateRangeAdjusted,
			Before:     original,
			After:      week.StartDate.Format(entity.DateLayout) + "/" + week.EndDate.Format(entity.DateLayout),
			Confidence: entity.ConfidenceMedium,
		})
	}
	return week, events, nil
}

func (r DateResolver) clean(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = ordinalPattern.ReplaceAllString(s, "$1")
	s = septPattern.ReplaceAllString(s, "Sep")
	s = weekdayPattern.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, " .,;:")
}

// parseRange tries the spaced separators first, then every single-character split point
func (r DateResolver) parseRange(s string) (time.Time, time.Time, error) {
	lower := strings.ToLower(s)
	for _, sep := range spacedSeparators {
		if i := strings.Index(lower, sep); i >= 0 {
			if start, end, err := r.parseSides(s[:i], s[i+len(sep):]); err == nil {
				return start, end, nil
			}
		}
	}

	for i, c := range s {
		if c != '-' && c != '–' && c != '—' && c != ',' {
			continue
		}
		if start, end, err := r.parseSides(s[:i], s[i+len(string(c)):]); err == nil {
			return start, end, nil
		}
	}
	return time.Time{}, time.Time{}, fmt.Errorf("no separator splits %q into two dates", s)
}

// parseSides reads both sides of a range in one numeric order: the configured
// one, then the other for both sides when the first fails
func (r DateResolver) parseSides(left, right string) (time.Time, time.Time, error) {
	left = strings.Trim(left, " ,")
	right = strings.Trim(right, " ,")
	if left == "" || right == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("empty side")
	}

	start, end, err := r.parseSidesIn(left, right, r.dayFirst)
	if err == nil {
		return start, end, nil
	}
	if start, end, ferr := r.parseSidesIn(left, right, !r.dayFirst); ferr == nil {
		return start, end, nil
	}
	return time.Time{}, time.Time{}, err
}

func (r DateResolver) parseSidesIn(left, right string, dayFirst bool) (time.Time, time.Time, error) {
	start, serr := r.parseDateIn(left, dayFirst)
	end, eerr := r.parseDateIn(right, dayFirst)

	// "Mar 3 - 9 2025" and "3 - 9 March 2025": one side carries the month
	switch {
	case serr == nil && eerr == nil:
	case serr == nil:
		m := bareDayPattern.FindStringSubmatch(right)
		if m == nil {
			return time.Time{}, time.Time{}, eerr
		}
		if end, eerr = r.borrowMonth(start, m[1], m[3], dayFirst); eerr != nil {
			return time.Time{}, time.Time{}, eerr
		}
	case eerr == nil:
		m := bareDayPattern.FindStringSubmatch(left)
		if m == nil {
			return time.Time{}, time.Time{}, serr
		}
		if start, serr = r.borrowMonth(end, m[1], m[3], dayFirst); serr != nil {
			return time.Time{}, time.Time{}, serr
		}
	default:
		return time.Time{}, time.Time{}, serr
	}

	return r.reconcileYears(start, end)
}

func (r DateResolver) borrowMonth(from parsedDate, day, year string, dayFirst bool) (parsedDate, error) {
	text := fmt.Sprintf("%s %s", from.t.Format("Jan"), day)
	if year != "" {
		text += " " + year
	} else if from.hasYear {
		text += " " + from.t.Format("2006")
	}
	return r.parseDateIn(text, dayFirst)
}

func (r DateResolver) reconcileYears(start, end parsedDate) (time.Time, time.Time, error) {
	switch {
	case start.hasYear && end.hasYear:
	case !start.hasYear && end.hasYear:
		start.t = withYear(start.t, end.t.Year())
		if start.t.After(end.t) {
			start.t = withYear(start.t, end.t.Year()-1)
		}
	case start.hasYear && !end.hasYear:
		end.t = withYear(end.t, start.t.Year())
		if end.t.Before(start.t) {
			end.t = withYear(end.t, start.t.Year()+1)
		}
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("date range has no year")
	}
	return start.t, end.t, nil
}

func (r DateResolver) parseSingle(s string) (time.Time, error) {
	d, err := r.parseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	if !d.hasYear {
		return time.Time{}, fmt.Errorf("date %q has no year", s)
	}
	return d.t, nil
}

// parseDate reads a lone date in the configured numeric order, then the other
func (r DateResolver) parseDate(s string) (parsedDate, error) {
	d, err := r.parseDateIn(s, r.dayFirst)
	if err == nil {
		return d, nil
	}
	if d, ferr := r.parseDateIn(s, !r.dayFirst); ferr == nil {
		return d, nil
	}
	return parsedDate{}, err
}

// parseDateIn accepts textual dates and numeric dates in one order only
func (r DateResolver) parseDateIn(s string, dayFirst bool) (parsedDate, error) {
	s = strings.Trim(strings.TrimSpace(s), ".,")
	if s == "" {
		return parsedDate{}, fmt.Errorf("empty date")
	}

	for _, l := range layoutsFor(dayFirst) {
		t, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		if l.twoYear {
			t = withYear(t, r.expandYear(t.Year()%100))
		}
		return parsedDate{t: t, hasYear: true}, nil
	}

	for _, layout := range yearlessLayoutsFor(dayFirst) {
		if t, err := time.Parse(layout, s); err == nil {
			return parsedDate{t: t, hasYear: false}, nil
		}
	}
	return parsedDate{}, fmt.Errorf("unrecognised date %q", s)
}

func layoutsFor(dayFirst bool) []dateLayout {
	out := append([]dateLayout{}, textualLayouts...)
	if dayFirst {
		return append(out, dayFirstLayouts...)
	}
	return append(out, monthFirstLayouts...)
}

func yearlessLayoutsFor(dayFirst bool) []string {
	out := append([]string{}, yearlessTextual...)
	if dayFirst {
		return append(out, yearlessDayFirst...)
	}
	return append(out, yearlessMonthFirst...)
}

func (r DateResolver) expandYear(yy int) int {
	if yy < r.pivotYear {
		return 2000 + yy
	}
	return 1900 + yy
}

func withYear(t time.Time, year int) time.Time {
	return time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

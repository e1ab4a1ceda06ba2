package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
)

var (
	hoursSuffixPattern = regexp.MustCompile(`(?i)\s*(h|hr|hrs|hour|hours)\.?$`)
	clockPattern       = regexp.MustCompile(`^(\d{1,2}):([0-5]\d)$`)
)

// ParseHours converts one extracted hours cell to a non-negative decimal.
// Blank and "-" cells are zero. Accepted forms include "7.5", "7,5", "7.5h"
// and "7:30". Anything else is an error.
func ParseHours(cell entity.HoursCell) (decimal.Decimal, error) {
	if cell.IsBlank() {
		return decimal.Zero, nil
	}

	text := strings.TrimSpace(cell.Text)
	text = hoursSuffixPattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	if text == "" || text == "-" {
		return decimal.Zero, nil
	}

	if m := clockPattern.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		return decimal.NewFromInt(int64(h)).Add(decimal.NewFromInt(int64(mins)).Div(decimal.NewFromInt(60))).Round(2), nil
	}

	if strings.Count(text, ",") == 1 && !strings.Contains(text, ".") {
		text = strings.Replace(text, ",", ".", 1)
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid hours value %q", cell.Text)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative hours value %q", cell.Text)
	}
	return d, nil
}

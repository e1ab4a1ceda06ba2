package reference

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
)

// Column headers recognised in a project master workbook (case-insensitive)
var workbookHeaders = map[string]string{
	"code":                 "code",
	"project code":         "code",
	"name":                 "name",
	"project name":         "name",
	"digit variants":       "digits",
	"known digit variants": "digits",
	"code aliases":         "digits",
	"name variants":        "names",
	"known name variants":  "names",
	"name aliases":         "names",
}

// ReadProjectsWorkbook reads a project master list from an .xlsx file. The
// first row is a header; variant cells hold comma or semicolon separated lists.
// An empty sheet name selects the first sheet.
func ReadProjectsWorkbook(path, sheet string) ([]entity.ProjectCodeRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open projects workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("projects workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	columns := make(map[string]int)
	for i, h := range rows[0] {
		if field, ok := workbookHeaders[strings.ToLower(strings.TrimSpace(h))]; ok {
			columns[field] = i
		}
	}
	if _, ok := columns["code"]; !ok {
		return nil, fmt.Errorf("projects workbook %s: missing code column", path)
	}

	var records []entity.ProjectCodeRecord
	for _, row := range rows[1:] {
		code := cell(row, columns, "code")
		if code == "" {
			continue
		}
		records = append(records, entity.ProjectCodeRecord{
			CanonicalCode:      code,
			CanonicalName:      cell(row, columns, "name"),
			KnownDigitVariants: splitList(cell(row, columns, "digits")),
			KnownNameVariants:  splitList(cell(row, columns, "names")),
		})
	}
	return records, nil
}

func cell(row []string, columns map[string]int, field string) string {
	i, ok := columns[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

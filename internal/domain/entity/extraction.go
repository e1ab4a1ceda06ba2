package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// RawExtraction is the untrusted document returned by the extraction service
type RawExtraction struct {
	ResourceName   string       `json:"resource_name"`
	DateRange      string       `json:"date_range"`
	IsZeroHour     bool         `json:"is_zero_hour"`
	ZeroHourReason string       `json:"zero_hour_reason,omitempty"`
	Projects       []RawProject `json:"projects"`
	DailyTotals    []HoursCell  `json:"daily_totals,omitempty"`
	WeeklyTotal    *HoursCell   `json:"weekly_total,omitempty"`
}

// RawProject is one project row as read off the sheet
type RawProject struct {
	ProjectName string      `json:"project_name"`
	ProjectCode string      `json:"project_code"`
	HoursByDay  []HoursCell `json:"hours_by_day"`
}

// UnmarshalJSON accepts both the is_zero_hour and is_zero_hour_timesheet keys
func (r *RawExtraction) UnmarshalJSON(data []byte) error {
	type plain RawExtraction
	var aux struct {
		plain
		IsZeroHourTimesheet *bool   `json:"is_zero_hour_timesheet"`
		ZeroHourReason      *string `json:"zero_hour_reason"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*r = RawExtraction(aux.plain)
	if aux.IsZeroHourTimesheet != nil && *aux.IsZeroHourTimesheet {
		r.IsZeroHour = true
	}
	r.ZeroHourReason = ""
	if aux.ZeroHourReason != nil {
		r.ZeroHourReason = strings.ToUpper(strings.TrimSpace(*aux.ZeroHourReason))
	}
	return nil
}

// HoursCell holds the text of one hours value exactly as the extractor produced it.
// Blank means the cell was empty, null or missing.
type HoursCell struct {
	Text string
}

// Cell is a convenience constructor used by tests and adapters
func Cell(text string) HoursCell {
	return HoursCell{Text: text}
}

// Cells builds a row of cells from text values
func Cells(texts ...string) []HoursCell {
	cells := make([]HoursCell, len(texts))
	for i, t := range texts {
		cells[i] = HoursCell{Text: t}
	}
	return cells
}

// IsBlank reports whether the cell carries no value
func (c HoursCell) IsBlank() bool {
	t := strings.TrimSpace(c.Text)
	return t == "" || t == "-"
}

// MarshalJSON writes the cell back as a string
func (c HoursCell) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts a string, a number, null, or an object with an "hours" field
func (c *HoursCell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		c.Text = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		c.Text = strings.TrimSpace(s)
		return nil
	case '{':
		var obj struct {
			Hours json.RawMessage `json:"hours"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if len(obj.Hours) == 0 {
			c.Text = ""
			return nil
		}
		return c.UnmarshalJSON(obj.Hours)
	case '[':
		return fmt.Errorf("hours cell cannot be an array")
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid hours cell %s: %w", string(data), err)
		}
		c.Text = n.String()
		return nil
	}
}

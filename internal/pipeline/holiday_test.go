package pipeline

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
	"github.com/garyjia/timesheet-ocr/internal/reference"
)

func hoursRow(values ...string) [7]decimal.Decimal {
	var out [7]decimal.Decimal
	for i := range out {
		out[i] = decimal.Zero
		if i < len(values) {
			out[i] = dec(values[i])
		}
	}
	return out
}

func testWeek(t *testing.T, monday string) entity.CanonicalWeek {
	t.Helper()
	d, err := time.Parse(entity.DateLayout, monday)
	require.NoError(t, err)
	week, err := entity.NewCanonicalWeek(d)
	require.NoError(t, err)
	return week
}

func TestHolidayEnforcer_Enforce(t *testing.T) {
	t.Run("christmas week with stated daily totals", func(t *testing.T) {
		sheet := &Sheet{
			Week: testWeek(t, "2025-12-22"),
			Projects: []*ProjectHours{
				{Code: "PJ024483", Hours: hoursRow("7.5", "7.5", "7.5", "7.5", "7.5")},
				{Code: "PJ032403", Hours: hoursRow("0", "0", "0", "0", "2")},
			},
			HasStatedDaily:  true,
			StatedDaily:     hoursRow("7.5", "7.5", "7.5", "7.5", "9.5"),
			HasStatedWeekly: true,
			StatedWeekly:    dec("39.5"),
		}

		events := HolidayEnforcer{}.Enforce(sheet, reference.DefaultUKHolidays())

		require.Len(t, events, 3)
		assert.Equal(t, "2025-12-25", events[0].Day)
		assert.Equal(t, "2025-12-26", events[1].Day)
		assert.Equal(t, "PJ032403", events[2].Project)
		assert.Equal(t, "2", events[2].Before)

		assert.True(t, sheet.Projects[0].Hours[3].IsZero())
		assert.True(t, sheet.Projects[0].Hours[4].IsZero())
		assert.True(t, sheet.Projects[1].Hours[4].IsZero())
		assert.True(t, sheet.Projects[0].Overridden[3])
		assert.False(t, sheet.Projects[1].Overridden[3])
		assert.True(t, sheet.Total().Equal(dec("22.5")))
		assert.True(t, sheet.StatedWeekly.Equal(dec("22.5")))
		assert.True(t, sheet.StatedDaily[4].IsZero())
	})

	t.Run("applying twice is a no-op", func(t *testing.T) {
		sheet := &Sheet{
			Week:            testWeek(t, "2025-05-05"),
			Projects:        []*ProjectHours{{Code: "PJ024483", Hours: hoursRow("7.5", "7.5")}},
			HasStatedWeekly: true,
			StatedWeekly:    dec("15"),
		}
		holidays := reference.DefaultUKHolidays()

		first := HolidayEnforcer{}.Enforce(sheet, holidays)
		hours := sheet.Projects[0].Hours
		stated := sheet.StatedWeekly

		second := HolidayEnforcer{}.Enforce(sheet, holidays)

		assert.Len(t, first, 1)
		assert.Empty(t, second)
		assert.Equal(t, hours, sheet.Projects[0].Hours)
		assert.True(t, stated.Equal(sheet.StatedWeekly))
		assert.True(t, sheet.StatedWeekly.Equal(dec("7.5")))
		assert.Equal(t, []string{entity.CorrectionBankHolidayOverride}, sheet.Projects[0].Corrections)
	})

	t.Run("week without holidays is untouched", func(t *testing.T) {
		sheet := &Sheet{
			Week:            testWeek(t, "2025-03-10"),
			Projects:        []*ProjectHours{{Code: "PJ024483", Hours: hoursRow("7.5")}},
			HasStatedWeekly: true,
			StatedWeekly:    dec("40"),
		}

		events := HolidayEnforcer{}.Enforce(sheet, reference.DefaultUKHolidays())

		assert.Empty(t, events)
		assert.True(t, sheet.StatedWeekly.Equal(dec("40")))
	})

	t.Run("nil table", func(t *testing.T) {
		sheet := &Sheet{Week: testWeek(t, "2025-05-05"), Projects: []*ProjectHours{{Code: "PJ024483", Hours: hoursRow("8")}}}
		assert.Empty(t, HolidayEnforcer{}.Enforce(sheet, nil))
	})
}

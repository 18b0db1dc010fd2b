package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestGenerateSkipsHolidays(t *testing.T) {
	rows, err := Generate(Params{
		Level:           "A1",
		StartDate:       "2026-02-09",
		DefaultWeekdays: []string{"Monday", "Tuesday"},
		HolidayDates:    []string{"2026-02-10"},
	})
	require.NoError(t, err)

	require.Len(t, rows, 24)
	assert.Equal(t, "2026-02-09", rows[0].DateISO)
	assert.Equal(t, "2026-02-16", rows[1].DateISO)
	assert.Equal(t, "Day 1", rows[0].Day)
	assert.Equal(t, "Day 2", rows[1].Day)
	assert.Equal(t, "Monday, 09 February 2026", rows[0].Date)
}

func TestGenerateAdvancedWeekdays(t *testing.T) {
	rows, err := Generate(Params{
		Level:               "A1",
		StartDate:           "2026-02-09",
		DefaultWeekdays:     []string{"Wednesday"},
		UseAdvancedWeekdays: true,
		WeekDays:            map[string][]string{"Week Two": {"Friday"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-02-11", rows[0].DateISO)
	assert.Equal(t, "2026-02-13", rows[1].DateISO)
}

func TestGenerateWeekIndexOverride(t *testing.T) {
	rows, err := Generate(Params{
		Level:               "A1",
		StartDate:           "2026-02-09",
		DefaultWeekdays:     []string{"Monday"},
		UseAdvancedWeekdays: true,
		WeekDays:            map[string][]string{"0": {"Thursday"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-02-12", rows[0].DateISO)
	assert.Equal(t, "2026-02-16", rows[1].DateISO)
}

func TestGenerateOverridesIgnoredWithoutAdvancedMode(t *testing.T) {
	rows, err := Generate(Params{
		Level:           "A1",
		StartDate:       "2026-02-09",
		DefaultWeekdays: []string{"Wednesday"},
		WeekDays:        map[string][]string{"Week Two": {"Friday"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-02-18", rows[1].DateISO)
}

func TestGenerateMatchesPublishedA1Schedule(t *testing.T) {
	rows, err := Generate(Params{Level: "A1", StartDate: "2026-02-10"})
	require.NoError(t, err)
	require.Len(t, rows, 24)

	assert.Equal(t, Row{Week: "Week One", Day: "Day 1", Date: "Tuesday, 10 February 2026", DateISO: "2026-02-10", Topic: "Chapter 0.1 - Lesen & Horen"}, rows[0])
	assert.Equal(t, "Monday, 16 February 2026", rows[2].Date)
	assert.Equal(t, "Week Nine", rows[23].Week)
	assert.Equal(t, "Monday, 06 April 2026", rows[23].Date)
}

func TestGenerateUnknownWeekdaysUseDefault(t *testing.T) {
	a, err := Generate(Params{Level: "B1", StartDate: "2026-03-01", DefaultWeekdays: []string{"Funday", ""}})
	require.NoError(t, err)
	b, err := Generate(Params{Level: "B1", StartDate: "2026-03-01"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerateInvariants(t *testing.T) {
	p := Params{
		Level:               "A2",
		StartDate:           "2026-04-01",
		HolidayDates:        []string{"2026-04-06", "2026-04-07T00:00:00Z", "2026-05-01"},
		DefaultWeekdays:     []string{"Monday", "Tuesday", "Thursday"},
		UseAdvancedWeekdays: true,
		WeekDays:            map[string][]string{"Woche 3": {"Saturday"}},
	}
	first, err := Generate(p)
	require.NoError(t, err)
	second, err := Generate(p)
	require.NoError(t, err)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.Equal(t, a, b)

	holidays := map[string]bool{"2026-04-06": true, "2026-04-07": true, "2026-05-01": true}
	prev := ""
	for i, r := range first {
		d, err := time.Parse("2006-01-02", r.DateISO)
		require.NoError(t, err)
		assert.False(t, holidays[r.DateISO], r.DateISO)
		if r.Week == "Woche 3" {
			assert.Equal(t, time.Saturday, d.Weekday())
		} else {
			assert.Contains(t, []time.Weekday{time.Monday, time.Tuesday, time.Thursday}, d.Weekday())
		}
		assert.Greater(t, r.DateISO, prev)
		assert.Equal(t, fmt.Sprintf("Day %d", i+1), r.Day)
		prev = r.DateISO
	}
}

func TestGenerateUnknownLevel(t *testing.T) {
	rows, err := Generate(Params{Level: "C2", StartDate: "2026-02-09"})
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = Generate(Params{Level: "A1", StartDate: "not a date"})
	assert.Error(t, err)
}

func TestHolidayWindow(t *testing.T) {
	days, err := HolidayWindow("2026-02-27", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-02-27", "2026-02-28", "2026-03-01"}, days)

	days, err = HolidayWindow("2026-02-27", 0)
	require.NoError(t, err)
	assert.Len(t, days, 120)
}

func TestResolveLevel(t *testing.T) {
	assert.Equal(t, "A1", ResolveLevel("A1"))
	assert.Equal(t, "A1", ResolveLevel("A1 Morning"))
	assert.Equal(t, "B1", ResolveLevel("Group b1 evening"))
	assert.Equal(t, "A2", ResolveLevel("A2-Weekend"))
	assert.Equal(t, "", ResolveLevel("German Beginners"))
}

func TestBuildExports(t *testing.T) {
	rows := []Row{{Week: "Week One", Day: "Day 1", Date: "Monday, 09 February 2026", DateISO: "2026-02-09", Topic: "Intro"}}
	ex := BuildExports("A1", "2026-02-09", []string{"2026-02-12"}, rows)

	assert.Contains(t, ex.TXT, "Course Schedule (A1)")
	assert.Contains(t, ex.TXT, "- Day 1 | Week One | Monday, 09 February 2026 | Intro")
	assert.Equal(t, "A1", ex.JSON.CourseLevel)
	assert.Equal(t, 1, ex.JSON.TotalSessions)
	assert.Equal(t, []string{"2026-02-12"}, ex.JSON.Holidays)
	assert.Equal(t, "Intro", ex.JSON.Sessions[0].Topic)

	raw, err := json.Marshal(ex.JSON)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"date_iso":"2026-02-09"`)

	empty := BuildExports("A1", "2026-02-09", nil, nil)
	assert.Contains(t, empty.TXT, "Holidays: None")
}

func TestWriteXLSX(t *testing.T) {
	rows, err := Generate(Params{Level: "A1", StartDate: "2026-02-10"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "A1", rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	got, err := f.GetRows("Schedule A1")
	require.NoError(t, err)
	require.Len(t, got, 25)
	assert.Equal(t, "Day 24", got[24][0])
}

// Package schedule assigns calendar dates to the per-level curriculum templates.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	isoDate   = "2006-01-02"
	humanDate = "Monday, 02 January 2006"
)

// DefaultWeekdays are used when no recognised weekday is configured.
var DefaultWeekdays = []string{"Monday", "Tuesday", "Wednesday"}

// Params drives Generate. WeekDays maps a week label, or the week's zero-based index
// as a string, to the weekdays used for that week when UseAdvancedWeekdays is set.
type Params struct {
	Level               string              `json:"level"`
	StartDate           string              `json:"startDate"`
	HolidayDates        []string            `json:"holidayDates"`
	DefaultWeekdays     []string            `json:"defaultWeekdays"`
	UseAdvancedWeekdays bool                `json:"useAdvancedWeekdays"`
	WeekDays            map[string][]string `json:"weekDaysMap"`
}

// Row is one scheduled teaching day.
type Row struct {
	Week    string `json:"week"`
	Day     string `json:"day"`
	Date    string `json:"date"`
	DateISO string `json:"dateIso"`
	Topic   string `json:"topic"`
}

// Generate walks the level's template in order and gives each topic the next date,
// on or after the cursor, that is a permitted weekday and not a holiday. Unknown
// levels yield no rows.
func Generate(p Params) ([]Row, error) {
	weeks := templates[p.Level]
	if len(weeks) == 0 {
		return []Row{}, nil
	}
	cursor, err := ParseDate(p.StartDate)
	if err != nil {
		return nil, err
	}
	holidays := make(map[string]bool, len(p.HolidayDates))
	for _, h := range p.HolidayDates {
		if d, err := ParseDate(h); err == nil {
			holidays[d.Format(isoDate)] = true
		}
	}
	fallback := normalizeWeekdays(p.DefaultWeekdays)

	var rows []Row
	day := 1
	for i, w := range weeks {
		allowed := fallback
		if p.UseAdvancedWeekdays {
			if override := p.WeekDays[w.Label]; len(override) > 0 {
				allowed = normalizeWeekdays(override)
			} else if override := p.WeekDays[strconv.Itoa(i)]; len(override) > 0 {
				allowed = normalizeWeekdays(override)
			}
		}
		for _, topic := range w.Topics {
			for !allowed[cursor.Weekday()] || holidays[cursor.Format(isoDate)] {
				cursor = cursor.AddDate(0, 0, 1)
			}
			rows = append(rows, Row{
				Week:    w.Label,
				Day:     fmt.Sprintf("Day %d", day),
				Date:    cursor.Format(humanDate),
				DateISO: cursor.Format(isoDate),
				Topic:   topic,
			})
			day++
			cursor = cursor.AddDate(0, 0, 1)
		}
	}
	return rows, nil
}

// HolidayWindow lists days consecutive ISO dates from start, for a holiday picker.
func HolidayWindow(start string, days int) ([]string, error) {
	if days <= 0 {
		days = 120
	}
	d, err := ParseDate(start)
	if err != nil {
		return nil, err
	}
	out := make([]string, days)
	for i := range out {
		out[i] = d.AddDate(0, 0, i).Format(isoDate)
	}
	return out, nil
}

// ParseDate accepts an ISO date or any RFC 3339 timestamp and returns midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(isoDate) {
		s = s[:len(isoDate)]
	}
	d, err := time.Parse(isoDate, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return d, nil
}

// ResolveLevel infers the template level from a class identifier such as "A1",
// "A1 Morning" or "Group b1 evening". It returns "" when no level is named.
func ResolveLevel(classID string) string {
	fields := strings.FieldsFunc(strings.ToUpper(classID), func(r rune) bool {
		return !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	for _, f := range fields {
		if _, ok := templates[f]; ok {
			return f
		}
	}
	for _, lvl := range Levels() {
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(classID)), lvl) {
			return lvl
		}
	}
	return ""
}

var weekdayNames = map[string]time.Weekday{
	"Sunday":    time.Sunday,
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
}

func normalizeWeekdays(names []string) map[time.Weekday]bool {
	out := map[time.Weekday]bool{}
	for _, n := range names {
		if d, ok := weekdayNames[strings.TrimSpace(n)]; ok {
			out[d] = true
		}
	}
	if len(out) == 0 {
		for _, n := range DefaultWeekdays {
			out[weekdayNames[n]] = true
		}
	}
	return out
}

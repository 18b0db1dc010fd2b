package schedule

import (
	"fmt"
	"io"
	"strings"

	"classroom/internal/xlsx"
)

// ExportSession is a row in the JSON export.
type ExportSession struct {
	Week    string `json:"week"`
	Day     string `json:"day"`
	Date    string `json:"date"`
	DateISO string `json:"date_iso"`
	Topic   string `json:"topic"`
}

// ExportJSON is the downloadable JSON document.
type ExportJSON struct {
	CourseLevel   string          `json:"course_level"`
	StartDate     string          `json:"start_date"`
	TotalSessions int             `json:"total_sessions"`
	Holidays      []string        `json:"holidays"`
	Sessions      []ExportSession `json:"sessions"`
}

// Exports holds both download formats of a generated schedule.
type Exports struct {
	TXT  string
	JSON ExportJSON
}

// BuildExports renders rows as plain text and as a JSON document.
func BuildExports(level, start string, holidays []string, rows []Row) Exports {
	startISO := isoOrRaw(start)
	hs := make([]string, 0, len(holidays))
	for _, h := range holidays {
		hs = append(hs, isoOrRaw(h))
	}

	listed := "None"
	if len(hs) > 0 {
		listed = strings.Join(hs, ", ")
	}
	lines := []string{
		fmt.Sprintf("Course Schedule (%s)", level),
		"Start Date: " + startISO,
		fmt.Sprintf("Total Sessions: %d", len(rows)),
		"Holidays: " + listed,
		"",
	}
	sessions := make([]ExportSession, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("- %s | %s | %s | %s", r.Day, r.Week, r.Date, r.Topic))
		sessions = append(sessions, ExportSession(r))
	}

	return Exports{
		TXT: strings.Join(lines, "\n"),
		JSON: ExportJSON{
			CourseLevel:   level,
			StartDate:     startISO,
			TotalSessions: len(rows),
			Holidays:      hs,
			Sessions:      sessions,
		},
	}
}

// WriteXLSX writes rows as a workbook.
func WriteXLSX(w io.Writer, level string, rows []Row) error {
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		data = append(data, []any{r.Day, r.Week, r.Date, r.DateISO, r.Topic})
	}
	return xlsx.WriteTable(w, "Schedule "+level, []string{"Day", "Week", "Date", "ISO Date", "Topic"}, data)
}

func isoOrRaw(s string) string {
	if d, err := ParseDate(s); err == nil {
		return d.Format(isoDate)
	}
	return strings.TrimSpace(s)
}

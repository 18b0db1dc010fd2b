package roster

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"
)

// Column aliases for the published sheet, after header normalization.
var (
	sheetNameCols   = []string{"name", "studentname", "fullname"}
	sheetClassCols  = []string{"classname", "class", "classid", "group"}
	sheetStatusCols = []string{"status"}
	sheetCodeCols   = []string{"studentcode", "uid", "code"}
	sheetEmailCols  = []string{"email", "emailaddress"}
	sheetPhoneCols  = []string{"phone", "phonenumber"}
	sheetLevelCols  = []string{"level"}
)

// Row is one sheet record keyed by normalized header.
type Row map[string]string

// Get returns the first non-empty value among the given columns.
func (r Row) Get(cols ...string) string {
	for _, c := range cols {
		if v := strings.TrimSpace(r[c]); v != "" {
			return v
		}
	}
	return ""
}

// SheetSource reads a published CSV export over HTTP.
type SheetSource struct {
	URL    string
	Client *http.Client
}

// NewSheetSource returns nil when url is empty, which disables the sheet step.
func NewSheetSource(url string, timeout time.Duration) *SheetSource {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	return &SheetSource{URL: url, Client: &http.Client{Timeout: timeout}}
}

// Rows fetches and parses the sheet.
func (s *SheetSource) Rows(ctx context.Context) ([]Row, error) {
	if s == nil {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sheet fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sheet fetch: status %d", resp.StatusCode)
	}
	return ParseCSV(resp.Body)
}

// ParseCSV reads a header row followed by data rows. Blank lines are skipped and
// short rows are padded.
func ParseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("sheet parse: %w", err)
	}
	if len(records) == 0 {
		return []Row{}, nil
	}
	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = NormalizeHeader(h)
	}
	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := make(Row, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// NormalizeHeader lowercases a header and drops everything but letters and digits.
func NormalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimPrefix(h, "\ufeff")) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func studentFromRow(r Row) Student {
	code := r.Get(sheetCodeCols...)
	return Student{
		ID:          code,
		StudentCode: code,
		Name:        r.Get(sheetNameCols...),
		Email:       r.Get(sheetEmailCols...),
		Phone:       r.Get(sheetPhoneCols...),
		Class:       r.Get(sheetClassCols...),
		Status:      r.Get(sheetStatusCols...),
		Source:      SourceSheet,
	}
}

// Level reads the level column, used by the marking roster.
func (r Row) Level() string { return r.Get(sheetLevelCols...) }

// Package report flattens stored sessions and their check-ins into attendance rows.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"classroom/internal/apperr"
	"classroom/internal/attendance"
	"classroom/internal/session"
	"classroom/internal/xlsx"
)

const (
	MethodManual = "manual"
	MethodQR     = "qr"
)

// ErrInvalidStatus is returned for a status filter outside the known statuses.
var ErrInvalidStatus = apperr.Validation("invalid_status", "status must be all, present, absent, late or excused")

// Filter narrows a report. Empty fields match everything; Status "all" is the same as empty.
type Filter struct {
	ClassID string
	From    string
	To      string
	Status  string
}

// Row is one student in one session.
type Row struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	Status      string `json:"status"`
	Method      string `json:"method"`
	ClassID     string `json:"classId"`
	Date        string `json:"date"`
	Lesson      string `json:"lesson"`
}

// Metrics are computed over every row before the status filter.
type Metrics struct {
	Total   int `json:"total"`
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Late    int `json:"late"`
	Excused int `json:"excused"`
	QR      int `json:"qr"`
}

type Result struct {
	Sessions int     `json:"sessions"`
	Metrics  Metrics `json:"metrics"`
	Rows     []Row   `json:"rows"`
}

type Service struct {
	repo        *attendance.Repository
	concurrency int
	log         *zap.Logger
}

func NewService(repo *attendance.Repository, concurrency int, log *zap.Logger) *Service {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Service{repo: repo, concurrency: concurrency, log: log.Named("report")}
}

// Run builds the report for f.
func (s *Service) Run(ctx context.Context, f Filter) (Result, error) {
	status := strings.ToLower(strings.TrimSpace(f.Status))
	if status == "all" {
		status = ""
	}
	if status != "" && !known(status) {
		return Result{}, ErrInvalidStatus
	}

	docs, err := s.repo.FindSessions(ctx, strings.TrimSpace(f.ClassID), strings.TrimSpace(f.From), strings.TrimSpace(f.To))
	if err != nil {
		return Result{}, fmt.Errorf("report.Run: %w", err)
	}

	perSession := make([][]Row, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			classID := attendance.ClassOf(doc)
			checkins, err := s.repo.ListCheckins(gctx, classID, doc.ID)
			if err != nil {
				return fmt.Errorf("check-ins of %s/%s: %w", classID, doc.ID, err)
			}
			perSession[i] = sessionRows(classID, doc.ID, doc.Data, checkins)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("report.Run: %w", err)
	}

	var rows []Row
	for _, r := range perSession {
		rows = append(rows, r...)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Date != rows[j].Date {
			return rows[i].Date < rows[j].Date
		}
		return strings.ToLower(rows[i].StudentName) < strings.ToLower(rows[j].StudentName)
	})

	res := Result{Sessions: len(docs), Metrics: Summarize(rows), Rows: rows}
	if status != "" {
		res.Rows = filterStatus(rows, status)
	}
	if res.Rows == nil {
		res.Rows = []Row{}
	}
	s.log.Debug("report built", zap.Int("sessions", res.Sessions), zap.Int("rows", len(res.Rows)))
	return res, nil
}

func sessionRows(classID, key string, data map[string]any, checkins []session.CheckinRecord) []Row {
	date := key
	if d, ok := data["date"].(string); ok && strings.TrimSpace(d) != "" {
		date = strings.TrimSpace(d)
	}
	lesson := ""
	for _, k := range []string{"lesson", "title"} {
		if v, ok := data[k].(string); ok && strings.TrimSpace(v) != "" {
			lesson = strings.TrimSpace(v)
			break
		}
	}

	var order []string
	byStudent := map[string]Row{}
	for _, rec := range attendance.BaseRecords(data) {
		if _, seen := byStudent[rec.StudentID]; !seen {
			order = append(order, rec.StudentID)
		}
		byStudent[rec.StudentID] = Row{
			StudentID:   rec.StudentID,
			StudentName: rec.StudentName,
			Status:      rec.Status,
			Method:      MethodManual,
			ClassID:     classID,
			Date:        date,
			Lesson:      lesson,
		}
	}
	for _, c := range checkins {
		id := c.StudentCode
		if id == "" {
			id = c.Identity
		}
		if _, seen := byStudent[id]; !seen {
			order = append(order, id)
		}
		name := c.Name
		if name == "" {
			name = byStudent[id].StudentName
		}
		l := c.Lesson
		if l == "" {
			l = lesson
		}
		byStudent[id] = Row{
			StudentID:   id,
			StudentName: name,
			Status:      attendance.StatusPresent,
			Method:      MethodQR,
			ClassID:     classID,
			Date:        date,
			Lesson:      l,
		}
	}

	out := make([]Row, 0, len(order))
	for _, id := range order {
		out = append(out, byStudent[id])
	}
	return out
}

// Summarize counts rows per status and the qr check-ins.
func Summarize(rows []Row) Metrics {
	var m Metrics
	for _, r := range rows {
		m.Total++
		switch r.Status {
		case attendance.StatusPresent:
			m.Present++
		case attendance.StatusAbsent:
			m.Absent++
		case attendance.StatusLate:
			m.Late++
		case attendance.StatusExcused:
			m.Excused++
		}
		if r.Method == MethodQR {
			m.QR++
		}
	}
	return m
}

func filterStatus(rows []Row, status string) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

func known(status string) bool {
	for _, s := range attendance.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

var headers = []string{"studentId", "studentName", "status", "method", "classId", "date", "lesson"}

func (r Row) values() []string {
	return []string{r.StudentID, r.StudentName, r.Status, r.Method, r.ClassID, r.Date, r.Lesson}
}

// WriteCSV writes rows with a header line. Nothing is written for an empty report.
func WriteCSV(w io.Writer, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes rows to a single "Attendance" sheet.
func WriteXLSX(w io.Writer, rows []Row) error {
	table := make([][]any, 0, len(rows))
	for _, r := range rows {
		vals := r.values()
		row := make([]any, len(vals))
		for i, v := range vals {
			row[i] = v
		}
		table = append(table, row)
	}
	return xlsx.WriteTable(w, "Attendance", headers, table)
}

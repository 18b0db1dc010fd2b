// Package attendance is the teacher-facing attendance book: the per-class map of
// sessions built from the curriculum, stored overrides and live check-ins, plus
// manual per-session records.
package attendance

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"classroom/internal/apperr"
	"classroom/internal/auth"
	"classroom/internal/docstore"
	"classroom/internal/roster"
	"classroom/internal/schedule"
	"classroom/internal/session"
)

const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
	StatusExcused = "excused"
)

// Statuses are the accepted manual statuses.
var Statuses = []string{StatusPresent, StatusAbsent, StatusLate, StatusExcused}

var (
	ErrMissingClass  = apperr.Validation("missing_class", "Missing classId. Unable to load attendance.")
	ErrMissingDate   = apperr.Validation("missing_fields", "classId and date are required")
	ErrInvalidKey    = apperr.Validation("invalid_id", "classId and session keys must not contain '/'")
	ErrInvalidStatus = apperr.Validation("invalid_status", "status must be one of present, absent, late, excused")
	ErrMissingID     = apperr.Validation("missing_student", "every record needs a studentId")
)

// RosterSource lists the eligible students of a class.
type RosterSource interface {
	ResolveStudents(ctx context.Context, classID string) ([]roster.Student, error)
}

// Mark is one student's presence in a session of the map.
type Mark struct {
	Name    string `json:"name"`
	Present bool   `json:"present"`
}

// Entry is one session of the attendance map.
type Entry struct {
	Title    string          `json:"title"`
	Date     string          `json:"date"`
	Students map[string]Mark `json:"students"`
}

// Map is keyed by session key, the ISO date for curriculum sessions.
type Map map[string]Entry

// SessionRecords is the manual attendance stored on one session.
type SessionRecords struct {
	ClassID  string   `json:"classId"`
	Date     string   `json:"date"`
	Lesson   string   `json:"lesson"`
	MarkedBy string   `json:"markedBy,omitempty"`
	Opened   bool     `json:"opened"`
	Records  []Record `json:"records"`
}

// Service coordinates the attendance book.
type Service struct {
	repo        *Repository
	students    RosterSource
	courseStart string
	concurrency int
	log         *zap.Logger
}

// NewService creates a service backed by a repository. courseStart anchors the
// curriculum template dates.
func NewService(repo *Repository, students RosterSource, courseStart string, concurrency int, log *zap.Logger) *Service {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Service{repo: repo, students: students, courseStart: courseStart, concurrency: concurrency, log: log.Named("attendance")}
}

func cleanClass(classID string) (string, error) {
	classID = strings.TrimSpace(classID)
	if classID == "" {
		return "", ErrMissingClass
	}
	if strings.Contains(classID, "/") {
		return "", ErrInvalidKey
	}
	return classID, nil
}

// LoadMap builds the attendance map of a class: curriculum sessions, stored
// sessions, every roster student (absent unless marked) and live check-ins.
func (s *Service) LoadMap(ctx context.Context, classID string) (Map, error) {
	classID, err := cleanClass(classID)
	if err != nil {
		return nil, err
	}

	m := Map{}
	if level := schedule.ResolveLevel(classID); level != "" && s.courseStart != "" {
		rows, err := schedule.Generate(schedule.Params{Level: level, StartDate: s.courseStart})
		if err != nil {
			return nil, fmt.Errorf("attendance.LoadMap: template: %w", err)
		}
		for _, r := range rows {
			m[r.DateISO] = Entry{Title: r.Topic, Date: r.DateISO, Students: map[string]Mark{}}
		}
	}

	docs, err := s.repo.ListSessions(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("attendance.LoadMap: %w", err)
	}
	stored := make([]string, 0, len(docs))
	for _, d := range docs {
		e := m[d.ID]
		if title := docTitle(d.Data); title != "" {
			e.Title = title
		}
		if date := docstore.String(d.Data, "date"); date != "" {
			e.Date = date
		}
		if e.Date == "" {
			e.Date = d.ID
		}
		if e.Students == nil {
			e.Students = map[string]Mark{}
		}
		for code, mark := range studentsFromData(d.Data) {
			e.Students[code] = mark
		}
		m[d.ID] = e
		stored = append(stored, d.ID)
	}

	students, err := s.students.ResolveStudents(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("attendance.LoadMap: roster: %w", err)
	}
	for key, e := range m {
		for _, st := range students {
			code := st.StudentCode
			if code == "" {
				code = st.Identity()
			}
			if _, ok := e.Students[code]; !ok {
				e.Students[code] = Mark{Name: st.Name}
			}
		}
		m[key] = e
	}

	checkins := make([][]session.CheckinRecord, len(stored))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, key := range stored {
		i, key := i, key
		g.Go(func() error {
			list, err := s.repo.ListCheckins(gctx, classID, key)
			if err != nil {
				return fmt.Errorf("check-ins of %s: %w", key, err)
			}
			checkins[i] = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("attendance.LoadMap: %w", err)
	}
	for i, key := range stored {
		e := m[key]
		for _, c := range checkins[i] {
			code := c.StudentCode
			if code == "" {
				code = c.Identity
			}
			name := c.Name
			if name == "" {
				name = e.Students[code].Name
			}
			e.Students[code] = Mark{Name: name, Present: true}
		}
		m[key] = e
	}
	return m, nil
}

// SaveMap merge-writes every session of m concurrently.
func (s *Service) SaveMap(ctx context.Context, classID string, m Map) error {
	classID, err := cleanClass(classID)
	if err != nil {
		return err
	}
	for key := range m {
		if strings.TrimSpace(key) == "" || strings.Contains(key, "/") {
			return ErrInvalidKey
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for key, e := range m {
		key, e := key, e
		g.Go(func() error {
			students := make(map[string]any, len(e.Students))
			for code, mark := range e.Students {
				students[code] = map[string]any{"name": strings.TrimSpace(mark.Name), "present": mark.Present}
			}
			return s.repo.SaveSession(gctx, classID, key, map[string]any{
				"classId":  classID,
				"title":    strings.TrimSpace(e.Title),
				"date":     strings.TrimSpace(e.Date),
				"students": students,
			})
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("attendance.SaveMap: %w", err)
	}
	s.log.Info("attendance map saved", zap.String("class", classID), zap.Int("sessions", len(m)))
	return nil
}

// LoadSession returns the manual records of a session. found is false when the
// session was never stored.
func (s *Service) LoadSession(ctx context.Context, classID, date string) (SessionRecords, bool, error) {
	classID, date, err := cleanSession(classID, date)
	if err != nil {
		return SessionRecords{}, false, err
	}
	doc, err := s.repo.GetSession(ctx, classID, date)
	if err != nil {
		return SessionRecords{}, false, err
	}
	if doc == nil {
		return SessionRecords{ClassID: classID, Date: date, Records: []Record{}}, false, nil
	}
	return SessionRecords{
		ClassID:  classID,
		Date:     date,
		Lesson:   docTitle(doc.Data),
		MarkedBy: docstore.String(doc.Data, "markedBy"),
		Opened:   docstore.Bool(doc.Data, "opened"),
		Records:  BaseRecords(doc.Data),
	}, true, nil
}

// SaveRecords stores a teacher's manual attendance for one session.
func (s *Service) SaveRecords(ctx context.Context, classID, date string, teacher auth.Identity, lesson string, records []Record) error {
	classID, date, err := cleanSession(classID, date)
	if err != nil {
		return err
	}
	items := make([]any, 0, len(records))
	for _, r := range records {
		id := strings.TrimSpace(r.StudentID)
		if id == "" {
			return ErrMissingID
		}
		status := strings.ToLower(strings.TrimSpace(r.Status))
		if !validStatus(status) {
			return ErrInvalidStatus
		}
		items = append(items, map[string]any{
			"studentId":   id,
			"studentName": strings.TrimSpace(r.StudentName),
			"status":      status,
			"method":      "manual",
		})
	}
	err = s.repo.SaveSession(ctx, classID, date, map[string]any{
		"classId":  classID,
		"date":     date,
		"markedBy": teacher.UID,
		"lesson":   strings.TrimSpace(lesson),
		"records":  items,
	})
	if err != nil {
		return fmt.Errorf("attendance.SaveRecords: %w", err)
	}
	s.log.Info("attendance saved", zap.String("class", classID), zap.String("date", date), zap.Int("records", len(items)))
	return nil
}

func cleanSession(classID, date string) (string, string, error) {
	classID, date = strings.TrimSpace(classID), strings.TrimSpace(date)
	if classID == "" || date == "" {
		return "", "", ErrMissingDate
	}
	if strings.Contains(classID, "/") || strings.Contains(date, "/") {
		return "", "", ErrInvalidKey
	}
	return classID, date, nil
}

func validStatus(s string) bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

func docTitle(data map[string]any) string {
	for _, k := range []string{"title", "lesson"} {
		if v, ok := data[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Package session implements the per-class check-in gate: teachers open and close
// a timed window protected by a PIN, students check themselves in against it.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"classroom/internal/apperr"
	"classroom/internal/auth"
	"classroom/internal/docstore"
	"classroom/internal/metrics"
	"classroom/internal/roster"
)

const (
	DefaultWindowMinutes = 180
	MaxWindowMinutes     = 1440
)

// StudentFinder resolves the student behind a code or email.
type StudentFinder interface {
	FindStudent(ctx context.Context, classID, key string) (roster.Student, error)
}

// Config carries the settings the gate needs from the process configuration.
type Config struct {
	PinSalt              string
	PinHashCost          int
	DefaultWindowMinutes int
	PublicBaseURL        string
}

// Service opens, closes and checks in against class sessions.
type Service struct {
	db       docstore.Store
	students StudentFinder
	cfg      Config
	now      func() time.Time
	log      *zap.Logger
}

func NewService(db docstore.Store, students StudentFinder, cfg Config, log *zap.Logger) *Service {
	if cfg.DefaultWindowMinutes <= 0 {
		cfg.DefaultWindowMinutes = DefaultWindowMinutes
	}
	if cfg.PinHashCost == 0 {
		cfg.PinHashCost = 10
	}
	return &Service{db: db, students: students, cfg: cfg, now: time.Now, log: log.Named("session")}
}

// WithClock replaces the wall clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Session is the stored gate of one class session.
type Session struct {
	ClassID        string    `json:"classId"`
	SessionKey     string    `json:"date"`
	Lesson         string    `json:"lesson,omitempty"`
	Opened         bool      `json:"opened"`
	OpenFrom       time.Time `json:"openFrom"`
	OpenTo         time.Time `json:"openTo"`
	WindowMinutes  int       `json:"windowMinutes"`
	CreatedBy      string    `json:"createdBy,omitempty"`
	CreatedByEmail string    `json:"createdByEmail,omitempty"`
	ClosedBy       string    `json:"closedBy,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	pinHash string
}

type OpenRequest struct {
	ClassID       string
	SessionKey    string
	WindowMinutes int
	Lesson        string
}

// Window is what a teacher gets back from Open.
type Window struct {
	ClassID       string    `json:"classId"`
	SessionKey    string    `json:"date"`
	PIN           string    `json:"pin"`
	OpenFrom      time.Time `json:"openFrom"`
	OpenTo        time.Time `json:"openTo"`
	WindowMinutes int       `json:"windowMinutes"`
	CheckinURL    string    `json:"checkinUrl"`
}

type CheckinRequest struct {
	ClassID            string
	SessionKey         string
	StudentCodeOrEmail string
	PIN                string
}

// CheckinRecord is one student's self check-in for a session.
type CheckinRecord struct {
	Identity    string    `json:"id"`
	UID         string    `json:"uid"`
	StudentCode string    `json:"studentCode"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	ClassID     string    `json:"classId"`
	Date        string    `json:"date"`
	Lesson      string    `json:"lesson,omitempty"`
	Status      string    `json:"status"`
	Method      string    `json:"method"`
	SecretCode  string    `json:"secretCode"`
	CheckedInAt time.Time `json:"checkedInAt"`
}

// SessionPath is the document path of a class session.
func SessionPath(classID, sessionKey string) string {
	return docstore.Join("attendance", classID, "sessions", sessionKey)
}

// CheckinsPath is the collection path of a session's check-ins.
func CheckinsPath(classID, sessionKey string) string {
	return docstore.Join("attendance", classID, "sessions", sessionKey, "checkins")
}

func cleanIDs(classID, sessionKey string) (string, string, error) {
	classID, sessionKey = strings.TrimSpace(classID), strings.TrimSpace(sessionKey)
	if classID == "" || sessionKey == "" {
		return "", "", ErrMissingOpenFields
	}
	if strings.Contains(classID, "/") || strings.Contains(sessionKey, "/") {
		return "", "", ErrInvalidID
	}
	return classID, sessionKey, nil
}

// Open starts or restarts the check-in window with a fresh PIN. Reopening keeps
// createdAt and invalidates the previous PIN.
func (s *Service) Open(ctx context.Context, req OpenRequest, teacher auth.Identity) (Window, error) {
	classID, key, err := cleanIDs(req.ClassID, req.SessionKey)
	if err != nil {
		return Window{}, err
	}
	minutes := req.WindowMinutes
	if minutes <= 0 {
		minutes = s.cfg.DefaultWindowMinutes
	}
	if minutes > MaxWindowMinutes {
		return Window{}, ErrWindowTooLong
	}

	pin, err := generatePIN()
	if err != nil {
		return Window{}, fmt.Errorf("session.Open: pin: %w", err)
	}
	hash, err := hashPIN(s.cfg.PinSalt, pin, s.cfg.PinHashCost)
	if err != nil {
		return Window{}, fmt.Errorf("session.Open: hash: %w", err)
	}

	path := SessionPath(classID, key)
	exists, err := s.exists(ctx, path)
	if err != nil {
		return Window{}, fmt.Errorf("session.Open: %w", err)
	}

	from := s.now().UTC()
	to := from.Add(time.Duration(minutes) * time.Minute)
	data := map[string]any{
		"classId":        classID,
		"date":           key,
		"opened":         true,
		"openFrom":       from,
		"openTo":         to,
		"windowMinutes":  minutes,
		"pinHash":        hash,
		"createdBy":      teacher.UID,
		"createdByEmail": teacher.Email,
		"updatedAt":      docstore.ServerTimestamp,
	}
	if lesson := strings.TrimSpace(req.Lesson); lesson != "" {
		data["lesson"] = lesson
	}
	if !exists {
		data["createdAt"] = docstore.ServerTimestamp
	}
	if err := s.db.Set(ctx, path, data, docstore.Merge()); err != nil {
		return Window{}, fmt.Errorf("session.Open: %w", err)
	}

	metrics.SessionsOpened.Inc()
	s.log.Info("session opened",
		zap.String("class", classID), zap.String("session", key),
		zap.Int("window_minutes", minutes), zap.String("teacher", teacher.Email))

	return Window{
		ClassID:       classID,
		SessionKey:    key,
		PIN:           pin,
		OpenFrom:      from,
		OpenTo:        to,
		WindowMinutes: minutes,
		CheckinURL:    s.CheckinURL(classID, key),
	}, nil
}

// Close stops check-ins immediately regardless of the window.
func (s *Service) Close(ctx context.Context, classID, sessionKey string, teacher auth.Identity) error {
	classID, key, err := cleanIDs(classID, sessionKey)
	if err != nil {
		return err
	}
	path := SessionPath(classID, key)
	exists, err := s.exists(ctx, path)
	if err != nil {
		return fmt.Errorf("session.Close: %w", err)
	}
	if !exists {
		return ErrNotOpened
	}
	err = s.db.Set(ctx, path, map[string]any{
		"classId":       classID,
		"date":          key,
		"opened":        false,
		"closedBy":      teacher.UID,
		"closedByEmail": teacher.Email,
		"updatedAt":     docstore.ServerTimestamp,
	}, docstore.Merge())
	if err != nil {
		return fmt.Errorf("session.Close: %w", err)
	}
	metrics.SessionsClosed.Inc()
	s.log.Info("session closed", zap.String("class", classID), zap.String("session", key), zap.String("teacher", teacher.Email))
	return nil
}

// Get returns the stored session.
func (s *Service) Get(ctx context.Context, classID, sessionKey string) (Session, error) {
	classID, key, err := cleanIDs(classID, sessionKey)
	if err != nil {
		return Session{}, err
	}
	doc, err := s.db.Get(ctx, SessionPath(classID, key))
	if errors.Is(err, docstore.ErrNotFound) {
		return Session{}, ErrNotOpened
	}
	if err != nil {
		return Session{}, err
	}
	return sessionFromDoc(classID, key, doc.Data), nil
}

// CheckIn validates the attempt in a fixed order and records the student present.
// Repeating a successful check-in updates the same record.
func (s *Service) CheckIn(ctx context.Context, req CheckinRequest) (CheckinRecord, error) {
	rec, err := s.checkIn(ctx, req)
	metrics.Checkins.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		s.log.Info("check-in rejected",
			zap.String("class", req.ClassID), zap.String("session", req.SessionKey),
			zap.String("reason", apperr.CodeOf(err)))
		return CheckinRecord{}, err
	}
	return rec, nil
}

func (s *Service) checkIn(ctx context.Context, req CheckinRequest) (CheckinRecord, error) {
	key := strings.TrimSpace(req.StudentCodeOrEmail)
	if strings.TrimSpace(req.ClassID) == "" || strings.TrimSpace(req.SessionKey) == "" ||
		key == "" || strings.TrimSpace(req.PIN) == "" {
		return CheckinRecord{}, ErrMissingCheckinFields
	}
	classID, sessionKey, err := cleanIDs(req.ClassID, req.SessionKey)
	if err != nil {
		return CheckinRecord{}, err
	}

	sess, err := s.Get(ctx, classID, sessionKey)
	if err != nil {
		return CheckinRecord{}, err
	}
	if !sess.Opened {
		return CheckinRecord{}, ErrClosed
	}
	now := s.now().UTC()
	if !sess.OpenFrom.IsZero() && now.Before(sess.OpenFrom) {
		return CheckinRecord{}, ErrNotStarted
	}
	if !sess.OpenTo.IsZero() && now.After(sess.OpenTo) {
		return CheckinRecord{}, ErrEnded
	}
	if !pinMatches(s.cfg.PinSalt, req.PIN, sess.pinHash) {
		return CheckinRecord{}, ErrInvalidPIN
	}

	st, err := s.students.FindStudent(ctx, classID, key)
	if err != nil {
		return CheckinRecord{}, err
	}
	switch {
	case !st.IsStudent():
		return CheckinRecord{}, ErrNotStudent
	case !st.IsActive():
		return CheckinRecord{}, ErrInactive
	case !st.InClass(classID):
		return CheckinRecord{}, ErrWrongClass
	}

	rec := CheckinRecord{
		Identity:    st.Identity(),
		UID:         st.ID,
		StudentCode: st.StudentCode,
		Name:        st.Name,
		Email:       st.Email,
		Phone:       st.Phone,
		ClassID:     classID,
		Date:        sessionKey,
		Lesson:      sess.Lesson,
		Status:      "present",
		Method:      "qr",
		SecretCode:  secretCode(s.cfg.PinSalt, classID, sessionKey, st.Email, st.Phone),
		CheckedInAt: now,
	}
	path := docstore.Join(CheckinsPath(classID, sessionKey), rec.Identity)
	exists, err := s.exists(ctx, path)
	if err != nil {
		return CheckinRecord{}, fmt.Errorf("session.CheckIn: %w", err)
	}
	data := map[string]any{
		"uid":         rec.UID,
		"studentCode": rec.StudentCode,
		"name":        rec.Name,
		"email":       rec.Email,
		"phone":       rec.Phone,
		"classId":     rec.ClassID,
		"date":        rec.Date,
		"lesson":      rec.Lesson,
		"status":      rec.Status,
		"method":      rec.Method,
		"secretCode":  rec.SecretCode,
		"checkedInAt": rec.CheckedInAt,
		"updatedAt":   docstore.ServerTimestamp,
	}
	if !exists {
		data["createdAt"] = docstore.ServerTimestamp
	}
	if err := s.db.Set(ctx, path, data, docstore.Merge()); err != nil {
		return CheckinRecord{}, fmt.Errorf("session.CheckIn: %w", err)
	}
	return rec, nil
}

// ListCheckins returns the session's check-ins ordered by name.
func (s *Service) ListCheckins(ctx context.Context, classID, sessionKey string) ([]CheckinRecord, error) {
	classID, key, err := cleanIDs(classID, sessionKey)
	if err != nil {
		return nil, err
	}
	docs, err := s.db.List(ctx, CheckinsPath(classID, key))
	if err != nil {
		return nil, err
	}
	out := make([]CheckinRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, CheckinFromDoc(d))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// CheckinURL is the student-facing link encoded in the session QR code.
func (s *Service) CheckinURL(classID, sessionKey string) string {
	q := url.Values{}
	q.Set("classId", classID)
	q.Set("date", sessionKey)
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/checkin?" + q.Encode()
}

// SecretCode is the receipt code for a student's check-in.
func (s *Service) SecretCode(classID, sessionKey, email, phone string) string {
	return secretCode(s.cfg.PinSalt, classID, sessionKey, email, phone)
}

func (s *Service) exists(ctx context.Context, path string) (bool, error) {
	_, err := s.db.Get(ctx, path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, docstore.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func sessionFromDoc(classID, key string, d map[string]any) Session {
	minutes, _ := docstore.Int(d, "windowMinutes")
	return Session{
		ClassID:        classID,
		SessionKey:     key,
		Lesson:         docstore.String(d, "lesson", "title"),
		Opened:         docstore.Bool(d, "opened"),
		OpenFrom:       docstore.Time(d, "openFrom"),
		OpenTo:         docstore.Time(d, "openTo"),
		WindowMinutes:  minutes,
		CreatedBy:      docstore.String(d, "createdBy"),
		CreatedByEmail: docstore.String(d, "createdByEmail"),
		ClosedBy:       docstore.String(d, "closedBy"),
		CreatedAt:      docstore.Time(d, "createdAt"),
		UpdatedAt:      docstore.Time(d, "updatedAt"),
		pinHash:        docstore.String(d, "pinHash"),
	}
}

// CheckinFromDoc decodes a stored check-in.
func CheckinFromDoc(d docstore.Document) CheckinRecord {
	return CheckinRecord{
		Identity:    d.ID,
		UID:         docstore.String(d.Data, "uid"),
		StudentCode: docstore.String(d.Data, "studentCode", "studentcode"),
		Name:        docstore.String(d.Data, "name", "studentName"),
		Email:       docstore.String(d.Data, "email"),
		Phone:       docstore.String(d.Data, "phone"),
		ClassID:     docstore.String(d.Data, "classId", "className"),
		Date:        docstore.String(d.Data, "date"),
		Lesson:      docstore.String(d.Data, "lesson"),
		Status:      docstore.String(d.Data, "status"),
		Method:      docstore.String(d.Data, "method"),
		SecretCode:  docstore.String(d.Data, "secretCode"),
		CheckedInAt: docstore.Time(d.Data, "checkedInAt"),
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.CodeOf(err)
}

// Package marking backs the teacher's marking desk: the marking roster, student
// submissions, reference answers and delivery of scores to the score sheet webhook.
package marking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"classroom/internal/docstore"
	"classroom/internal/roster"
)

const (
	MirrorOff    = "off"
	MirrorDirect = "direct"
	MirrorQueue  = "queue"

	ScoresCollection = "scores"
	passMark         = 60
)

var (
	rosterCodeCols   = []string{"studentcode", "uid", "code"}
	rosterNameCols   = []string{"name", "studentname", "fullname"}
	rosterLevelCols  = []string{"level", "classname", "class", "group"}
	rosterStatusCols = []string{"status"}
)

// Publisher hands a score to the background writer.
type Publisher interface {
	PublishScore(ctx context.Context, p ScorePayload) error
}

// Config selects the marking sources and the score delivery.
type Config struct {
	RosterURL      string
	RosterFile     string
	AnswersPath    string
	WebhookURL     string
	WebhookTimeout time.Duration
	Fallback       bool
	Mirror         string
}

type Service struct {
	db    docstore.Store
	pub   Publisher
	sheet *roster.SheetSource
	hook  *Webhook
	cfg   Config
	now   func() time.Time
	log   *zap.Logger
}

// NewService wires the marking desk. pub may be nil unless Mirror is MirrorQueue.
func NewService(db docstore.Store, pub Publisher, cfg Config, log *zap.Logger) (*Service, error) {
	switch cfg.Mirror {
	case "":
		cfg.Mirror = MirrorOff
	case MirrorOff, MirrorDirect:
	case MirrorQueue:
		if pub == nil {
			return nil, errors.New("marking: queue mirror needs a publisher")
		}
	default:
		return nil, fmt.Errorf("marking: unknown score mirror %q", cfg.Mirror)
	}
	if cfg.WebhookTimeout <= 0 {
		cfg.WebhookTimeout = 15 * time.Second
	}
	return &Service{
		db:    db,
		pub:   pub,
		sheet: roster.NewSheetSource(cfg.RosterURL, cfg.WebhookTimeout),
		hook:  NewWebhook(cfg.WebhookURL, cfg.WebhookTimeout, cfg.Fallback),
		cfg:   cfg,
		now:   time.Now,
		log:   log.Named("marking"),
	}, nil
}

// WithClock replaces the wall clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RosterEntry is one row of the marking roster.
type RosterEntry struct {
	ID          string `json:"id"`
	StudentCode string `json:"studentCode"`
	Name        string `json:"name"`
	Level       string `json:"level"`
	Status      string `json:"status"`
}

// LoadRoster reads the marking sheet, falling back to the local CSV when the sheet
// is unset or fails.
func (s *Service) LoadRoster(ctx context.Context) ([]RosterEntry, error) {
	if s.sheet != nil {
		rows, err := s.sheet.Rows(ctx)
		if err == nil {
			return rosterEntries(rows), nil
		}
		s.log.Warn("marking sheet unavailable, using local roster", zap.Error(err))
	}
	f, err := os.Open(s.cfg.RosterFile)
	if err != nil {
		return nil, fmt.Errorf("marking.LoadRoster: %w", err)
	}
	defer f.Close()
	rows, err := roster.ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("marking.LoadRoster: %w", err)
	}
	return rosterEntries(rows), nil
}

func rosterEntries(rows []roster.Row) []RosterEntry {
	out := make([]RosterEntry, 0, len(rows))
	for _, r := range rows {
		e := RosterEntry{
			StudentCode: r.Get(rosterCodeCols...),
			Name:        r.Get(rosterNameCols...),
			Level:       r.Get(rosterLevelCols...),
			Status:      r.Get(rosterStatusCols...),
		}
		if e.StudentCode == "" && e.Name == "" {
			continue
		}
		if e.Status == "" {
			e.Status = "Active"
		}
		e.ID = e.StudentCode
		if e.ID == "" {
			e.ID = e.Name + "-" + e.Level
		}
		out = append(out, e)
	}
	return out
}

// Submission is a student's written work, read from any of the legacy collections.
type Submission struct {
	ID          string    `json:"id"`
	StudentCode string    `json:"studentCode"`
	StudentName string    `json:"studentName"`
	Assignment  string    `json:"assignment"`
	Level       string    `json:"level"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LoadSubmissions reads the flat submissions collection and the submissions and
// posts groups concurrently. A failed read is logged and skipped.
func (s *Service) LoadSubmissions(ctx context.Context) ([]Submission, error) {
	queries := []docstore.Query{
		{Collection: "submissions"},
		{Collection: "submissions", Group: true},
		{Collection: "posts", Group: true},
	}
	results := make([][]docstore.Document, len(queries))
	var g errgroup.Group
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			docs, err := s.db.Query(ctx, q)
			if err != nil {
				s.log.Warn("submission source failed", zap.String("collection", q.Collection), zap.Bool("group", q.Group), zap.Error(err))
				return nil
			}
			results[i] = docs
			return nil
		})
	}
	_ = g.Wait()

	byID := map[string]Submission{}
	var order []string
	for _, docs := range results {
		for _, d := range docs {
			if _, seen := byID[d.ID]; !seen {
				order = append(order, d.ID)
			}
			byID[d.ID] = submissionFromDoc(d)
		}
	}
	out := make([]Submission, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func submissionFromDoc(d docstore.Document) Submission {
	var created time.Time
	for _, k := range []string{"createdAt", "timestamp", "created_at", "submittedAt"} {
		if created = docstore.Time(d.Data, k); !created.IsZero() {
			break
		}
	}
	return Submission{
		ID:          d.ID,
		StudentCode: docstore.String(d.Data, "studentCode", "student_code", "uid"),
		StudentName: docstore.String(d.Data, "studentName", "student_name", "name"),
		Assignment:  docstore.String(d.Data, "assignment", "assignmentTitle", "task", "topic"),
		Level:       docstore.String(d.Data, "level", "className", "class", "group"),
		Text:        docstore.String(d.Data, "content", "text", "submissionText", "submission_text", "answer", "body"),
		CreatedAt:   created,
	}
}

// FindSubmission picks the student's submission for assignment, else their newest one.
// subs must be newest first.
func FindSubmission(subs []Submission, student RosterEntry, assignment string) (Submission, bool) {
	code := strings.ToLower(strings.TrimSpace(student.StudentCode))
	name := strings.ToLower(strings.TrimSpace(student.Name))
	var mine []Submission
	for _, sub := range subs {
		if code != "" && strings.ToLower(sub.StudentCode) == code ||
			name != "" && strings.ToLower(sub.StudentName) == name {
			mine = append(mine, sub)
		}
	}
	if len(mine) == 0 {
		return Submission{}, false
	}
	want := strings.ToLower(strings.TrimSpace(assignment))
	for _, sub := range mine {
		if strings.ToLower(sub.Assignment) == want {
			return sub, true
		}
	}
	return mine[0], true
}

// Reference is the model answer of one assignment.
type Reference struct {
	Assignment string `json:"assignment"`
	Level      string `json:"level,omitempty"`
	Reference  string `json:"reference"`
}

// References loads the answers dictionary.
func (s *Service) References() ([]Reference, error) {
	raw, err := os.ReadFile(s.cfg.AnswersPath)
	if err != nil {
		return nil, fmt.Errorf("marking.References: %w", err)
	}
	var refs []Reference
	if err := json.Unmarshal(raw, &refs); err != nil {
		return nil, fmt.Errorf("marking.References: %w", err)
	}
	return refs, nil
}

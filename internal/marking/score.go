package marking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"classroom/internal/apperr"
	"classroom/internal/docstore"
	"classroom/internal/metrics"
)

// ErrMissingScoreFields is returned when a score has no student or assignment.
var ErrMissingScoreFields = apperr.Validation("missing_fields", "studentCode, assignment and score are required")

// ScoreInput is what the teacher submits for one piece of work.
type ScoreInput struct {
	StudentCode string  `json:"studentCode"`
	Name        string  `json:"name"`
	Assignment  string  `json:"assignment"`
	Score       float64 `json:"score"`
	Comments    string  `json:"comments"`
	Level       string  `json:"level"`
	Link        string  `json:"link"`
}

// ScorePayload is the row sent to the score sheet.
type ScorePayload struct {
	StudentCode string  `json:"studentcode"`
	Name        string  `json:"name"`
	Assignment  string  `json:"assignment"`
	Score       float64 `json:"score"`
	Comments    string  `json:"comments"`
	Date        string  `json:"date"`
	Level       string  `json:"level"`
	Link        string  `json:"link"`
}

const payloadDateLayout = "Mon Jan 02 2006 15:04:05 GMT-0700 (MST)"

// BuildPayload turns input into the sheet row. The link is dropped below the pass mark.
func BuildPayload(in ScoreInput, now time.Time) ScorePayload {
	link := strings.TrimSpace(in.Link)
	if in.Score < passMark {
		link = ""
	}
	return ScorePayload{
		StudentCode: strings.TrimSpace(in.StudentCode),
		Name:        strings.TrimSpace(in.Name),
		Assignment:  strings.TrimSpace(in.Assignment),
		Score:       in.Score,
		Comments:    strings.TrimSpace(in.Comments),
		Date:        now.Format(payloadDateLayout),
		Level:       strings.TrimSpace(in.Level),
		Link:        link,
	}
}

// SaveScore delivers a score to the webhook and, when configured, mirrors it into
// the scores collection.
func (s *Service) SaveScore(ctx context.Context, in ScoreInput) (ScorePayload, error) {
	if strings.TrimSpace(in.StudentCode) == "" && strings.TrimSpace(in.Name) == "" ||
		strings.TrimSpace(in.Assignment) == "" {
		return ScorePayload{}, ErrMissingScoreFields
	}
	p := BuildPayload(in, s.now())

	outcome, err := s.hook.Deliver(ctx, p)
	metrics.ScoreDeliveries.WithLabelValues(outcome).Inc()
	if err != nil {
		s.log.Warn("score delivery failed", zap.String("student", p.StudentCode), zap.String("assignment", p.Assignment), zap.Error(err))
		return ScorePayload{}, err
	}
	if outcome == OutcomeFallback {
		s.log.Warn("score sent through fallback", zap.String("student", p.StudentCode))
	}

	switch s.cfg.Mirror {
	case MirrorDirect:
		if err := StoreScore(ctx, s.db, p, s.now()); err != nil {
			return ScorePayload{}, fmt.Errorf("marking.SaveScore: %w", err)
		}
	case MirrorQueue:
		if err := s.pub.PublishScore(ctx, p); err != nil {
			return ScorePayload{}, fmt.Errorf("marking.SaveScore: publish: %w", err)
		}
	}
	s.log.Info("score saved", zap.String("student", p.StudentCode), zap.String("assignment", p.Assignment), zap.Float64("score", p.Score))
	return p, nil
}

// StoreScore appends a payload to the scores collection.
func StoreScore(ctx context.Context, db docstore.Store, p ScorePayload, now time.Time) error {
	_, err := db.Add(ctx, ScoresCollection, map[string]any{
		"studentcode": p.StudentCode,
		"name":        p.Name,
		"assignment":  p.Assignment,
		"score":       p.Score,
		"comments":    p.Comments,
		"date":        p.Date,
		"level":       p.Level,
		"link":        p.Link,
		"createdAt":   now.UTC().Format(time.RFC3339Nano),
	})
	return err
}

const (
	OutcomeSkipped   = "skipped"
	OutcomeDelivered = "delivered"
	OutcomeFallback  = "fallback"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Webhook posts score rows to the sheet's web app.
type Webhook struct {
	URL      string
	Fallback bool
	Client   *http.Client
}

func NewWebhook(url string, timeout time.Duration, fallback bool) *Webhook {
	return &Webhook{URL: strings.TrimSpace(url), Fallback: fallback, Client: &http.Client{Timeout: timeout}}
}

// Deliver posts p as JSON. A non-2xx status or a body with ok=false is an upstream
// error. On transport failure the row is re-sent as text/plain when Fallback is set.
func (w *Webhook) Deliver(ctx context.Context, p ScorePayload) (string, error) {
	if w.URL == "" {
		return OutcomeSkipped, nil
	}
	body, err := json.Marshal(p)
	if err != nil {
		return OutcomeFailed, err
	}

	resp, err := w.post(ctx, "application/json", body)
	if err != nil {
		if !w.Fallback || ctx.Err() != nil {
			return OutcomeFailed, apperr.Upstream("webhook_unreachable", "Failed to write score to the score sheet", err)
		}
		fb, ferr := w.post(ctx, "text/plain;charset=utf-8", body)
		if ferr != nil {
			return OutcomeFailed, apperr.Upstream("webhook_unreachable", "Failed to write score to the score sheet", ferr)
		}
		_, _ = io.Copy(io.Discard, fb.Body)
		fb.Body.Close()
		return OutcomeFallback, nil
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = "Failed to write score to the score sheet"
		}
		return OutcomeRejected, apperr.Upstream("webhook_status", msg, fmt.Errorf("status %d", resp.StatusCode))
	}
	var reply struct {
		OK    *bool  `json:"ok"`
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &reply) == nil && reply.OK != nil && !*reply.OK {
		msg := reply.Error
		if msg == "" {
			msg = "Validation failed while saving to sheet"
		}
		return OutcomeRejected, apperr.Upstream("webhook_rejected", msg, nil)
	}
	return OutcomeDelivered, nil
}

func (w *Webhook) post(ctx context.Context, contentType string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return w.Client.Do(req)
}

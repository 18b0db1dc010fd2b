package marking

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"classroom/internal/apperr"
	"classroom/internal/docstore"
	"classroom/internal/queue"
)

var now = time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)

func newService(t *testing.T, db docstore.Store, pub Publisher, cfg Config) *Service {
	t.Helper()
	if db == nil {
		db = docstore.NewMemory()
	}
	svc, err := NewService(db, pub, cfg, zap.NewNop())
	require.NoError(t, err)
	return svc.WithClock(func() time.Time { return now })
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadRosterFromSheet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "Student_Code,Full Name,Class\nS-01,Ama Owusu,A1\n,Kofi Mensah,B1\n,,\n")
	}))
	defer srv.Close()

	svc := newService(t, nil, nil, Config{RosterURL: srv.URL, RosterFile: "missing.csv"})
	rows, err := svc.LoadRoster(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []RosterEntry{
		{ID: "S-01", StudentCode: "S-01", Name: "Ama Owusu", Level: "A1", Status: "Active"},
		{ID: "Kofi Mensah-B1", Name: "Kofi Mensah", Level: "B1", Status: "Active"},
	}, rows)
}

func TestLoadRosterFallsBackToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	file := writeFile(t, "students.csv", "studentcode,name,level,status\nS-09,Esi,A2,Paused\n")
	svc := newService(t, nil, nil, Config{RosterURL: srv.URL, RosterFile: file})
	rows, err := svc.LoadRoster(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Paused", rows[0].Status)

	svc = newService(t, nil, nil, Config{RosterFile: filepath.Join(t.TempDir(), "nope.csv")})
	_, err = svc.LoadRoster(context.Background())
	assert.Error(t, err)
}

func TestLoadSubmissions(t *testing.T) {
	db := docstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, db.Set(ctx, "submissions/a", map[string]any{"studentCode": "S-01", "assignment": "Brief 1", "content": "Hallo", "createdAt": now.Add(-time.Hour)}))
	require.NoError(t, db.Set(ctx, "students/u1/submissions/b", map[string]any{"student_code": "S-01", "task": "Brief 2", "text": "Guten Tag", "timestamp": now.UnixMilli()}))
	require.NoError(t, db.Set(ctx, "forums/f1/posts/c", map[string]any{"uid": "S-02", "topic": "Brief 1", "body": "Servus"}))

	svc := newService(t, db, nil, Config{})
	subs, err := svc.LoadSubmissions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 3)

	assert.Equal(t, "b", subs[0].ID)
	assert.Equal(t, "Brief 2", subs[0].Assignment)
	assert.Equal(t, "Guten Tag", subs[0].Text)
	assert.Equal(t, "a", subs[1].ID)
	assert.Equal(t, "c", subs[2].ID)
	assert.True(t, subs[2].CreatedAt.IsZero())
}

func TestFindSubmission(t *testing.T) {
	subs := []Submission{
		{ID: "new", StudentCode: "S-01", Assignment: "Brief 2"},
		{ID: "old", StudentCode: "s-01", Assignment: "Brief 1"},
		{ID: "other", StudentName: "Kofi", Assignment: "Brief 1"},
	}
	got, ok := FindSubmission(subs, RosterEntry{StudentCode: "S-01"}, " brief 1 ")
	require.True(t, ok)
	assert.Equal(t, "old", got.ID)

	got, ok = FindSubmission(subs, RosterEntry{StudentCode: "S-01"}, "Brief 9")
	require.True(t, ok)
	assert.Equal(t, "new", got.ID)

	got, ok = FindSubmission(subs, RosterEntry{Name: "kofi"}, "")
	require.True(t, ok)
	assert.Equal(t, "other", got.ID)

	_, ok = FindSubmission(subs, RosterEntry{StudentCode: "S-77"}, "Brief 1")
	assert.False(t, ok)
}

func TestReferences(t *testing.T) {
	file := writeFile(t, "answers.json", `[{"assignment":"Brief 1","level":"A1","reference":"Liebe Anna"}]`)
	svc := newService(t, nil, nil, Config{AnswersPath: file})
	refs, err := svc.References()
	require.NoError(t, err)
	assert.Equal(t, []Reference{{Assignment: "Brief 1", Level: "A1", Reference: "Liebe Anna"}}, refs)

	svc = newService(t, nil, nil, Config{AnswersPath: writeFile(t, "bad.json", "{")})
	_, err = svc.References()
	assert.Error(t, err)
}

func TestSaveScoreWebhookAndDirectMirror(t *testing.T) {
	var got ScorePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	db := docstore.NewMemory()
	svc := newService(t, db, nil, Config{WebhookURL: srv.URL, Mirror: MirrorDirect})

	p, err := svc.SaveScore(context.Background(), ScoreInput{
		StudentCode: " S-01 ", Name: "Ama", Assignment: "Brief 1", Score: 55, Comments: "ok", Level: "A1", Link: "https://x/doc",
	})
	require.NoError(t, err)
	assert.Equal(t, "", p.Link)
	assert.Equal(t, "S-01", got.StudentCode)
	assert.Equal(t, 55.0, got.Score)
	assert.Equal(t, "Tue Feb 10 2026 09:30:00 GMT+0000 (UTC)", got.Date)

	docs, err := db.List(context.Background(), ScoresCollection)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Brief 1", docstore.String(docs[0].Data, "assignment"))

	p, err = svc.SaveScore(context.Background(), ScoreInput{StudentCode: "S-01", Assignment: "Brief 2", Score: 60, Link: "https://x/doc"})
	require.NoError(t, err)
	assert.Equal(t, "https://x/doc", p.Link)
}

func TestSaveScoreRejections(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		message string
	}{
		{"non-2xx carries body", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "sheet locked")
		}, "sheet locked"},
		{"ok false", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"ok":false,"error":"duplicate row"}`)
		}, "duplicate row"},
		{"ok false without error", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"ok":false}`)
		}, "Validation failed while saving to sheet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			db := docstore.NewMemory()
			svc := newService(t, db, nil, Config{WebhookURL: srv.URL, Mirror: MirrorDirect})
			_, err := svc.SaveScore(context.Background(), ScoreInput{StudentCode: "S-01", Assignment: "Brief 1", Score: 80})
			require.Error(t, err)
			assert.Equal(t, http.StatusBadGateway, apperr.Status(err))
			assert.Contains(t, apperr.Message(err), tt.message)
			assert.Zero(t, db.Len())
		})
	}
}

func TestSaveScoreFallbackOnTransportFailure(t *testing.T) {
	var mu sync.Mutex
	var plain []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") == "application/json" {
			conn, _, err := w.(http.Hijacker).Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		plain = append(plain, string(body))
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := newService(t, nil, nil, Config{WebhookURL: srv.URL, Fallback: true})
	_, err := svc.SaveScore(context.Background(), ScoreInput{StudentCode: "S-01", Assignment: "Brief 1", Score: 70})
	require.NoError(t, err)
	mu.Lock()
	require.Len(t, plain, 1)
	assert.Contains(t, plain[0], `"studentcode":"S-01"`)
	mu.Unlock()

	svc = newService(t, nil, nil, Config{WebhookURL: srv.URL})
	_, err = svc.SaveScore(context.Background(), ScoreInput{StudentCode: "S-01", Assignment: "Brief 1", Score: 70})
	assert.Equal(t, http.StatusBadGateway, apperr.Status(err))
}

func TestSaveScoreValidation(t *testing.T) {
	svc := newService(t, nil, nil, Config{})
	_, err := svc.SaveScore(context.Background(), ScoreInput{StudentCode: "S-01"})
	assert.ErrorIs(t, err, ErrMissingScoreFields)

	_, err = NewService(docstore.NewMemory(), nil, Config{Mirror: MirrorQueue}, zap.NewNop())
	assert.Error(t, err)
	_, err = NewService(docstore.NewMemory(), nil, Config{Mirror: "sideways"}, zap.NewNop())
	assert.Error(t, err)
}

func TestQueueMirror(t *testing.T) {
	q := queue.NewInMemory(4)
	db := docstore.NewMemory()
	svc := newService(t, db, QueuePublisher{Q: q}, Config{Mirror: MirrorQueue})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Mirror(ctx, q, db, func() time.Time { return now }, zap.NewNop()) }()

	require.NoError(t, q.Publish(ctx, queue.Message{Type: "other", Body: []byte(`{}`)}))
	_, err := svc.SaveScore(ctx, ScoreInput{StudentCode: "S-01", Assignment: "Brief 1", Score: 90, Link: "l"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return db.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	docs, err := db.List(ctx, ScoresCollection)
	require.NoError(t, err)
	assert.Equal(t, "l", docstore.String(docs[0].Data, "link"))
	assert.Equal(t, now.Format(time.RFC3339Nano), docstore.String(docs[0].Data, "createdAt"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("mirror did not stop")
	}
}

package attendance

import (
	"context"
	"errors"
	"sort"
	"strings"

	"classroom/internal/docstore"
	"classroom/internal/session"
)

// Repository persists class session documents and reads their check-ins.
type Repository struct {
	db docstore.Store
}

// NewRepository creates a repo.
func NewRepository(db docstore.Store) *Repository {
	return &Repository{db: db}
}

// ListSessions returns every stored session of a class.
func (r *Repository) ListSessions(ctx context.Context, classID string) ([]docstore.Document, error) {
	return r.db.List(ctx, docstore.Join("attendance", classID, "sessions"))
}

// FindSessions queries stored sessions across classes. Empty bounds are open.
func (r *Repository) FindSessions(ctx context.Context, classID, from, to string) ([]docstore.Document, error) {
	q := docstore.Query{Collection: "sessions", Group: true, OrderBy: "date"}
	if classID != "" {
		q = q.Where("classId", "==", classID)
	}
	if from != "" {
		q = q.Where("date", ">=", from)
	}
	if to != "" {
		q = q.Where("date", "<=", to)
	}
	return r.db.Query(ctx, q)
}

// ClassOf returns the class id segment of a session document path.
func ClassOf(doc docstore.Document) string {
	parts := strings.Split(doc.Path, "/")
	if len(parts) >= 4 && parts[len(parts)-2] == "sessions" {
		return parts[len(parts)-3]
	}
	return docstore.String(doc.Data, "classId")
}

// GetSession returns nil when the session was never stored.
func (r *Repository) GetSession(ctx context.Context, classID, date string) (*docstore.Document, error) {
	doc, err := r.db.Get(ctx, session.SessionPath(classID, date))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	return doc, err
}

// SaveSession merge-writes data, stamping createdAt only on new documents.
func (r *Repository) SaveSession(ctx context.Context, classID, date string, data map[string]any) error {
	existing, err := r.GetSession(ctx, classID, date)
	if err != nil {
		return err
	}
	data["updatedAt"] = docstore.ServerTimestamp
	if existing == nil {
		data["createdAt"] = docstore.ServerTimestamp
	}
	return r.db.Set(ctx, session.SessionPath(classID, date), data, docstore.Merge())
}

// ListCheckins returns a session's self check-ins.
func (r *Repository) ListCheckins(ctx context.Context, classID, date string) ([]session.CheckinRecord, error) {
	docs, err := r.db.List(ctx, session.CheckinsPath(classID, date))
	if err != nil {
		return nil, err
	}
	out := make([]session.CheckinRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, session.CheckinFromDoc(d))
	}
	return out, nil
}

// Record is one manually marked student in a session.
type Record struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	Status      string `json:"status"`
}

// BaseRecords reads the manual records of a session document: the records array
// when present, else the students map with present/absent.
func BaseRecords(data map[string]any) []Record {
	if arr, ok := docstore.Slice(data, "records"); ok && len(arr) > 0 {
		out := make([]Record, 0, len(arr))
		for _, item := range arr {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			id := docstore.String(m, "studentId", "studentCode")
			if id == "" {
				continue
			}
			out = append(out, Record{
				StudentID:   id,
				StudentName: docstore.String(m, "studentName", "name"),
				Status:      strings.ToLower(docstore.String(m, "status")),
			})
		}
		return out
	}

	students := studentsFromData(data)
	codes := make([]string, 0, len(students))
	for code := range students {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	out := make([]Record, 0, len(codes))
	for _, code := range codes {
		status := StatusAbsent
		if students[code].Present {
			status = StatusPresent
		}
		out = append(out, Record{StudentID: code, StudentName: students[code].Name, Status: status})
	}
	return out
}

// studentsFromData normalizes the students map, or the legacy records array, into marks.
func studentsFromData(data map[string]any) map[string]Mark {
	out := map[string]Mark{}
	if m, ok := docstore.Map(data, "students"); ok {
		for code, v := range m {
			switch e := v.(type) {
			case bool:
				out[code] = Mark{Present: e}
			case map[string]any:
				out[code] = Mark{Name: docstore.String(e, "name"), Present: docstore.Bool(e, "present")}
			default:
				out[code] = Mark{}
			}
		}
		return out
	}
	if arr, ok := docstore.Slice(data, "records"); ok {
		for _, item := range arr {
			rec, ok := item.(map[string]any)
			if !ok {
				continue
			}
			code := docstore.String(rec, "studentCode", "studentId")
			if code == "" {
				continue
			}
			out[code] = Mark{
				Name:    docstore.String(rec, "studentName"),
				Present: strings.EqualFold(docstore.String(rec, "status"), StatusPresent),
			}
		}
	}
	return out
}

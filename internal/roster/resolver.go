// Package roster locates students and classes across the published sheet and the
// students/classes collections, tolerating the class field's historical names.
package roster

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"classroom/internal/apperr"
	"classroom/internal/docstore"
	"classroom/internal/metrics"
)

const (
	studentsCollection = "students"
	classesCollection  = "classes"
)

var ErrStudentNotFound = apperr.NotFound("student_not_found", "Student not found")

// Class is a selectable class.
type Class struct {
	ClassID string `json:"classId"`
	Name    string `json:"name"`
}

// Resolver resolves rosters sheet-first, then through the database.
type Resolver struct {
	sheet *SheetSource
	db    docstore.Store
	log   *zap.Logger
}

// NewResolver builds a resolver. sheet may be nil.
func NewResolver(sheet *SheetSource, db docstore.Store, log *zap.Logger) *Resolver {
	return &Resolver{sheet: sheet, db: db, log: log.Named("roster")}
}

// ResolveStudents returns the eligible students of classID sorted by name.
// No students is a valid result.
func (r *Resolver) ResolveStudents(ctx context.Context, classID string) ([]Student, error) {
	steps := []Step[Student]{{
		Name:     SourceSheet,
		Optional: true,
		Load: func(ctx context.Context) ([]Student, error) {
			return r.sheetStudents(ctx, classID)
		},
	}}
	for _, field := range LegacyClassFields {
		field := field
		steps = append(steps, Step[Student]{
			Name: SourceDatabase + ":" + field,
			Load: func(ctx context.Context) ([]Student, error) {
				return r.dbStudents(ctx, field, classID)
			},
		})
	}

	students, source, err := FirstNonEmpty(ctx, r.log, steps...)
	if err != nil {
		return nil, err
	}
	if source == "" {
		source = "none"
	}
	metrics.RosterSource.WithLabelValues(source).Inc()
	r.log.Debug("roster resolved", zap.String("class", classID), zap.String("source", source), zap.Int("students", len(students)))
	sortStudents(students)
	return students, nil
}

func (r *Resolver) sheetStudents(ctx context.Context, classID string) ([]Student, error) {
	rows, err := r.sheet.Rows(ctx)
	if err != nil {
		return nil, err
	}
	var out []Student
	for _, row := range rows {
		s := studentFromRow(row)
		if s.InClass(classID) && s.Eligible() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *Resolver) dbStudents(ctx context.Context, field, classID string) ([]Student, error) {
	docs, err := r.db.Query(ctx, docstore.Query{Collection: studentsCollection}.Where(field, "==", classID))
	if err != nil {
		return nil, err
	}
	var out []Student
	for _, d := range docs {
		s := studentFromDoc(d)
		s.Class = docstore.String(d.Data, field)
		if s.Eligible() {
			out = append(out, s)
		}
	}
	return out, nil
}

// ListClasses returns the distinct classes, sheet-derived first, then the classes
// collection, then classes derived from the students collection.
func (r *Resolver) ListClasses(ctx context.Context) ([]Class, error) {
	classes, source, err := FirstNonEmpty(ctx, r.log,
		Step[Class]{Name: SourceSheet, Optional: true, Load: r.sheetClasses},
		Step[Class]{Name: classesCollection, Load: r.collectionClasses},
		Step[Class]{Name: studentsCollection, Load: r.studentClasses},
	)
	if err != nil {
		return nil, err
	}
	r.log.Debug("classes resolved", zap.String("source", source), zap.Int("classes", len(classes)))
	return dedupeClasses(classes), nil
}

func (r *Resolver) sheetClasses(ctx context.Context) ([]Class, error) {
	rows, err := r.sheet.Rows(ctx)
	if err != nil {
		return nil, err
	}
	var out []Class
	for _, row := range rows {
		s := studentFromRow(row)
		if s.Class != "" && s.IsActive() {
			out = append(out, Class{ClassID: s.Class, Name: s.Class})
		}
	}
	return out, nil
}

func (r *Resolver) collectionClasses(ctx context.Context) ([]Class, error) {
	docs, err := r.db.Query(ctx, docstore.Query{Collection: classesCollection, OrderBy: "name"})
	if err != nil {
		return nil, err
	}
	var out []Class
	for _, d := range docs {
		id := docstore.String(d.Data, "classId")
		if id == "" {
			id = d.ID
		}
		name := docstore.String(d.Data, "name", "classId")
		if name == "" {
			name = d.ID
		}
		out = append(out, Class{ClassID: strings.TrimSpace(id), Name: name})
	}
	return out, nil
}

func (r *Resolver) studentClasses(ctx context.Context) ([]Class, error) {
	docs, err := r.db.List(ctx, studentsCollection)
	if err != nil {
		return nil, err
	}
	var out []Class
	for _, d := range docs {
		id := docstore.String(d.Data, LegacyClassFields...)
		if id == "" {
			continue
		}
		name := docstore.String(d.Data, "className")
		if name == "" {
			name = id
		}
		out = append(out, Class{ClassID: id, Name: name})
	}
	return out, nil
}

// FindStudent looks key up directly by studentCode, studentcode, then email, and
// falls back to the resolved roster of classID.
func (r *Resolver) FindStudent(ctx context.Context, classID, key string) (Student, error) {
	key = strings.TrimSpace(key)
	for _, field := range []string{"studentCode", "studentcode", "email"} {
		docs, err := r.db.Query(ctx, docstore.Query{Collection: studentsCollection, Limit: 1}.Where(field, "==", key))
		if err != nil {
			return Student{}, err
		}
		if len(docs) > 0 {
			s := studentFromDoc(docs[0])
			s.Class = classFor(docs[0].Data, classID)
			return s, nil
		}
	}

	students, err := r.ResolveStudents(ctx, classID)
	if err != nil {
		return Student{}, err
	}
	for _, s := range students {
		if s.Matches(key) {
			if s.Class == "" {
				s.Class = classID
			}
			return s, nil
		}
	}
	return Student{}, ErrStudentNotFound
}

// classFor returns the class alias of a student document that names classID, else
// the first non-empty alias.
func classFor(data map[string]any, classID string) string {
	want := NormalizeClass(classID)
	for _, field := range LegacyClassFields {
		if v := docstore.String(data, field); v != "" && NormalizeClass(v) == want {
			return v
		}
	}
	return docstore.String(data, LegacyClassFields...)
}

// IsNotFound reports whether err is ErrStudentNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrStudentNotFound) }

func sortStudents(s []Student) {
	sort.SliceStable(s, func(i, j int) bool {
		return strings.ToLower(s[i].Name) < strings.ToLower(s[j].Name)
	})
}

func dedupeClasses(in []Class) []Class {
	seen := make(map[string]bool, len(in))
	out := make([]Class, 0, len(in))
	for _, c := range in {
		key := NormalizeClass(c.ClassID)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

package roster

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"classroom/internal/docstore"
)

const sheetCSV = "Student Code,Name,Class Name,Status,Email\n" +
	"S-01,Zara Mensah,A1,Active,zara@x.org\n" +
	"S-02,Ama Owusu,a1 ,,ama@x.org\n" +
	"S-03,Kofi Boateng,A1,Inactive,kofi@x.org\n" +
	"S-04,Esi Ansah,B1,Active,esi@x.org\n" +
	",,,,\n"

func sheetServer(t *testing.T, status int, body string) *SheetSource {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewSheetSource(srv.URL, time.Second)
}

func seedStudents(t *testing.T, db docstore.Store, docs map[string]map[string]any) {
	t.Helper()
	for id, d := range docs {
		require.NoError(t, db.Set(context.Background(), "students/"+id, d))
	}
}

func names(students []Student) []string {
	out := make([]string, 0, len(students))
	for _, s := range students {
		out = append(out, s.Name)
	}
	return out
}

func TestParseCSVNormalizesHeaders(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader("\ufeffStudent Code,Class_Name,\"Full Name\"\nS-1,A1,\"Doe, Jane\"\n\nS-2\n"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "S-1", rows[0]["studentcode"])
	assert.Equal(t, "A1", rows[0]["classname"])
	assert.Equal(t, "Doe, Jane", rows[0].Get(sheetNameCols...))
	assert.Equal(t, "", rows[1]["classname"])
}

func TestResolveStudentsSheetWins(t *testing.T) {
	db := docstore.NewMemory()
	seedStudents(t, db, map[string]map[string]any{
		"u1": {"name": "Database Only", "classId": "A1", "role": "student", "status": "active"},
	})
	r := NewResolver(sheetServer(t, http.StatusOK, sheetCSV), db, zap.NewNop())

	students, err := r.ResolveStudents(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ama Owusu", "Zara Mensah"}, names(students))
	assert.Equal(t, SourceSheet, students[0].Source)
}

func TestResolveStudentsFallsBackThroughLegacyFields(t *testing.T) {
	db := docstore.NewMemory()
	seedStudents(t, db, map[string]map[string]any{
		"u1": {"name": "Group Kid", "group": "A1", "role": "student", "status": "Active"},
		"u2": {"name": "Group Teacher", "group": "A1", "role": "teacher", "status": "active"},
		"u3": {"name": "Group Name Kid", "groupName": "A1", "role": "student", "status": "active"},
		"u4": {"name": "Left", "group": "A1", "role": "student", "status": "inactive"},
	})
	// sheet fails, then classId and className are empty, group is the first hit
	r := NewResolver(sheetServer(t, http.StatusInternalServerError, "boom"), db, zap.NewNop())

	students, err := r.ResolveStudents(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Group Kid"}, names(students))
	assert.Equal(t, SourceDatabase, students[0].Source)
}

func TestStudentClassIsTheMatchedAlias(t *testing.T) {
	db := docstore.NewMemory()
	seedStudents(t, db, map[string]map[string]any{
		"u1": {"name": "Moved Kid", "studentCode": "S-09", "email": "moved@x.org", "classId": "B1", "group": "A1", "role": "student", "status": "active"},
	})
	r := NewResolver(nil, db, zap.NewNop())
	ctx := context.Background()

	students, err := r.ResolveStudents(ctx, "A1")
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "A1", students[0].Class)
	assert.True(t, students[0].InClass("A1"))

	st, err := r.FindStudent(ctx, "A1", "S-09")
	require.NoError(t, err)
	assert.True(t, st.InClass("A1"))

	st, err = r.FindStudent(ctx, "B1", "moved@x.org")
	require.NoError(t, err)
	assert.Equal(t, "B1", st.Class)

	st, err = r.FindStudent(ctx, "C1", "S-09")
	require.NoError(t, err)
	assert.Equal(t, "B1", st.Class)
	assert.False(t, st.InClass("C1"))
}

func TestResolveStudentsEmptyIsNotAnError(t *testing.T) {
	r := NewResolver(nil, docstore.NewMemory(), zap.NewNop())
	students, err := r.ResolveStudents(context.Background(), "Z9")
	require.NoError(t, err)
	assert.Empty(t, students)
}

type failingStore struct{ docstore.Store }

func (failingStore) Query(context.Context, docstore.Query) ([]docstore.Document, error) {
	return nil, errors.New("unavailable")
}

func TestResolveStudentsDatabaseErrorPropagates(t *testing.T) {
	r := NewResolver(nil, failingStore{docstore.NewMemory()}, zap.NewNop())
	_, err := r.ResolveStudents(context.Background(), "A1")
	assert.Error(t, err)
}

func TestListClasses(t *testing.T) {
	ctx := context.Background()

	t.Run("sheet", func(t *testing.T) {
		r := NewResolver(sheetServer(t, http.StatusOK, sheetCSV), docstore.NewMemory(), zap.NewNop())
		classes, err := r.ListClasses(ctx)
		require.NoError(t, err)
		assert.Equal(t, []Class{{ClassID: "A1", Name: "A1"}, {ClassID: "B1", Name: "B1"}}, classes)
	})

	t.Run("classes collection", func(t *testing.T) {
		db := docstore.NewMemory()
		require.NoError(t, db.Set(ctx, "classes/b1", map[string]any{"name": "B1 Evening"}))
		require.NoError(t, db.Set(ctx, "classes/a1", map[string]any{"classId": "A1", "name": "A1 Morning"}))
		r := NewResolver(nil, db, zap.NewNop())
		classes, err := r.ListClasses(ctx)
		require.NoError(t, err)
		assert.Equal(t, []Class{{ClassID: "A1", Name: "A1 Morning"}, {ClassID: "b1", Name: "B1 Evening"}}, classes)
	})

	t.Run("derived from students", func(t *testing.T) {
		db := docstore.NewMemory()
		seedStudents(t, db, map[string]map[string]any{
			"u1": {"className": "B2"},
			"u2": {"classId": "A2", "className": "A2"},
			"u3": {"classId": "a2"},
			"u4": {"name": "no class"},
		})
		r := NewResolver(nil, db, zap.NewNop())
		classes, err := r.ListClasses(ctx)
		require.NoError(t, err)
		assert.Equal(t, []Class{{ClassID: "A2", Name: "A2"}, {ClassID: "B2", Name: "B2"}}, classes)
	})
}

func TestFindStudent(t *testing.T) {
	ctx := context.Background()
	db := docstore.NewMemory()
	seedStudents(t, db, map[string]map[string]any{
		"u1": {"uid": "uid-1", "studentCode": "S-10", "name": "Yaw", "classId": "A1", "role": "student", "status": "active"},
		"u2": {"studentcode": "S-11", "name": "Efua", "className": "A1", "role": "student", "status": "active"},
		"u3": {"email": "abena@x.org", "name": "Abena", "group": "A1", "role": "student", "status": "active"},
	})
	r := NewResolver(sheetServer(t, http.StatusOK, sheetCSV), db, zap.NewNop())

	s, err := r.FindStudent(ctx, "A1", "S-10")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", s.Identity())

	s, err = r.FindStudent(ctx, "A1", "S-11")
	require.NoError(t, err)
	assert.Equal(t, "Efua", s.Name)
	assert.Equal(t, "u2", s.Identity())

	s, err = r.FindStudent(ctx, "A1", "abena@x.org")
	require.NoError(t, err)
	assert.True(t, s.InClass("a1"))

	// not in the database, found on the sheet roster
	s, err = r.FindStudent(ctx, "A1", "ZARA@x.org")
	require.NoError(t, err)
	assert.Equal(t, "S-01", s.Identity())
	assert.True(t, s.Eligible())

	_, err = r.FindStudent(ctx, "A1", "nobody")
	assert.True(t, IsNotFound(err))
}

func TestStudentEligibility(t *testing.T) {
	assert.True(t, Student{Source: SourceSheet}.Eligible())
	assert.False(t, Student{Source: SourceDatabase, Status: "active"}.Eligible())
	assert.True(t, Student{Source: SourceDatabase, Role: "Student", Status: "ACTIVE"}.Eligible())
	assert.False(t, Student{Source: SourceSheet, Status: "inactive"}.Eligible())
	assert.Equal(t, "a_b", Student{StudentCode: "a/b"}.Identity())
}

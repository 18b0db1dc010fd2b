package roster

import (
	"strings"

	"classroom/internal/docstore"
)

// LegacyClassFields are the student fields that have carried the class over time,
// in the order they are consulted.
var LegacyClassFields = []string{"classId", "className", "group", "groupId", "groupName"}

const (
	SourceSheet    = "sheet"
	SourceDatabase = "database"
)

// Student is a roster entry from the published sheet or the students collection.
type Student struct {
	ID          string `json:"id"`
	StudentCode string `json:"studentCode"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Class       string `json:"classId"`
	Role        string `json:"role,omitempty"`
	Status      string `json:"status"`
	Source      string `json:"source"`
}

// Identity is the key a check-in is stored under.
func (s Student) Identity() string {
	id := s.ID
	if id == "" {
		id = s.StudentCode
	}
	if id == "" {
		id = strings.ToLower(s.Email)
	}
	return strings.ReplaceAll(id, "/", "_")
}

// IsStudent reports role=student. Sheet rows carry no role and count as students.
func (s Student) IsStudent() bool {
	if s.Role == "" && s.Source == SourceSheet {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(s.Role), "student")
}

// IsActive reports status=active. An empty status on a sheet row counts as active.
func (s Student) IsActive() bool {
	if s.Status == "" && s.Source == SourceSheet {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(s.Status), "active")
}

// Eligible is IsStudent and IsActive.
func (s Student) Eligible() bool { return s.IsStudent() && s.IsActive() }

// InClass compares the student's class with classID after normalization.
func (s Student) InClass(classID string) bool {
	return s.Class != "" && NormalizeClass(s.Class) == NormalizeClass(classID)
}

// Matches reports whether key is this student's code or email.
func (s Student) Matches(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	return strings.EqualFold(s.StudentCode, key) || strings.EqualFold(s.Email, key) || strings.EqualFold(s.ID, key)
}

// NormalizeClass is the comparison form of a class identifier.
func NormalizeClass(v string) string {
	return strings.ToLower(strings.Join(strings.Fields(v), " "))
}

func studentFromDoc(doc docstore.Document) Student {
	d := doc.Data
	id := docstore.String(d, "uid")
	if id == "" {
		id = doc.ID
	}
	return Student{
		ID:          id,
		StudentCode: docstore.String(d, "studentCode", "studentcode"),
		Name:        docstore.String(d, "name", "studentName"),
		Email:       docstore.String(d, "email"),
		Phone:       docstore.String(d, "phone", "phoneNumber"),
		Class:       docstore.String(d, LegacyClassFields...),
		Role:        docstore.String(d, "role"),
		Status:      docstore.String(d, "status"),
		Source:      SourceDatabase,
	}
}

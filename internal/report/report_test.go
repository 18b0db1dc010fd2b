package report

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"classroom/internal/attendance"
	"classroom/internal/docstore"
)

func seed(t *testing.T) *Service {
	t.Helper()
	db := docstore.NewMemory()
	ctx := context.Background()
	docs := map[string]map[string]any{
		"attendance/A1/sessions/2026-02-10": {
			"classId": "A1", "date": "2026-02-10", "lesson": "Intro",
			"records": []any{
				map[string]any{"studentId": "S-02", "studentName": "Kofi", "status": "absent"},
				map[string]any{"studentId": "S-01", "studentName": "Ama", "status": "late"},
			},
		},
		"attendance/A1/sessions/2026-02-10/checkins/u2": {
			"studentCode": "S-02", "name": "Kofi", "status": "present", "method": "qr",
		},
		"attendance/A1/sessions/2026-02-11/checkins/u9": {
			"uid": "u9", "name": "Yaw", "status": "present",
		},
		"attendance/A1/sessions/2026-02-11": {
			"classId": "A1", "date": "2026-02-11", "title": "Numbers",
			"students": map[string]any{
				"S-01": map[string]any{"name": "Ama", "present": true},
				"S-03": map[string]any{"name": "Esi", "present": false},
			},
		},
		"attendance/B1/sessions/2026-02-10": {
			"classId": "B1", "date": "2026-02-10",
			"records": []any{map[string]any{"studentId": "S-10", "studentName": "Zed", "status": "excused"}},
		},
		"attendance/A1/sessions/2026-03-01": {"classId": "A1", "date": "2026-03-01"},
	}
	for path, d := range docs {
		require.NoError(t, db.Set(ctx, path, d))
	}
	return NewService(attendance.NewRepository(db), 2, zap.NewNop())
}

func TestRunMergesManualAndCheckins(t *testing.T) {
	svc := seed(t)
	res, err := svc.Run(context.Background(), Filter{ClassID: "A1", From: "2026-02-01", To: "2026-02-28"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Sessions)
	assert.Equal(t, []Row{
		{StudentID: "S-01", StudentName: "Ama", Status: "late", Method: MethodManual, ClassID: "A1", Date: "2026-02-10", Lesson: "Intro"},
		{StudentID: "S-02", StudentName: "Kofi", Status: "present", Method: MethodQR, ClassID: "A1", Date: "2026-02-10", Lesson: "Intro"},
		{StudentID: "S-01", StudentName: "Ama", Status: "present", Method: MethodManual, ClassID: "A1", Date: "2026-02-11", Lesson: "Numbers"},
		{StudentID: "S-03", StudentName: "Esi", Status: "absent", Method: MethodManual, ClassID: "A1", Date: "2026-02-11", Lesson: "Numbers"},
		{StudentID: "u9", StudentName: "Yaw", Status: "present", Method: MethodQR, ClassID: "A1", Date: "2026-02-11", Lesson: "Numbers"},
	}, res.Rows)
	assert.Equal(t, Metrics{Total: 5, Present: 3, Absent: 1, Late: 1, QR: 2}, res.Metrics)
}

func TestRunStatusFilterKeepsMetrics(t *testing.T) {
	svc := seed(t)
	res, err := svc.Run(context.Background(), Filter{Status: "excused"})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Sessions)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Zed", res.Rows[0].StudentName)
	assert.Equal(t, 6, res.Metrics.Total)
	assert.Equal(t, 1, res.Metrics.Excused)
}

func TestRunRejectsUnknownStatus(t *testing.T) {
	svc := seed(t)
	_, err := svc.Run(context.Background(), Filter{Status: "sleeping"})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	res, err := svc.Run(context.Background(), Filter{Status: "ALL", ClassID: "C9"})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.NotNil(t, res.Rows)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []Row{{StudentID: "S-01", StudentName: `Ama "A" Owusu`, Status: "present", Method: "qr", ClassID: "A1", Date: "2026-02-10"}}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "studentId,studentName,status,method,classId,date,lesson", lines[0])
	assert.Equal(t, `S-01,"Ama ""A"" Owusu",present,qr,A1,2026-02-10,`, lines[1])

	buf.Reset()
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Zero(t, buf.Len())
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, []Row{{StudentID: "S-01", StudentName: "Ama", Status: "late"}}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Attendance")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "studentName", rows[0][1])
	assert.Equal(t, "late", rows[1][2])
}

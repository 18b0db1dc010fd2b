package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classroom/internal/attendance"
)

// ---------- Classes and attendance book ----------

func (h *Handler) ListClasses(c *gin.Context) {
	classes, err := h.d.Roster.ListClasses(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classes": classes})
}

func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.d.Roster.ResolveStudents(c.Request.Context(), c.Param("classId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (h *Handler) GetAttendance(c *gin.Context) {
	m, err := h.d.Attendance.LoadMap(c.Request.Context(), c.Param("classId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classId": c.Param("classId"), "attendance": m})
}

func (h *Handler) PutAttendance(c *gin.Context) {
	var req struct {
		Attendance attendance.Map `json:"attendance"`
	}
	if !h.bind(c, &req) {
		return
	}
	if err := h.d.Attendance.SaveMap(c.Request.Context(), c.Param("classId"), req.Attendance); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "sessions": len(req.Attendance)})
}

func (h *Handler) GetSession(c *gin.Context) {
	rec, found, err := h.d.Attendance.LoadSession(c.Request.Context(), c.Param("classId"), c.Param("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"found": found, "session": rec})
}

func (h *Handler) PutRecords(c *gin.Context) {
	var req struct {
		Lesson  string              `json:"lesson"`
		Records []attendance.Record `json:"records"`
	}
	if !h.bind(c, &req) {
		return
	}
	err := h.d.Attendance.SaveRecords(c.Request.Context(), c.Param("classId"), c.Param("date"), teacherOf(c), req.Lesson, req.Records)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "records": len(req.Records)})
}

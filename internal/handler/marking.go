package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classroom/internal/marking"
)

// ---------- Marking ----------

func (h *Handler) MarkingRoster(c *gin.Context) {
	students, err := h.d.Marking.LoadRoster(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

// Submissions lists every submission, or with studentCode/name set, the best
// match for that student and assignment.
func (h *Handler) Submissions(c *gin.Context) {
	subs, err := h.d.Marking.LoadSubmissions(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	student := marking.RosterEntry{StudentCode: c.Query("studentCode"), Name: c.Query("name")}
	if student.StudentCode == "" && student.Name == "" {
		c.JSON(http.StatusOK, gin.H{"submissions": subs})
		return
	}
	sub, found := marking.FindSubmission(subs, student, c.Query("assignment"))
	if !found {
		c.JSON(http.StatusOK, gin.H{"found": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"found": true, "submission": sub})
}

func (h *Handler) References(c *gin.Context) {
	refs, err := h.d.Marking.References()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"references": refs})
}

func (h *Handler) SaveScore(c *gin.Context) {
	var in marking.ScoreInput
	if !h.bind(c, &in) {
		return
	}
	row, err := h.d.Marking.SaveScore(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "row": row})
}

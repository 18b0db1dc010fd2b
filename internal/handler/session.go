package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"classroom/internal/session"
)

// ---------- Session gate ----------

type openSessionRequest struct {
	ClassID       string `json:"classId"`
	ClassName     string `json:"className"`
	Date          string `json:"date"`
	Action        string `json:"action"`
	WindowMinutes int    `json:"windowMinutes"`
	Lesson        string `json:"lesson"`
}

// OpenSession opens, reopens or (action=close) closes a check-in window.
func (h *Handler) OpenSession(c *gin.Context) {
	var req openSessionRequest
	if !h.bind(c, &req) {
		return
	}
	classID := firstNonEmpty(req.ClassID, req.ClassName)
	t := teacherOf(c)

	if strings.EqualFold(strings.TrimSpace(req.Action), "close") {
		if err := h.d.Sessions.Close(c.Request.Context(), classID, req.Date, t); err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "opened": false})
		return
	}

	w, err := h.d.Sessions.Open(c.Request.Context(), session.OpenRequest{
		ClassID:       classID,
		SessionKey:    req.Date,
		WindowMinutes: req.WindowMinutes,
		Lesson:        req.Lesson,
	}, t)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":            true,
		"opened":        true,
		"pin":           w.PIN,
		"openFrom":      w.OpenFrom.UnixMilli(),
		"openTo":        w.OpenTo.UnixMilli(),
		"windowMinutes": w.WindowMinutes,
		"checkinUrl":    w.CheckinURL,
	})
}

type checkinRequest struct {
	ClassID            string `json:"classId"`
	ClassName          string `json:"className"`
	Date               string `json:"date"`
	StudentCodeOrEmail string `json:"studentCodeOrEmail"`
	PIN                string `json:"pin"`
}

// Checkin is the public student endpoint.
func (h *Handler) Checkin(c *gin.Context) {
	var req checkinRequest
	if !h.bind(c, &req) {
		return
	}
	rec, err := h.d.Sessions.CheckIn(c.Request.Context(), session.CheckinRequest{
		ClassID:            firstNonEmpty(req.ClassID, req.ClassName),
		SessionKey:         req.Date,
		StudentCodeOrEmail: req.StudentCodeOrEmail,
		PIN:                req.PIN,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "secretCode": rec.SecretCode, "name": rec.Name})
}

func (h *Handler) ListCheckins(c *gin.Context) {
	list, err := h.d.Sessions.ListCheckins(c.Request.Context(), c.Param("classId"), c.Param("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkins": list})
}

// SessionQR renders the check-in link of a session as a PNG.
func (h *Handler) SessionQR(c *gin.Context) {
	classID, date := strings.TrimSpace(c.Param("classId")), strings.TrimSpace(c.Param("date"))
	png, err := qrcode.Encode(h.d.Sessions.CheckinURL(classID, date), qrcode.Medium, 256)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// Package handler exposes the attendance services over HTTP with gin.
package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"classroom/internal/apperr"
	"classroom/internal/attendance"
	"classroom/internal/auth"
	"classroom/internal/httpmiddleware"
	"classroom/internal/marking"
	"classroom/internal/report"
	"classroom/internal/roster"
	"classroom/internal/session"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) bool
}

// Deps is everything the router needs. Limiters may be nil.
type Deps struct {
	Sessions   *session.Service
	Roster     *roster.Resolver
	Attendance *attendance.Service
	Reports    *report.Service
	Marking    *marking.Service

	Verifier  auth.Verifier
	Allowlist auth.Allowlist

	GlobalLimiter  httpmiddleware.Limiter
	CheckinLimiter httpmiddleware.Limiter

	// TrustedProxies may set X-Forwarded-For. Empty means the peer address is the client.
	TrustedProxies []string

	Health []HealthCheck
	Log    *zap.Logger
}

type Handler struct {
	d   Deps
	log *zap.Logger
}

func New(d Deps) *Handler {
	return &Handler{d: d, log: d.Log.Named("handler")}
}

// Router builds the gin engine with every route mounted.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(h.d.TrustedProxies); err != nil {
		h.log.Warn("invalid trusted proxies, trusting none", zap.Strings("proxies", h.d.TrustedProxies), zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.Logger(h.d.Log, "/healthz", "/metrics"))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization", httpmiddleware.HeaderRequestID},
		ExposeHeaders:   []string{httpmiddleware.HeaderRequestID, "Content-Disposition"},
		MaxAge:          12 * time.Hour,
	}))
	r.Use(securityHeaders())
	if h.d.GlobalLimiter != nil {
		r.Use(httpmiddleware.RateLimit(h.d.GlobalLimiter, h.log))
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	teacher := auth.TeacherAuth(h.d.Verifier, h.d.Allowlist, h.log)

	r.POST("/openSession", teacher, h.OpenSession)
	if h.d.CheckinLimiter != nil {
		r.POST("/checkin", httpmiddleware.RateLimit(h.d.CheckinLimiter, h.log), h.Checkin)
	} else {
		r.POST("/checkin", h.Checkin)
	}

	v1 := r.Group("/v1", teacher)
	{
		v1.GET("/classes", h.ListClasses)
		v1.GET("/classes/:classId/students", h.ListStudents)
		v1.GET("/classes/:classId/attendance", h.GetAttendance)
		v1.PUT("/classes/:classId/attendance", h.PutAttendance)
		v1.GET("/classes/:classId/sessions/:date", h.GetSession)
		v1.PUT("/classes/:classId/sessions/:date/records", h.PutRecords)
		v1.GET("/classes/:classId/sessions/:date/checkins", h.ListCheckins)
		v1.GET("/classes/:classId/sessions/:date/qr.png", h.SessionQR)

		v1.GET("/reports", h.Report)
		v1.GET("/reports/export", h.ExportReport)

		v1.GET("/schedule/levels", h.ScheduleLevels)
		v1.GET("/schedule/holidays", h.HolidayWindow)
		v1.POST("/schedule", h.GenerateSchedule)
		v1.POST("/schedule/export", h.ExportSchedule)

		v1.GET("/marking/roster", h.MarkingRoster)
		v1.GET("/marking/submissions", h.Submissions)
		v1.GET("/marking/references", h.References)
		v1.POST("/marking/scores", h.SaveScore)
	}
	return r
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for _, hc := range h.d.Health {
		ok := hc.Check(c.Request.Context())
		body[hc.Name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Errors ----------

var errBadBody = apperr.Validation("invalid_body", "Request body must be valid JSON")

func (h *Handler) fail(c *gin.Context, err error) {
	status := apperr.Status(err)
	msg := apperr.Message(err)
	switch {
	case status >= http.StatusInternalServerError && status != http.StatusBadGateway:
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.String("request_id", httpmiddleware.RequestIDFrom(c)), zap.Error(err))
	case status == http.StatusBadGateway:
		h.log.Warn("upstream failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func (h *Handler) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		h.fail(c, errBadBody.Wrap(err))
		return false
	}
	return true
}

func teacherOf(c *gin.Context) auth.Identity {
	id, _ := auth.TeacherFrom(c)
	return id
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func attachment(c *gin.Context, name, contentType string, body []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, contentType, body)
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"classroom/internal/apperr"
	"classroom/internal/schedule"
	"classroom/internal/xlsx"
)

var (
	errBadSchedule    = apperr.Validation("invalid_schedule", "startDate must be a YYYY-MM-DD date")
	errScheduleFormat = apperr.Validation("invalid_format", "format must be txt, json or xlsx")
)

// ---------- Course schedule ----------

func (h *Handler) ScheduleLevels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"levels": schedule.Levels()})
}

// HolidayWindow lists the dates offered by the holiday picker.
func (h *Handler) HolidayWindow(c *gin.Context) {
	days, _ := strconv.Atoi(c.Query("days"))
	dates, err := schedule.HolidayWindow(c.Query("start"), days)
	if err != nil {
		h.fail(c, errBadSchedule.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"dates": dates})
}

func (h *Handler) generate(c *gin.Context) (schedule.Params, []schedule.Row, bool) {
	var p schedule.Params
	if !h.bind(c, &p) {
		return p, nil, false
	}
	rows, err := schedule.Generate(p)
	if err != nil {
		h.fail(c, errBadSchedule.Wrap(err))
		return p, nil, false
	}
	return p, rows, true
}

func (h *Handler) GenerateSchedule(c *gin.Context) {
	p, rows, ok := h.generate(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"level": p.Level, "total": len(rows), "rows": rows})
}

// ExportSchedule downloads the generated schedule as txt, json or xlsx.
func (h *Handler) ExportSchedule(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	if format != "txt" && format != "json" && format != "xlsx" {
		h.fail(c, errScheduleFormat)
		return
	}
	p, rows, ok := h.generate(c)
	if !ok {
		return
	}
	name := "course-schedule-" + p.Level

	switch format {
	case "txt":
		ex := schedule.BuildExports(p.Level, p.StartDate, p.HolidayDates, rows)
		attachment(c, name+".txt", "text/plain; charset=utf-8", []byte(ex.TXT))
	case "xlsx":
		var buf bytes.Buffer
		if err := schedule.WriteXLSX(&buf, p.Level, rows); err != nil {
			h.fail(c, err)
			return
		}
		attachment(c, name+".xlsx", xlsx.ContentType, buf.Bytes())
	default:
		ex := schedule.BuildExports(p.Level, p.StartDate, p.HolidayDates, rows)
		c.Header("Content-Disposition", `attachment; filename="`+name+`.json"`)
		c.JSON(http.StatusOK, ex.JSON)
	}
}

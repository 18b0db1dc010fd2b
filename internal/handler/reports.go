package handler

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"classroom/internal/apperr"
	"classroom/internal/report"
	"classroom/internal/xlsx"
)

var errReportFormat = apperr.Validation("invalid_format", "format must be csv or xlsx")

// ---------- Reports ----------

func reportFilter(c *gin.Context) report.Filter {
	return report.Filter{
		ClassID: c.Query("classId"),
		From:    c.Query("from"),
		To:      c.Query("to"),
		Status:  c.Query("status"),
	}
}

func (h *Handler) Report(c *gin.Context) {
	res, err := h.d.Reports.Run(c.Request.Context(), reportFilter(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ExportReport downloads the filtered rows as csv (default) or xlsx.
func (h *Handler) ExportReport(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "xlsx" {
		h.fail(c, errReportFormat)
		return
	}
	res, err := h.d.Reports.Run(c.Request.Context(), reportFilter(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	name := "attendance-report-" + time.Now().Format("20060102-150405")
	var buf bytes.Buffer
	switch format {
	case "xlsx":
		if err := report.WriteXLSX(&buf, res.Rows); err != nil {
			h.fail(c, err)
			return
		}
		attachment(c, name+".xlsx", xlsx.ContentType, buf.Bytes())
	default:
		if err := report.WriteCSV(&buf, res.Rows); err != nil {
			h.fail(c, err)
			return
		}
		attachment(c, name+".csv", "text/csv; charset=utf-8", buf.Bytes())
	}
}

package gestixsync

import (
	"net/http"
	"strings"
	"time"

	"bitbucket.org/grafimark/shopfloor_backend/models/reports"
	"bitbucket.org/grafimark/shopfloor_backend/utils"
	"github.com/gin-gonic/gin"
)

// TriggerSyncHandler is the manual "run sync now" entry point. It
// shares the orchestrator with the timer; a busy rejection comes back
// as a normal result, not an error status.
func TriggerSyncHandler(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		trigger := SyncTriggeredManual
		if c.Request.ContentLength > 0 {
			var req TriggerSyncRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
			if err := utils.ValidateStruct(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if strings.TrimSpace(req.Trigger) != "" {
				trigger = strings.TrimSpace(req.Trigger)
			}
		}

		result := o.RunSync(c.Request.Context(), trigger)
		c.JSON(http.StatusOK, result)
	}
}

func SyncStatusHandler(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Status(c.Request.Context()))
	}
}

// reportWindow parses the from/to query params (2006-01-02), defaulting
// to the last 30 days.
func reportWindow(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now

	if v := strings.TrimSpace(c.Query("from")); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if v := strings.TrimSpace(c.Query("to")); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		// Include the whole day.
		to = parsed.AddDate(0, 0, 1).Add(-time.Second)
	}
	return from, to, nil
}

func ProductionSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, err := reportWindow(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date; expected YYYY-MM-DD"})
			return
		}
		data, err := reports.GetProductionSummaryReport(c.Request.Context(), from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": data})
	}
}

func ProductionSummaryExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, err := reportWindow(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date; expected YYYY-MM-DD"})
			return
		}
		data, err := reports.GetProductionSummaryReport(c.Request.Context(), from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
			return
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=production-summary.xlsx")
		if err := reports.WriteProductionSummaryExcel(c.Writer, data); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		}
	}
}

package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/dbguard/errors"
	"github.com/kochabx/dbguard/store/db"
)

var (
	ErrNoReporter   = errors.Internal("health reporter is required")
	ErrInvalidLimit = errors.BadRequest("limit must be a positive integer")
)

// HealthReporter 健康端点的数据来源，*db.Manager 满足该接口
type HealthReporter interface {
	HealthReport() db.HealthReport
	QueryStats(limit int) db.QueryStats
}

var _ HealthReporter = (*db.Manager)(nil)

// healthHandler healthy 与 degraded 返回 200，unhealthy 返回 503
func healthHandler(reporter HealthReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := reporter.HealthReport()

		status := http.StatusOK
		if report.Status == db.HealthUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}

func queryStatsHandler(reporter HealthReporter, defaultLimit, maxLimit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := defaultLimit
		if raw, ok := c.GetQuery("limit"); ok {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				GinError(c, ErrInvalidLimit.WithField("limit", raw))
				return
			}
			limit = min(n, maxLimit)
		}

		c.JSON(http.StatusOK, reporter.QueryStats(limit))
	}
}

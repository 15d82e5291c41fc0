package db

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

const (
	// SlowQueryThreshold 慢查询阈值
	SlowQueryThreshold = time.Second

	// errorRateWindow 计算错误率时参考的最近记录数
	errorRateWindow = 100
)

// HealthStatus 健康状态
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// Metrics 管理器指标快照
type Metrics struct {
	TotalQueries       int64         `json:"totalQueries"`
	SuccessfulQueries  int64         `json:"successfulQueries"`
	FailedQueries      int64         `json:"failedQueries"`
	AverageDuration    time.Duration `json:"averageDuration"`
	ConnectionPoolSize int           `json:"connectionPoolSize"`
	ActiveConnections  int           `json:"activeConnections"`
	HealthStatus       HealthStatus  `json:"healthStatus"`
	LastHealthCheck    time.Time     `json:"lastHealthCheck"`
	Uptime             time.Duration `json:"uptime"`
}

// QueryStats 最近查询的分类视图
type QueryStats struct {
	SlowQueries   []QueryRecord `json:"slowQueries"`
	FailedQueries []QueryRecord `json:"failedQueries"`
	RecentQueries []QueryRecord `json:"recentQueries"`
}

// telemetry 查询计数、滚动平均与历史记录，全部由 mu 保护
type telemetry struct {
	mu      sync.Mutex
	total   int64
	success int64
	failed  int64
	avg     float64 // 纳秒
	history *history

	status    HealthStatus
	lastCheck time.Time
	startedAt time.Time
	now       func() time.Time
}

func newTelemetry(capacity int, now func() time.Time) *telemetry {
	if now == nil {
		now = time.Now
	}
	return &telemetry{
		history:   newHistory(capacity),
		status:    HealthHealthy,
		startedAt: now(),
		now:       now,
	}
}

// record 按完成顺序登记一次查询
func (t *telemetry) record(r QueryRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total++
	if r.Success {
		t.success++
	} else {
		t.failed++
	}
	n := float64(t.total)
	t.avg = (t.avg*(n-1) + float64(r.Duration)) / n
	t.history.push(r)
}

// errorRate 最近 window 条记录中失败的比例，无记录时为 0
func (t *telemetry) errorRate(window int) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	recent := t.history.last(window)
	if len(recent) == 0 {
		return 0
	}
	var failed int
	for _, r := range recent {
		if !r.Success {
			failed++
		}
	}
	return float64(failed) / float64(len(recent))
}

func (t *telemetry) setHealth(status HealthStatus, at time.Time) {
	t.mu.Lock()
	t.status = status
	t.lastCheck = at
	t.mu.Unlock()
}

func (t *telemetry) health() HealthStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// snapshot 不含连接池字段，由 Manager 补充
func (t *telemetry) snapshot() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Metrics{
		TotalQueries:      t.total,
		SuccessfulQueries: t.success,
		FailedQueries:     t.failed,
		AverageDuration:   time.Duration(t.avg),
		HealthStatus:      t.status,
		LastHealthCheck:   t.lastCheck,
		Uptime:            t.now().Sub(t.startedAt),
	}
}

// queryStats 从最近 limit 条记录中挑出慢查询与失败查询
func (t *telemetry) queryStats(limit int) QueryStats {
	t.mu.Lock()
	recent := t.history.last(limit)
	t.mu.Unlock()

	stats := QueryStats{
		SlowQueries:   []QueryRecord{},
		FailedQueries: []QueryRecord{},
		RecentQueries: recent,
	}
	for _, r := range recent {
		if r.Duration > SlowQueryThreshold {
			stats.SlowQueries = append(stats.SlowQueries, r)
		}
		if !r.Success {
			stats.FailedQueries = append(stats.FailedQueries, r)
		}
	}
	slices.SortStableFunc(stats.SlowQueries, func(a, b QueryRecord) int {
		return cmp.Compare(b.Duration, a.Duration)
	})
	return stats
}

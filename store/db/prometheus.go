package db

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace Prometheus 指标命名空间
const DefaultNamespace = "dbguard"

// promMetrics 每个 Manager 独享的指标集合
type promMetrics struct {
	registry *prometheus.Registry

	QueryTotal    *prometheus.CounterVec   // 查询总数（按状态：success/failed）
	QueryDuration *prometheus.HistogramVec // 查询耗时

	HealthStatus       *prometheus.GaugeVec // 当前健康状态，独热编码
	HealthCheckLatency prometheus.Histogram // 探测延迟

	mu      sync.Mutex
	dbStats prometheus.Collector // 连接池统计，重连时替换
	dbName  string
}

func newPromMetrics(namespace, dbName string) *promMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &promMetrics{
		registry: reg,
		dbName:   dbName,

		QueryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of recorded queries",
			},
			[]string{"operation", "status"},
		),

		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Query duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"operation"},
		),

		HealthStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "health_status",
				Help:      "Current health classification (1 for the active status)",
			},
			[]string{"status"},
		),

		HealthCheckLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "health_check_latency_seconds",
				Help:      "Liveness probe latency in seconds",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5},
			},
		),
	}
}

func (p *promMetrics) observeQuery(r QueryRecord) {
	status := "success"
	if !r.Success {
		status = "failed"
	}
	p.QueryTotal.WithLabelValues(r.Operation, status).Inc()
	p.QueryDuration.WithLabelValues(r.Operation).Observe(r.Duration.Seconds())
}

func (p *promMetrics) observeHealth(status HealthStatus, latency time.Duration) {
	for _, s := range []HealthStatus{HealthHealthy, HealthDegraded, HealthUnhealthy} {
		v := 0.0
		if s == status {
			v = 1
		}
		p.HealthStatus.WithLabelValues(string(s)).Set(v)
	}
	if latency > 0 {
		p.HealthCheckLatency.Observe(latency.Seconds())
	}
}

// attachDB 注册连接池统计采集器，替换旧连接的采集器
func (p *promMetrics) attachDB(sqlDB *sql.DB) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dbStats != nil {
		p.registry.Unregister(p.dbStats)
		p.dbStats = nil
	}
	c := collectors.NewDBStatsCollector(sqlDB, p.dbName)
	if err := p.registry.Register(c); err != nil {
		return err
	}
	p.dbStats = c
	return nil
}

func (p *promMetrics) detachDB() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dbStats != nil {
		p.registry.Unregister(p.dbStats)
		p.dbStats = nil
	}
}

package db

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kochabx/dbguard/log"
)

const (
	degradedLatency    = 2 * time.Second
	degradedErrorRate  = 0.10
	unhealthyLatency   = 5 * time.Second
	unhealthyErrorRate = 0.25
)

// HealthResult 单次健康检查结果
type HealthResult struct {
	Status    HealthStatus  `json:"status"`
	Latency   time.Duration `json:"latency"`
	ErrorRate float64       `json:"errorRate"`
	CheckedAt time.Time     `json:"checkedAt"`
	Error     string        `json:"error,omitempty"`
	Skipped   bool          `json:"skipped,omitempty"`
}

// HealthChecker 周期性探测连接并更新健康状态
type HealthChecker struct {
	probe     func(ctx context.Context) error
	skip      func() bool
	telemetry *telemetry
	prom      *promMetrics
	interval  time.Duration
	timeout   time.Duration
	strict    bool
	logger    *log.Logger // 为 nil 时不输出诊断日志
	now       func() time.Time

	// 状态
	mu      sync.RWMutex
	last    *HealthResult
	running atomic.Bool

	// 控制
	lifecycle sync.Mutex
	stopped   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// Start 启动后台检查，Stop 之后再调用无效
func (hc *HealthChecker) Start() {
	hc.lifecycle.Lock()
	defer hc.lifecycle.Unlock()

	if hc.stopped || hc.running.Load() {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	hc.cancel = cancel
	hc.done = make(chan struct{})
	hc.running.Store(true)

	go hc.run(ctx)

	if hc.logger != nil {
		hc.logger.Info().Dur("interval", hc.interval).Msg("health checker started")
	}
}

// Stop 停止检查并等待当前检查结束
func (hc *HealthChecker) Stop() {
	hc.lifecycle.Lock()
	defer hc.lifecycle.Unlock()

	hc.stopped = true
	if !hc.running.Load() {
		return
	}

	hc.cancel()
	<-hc.done
	hc.running.Store(false)

	if hc.logger != nil {
		hc.logger.Info().Msg("health checker stopped")
	}
}

// Running 是否在运行
func (hc *HealthChecker) Running() bool {
	return hc.running.Load()
}

// Last 返回最近一次检查结果
func (hc *HealthChecker) Last() (HealthResult, bool) {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	if hc.last == nil {
		return HealthResult{}, false
	}
	return *hc.last, true
}

// run 按间隔顺序执行检查
func (hc *HealthChecker) run(ctx context.Context) {
	defer close(hc.done)

	ticker := time.NewTicker(hc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hc.Check(ctx)
		}
	}
}

// Check 执行一次检查
//
// 管理器正在关闭或已关闭时跳过；探测失败直接判定为 unhealthy。
// 单次探测以 ConnectionTimeout 为上限，超时同样视为失败。
func (hc *HealthChecker) Check(ctx context.Context) HealthResult {
	if hc.skip != nil && hc.skip() {
		return HealthResult{Status: hc.telemetry.health(), Skipped: true}
	}

	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	start := hc.now()
	err := hc.probe(ctx)
	checkedAt := hc.now()

	result := HealthResult{
		Latency:   checkedAt.Sub(start),
		CheckedAt: checkedAt,
	}

	if err != nil {
		result.Status = HealthUnhealthy
		result.Error = err.Error()
		if hc.logger != nil {
			hc.logger.Error().Err(err).Dur("latency", result.Latency).Msg("health check failed")
		}
	} else {
		result.ErrorRate = hc.telemetry.errorRate(errorRateWindow)
		result.Status = classify(result.Latency, result.ErrorRate, hc.strict)
		if result.Status != HealthHealthy && hc.logger != nil {
			hc.logger.Warn().
				Str("status", string(result.Status)).
				Dur("latency", result.Latency).
				Float64("error_rate", result.ErrorRate).
				Msg("database health degraded")
		}
	}

	hc.telemetry.setHealth(result.Status, checkedAt)
	if hc.prom != nil {
		hc.prom.observeHealth(result.Status, result.Latency)
	}

	hc.mu.Lock()
	hc.last = &result
	hc.mu.Unlock()

	return result
}

// classify 依据探测延迟与错误率分级
func classify(latency time.Duration, errorRate float64, strict bool) HealthStatus {
	if strict && (latency > unhealthyLatency || errorRate > unhealthyErrorRate) {
		return HealthUnhealthy
	}
	if latency > degradedLatency || errorRate > degradedErrorRate {
		return HealthDegraded
	}
	return HealthHealthy
}

package db

import (
	"context"

	"gorm.io/gorm"
)

// Database 连接管理器对调用方暴露的能力
type Database interface {
	// Client 获取 GORM 句柄
	Client() (*gorm.DB, error)

	// ExecuteWithRetry 带重试地执行操作
	ExecuteWithRetry(ctx context.Context, op Operation, attempts ...int) error

	// Transaction 在默认事务参数下执行 fn
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Metrics 获取指标快照
	Metrics() Metrics

	// QueryStats 获取最近查询统计
	QueryStats(limit int) QueryStats

	// HealthReport 获取健康报告
	HealthReport() HealthReport

	// ResetConnection 重建连接
	ResetConnection(ctx context.Context) error

	// Shutdown 关闭管理器
	Shutdown(ctx context.Context) error
}

// 确保 Manager 实现 Database 接口
var _ Database = (*Manager)(nil)

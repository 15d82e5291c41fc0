package db

import (
	"time"

	"github.com/kochabx/dbguard/config"
	"github.com/kochabx/dbguard/core/tag"
	"github.com/kochabx/dbguard/core/validator"
)

// Driver 数据库驱动类型
type Driver string

const (
	// DriverMySQL MySQL 驱动
	DriverMySQL Driver = "mysql"
	// DriverPostgres PostgreSQL 驱动
	DriverPostgres Driver = "postgres"
	// DriverSQLite SQLite 驱动
	DriverSQLite Driver = "sqlite"
)

// String 返回驱动名称
func (d Driver) String() string {
	return string(d)
}

// Environment 运行环境
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTest        Environment = "test"
	EnvProduction  Environment = "production"
)

// Config 连接管理器配置，构造后不可变
//
// 时间字段单位均为毫秒，通过同名方法取得 time.Duration。
// 零值字段在 New 时按 default 标签补齐；0 本身合法的字段使用指针，
// 为 nil 时才取默认值。
type Config struct {
	// DatabaseURL 数据库地址，必填
	DatabaseURL string `json:"databaseUrl" env:"DATABASE_URL" validate:"required,dburl"`

	// Environment 运行环境
	Environment Environment `json:"environment" env:"APP_ENV" default:"development" validate:"oneof=development test production"`

	// 连接池
	PoolSize           int    `json:"poolSize" env:"DB_POOL_SIZE" default:"10" validate:"gte=1"`
	ConnectionTimeout  int64  `json:"connectionTimeout" env:"DB_CONNECTION_TIMEOUT" default:"10000" validate:"gte=1"`
	IdleTimeout        *int64 `json:"idleTimeout" env:"DB_IDLE_TIMEOUT" default:"30000" validate:"omitempty,gte=0"`
	StatementCacheSize *int   `json:"statementCacheSize" env:"DB_STATEMENT_CACHE_SIZE" default:"100" validate:"omitempty,gte=0"`

	// 健康检查
	HealthCheckInterval int64 `json:"healthCheckInterval" env:"DB_HEALTH_CHECK_INTERVAL" default:"30000" validate:"gte=1"`

	// 重试
	RetryAttempts int    `json:"retryAttempts" env:"DB_RETRY_ATTEMPTS" default:"3" validate:"gte=1"`
	RetryDelay    *int64 `json:"retryDelay" env:"DB_RETRY_DELAY" default:"1000" validate:"omitempty,gte=0"`

	// EnableLogging 为空时取 Environment == development
	EnableLogging *bool `json:"enableLogging" env:"DB_ENABLE_LOGGING"`
	EnableMetrics *bool `json:"enableMetrics" env:"DB_ENABLE_METRICS" default:"true"`

	// Schema 可选的 schema 覆盖
	Schema string `json:"schema" env:"DB_SCHEMA"`
}

// LoadConfig 从环境变量读取配置，未设置的字段取默认值
func LoadConfig() (*Config, error) {
	cfg := new(Config)
	if err := config.New(cfg).Load(); err != nil {
		return nil, ErrConfiguration.WithCause(err)
	}
	if err := cfg.Init(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init 补齐默认值并校验
func (c *Config) Init() error {
	if err := tag.ApplyDefaults(c); err != nil {
		return ErrConfiguration.WithCause(err)
	}
	if c.EnableLogging == nil {
		enabled := c.Environment == EnvDevelopment
		c.EnableLogging = &enabled
	}
	if err := validator.Validate.Struct(c); err != nil {
		return ErrConfiguration.WithCause(err)
	}
	return nil
}

func (c *Config) ConnectionTimeoutDuration() time.Duration {
	return time.Duration(c.ConnectionTimeout) * time.Millisecond
}

func (c *Config) IdleTimeoutDuration() time.Duration {
	return time.Duration(deref(c.IdleTimeout)) * time.Millisecond
}

func (c *Config) HealthCheckIntervalDuration() time.Duration {
	return time.Duration(c.HealthCheckInterval) * time.Millisecond
}

func (c *Config) RetryDelayDuration() time.Duration {
	return time.Duration(deref(c.RetryDelay)) * time.Millisecond
}

// StatementCacheCapacity 预编译语句缓存容量
func (c *Config) StatementCacheCapacity() int {
	return deref(c.StatementCacheSize)
}

// LoggingEnabled 是否输出诊断日志
func (c *Config) LoggingEnabled() bool {
	if c.EnableLogging == nil {
		return c.Environment == EnvDevelopment
	}
	return *c.EnableLogging
}

// MetricsEnabled 是否记录查询遥测
func (c *Config) MetricsEnabled() bool {
	return c.EnableMetrics == nil || *c.EnableMetrics
}

// Bool 返回 v 的指针，便于构造 Config
func Bool(v bool) *bool {
	return &v
}

// Int 返回 v 的指针
func Int(v int) *int {
	return &v
}

// Millis 返回毫秒数的指针
func Millis(v int64) *int64 {
	return &v
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

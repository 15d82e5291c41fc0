package db

import (
	"context"
	"database/sql"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kochabx/dbguard/errors"
	"github.com/kochabx/dbguard/log"
)

const probeQuery = "SELECT 1"

// State 管理器生命周期状态
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateShuttingDown
	StateClosed
)

var stateNames = [...]string{"uninitialized", "initializing", "ready", "shutting-down", "closed"}

// String 返回状态名称
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// MarshalText 以名称序列化
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// HealthReport 健康端点返回的载荷
type HealthReport struct {
	Status     HealthStatus `json:"status"`
	State      State        `json:"state"`
	Metrics    Metrics      `json:"metrics"`
	QueryStats QueryStats   `json:"queryStats"`
}

// Manager 单个数据库的连接管理器
//
// 负责建立连接、定期探活、重试与遥测；由调用方持有，不做全局单例。
type Manager struct {
	cfg     Config
	options *managerOptions
	logger  *log.Logger

	// initMu 串行化 Initialize 与 ResetConnection
	initMu sync.Mutex

	mu     sync.RWMutex
	state  State
	driver Driver
	db     *gorm.DB
	sqlDB  *sql.DB
	pool   *pgxpool.Pool

	telemetry     *telemetry
	prom          *promMetrics
	recorder      *recorder
	checker       *HealthChecker
	retryStrategy RetryStrategy
}

// New 校验配置并创建管理器，不建立连接
func New(cfg Config, opts ...Option) (*Manager, error) {
	if err := cfg.Init(); err != nil {
		return nil, err
	}

	options := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	// 地址在构造期即校验，避免启动后才发现协议错误
	target, err := BuildTarget(cfg.DatabaseURL, cfg)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:     cfg,
		options: options,
		logger:  options.logger,
		driver:  target.Driver,
	}
	if m.logger == nil {
		m.logger = log.G
	}

	m.telemetry = newTelemetry(options.historySize, options.now)
	m.prom = newPromMetrics(options.namespace, string(target.Driver))
	m.prom.observeHealth(HealthHealthy, 0)

	var diag *log.Logger
	if cfg.LoggingEnabled() {
		diag = m.logger
	}

	m.recorder = &recorder{
		telemetry: m.telemetry,
		prom:      m.prom,
		logger:    diag,
		logSlow:   cfg.LoggingEnabled(),
		now:       options.now,
	}

	m.checker = &HealthChecker{
		probe:     m.ping,
		skip:      m.closing,
		telemetry: m.telemetry,
		prom:      m.prom,
		interval:  cfg.HealthCheckIntervalDuration(),
		timeout:   cfg.ConnectionTimeoutDuration(),
		strict:    options.strictHealth,
		logger:    diag,
		now:       options.now,
	}

	m.retryStrategy = options.retryStrategy
	if m.retryStrategy == nil {
		m.retryStrategy = LinearBackoff{Delay: cfg.RetryDelayDuration()}
	}

	return m, nil
}

// Config 返回管理器配置副本
func (m *Manager) Config() Config {
	return m.cfg
}

// State 返回当前生命周期状态
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Client 返回可用的 GORM 句柄，未就绪时返回 ErrConnectionUnavailable
func (m *Manager) Client() (*gorm.DB, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state != StateReady || m.db == nil {
		return nil, ErrConnectionUnavailable.WithField("state", m.state.String())
	}
	return m.db, nil
}

// HealthChecker 返回健康检查器
func (m *Manager) HealthChecker() *HealthChecker {
	return m.checker
}

// Registry 返回本管理器的 Prometheus 注册表
func (m *Manager) Registry() *prometheus.Registry {
	return m.prom.registry
}

// Initialize 建立连接并执行一次探测
//
// 探测失败时关闭半开连接、状态回到 uninitialized，并返回 ErrConnectionTestFailed。
// 成功后启动健康检查。已就绪时直接返回。
func (m *Manager) Initialize(ctx context.Context) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	return m.initialize(ctx)
}

func (m *Manager) initialize(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateShuttingDown, StateClosed:
		m.mu.Unlock()
		return ErrManagerClosed
	case StateReady:
		m.mu.Unlock()
		return nil
	}
	m.state = StateInitializing
	m.mu.Unlock()

	conn, err := m.connect(ctx)
	if err != nil {
		m.revert()
		return err
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectionTimeoutDuration())
	err = probe(probeCtx, conn.sqlDB)
	cancel()
	if err != nil {
		conn.close()
		m.revert()
		m.logger.Error().Err(err).Str("driver", m.driver.String()).Msg("database connection test failed")
		return ErrConnectionTestFailed.WithCause(err)
	}

	m.mu.Lock()
	if m.state != StateInitializing {
		// Shutdown 在建立连接期间开始
		m.mu.Unlock()
		conn.close()
		return ErrManagerClosed
	}
	m.db, m.sqlDB, m.pool = conn.db, conn.sqlDB, conn.pool
	m.state = StateReady
	// 持锁注册，Shutdown 只能在此之后摘除采集器
	attachErr := m.prom.attachDB(conn.sqlDB)
	m.mu.Unlock()

	if attachErr != nil {
		m.logger.Warn().Err(attachErr).Msg("failed to register connection pool collector")
	}
	m.checker.Start()

	m.logger.Info().
		Str("driver", m.driver.String()).
		Str("target", conn.redacted).
		Int("pool_size", m.cfg.PoolSize).
		Msg("database connected")

	return nil
}

func (m *Manager) revert() {
	m.mu.Lock()
	if m.state == StateInitializing {
		m.state = StateUninitialized
	}
	m.mu.Unlock()
}

// ResetConnection 断开当前连接并重新初始化
func (m *Manager) ResetConnection(ctx context.Context) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	m.mu.Lock()
	if m.state == StateShuttingDown || m.state == StateClosed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	old := connection{db: m.db, sqlDB: m.sqlDB, pool: m.pool}
	m.db, m.sqlDB, m.pool = nil, nil, nil
	m.state = StateUninitialized
	m.mu.Unlock()

	m.prom.detachDB()
	if err := old.close(); err != nil {
		m.logger.Warn().Err(err).Msg("failed to close previous database connection")
	}

	m.logger.Info().Msg("resetting database connection")
	return m.initialize(ctx)
}

// Shutdown 停止健康检查并关闭连接，可重复调用
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateShuttingDown || m.state == StateClosed {
		m.mu.Unlock()
		return nil
	}
	m.state = StateShuttingDown
	m.mu.Unlock()

	m.checker.Stop()

	m.mu.Lock()
	conn := connection{db: m.db, sqlDB: m.sqlDB, pool: m.pool}
	m.db, m.sqlDB, m.pool = nil, nil, nil
	m.mu.Unlock()

	m.prom.detachDB()

	// sql.DB.Close 会等待进行中的查询结束
	done := make(chan error, 1)
	go func() { done <- conn.close() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = errors.Join(ErrManagerClosed.WithField("phase", "close"), ctx.Err())
	}

	if m.cfg.MetricsEnabled() {
		s := m.telemetry.snapshot()
		m.logger.Info().
			Int64("total", s.TotalQueries).
			Int64("successful", s.SuccessfulQueries).
			Int64("failed", s.FailedQueries).
			Dur("average", s.AverageDuration).
			Dur("uptime", s.Uptime).
			Msg("database manager shutdown summary")
	}

	m.mu.Lock()
	m.state = StateClosed
	m.mu.Unlock()

	if err != nil {
		m.logger.Error().Err(err).Msg("database shutdown finished with error")
		return err
	}
	m.logger.Info().Msg("database connection closed")
	return nil
}

// Transaction 以 READ COMMITTED 隔离级别执行 fn，整体超时为 ConnectionTimeout
func (m *Manager) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	db, err := m.Client()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectionTimeoutDuration())
	defer cancel()

	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	if m.driver == DriverSQLite {
		opts.Isolation = sql.LevelDefault
	}
	return db.WithContext(ctx).Transaction(fn, opts)
}

// Metrics 返回指标快照
func (m *Manager) Metrics() Metrics {
	s := m.telemetry.snapshot()
	s.ConnectionPoolSize = m.cfg.PoolSize

	m.mu.RLock()
	if m.sqlDB != nil {
		s.ActiveConnections = m.sqlDB.Stats().InUse
	}
	m.mu.RUnlock()
	return s
}

// QueryStats 从最近 limit 条记录中统计慢查询与失败查询
func (m *Manager) QueryStats(limit int) QueryStats {
	return m.telemetry.queryStats(limit)
}

// HealthReport 汇总状态、指标与最近 50 条查询
func (m *Manager) HealthReport() HealthReport {
	metrics := m.Metrics()
	return HealthReport{
		Status:     metrics.HealthStatus,
		State:      m.State(),
		Metrics:    metrics,
		QueryStats: m.QueryStats(50),
	}
}

// ping 供健康检查使用，不经过 recorder
func (m *Manager) ping(ctx context.Context) error {
	m.mu.RLock()
	sqlDB, state := m.sqlDB, m.state
	m.mu.RUnlock()

	if state != StateReady || sqlDB == nil {
		return ErrConnectionUnavailable.WithField("state", state.String())
	}
	return probe(ctx, sqlDB)
}

func (m *Manager) closing() bool {
	s := m.State()
	return s == StateShuttingDown || s == StateClosed
}

func probe(ctx context.Context, sqlDB *sql.DB) error {
	var one int
	return sqlDB.QueryRowContext(ctx, probeQuery).Scan(&one)
}

// connection 一次建立的连接及其底层资源
type connection struct {
	db       *gorm.DB
	sqlDB    *sql.DB
	pool     *pgxpool.Pool
	redacted string
}

func (c connection) close() error {
	var err error
	if c.sqlDB != nil {
		err = c.sqlDB.Close()
	}
	if c.pool != nil {
		c.pool.Close()
	}
	return err
}

// connect 构造驱动、打开 GORM 并安装插件
func (m *Manager) connect(ctx context.Context) (connection, error) {
	target, err := BuildTarget(m.cfg.DatabaseURL, m.cfg)
	if err != nil {
		return connection{}, err
	}

	conn := connection{redacted: target.Redacted}

	var dialector gorm.Dialector
	if m.options.dialector != nil {
		dialector, err = m.options.dialector(target)
	} else {
		dialector, conn.pool, err = m.openDialector(ctx, target)
	}
	if err != nil {
		return connection{}, ErrConfiguration.WithCause(err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:               newGormLogger(m.logger, m.cfg),
		DisableAutomaticPing: true,
	})
	if err != nil {
		conn.close()
		return connection{}, ErrConnectionTestFailed.WithCause(err)
	}
	conn.db = db

	if conn.sqlDB, err = db.DB(); err != nil {
		conn.close()
		return connection{}, ErrConnectionTestFailed.WithCause(err)
	}
	m.configurePool(conn.sqlDB, target.Driver)

	if err := m.usePlugins(db); err != nil {
		conn.close()
		return connection{}, err
	}

	return conn, nil
}

// openDialector 按驱动选择 Dialector，PostgreSQL 通过 pgxpool 建立连接池
func (m *Manager) openDialector(ctx context.Context, target Target) (gorm.Dialector, *pgxpool.Pool, error) {
	switch target.Driver {
	case DriverPostgres:
		poolCfg, err := pgxpool.ParseConfig(target.DSN)
		if err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, err
		}
		return postgres.New(postgres.Config{Conn: stdlib.OpenDBFromPool(pool)}), pool, nil
	case DriverMySQL:
		return mysql.Open(target.DSN), nil, nil
	case DriverSQLite:
		return sqlite.Open(target.DSN), nil, nil
	default:
		return nil, nil, ErrUnsupportedDriver
	}
}

// configurePool 配置连接池
//
// PostgreSQL 的空闲连接由 pgxpool 管理，sql.DB 只限制总数。
func (m *Manager) configurePool(sqlDB *sql.DB, driver Driver) {
	sqlDB.SetMaxOpenConns(m.cfg.PoolSize)
	if driver == DriverPostgres && m.options.dialector == nil {
		return
	}
	sqlDB.SetMaxIdleConns(m.cfg.PoolSize)
	if d := m.cfg.IdleTimeoutDuration(); d > 0 {
		sqlDB.SetConnMaxIdleTime(d)
	}
}

// usePlugins 安装遥测插件与额外插件
func (m *Manager) usePlugins(db *gorm.DB) error {
	if m.cfg.MetricsEnabled() {
		if err := db.Use(m.recorder); err != nil {
			return err
		}
	}
	for _, plugin := range m.options.plugins {
		if err := db.Use(plugin); err != nil {
			return err
		}
	}
	return nil
}

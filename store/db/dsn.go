package db

import (
	"math"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

const redactedPassword = "xxxxx"

// Target 驱动连接目标
type Target struct {
	Driver   Driver
	DSN      string
	Redacted string // 脱敏后的 DSN，仅用于日志
}

// BuildTarget 根据基础地址与配置生成最终连接串
//
// 地址协议决定驱动；已存在的参数不会被覆盖。
func BuildTarget(addr string, cfg Config) (Target, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return Target{}, ErrConfiguration.WithField("reason", "empty database url")
	}

	scheme, _, ok := strings.Cut(addr, ":")
	if !ok {
		return Target{}, ErrUnsupportedDriver.WithField("url", redactURL(addr))
	}

	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return buildPostgres(addr, cfg)
	case "mysql":
		return buildMySQL(addr, cfg)
	case "sqlite", "sqlite3", "file":
		return buildSQLite(addr, cfg)
	default:
		return Target{}, ErrUnsupportedDriver.WithField("scheme", scheme)
	}
}

// buildPostgres 追加 pgxpool 与 pgconn 识别的参数
func buildPostgres(addr string, cfg Config) (Target, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return Target{}, ErrConfiguration.WithCause(err)
	}

	q := u.Query()
	setDefault(q, "pool_max_conns", strconv.Itoa(cfg.PoolSize))
	if cfg.IdleTimeoutDuration() > 0 {
		setDefault(q, "pool_max_conn_idle_time", cfg.IdleTimeoutDuration().String())
	}
	setDefault(q, "connect_timeout", strconv.FormatInt(ceilSeconds(cfg.ConnectionTimeout), 10))
	setDefault(q, "statement_cache_capacity", strconv.Itoa(cfg.StatementCacheCapacity()))
	if cfg.Environment == EnvProduction {
		setDefault(q, "sslmode", "require")
	}
	if cfg.Schema != "" {
		setDefault(q, "search_path", cfg.Schema)
	}
	u.RawQuery = q.Encode()

	return Target{
		Driver:   DriverPostgres,
		DSN:      u.String(),
		Redacted: u.Redacted(),
	}, nil
}

// buildMySQL 将 mysql:// 地址转换为 go-sql-driver 的 DSN
func buildMySQL(addr string, cfg Config) (Target, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return Target{}, ErrConfiguration.WithCause(err)
	}

	host := u.Host
	if host == "" {
		return Target{}, ErrConfiguration.WithField("reason", "mysql host missing")
	}
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "3306")
	}

	dsn := "tcp(" + host + ")/" + strings.TrimPrefix(u.Path, "/")
	if u.RawQuery != "" {
		dsn += "?" + u.RawQuery
	}
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return Target{}, ErrConfiguration.WithCause(err)
	}

	if u.User != nil {
		mc.User = u.User.Username()
		mc.Passwd, _ = u.User.Password()
	}

	q := u.Query()
	if !q.Has("timeout") {
		mc.Timeout = cfg.ConnectionTimeoutDuration()
	}
	if !q.Has("parseTime") {
		mc.ParseTime = true
	}
	if !q.Has("interpolateParams") {
		mc.InterpolateParams = true
	}
	if cfg.Environment == EnvProduction && !q.Has("tls") {
		mc.TLSConfig = "true"
	}
	if cfg.Schema != "" {
		mc.DBName = cfg.Schema
	}

	redacted := mc.Clone()
	if redacted.Passwd != "" {
		redacted.Passwd = redactedPassword
	}

	return Target{
		Driver:   DriverMySQL,
		DSN:      mc.FormatDSN(),
		Redacted: redacted.FormatDSN(),
	}, nil
}

// buildSQLite 支持 sqlite://path、sqlite:path 与 file:path
func buildSQLite(addr string, cfg Config) (Target, error) {
	dsn := addr
	if !strings.HasPrefix(strings.ToLower(addr), "file:") {
		_, rest, _ := strings.Cut(addr, ":")
		dsn = strings.TrimPrefix(rest, "//")
	}
	if dsn == "" {
		return Target{}, ErrConfiguration.WithField("reason", "sqlite path missing")
	}

	if !strings.Contains(dsn, "_busy_timeout=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_busy_timeout=" + strconv.FormatInt(cfg.ConnectionTimeout, 10)
	}

	return Target{
		Driver:   DriverSQLite,
		DSN:      dsn,
		Redacted: dsn,
	}, nil
}

func setDefault(q url.Values, key, value string) {
	if !q.Has(key) {
		q.Set(key, value)
	}
}

func ceilSeconds(ms int64) int64 {
	return int64(math.Ceil(float64(ms) / 1000))
}

// redactURL 尽力而为地隐藏地址中的密码
func redactURL(addr string) string {
	u, err := url.Parse(addr)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}

package db

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID   int
	Name string
}

// fakeClock 每次读取后前进 step
type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newFakeClock(step time.Duration) *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), step: step}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

func (c *fakeClock) SetStep(d time.Duration) {
	c.mu.Lock()
	c.step = d
	c.mu.Unlock()
}

func counterValue(t *testing.T, m *Manager, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range metric.GetLabel() {
		if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
			matched++
		}
	}
	return matched == len(labels)
}

func TestRecorderOperations(t *testing.T) {
	m, conn := readyManager(t)
	db, err := m.Client()
	require.NoError(t, err)

	conn.mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "ada"))
	var users []user
	require.NoError(t, db.Table("users").Where("id = ?", 1).Find(&users).Error)
	require.Len(t, users, 1)

	// 查询无结果不算失败
	conn.mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	var u user
	err = db.Table("users").First(&u).Error
	require.Error(t, err)

	failure := errors.New("relation \"audit\" does not exist")
	conn.mock.ExpectExec("INSERT INTO audit").WillReturnError(failure)
	require.Error(t, db.Exec("INSERT INTO audit (msg) VALUES (?)", "x").Error)

	metrics := m.Metrics()
	assert.Equal(t, int64(3), metrics.TotalQueries)
	assert.Equal(t, int64(2), metrics.SuccessfulQueries)
	assert.Equal(t, int64(1), metrics.FailedQueries)

	stats := m.QueryStats(10)
	require.Len(t, stats.RecentQueries, 3)
	assert.Equal(t, "users.query", stats.RecentQueries[0].Operation)
	assert.Equal(t, "users.query", stats.RecentQueries[1].Operation)
	assert.True(t, stats.RecentQueries[1].Success)
	assert.Equal(t, "raw.raw", stats.RecentQueries[2].Operation)
	assert.Contains(t, stats.RecentQueries[2].Error, "does not exist")
	require.Len(t, stats.FailedQueries, 1)

	for _, r := range stats.RecentQueries {
		assert.NotEmpty(t, r.ID)
	}

	assert.Equal(t, 2.0, counterValue(t, m, "dbguard_queries_total", map[string]string{"operation": "users.query", "status": "success"}))
	assert.Equal(t, 1.0, counterValue(t, m, "dbguard_queries_total", map[string]string{"operation": "raw.raw", "status": "failed"}))

	conn.mock.ExpectClose()
	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, conn.mock.ExpectationsWereMet())
}

func TestRecorderDisabled(t *testing.T) {
	conn := newMockConn(t)
	conn.expectProbe()
	conn.mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))
	conn.mock.ExpectClose()

	cfg := testConfig()
	cfg.EnableMetrics = Bool(false)
	m, buf := newTestManager(t, cfg, WithDialector(mockDialector(conn)))
	require.NoError(t, m.Initialize(context.Background()))

	db, err := m.Client()
	require.NoError(t, err)
	require.NoError(t, db.Exec("UPDATE users SET name = ?", "grace").Error)

	assert.Zero(t, m.Metrics().TotalQueries)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.NotContains(t, buf.String(), "shutdown summary")
}

func TestRecorderSlowQueryWarning(t *testing.T) {
	clock := newFakeClock(1500 * time.Millisecond)

	conn := newMockConn(t)
	conn.expectProbe()
	conn.mock.ExpectExec("VACUUM").WillReturnResult(sqlmock.NewResult(0, 0))
	conn.mock.ExpectClose()

	cfg := testConfig()
	cfg.EnableLogging = Bool(true)
	m, buf := newTestManager(t, cfg, WithDialector(mockDialector(conn)), WithClock(clock.Now))
	require.NoError(t, m.Initialize(context.Background()))

	db, err := m.Client()
	require.NoError(t, err)
	require.NoError(t, db.Exec("VACUUM").Error)

	stats := m.QueryStats(10)
	require.Len(t, stats.SlowQueries, 1)
	assert.Equal(t, 1500*time.Millisecond, stats.SlowQueries[0].Duration)
	assert.Contains(t, buf.String(), "slow query detected")

	require.NoError(t, m.Shutdown(context.Background()))
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/dbguard/log"
	"github.com/kochabx/dbguard/store/db"
	"github.com/kochabx/dbguard/transport/http/middleware"
)

type fakeReporter struct {
	status    db.HealthStatus
	lastLimit int
}

func (f *fakeReporter) HealthReport() db.HealthReport {
	return db.HealthReport{
		Status:  f.status,
		State:   db.StateReady,
		Metrics: db.Metrics{TotalQueries: 3, SuccessfulQueries: 2, FailedQueries: 1, HealthStatus: f.status},
		QueryStats: db.QueryStats{
			SlowQueries:   []db.QueryRecord{},
			FailedQueries: []db.QueryRecord{},
			RecentQueries: []db.QueryRecord{},
		},
	}
}

func (f *fakeReporter) QueryStats(limit int) db.QueryStats {
	f.lastLimit = limit
	return db.QueryStats{
		SlowQueries:   []db.QueryRecord{},
		FailedQueries: []db.QueryRecord{{ID: "q1", Operation: "users.query", Error: "boom"}},
		RecentQueries: []db.QueryRecord{{ID: "q1", Operation: "users.query", Error: "boom"}},
	}
}

func newTestServer(t *testing.T, reporter HealthReporter, reg *prometheus.Registry) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	return NewServer(":0", gin.New(),
		WithLogger(&log.Logger{Logger: zerolog.Nop()}),
		WithHealthOptions(HealthOption{Enabled: true, Reporter: reporter, MaxLimit: 100}),
		WithMetricsOptions(MetricsOption{Enabled: true, Registry: reg}),
	)
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestHealthEndpointStatusCodes(t *testing.T) {
	cases := []struct {
		status db.HealthStatus
		code   int
	}{
		{db.HealthHealthy, http.StatusOK},
		{db.HealthDegraded, http.StatusOK},
		{db.HealthUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			s := newTestServer(t, &fakeReporter{status: tc.status}, nil)
			w := get(t, s, "/health")
			assert.Equal(t, tc.code, w.Code)

			var body struct {
				Status  string `json:"status"`
				State   string `json:"state"`
				Metrics struct {
					TotalQueries int64 `json:"totalQueries"`
				} `json:"metrics"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, string(tc.status), body.Status)
			assert.Equal(t, "ready", body.State)
			assert.Equal(t, int64(3), body.Metrics.TotalQueries)
		})
	}
}

func TestQueryStatsEndpoint(t *testing.T) {
	reporter := &fakeReporter{status: db.HealthHealthy}
	s := newTestServer(t, reporter, nil)

	w := get(t, s, "/health/queries")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 50, reporter.lastLimit)
	assert.Contains(t, w.Body.String(), `"operation":"users.query"`)

	get(t, s, "/health/queries?limit=10")
	assert.Equal(t, 10, reporter.lastLimit)

	get(t, s, "/health/queries?limit=5000")
	assert.Equal(t, 100, reporter.lastLimit, "limit is capped")

	for _, bad := range []string{"0", "-3", "ten"} {
		w := get(t, s, "/health/queries?limit="+bad)
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, bad, resp.Metadata["limit"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "dbguard_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Add(2)

	s := newTestServer(t, &fakeReporter{status: db.HealthHealthy}, reg)
	w := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dbguard_test_total 2")
}

func TestSharedRegistryCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	opt := MetricsOption{Enabled: true, Registry: reg, EnabledGoCollector: true, EnabledBuildInfoCollector: true}

	assert.NotPanics(t, func() {
		NewServer(":0", gin.New(), WithMetricsOptions(opt))
		NewServer(":0", gin.New(), WithMetricsOptions(opt))
	})
}

func TestHealthWithoutReporterDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(":0", gin.New(),
		WithLogger(&log.Logger{Logger: zerolog.Nop()}),
		WithHealthOptions(HealthOption{Enabled: true}),
	)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/health").Code)
}

func TestServerRunAndShutdown(t *testing.T) {
	s := newTestServer(t, &fakeReporter{status: db.HealthHealthy}, nil)
	s.server.Addr = "127.0.0.1:0"

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := &log.Logger{Logger: zerolog.New(&buf)}

	r := gin.New()
	r.Use(middleware.GinLoggerWithConfig(middleware.LoggerConfig{
		Logger:    logger,
		SkipPaths: []string{"/health"},
	}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) { GinError(c, db.ErrConnectionUnavailable) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, buf.String())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"status":503`)
	assert.Contains(t, buf.String(), "connection unavailable")
}

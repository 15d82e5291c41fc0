package app

import (
	"context"
	"net/http"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/dbguard/errors"
	"github.com/kochabx/dbguard/log"
)

// blockingServer 运行直到 Shutdown 被调用
type blockingServer struct {
	runErr   error
	stop     chan struct{}
	once     sync.Once
	shutdown bool
	mu       sync.Mutex
}

func newBlockingServer() *blockingServer {
	return &blockingServer{stop: make(chan struct{})}
}

func (s *blockingServer) Run() error {
	if s.runErr != nil {
		return s.runErr
	}
	<-s.stop
	return http.ErrServerClosed
}

func (s *blockingServer) Shutdown(context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *blockingServer) wasShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

type shutdownRecorder struct {
	calls *[]string
	name  string
	err   error
}

func (r shutdownRecorder) Shutdown(context.Context) error {
	*r.calls = append(*r.calls, r.name)
	return r.err
}

func quietLogger() Option {
	return WithLogger(&log.Logger{Logger: zerolog.Nop()})
}

func TestNew(t *testing.T) {
	app := New(quietLogger(), WithServers(newBlockingServer(), nil, newBlockingServer()))

	info := app.Info()
	assert.Equal(t, 2, info.ServerCount)
	assert.False(t, info.Started)
}

func TestStartStopsServersThenRunsCloseFuncs(t *testing.T) {
	server := newBlockingServer()
	var calls []string

	app := New(
		quietLogger(),
		WithServers(server),
		WithShutdowner("database", shutdownRecorder{calls: &calls, name: "database"}, time.Second),
		WithClose("flush", func(context.Context) error {
			calls = append(calls, "flush")
			return nil
		}, 0),
	)

	done := make(chan error, 1)
	go func() { done <- app.Start() }()

	time.Sleep(20 * time.Millisecond)
	app.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}

	assert.True(t, server.wasShutdown())
	assert.Equal(t, []string{"database", "flush"}, calls, "close funcs run in registration order")
	assert.True(t, app.Info().Started)
	assert.ErrorIs(t, app.Start(), ErrAlreadyStarted)
}

func TestStartOnSignal(t *testing.T) {
	app := New(quietLogger(), WithSignals(syscall.SIGUSR1))

	done := make(chan error, 1)
	go func() { done <- app.Start() }()

	require.Eventually(t, func() bool { return app.Info().Started }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after signal")
	}
}

func TestStartServerErrorStillCloses(t *testing.T) {
	failing := newBlockingServer()
	failing.runErr = errors.Unavailable("listen failed")
	other := newBlockingServer()
	var calls []string

	app := New(
		quietLogger(),
		WithServers(failing, other),
		WithShutdowner("database", shutdownRecorder{calls: &calls, name: "database"}, time.Second),
	)

	err := app.Start()
	require.Error(t, err)
	assert.Equal(t, 503, errors.Code(err))
	assert.True(t, other.wasShutdown())
	assert.Equal(t, []string{"database"}, calls)
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	app := New(quietLogger(), WithContext(ctx), WithServers(newBlockingServer()))

	done := make(chan error, 1)
	go func() { done <- app.Start() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start should return on a cancelled context")
	}
}

func TestAddServer(t *testing.T) {
	app := New(quietLogger())
	require.NoError(t, app.AddServer(newBlockingServer()))
	assert.Equal(t, 1, app.Info().ServerCount)

	assert.ErrorIs(t, app.AddServer(nil), ErrNilServer)

	app.started = true
	assert.ErrorIs(t, app.AddServer(newBlockingServer()), ErrAlreadyStarted)
}

func TestRegisterClose(t *testing.T) {
	app := New(quietLogger())
	called := false
	require.NoError(t, app.RegisterClose("test", func(context.Context) error {
		called = true
		return nil
	}, time.Second))
	assert.ErrorIs(t, app.RegisterClose("nil", nil, time.Second), ErrNilClose)

	assert.Equal(t, 1, app.Info().CloseCount)
	require.NoError(t, app.runCloseTasks())
	assert.True(t, called)
}

func TestCloseFuncFailures(t *testing.T) {
	var calls []string
	app := New(
		quietLogger(),
		WithClose("panic", func(context.Context) error { panic("boom") }, time.Second),
		WithClose("slow", func(ctx context.Context) error {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return nil
		}, 50*time.Millisecond),
		WithShutdowner("database", shutdownRecorder{calls: &calls, name: "database", err: errors.Unavailable("close failed")}, time.Second),
		WithClose("nil", nil, time.Second),
	)
	assert.Equal(t, 3, app.Info().CloseCount)

	start := time.Now()
	err := app.runCloseTasks()
	assert.Less(t, time.Since(start), time.Second)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClosePanic)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"database"}, calls, "later close funcs still run")
}

func TestOptionValidation(t *testing.T) {
	app := New(quietLogger(), WithShutdownTimeout(0), WithCloseTimeout(-1), WithSignals())

	assert.Equal(t, 30*time.Second, app.shutdownTimeout)
	assert.Equal(t, 30*time.Second, app.closeTimeout)
	assert.Len(t, app.signals, 3)
}

package db

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordingBackoff 记录每次等待对应的失败序号
type recordingBackoff struct {
	mu       sync.Mutex
	attempts []int
	delay    time.Duration
}

func (r *recordingBackoff) NextRetry(attempt int) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
	return r.delay
}

func TestLinearBackoff(t *testing.T) {
	b := LinearBackoff{Delay: 100 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, b.NextRetry(1))
	assert.Equal(t, 200*time.Millisecond, b.NextRetry(2))
	assert.Equal(t, 300*time.Millisecond, b.NextRetry(3))
	assert.Equal(t, 100*time.Millisecond, b.NextRetry(0))
}

func TestExecuteWithRetryEventuallySucceeds(t *testing.T) {
	backoff := &recordingBackoff{}
	m, _ := readyManager(t, WithRetryStrategy(backoff))

	calls := 0
	err := m.ExecuteWithRetry(context.Background(), func(ctx context.Context, db *gorm.DB) error {
		calls++
		require.NotNil(t, db)
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, backoff.attempts)
}

func TestExecuteWithRetryReturnsLastError(t *testing.T) {
	backoff := &recordingBackoff{}
	m, _ := readyManager(t, WithRetryStrategy(backoff))

	errs := []error{errors.New("first"), errors.New("second"), errors.New("third")}
	calls := 0
	err := m.ExecuteWithRetry(context.Background(), func(ctx context.Context, db *gorm.DB) error {
		e := errs[calls]
		calls++
		return e
	}, 3)

	assert.Same(t, errs[2], err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, backoff.attempts)
}

func TestExecuteWithRetryLinearDelay(t *testing.T) {
	conn := newMockConn(t)
	conn.expectProbe()
	cfg := testConfig()
	cfg.RetryDelay = Millis(100)
	m, _ := newTestManager(t, cfg, WithDialector(mockDialector(conn)))
	require.NoError(t, m.Initialize(context.Background()))

	final := errors.New("still failing")
	calls := 0
	start := time.Now()
	err := m.ExecuteWithRetry(context.Background(), func(ctx context.Context, db *gorm.DB) error {
		calls++
		return final
	}, 3)
	elapsed := time.Since(start)

	assert.Same(t, final, err)
	assert.Equal(t, 3, calls)
	// 100ms + 200ms，最后一次失败后不再等待
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
	assert.Less(t, elapsed, 400*time.Millisecond+time.Second)

	conn.mock.ExpectClose()
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestExecuteWithRetryDefaultAttempts(t *testing.T) {
	m, _ := readyManager(t)

	calls := 0
	_ = m.ExecuteWithRetry(context.Background(), func(ctx context.Context, db *gorm.DB) error {
		calls++
		return errors.New("always")
	})
	assert.Equal(t, m.Config().RetryAttempts, calls)
}

func TestExecuteWithRetryAttemptsBelowOne(t *testing.T) {
	m, _ := readyManager(t)

	for _, n := range []int{0, -3} {
		calls := 0
		_ = m.ExecuteWithRetry(context.Background(), func(ctx context.Context, db *gorm.DB) error {
			calls++
			return errors.New("always")
		}, n)
		assert.Equal(t, 1, calls, n)
	}
}

func TestExecuteWithRetryUnavailableClient(t *testing.T) {
	backoff := &recordingBackoff{}
	m, _ := newTestManager(t, testConfig(), WithRetryStrategy(backoff))

	called := false
	err := m.ExecuteWithRetry(context.Background(), func(ctx context.Context, db *gorm.DB) error {
		called = true
		return nil
	}, 2)

	assert.False(t, called)
	assert.True(t, errors.Is(err, ErrConnectionUnavailable))
	assert.Equal(t, []int{1}, backoff.attempts, "unavailability is retried like any failure")
}

func TestExecuteWithRetryContextCancelled(t *testing.T) {
	m, _ := readyManager(t, WithRetryStrategy(&recordingBackoff{delay: time.Hour}))

	ctx, cancel := context.WithCancel(context.Background())
	opErr := errors.New("deadlock detected")

	done := make(chan error, 1)
	go func() {
		done <- m.ExecuteWithRetry(ctx, func(ctx context.Context, db *gorm.DB) error {
			cancel()
			return opErr
		}, 5)
	}()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, opErr))
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestRetryGeneric(t *testing.T) {
	m, _ := readyManager(t)

	calls := 0
	n, err := Retry(context.Background(), m, func(ctx context.Context, db *gorm.DB) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

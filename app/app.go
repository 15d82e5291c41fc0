package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kochabx/dbguard/errors"
	"github.com/kochabx/dbguard/log"
	"github.com/kochabx/dbguard/transport"
)

var (
	ErrAlreadyStarted = errors.New(409, "application already started")
	ErrClosePanic     = errors.Internal("close function panicked")
	ErrNilServer      = errors.BadRequest("server cannot be nil")
	ErrNilClose       = errors.BadRequest("close function cannot be nil")
)

// Shutdowner 可被优雅关闭的资源，例如数据库连接管理器
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Application 管理服务器与关闭函数的生命周期
//
// 收到信号或根上下文取消后，先关闭全部服务器，再按注册顺序执行关闭函数。
type Application struct {
	ctx             context.Context
	cancel          context.CancelFunc
	logger          *log.Logger
	shutdownTimeout time.Duration
	closeTimeout    time.Duration
	signals         []os.Signal
	servers         []transport.Server
	closeFuncs      []CloseFunc
	mu              sync.RWMutex
	started         bool
}

// CloseFunc 具有超时的关闭函数
type CloseFunc struct {
	Name    string
	Fn      func(context.Context) error
	Timeout time.Duration
}

type Option func(*Application)

// WithContext 设置应用的根上下文
func WithContext(ctx context.Context) Option {
	return func(app *Application) {
		if ctx != nil {
			app.ctx, app.cancel = context.WithCancel(ctx)
		}
	}
}

// WithLogger 设置日志，默认使用全局日志
func WithLogger(logger *log.Logger) Option {
	return func(app *Application) {
		if logger != nil {
			app.logger = logger
		}
	}
}

// WithShutdownTimeout 设置服务器关闭的超时时间
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(app *Application) {
		if timeout > 0 {
			app.shutdownTimeout = timeout
		}
	}
}

// WithCloseTimeout 设置关闭函数的默认超时时间
func WithCloseTimeout(timeout time.Duration) Option {
	return func(app *Application) {
		if timeout > 0 {
			app.closeTimeout = timeout
		}
	}
}

// WithSignals 设置触发关闭的信号
func WithSignals(signals ...os.Signal) Option {
	return func(app *Application) {
		if len(signals) > 0 {
			app.signals = append([]os.Signal(nil), signals...)
		}
	}
}

// WithServers 添加服务器，忽略 nil
func WithServers(servers ...transport.Server) Option {
	return func(app *Application) {
		for _, server := range servers {
			if server != nil {
				app.servers = append(app.servers, server)
			}
		}
	}
}

// WithClose 添加关闭函数，timeout 为 0 时使用默认值
func WithClose(name string, fn func(context.Context) error, timeout time.Duration) Option {
	return func(app *Application) {
		if fn == nil {
			app.logger.Warn().Str("name", name).Msg("nil close function ignored")
			return
		}
		app.closeFuncs = append(app.closeFuncs, CloseFunc{Name: name, Fn: fn, Timeout: timeout})
	}
}

// WithShutdowner 将 s.Shutdown 注册为关闭函数
func WithShutdowner(name string, s Shutdowner, timeout time.Duration) Option {
	if s == nil {
		return WithClose(name, nil, timeout)
	}
	return WithClose(name, s.Shutdown, timeout)
}

// New 使用给定选项创建应用
func New(options ...Option) *Application {
	app := &Application{
		logger:          log.G,
		shutdownTimeout: 30 * time.Second,
		closeTimeout:    30 * time.Second,
		signals:         []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT},
	}
	app.ctx, app.cancel = context.WithCancel(context.Background())

	for _, opt := range options {
		opt(app)
	}

	return app
}

// AddServer 在启动前添加服务器
func (app *Application) AddServer(server transport.Server) error {
	if server == nil {
		return ErrNilServer
	}

	app.mu.Lock()
	defer app.mu.Unlock()

	if app.started {
		return ErrAlreadyStarted
	}
	app.servers = append(app.servers, server)
	return nil
}

// RegisterClose 添加关闭函数，启动后仍可调用
func (app *Application) RegisterClose(name string, fn func(context.Context) error, timeout time.Duration) error {
	if fn == nil {
		return ErrNilClose
	}

	app.mu.Lock()
	defer app.mu.Unlock()

	app.closeFuncs = append(app.closeFuncs, CloseFunc{Name: name, Fn: fn, Timeout: timeout})
	return nil
}

// Start 启动全部服务器并阻塞直到关闭
//
// 服务器运行错误或关闭函数错误会合并返回；正常关闭返回 nil。
func (app *Application) Start() error {
	app.mu.Lock()
	if app.started {
		app.mu.Unlock()
		return ErrAlreadyStarted
	}
	app.started = true
	servers := append([]transport.Server(nil), app.servers...)
	signals := append([]os.Signal(nil), app.signals...)
	app.mu.Unlock()

	if len(servers) == 0 {
		app.logger.Info().Msg("no servers configured, starting signal handler only")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, signals...)
	defer signal.Stop(sigCh)

	eg, egCtx := errgroup.WithContext(app.ctx)

	for _, server := range servers {
		eg.Go(func() error {
			if err := server.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		eg.Go(func() error {
			<-egCtx.Done()

			ctx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout)
			defer cancel()
			return server.Shutdown(ctx)
		})
	}

	eg.Go(func() error {
		select {
		case sig := <-sigCh:
			app.logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
			app.cancel()
		case <-egCtx.Done():
		}
		return nil
	})

	runErr := eg.Wait()
	if runErr != nil {
		app.logger.Error().Err(runErr).Msg("server stopped with error")
	}

	return errors.Join(runErr, app.runCloseTasks())
}

// Stop 触发优雅关闭
func (app *Application) Stop() {
	app.cancel()
}

// runCloseTasks 按注册顺序执行关闭函数，单个失败不影响后续
func (app *Application) runCloseTasks() error {
	app.mu.RLock()
	closeFuncs := append([]CloseFunc(nil), app.closeFuncs...)
	app.mu.RUnlock()

	var errs []error
	for _, fn := range closeFuncs {
		if err := app.runCloseTask(fn); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runCloseTask 执行单个带超时的关闭函数
func (app *Application) runCloseTask(fn CloseFunc) error {
	timeout := fn.Timeout
	if timeout <= 0 {
		timeout = app.closeTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				app.logger.Error().Interface("panic", r).Str("close", fn.Name).Msg("close function panicked")
				done <- ErrClosePanic.WithField("close", fn.Name)
			}
		}()
		done <- fn.Fn(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			app.logger.Error().Err(err).Str("close", fn.Name).Msg("close function failed")
		}
		return err
	case <-ctx.Done():
		app.logger.Warn().Str("close", fn.Name).Msg("close function timed out")
		return ctx.Err()
	}
}

// Info 返回应用状态信息
func (app *Application) Info() ApplicationInfo {
	app.mu.RLock()
	defer app.mu.RUnlock()

	return ApplicationInfo{
		Started:     app.started,
		ServerCount: len(app.servers),
		CloseCount:  len(app.closeFuncs),
	}
}

// ApplicationInfo 应用状态信息
type ApplicationInfo struct {
	Started     bool `json:"started"`
	ServerCount int  `json:"server_count"`
	CloseCount  int  `json:"close_count"`
}

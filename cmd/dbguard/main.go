package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/dbguard/app"
	"github.com/kochabx/dbguard/log"
	"github.com/kochabx/dbguard/log/desensitize"
	"github.com/kochabx/dbguard/store/db"
	transporthttp "github.com/kochabx/dbguard/transport/http"
	"github.com/kochabx/dbguard/transport/http/middleware"
)

const shutdownTimeout = 15 * time.Second

func main() {
	loaded := loadDotenv(envFiles...)

	cfg, err := loadConfig(".", "/etc/dbguard")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger, err := log.NewFromConfig(cfg.Log,
		log.WithDesensitize(desensitize.NewHook(desensitize.CredentialRules()...)),
		log.WithField("service", "dbguard"),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create logger")
	}
	defer logger.Close()
	log.SetGlobalLogger(logger)

	if len(loaded) > 0 {
		logger.Info().Strs("files", loaded).Msg("loaded environment files")
	}

	manager, err := db.New(cfg.DB, db.WithLogger(logger))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid database configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DB.ConnectionTimeoutDuration()*time.Duration(cfg.DB.RetryAttempts+1))
	err = manager.Initialize(ctx)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	server := newHTTPServer(cfg, manager, logger)

	application := app.New(
		app.WithLogger(logger),
		app.WithServers(server),
		app.WithShutdownTimeout(shutdownTimeout),
		app.WithShutdowner("database", manager, shutdownTimeout),
	)

	if err := application.Start(); err != nil {
		logger.Error().Err(err).Msg("dbguard stopped with error")
		return
	}
	logger.Info().Msg("dbguard stopped")
}

func newHTTPServer(cfg *Config, manager *db.Manager, logger *log.Logger) *transporthttp.Server {
	if cfg.DB.Environment == db.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery(middleware.RecoveryConfig{StackTrace: true, Logger: logger}), middleware.GinLoggerWithConfig(middleware.LoggerConfig{
		Logger:    logger,
		SkipPaths: []string{"/metrics"},
	}))

	return transporthttp.NewServer(cfg.HTTP.Addr, r,
		transporthttp.WithMeta(transporthttp.Meta{Name: "dbguard"}),
		transporthttp.WithLogger(logger),
		transporthttp.WithHealthOptions(transporthttp.HealthOption{
			Enabled:  true,
			Reporter: manager,
		}),
		transporthttp.WithMetricsOptions(transporthttp.MetricsOption{
			Enabled:                   cfg.HTTP.Metrics,
			Registry:                  manager.Registry(),
			EnabledGoCollector:        true,
			EnabledBuildInfoCollector: true,
		}),
	)
}

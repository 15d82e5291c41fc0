package db

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kochabx/dbguard/log"
)

const (
	recorderName     = "dbguard:recorder"
	recorderStartKey = "dbguard:start"
)

// recorder GORM 插件，在每次操作前后登记耗时与结果
type recorder struct {
	telemetry *telemetry
	prom      *promMetrics
	logger    *log.Logger
	logSlow   bool
	now       func() time.Time
}

// Name 实现 gorm.Plugin
func (r *recorder) Name() string {
	return recorderName
}

// Initialize 实现 gorm.Plugin，为各类操作注册前后回调
func (r *recorder) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	name := func(stage, action string) string {
		return recorderName + ":" + stage + "_" + action
	}

	return errors.Join(
		cb.Create().Before("gorm:create").Register(name("before", "create"), r.before),
		cb.Create().After("gorm:create").Register(name("after", "create"), r.after("create")),
		cb.Query().Before("gorm:query").Register(name("before", "query"), r.before),
		cb.Query().After("gorm:query").Register(name("after", "query"), r.after("query")),
		cb.Update().Before("gorm:update").Register(name("before", "update"), r.before),
		cb.Update().After("gorm:update").Register(name("after", "update"), r.after("update")),
		cb.Delete().Before("gorm:delete").Register(name("before", "delete"), r.before),
		cb.Delete().After("gorm:delete").Register(name("after", "delete"), r.after("delete")),
		cb.Row().Before("gorm:row").Register(name("before", "row"), r.before),
		cb.Row().After("gorm:row").Register(name("after", "row"), r.after("row")),
		cb.Raw().Before("gorm:raw").Register(name("before", "raw"), r.before),
		cb.Raw().After("gorm:raw").Register(name("after", "raw"), r.after("raw")),
	)
}

func (r *recorder) before(db *gorm.DB) {
	db.InstanceSet(recorderStartKey, r.now())
}

func (r *recorder) after(action string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(recorderStartKey)
		if !ok {
			return
		}
		start, ok := v.(time.Time)
		if !ok {
			return
		}

		rec := QueryRecord{
			ID:        uuid.NewString(),
			Operation: operationName(db, action),
			Duration:  r.now().Sub(start),
			Timestamp: start,
			Success:   true,
		}
		if err := db.Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			rec.Success = false
			rec.Error = err.Error()
		}

		r.observe(rec)
	}
}

func (r *recorder) observe(rec QueryRecord) {
	r.telemetry.record(rec)
	if r.prom != nil {
		r.prom.observeQuery(rec)
	}

	if r.logSlow && rec.Duration > SlowQueryThreshold && r.logger != nil {
		r.logger.Warn().
			Str("operation", rec.Operation).
			Dur("duration", rec.Duration).
			Msg("slow query detected")
	}
}

// operationName 返回 table.action，无表名时为 raw.action
func operationName(db *gorm.DB, action string) string {
	entity := "raw"
	if stmt := db.Statement; stmt != nil {
		switch {
		case stmt.Table != "":
			entity = stmt.Table
		case stmt.Schema != nil && stmt.Schema.Table != "":
			entity = stmt.Schema.Table
		}
	}
	return entity + "." + action
}

package model

import (
	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"gorm.io/gorm"

	"github.com/loomrelay/gateway/common/logger"
	"github.com/loomrelay/gateway/internal/dbutil"
)

// DB is the process-wide connection to the routing config store. It is
// opened once at startup by InitDB and read by internal/configstore.Refresh.
var DB *gorm.DB

// UsingSQLite reports whether the active DB backend is the bundled SQLite
// driver, so callers can decide whether the busy-retry wrapper applies.
var UsingSQLite bool

// InitDB opens the routing config store from dsn (empty means local SQLite
// at sqlitePath) and runs AutoMigrate for the schemas this repo owns reading.
// It never migrates or touches any table outside upstreams/groups/
// group_members/api_tokens — those remain the management plane's.
func InitDB(dsn, sqlitePath string) error {
	db, backend, err := dbutil.Open(dsn, sqlitePath)
	if err != nil {
		return errors.Wrap(err, "open routing config store")
	}
	UsingSQLite = backend == dbutil.BackendSQLite

	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "get *sql.DB")
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	if err := db.AutoMigrate(&Upstream{}, &Group{}, &GroupMember{}, &ApiToken{}); err != nil {
		return errors.Wrap(err, "auto migrate routing config schema")
	}

	DB = db
	logger.Logger.Info("routing config store ready", zap.Bool("sqlite", UsingSQLite))
	return nil
}

// WithSQLiteBusyRetry runs operation, retrying on SQLite busy/locked errors
// when the active backend is SQLite.
func WithSQLiteBusyRetry(operation func() error) error {
	return dbutil.WithSQLiteBusyRetry(nil, UsingSQLite, operation)
}


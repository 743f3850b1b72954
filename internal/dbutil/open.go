package dbutil

import (
	"fmt"
	"strings"

	"github.com/Laisky/errors/v2"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/loomrelay/gateway/common/logger"
)

// Backend identifies which SQL driver Open selected for a given DSN.
type Backend int

const (
	BackendSQLite Backend = iota
	BackendPostgres
	BackendMySQL
)

// Open selects a gorm driver from dsn's shape, exactly as the rest of this
// codebase family does: an empty DSN means local SQLite, a "postgres://"
// prefix means Postgres, anything else is treated as a MySQL DSN.
func Open(dsn, sqlitePath string) (*gorm.DB, Backend, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"):
		db, err := openPostgres(dsn)
		return db, BackendPostgres, err
	case dsn != "":
		db, err := openMySQL(dsn)
		return db, BackendMySQL, err
	default:
		db, err := openSQLite(sqlitePath)
		return db, BackendSQLite, err
	}
}

func openPostgres(dsn string) (*gorm.DB, error) {
	logger.Logger.Info("using PostgreSQL as the routing config store")
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{PrepareStmt: true})
}

func openMySQL(dsn string) (*gorm.DB, error) {
	logger.Logger.Info("using MySQL as the routing config store")
	return gorm.Open(mysql.Open(dsn), &gorm.Config{PrepareStmt: true})
}

func openSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		path = "gateway.db"
	}
	logger.Logger.Info("DSN not set, using SQLite as the routing config store")
	dsn := fmt.Sprintf("%s?_busy_timeout=3000", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{PrepareStmt: true})
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	return db, nil
}

package db

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the database selected by the DSN. DSNs beginning with
// "sqlite://" (or a bare file path ending in .db) open SQLite; everything
// else is treated as a PostgreSQL DSN.
func Open(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("db: empty dsn")
	}

	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	if path, ok := sqlitePath(dsn); ok {
		conn, errOpen := gorm.Open(sqlite.Open(path), gormCfg)
		if errOpen != nil {
			return nil, fmt.Errorf("db: open sqlite: %w", errOpen)
		}
		return conn, nil
	}

	conn, errOpen := gorm.Open(postgres.Open(dsn), gormCfg)
	if errOpen != nil {
		return nil, fmt.Errorf("db: open postgres: %w", errOpen)
	}
	return conn, nil
}

// sqlitePath extracts a SQLite file path from the DSN when it targets SQLite.
func sqlitePath(dsn string) (string, bool) {
	if strings.HasPrefix(dsn, "sqlite://") {
		return strings.TrimPrefix(dsn, "sqlite://"), true
	}
	if strings.HasPrefix(dsn, "file:") {
		return dsn, true
	}
	if strings.HasSuffix(dsn, ".db") || strings.HasSuffix(dsn, ".sqlite") {
		return dsn, true
	}
	return "", false
}

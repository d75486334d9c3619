package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openSQLite(cfg Config, gormCfg *gorm.Config) (*gorm.DB, error) {
	path := strings.TrimSpace(cfg.SQLitePath)
	if path == "" {
		path = "dosegate.db"
	}
	conn, err := gorm.Open(sqlite.Open(path), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// One writer at a time; sqlite serializes writes anyway.
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := conn.Exec("PRAGMA foreign_keys = ON;").Error; err != nil {
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}
	return conn, nil
}

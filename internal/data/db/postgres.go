package db

import (
	"fmt"
	"net/url"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func PostgresDSN(cfg Config) string {
	sslMode := cfg.PostgresSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.PostgresUser, cfg.PostgresPassword),
		Host:     cfg.PostgresHost + ":" + cfg.PostgresPort,
		Path:     "/" + cfg.PostgresName,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}

func openPostgres(cfg Config, gormCfg *gorm.Config) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(PostgresDSN(cfg)), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	return conn, nil
}

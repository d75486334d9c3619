package testutil

import (
	"os"
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/dosegate-backend/internal/data/db"
	"github.com/yungbote/dosegate-backend/internal/platform/logger"
)

var (
	dbOnce sync.Once
	testDB *gorm.DB
	dbErr  error

	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB opens Postgres when TEST_POSTGRES_DSN is set, otherwise a private
// in-memory sqlite database. Tests should work inside Tx.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dbOnce.Do(func() {
		cfg := &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			TranslateError:                           true,
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		}

		var dialector gorm.Dialector
		if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
			dialector = postgres.Open(dsn)
		} else {
			dialector = sqlite.Open(":memory:")
		}

		conn, err := gorm.Open(dialector, cfg)
		if err != nil {
			dbErr = err
			return
		}
		if conn.Dialector.Name() == db.DriverSQLite {
			// Every connection to :memory: is a separate database.
			sqlDB, err := conn.DB()
			if err != nil {
				dbErr = err
				return
			}
			sqlDB.SetMaxOpenConns(1)
		}
		if err := db.AutoMigrateAll(conn); err != nil {
			dbErr = err
			return
		}
		testDB = conn
	})

	if dbErr != nil {
		tb.Skipf("test database unavailable: %v", dbErr)
	}
	return testDB
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}

// Package internal contains the driver plumbing shared by the storex adapters.
package internal

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go.eggybyte.com/orchid/core/log"
)

// Driver names accepted by OpenGORM.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// GORMOptions holds configuration for GORM database connections.
type GORMOptions struct {
	DSN             string        // Database connection string
	Driver          string        // sqlite, mysql or postgres
	MaxIdleConns    int           // Maximum number of idle connections
	MaxOpenConns    int           // Maximum number of open connections
	ConnMaxLifetime time.Duration // Maximum connection lifetime
	SlowQuery       time.Duration // Queries slower than this are logged at warn
	Logger          log.Logger    // Logger for database operations
	IsConnError     func(error) bool
}

// OpenGORM opens a pool for opts.Driver and applies the pool limits. It does
// not ping; callers verify connectivity themselves.
func OpenGORM(opts GORMOptions) (*gorm.DB, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("DSN is required")
	}

	dialector, err := Dialector(opts.Driver, opts.DSN)
	if err != nil {
		return nil, err
	}

	var gormLogger logger.Interface = logger.Discard
	if opts.Logger != nil {
		gormLogger = &gormLogAdapter{logger: opts.Logger, slow: opts.SlowQuery, isConnError: opts.IsConnError}
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	return db, nil
}

// Dialector returns the GORM dialector for the given driver name.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverMySQL:
		return mysql.Open(dsn), nil
	case DriverPostgres:
		return postgres.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
}

// gormLogAdapter routes GORM's logger through log.Logger.
type gormLogAdapter struct {
	logger      log.Logger
	slow        time.Duration
	isConnError func(error) bool
}

func (l *gormLogAdapter) LogMode(logger.LogLevel) logger.Interface {
	return l
}

func (l *gormLogAdapter) Info(_ context.Context, msg string, data ...interface{}) {
	l.logger.Info(fmt.Sprintf(msg, data...))
}

func (l *gormLogAdapter) Warn(_ context.Context, msg string, data ...interface{}) {
	l.logger.Warn(fmt.Sprintf(msg, data...))
}

func (l *gormLogAdapter) Error(_ context.Context, msg string, data ...interface{}) {
	l.logger.Error(nil, fmt.Sprintf(msg, data...))
}

// Trace logs connection failures at error and everything else at debug,
// except slow queries which are warned about.
func (l *gormLogAdapter) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	duration := time.Since(begin)
	switch {
	case err != nil && l.isConnError != nil && l.isConnError(err):
		sql, _ := fc()
		l.logger.Error(err, "database query failed", log.Str("sql", sql), log.Dur("duration", duration))
	case err != nil:
		l.logger.Debug("database query completed with error", log.Err(err))
	case l.slow > 0 && duration > l.slow:
		sql, rows := fc()
		l.logger.Warn("slow database query",
			log.Str("sql", sql),
			log.Int("rows", int(rows)),
			log.Dur("duration", duration))
	}
}

package storex

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"go.eggybyte.com/orchid/core/log"
	"go.eggybyte.com/orchid/faultx"
	"go.eggybyte.com/orchid/healthx"
	"go.eggybyte.com/orchid/obsx"
	"go.eggybyte.com/orchid/storex/internal"
)

// SQLStore is a GORM-backed relational store.
type SQLStore struct {
	db     *gorm.DB
	driver string
	table  faultx.Table
	inst   instrument
}

// NewSQLStore opens driver (sqlite, mysql or postgres), verifies the
// connection under the retry policy and returns a ready store.
func NewSQLStore(ctx context.Context, driver string, s SQLSettings, opts ...Option) (*SQLStore, error) {
	o := newOptions(driver, opts)
	table := SQLTable()

	if _, err := internal.Dialector(driver, s.DSN); err != nil {
		return nil, faultx.Validation(faultx.DomainSQL, "connect", err.Error())
	}
	if s.DSN == "" {
		return nil, faultx.Validation(faultx.DomainSQL, "connect", "DSN is required")
	}

	var db *gorm.DB
	err := connect(ctx, o, s.Retry, func(ctx context.Context) error {
		opened, err := internal.OpenGORM(internal.GORMOptions{
			DSN:             s.DSN,
			Driver:          driver,
			MaxIdleConns:    s.MaxIdleConns,
			MaxOpenConns:    s.MaxOpenConns,
			ConnMaxLifetime: s.ConnMaxLifetime,
			SlowQuery:       s.SlowQuery,
			Logger:          o.logger.With(log.Str("resource", o.name)),
			IsConnError:     faultx.IsTransient,
		})
		if err != nil {
			return table.Translate("connect", driver, err)
		}
		if err := ping(ctx, opened); err != nil {
			closeGORM(opened)
			return table.Translate("connect", driver, err)
		}
		db = opened
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &SQLStore{
		db:     db,
		driver: driver,
		table:  table,
		inst:   instrument{resource: o.name, recorder: o.recorder},
	}, nil
}

// DB returns the underlying GORM handle. Errors from it are not translated.
func (s *SQLStore) DB() *gorm.DB {
	return s.db
}

// Driver returns the driver name the store was opened with.
func (s *SQLStore) Driver() string {
	return s.driver
}

// Exec runs a statement and returns the affected row count.
func (s *SQLStore) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	start := time.Now()
	result := s.db.WithContext(ctx).Exec(query, args...)
	err := s.table.Translate("exec", s.driver, result.Error)
	s.inst.observe("exec", start, err)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected, nil
}

// HealthCheck pings the database and reports pool usage.
func (s *SQLStore) HealthCheck(ctx context.Context) (healthx.Status, error) {
	start := time.Now()
	err := s.table.Translate("health_check", s.driver, ping(ctx, s.db))
	s.inst.observe("health_check", start, err)
	if err != nil {
		return healthx.Unhealthy(time.Since(start), err), nil
	}

	status := healthx.Healthy(time.Since(start))
	if sqlDB, err := s.db.DB(); err == nil {
		st := sqlDB.Stats()
		s.inst.pool(obsx.PoolStats{Used: st.InUse, Idle: st.Idle, Max: st.MaxOpenConnections})
		status.Details = map[string]string{
			"driver":   s.driver,
			"open":     fmt.Sprint(st.OpenConnections),
			"in_use":   fmt.Sprint(st.InUse),
			"max_open": fmt.Sprint(st.MaxOpenConnections),
		}
	}
	return status, nil
}

// Close closes the connection pool.
func (s *SQLStore) Close(context.Context) error {
	start := time.Now()
	var err error
	if sqlDB, dbErr := s.db.DB(); dbErr != nil {
		err = dbErr
	} else {
		err = sqlDB.Close()
	}
	err = s.table.Translate("close", s.driver, err)
	s.inst.observe("close", start, err)
	return err
}

func ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("database connection is nil")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func closeGORM(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// SQLTable classifies failures from GORM and the mysql and postgres drivers.
func SQLTable() faultx.Table {
	t := faultx.SQLTable()
	t.Classifiers = []faultx.Classifier{classifyGORM, classifyMySQL, classifyPostgres}
	return t
}

func classifyGORM(err error) (faultx.Kind, bool) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return faultx.KindNotFound, true
	case errors.Is(err, gorm.ErrInvalidData), errors.Is(err, gorm.ErrInvalidField),
		errors.Is(err, gorm.ErrPrimaryKeyRequired), errors.Is(err, gorm.ErrMissingWhereClause):
		return faultx.KindValidation, true
	}
	return "", false
}

// MySQL server error numbers.
var (
	mysqlAuth      = []uint16{1044, 1045, 1142, 1143, 1227, 1698}
	mysqlNotFound  = []uint16{1049, 1146}
	mysqlTransient = []uint16{1040, 1053, 1205, 1213, 1317, 2002, 2003, 2006, 2013}
)

func classifyMySQL(err error) (faultx.Kind, bool) {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		if errors.Is(err, mysql.ErrInvalidConn) {
			return faultx.KindTransient, true
		}
		return "", false
	}
	switch {
	case slices.Contains(mysqlAuth, myErr.Number):
		return faultx.KindAuth, true
	case slices.Contains(mysqlNotFound, myErr.Number):
		return faultx.KindNotFound, true
	case slices.Contains(mysqlTransient, myErr.Number):
		return faultx.KindTransient, true
	}
	return faultx.KindOperation, true
}

// sqlstateKind maps a SQLSTATE to a kind by exact code, then by class.
func sqlstateKind(code string) faultx.Kind {
	switch code {
	case "42501":
		return faultx.KindAuth
	case "3D000", "42P01", "3F000":
		return faultx.KindNotFound
	case "40001", "40P01", "55P03", "57P01", "57P02", "57P03", "57014":
		return faultx.KindTransient
	}
	switch {
	case strings.HasPrefix(code, "28"):
		return faultx.KindAuth
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "53"):
		return faultx.KindTransient
	}
	return faultx.KindOperation
}

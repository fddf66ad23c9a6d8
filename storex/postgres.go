package storex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"go.eggybyte.com/orchid/faultx"
	"go.eggybyte.com/orchid/healthx"
	"go.eggybyte.com/orchid/obsx"
)

// PostgresPool is a pgx connection pool with translated errors.
type PostgresPool struct {
	pool     *pgxpool.Pool
	table    faultx.Table
	inst     instrument
	minConns int32
}

// NewPostgresPool parses s.DSN, opens the pool and pings it under the retry
// policy. A DSN that does not parse is a validation error and is not retried.
func NewPostgresPool(ctx context.Context, s PostgresSettings, opts ...Option) (*PostgresPool, error) {
	o := newOptions("postgres", opts)
	table := PostgresTable()

	cfg, err := pgxpool.ParseConfig(s.DSN)
	if err != nil {
		return nil, faultx.Validation(faultx.DomainSQL, "connect", fmt.Sprintf("invalid postgres DSN: %v", err))
	}
	if s.MaxConns > 0 {
		cfg.MaxConns = s.MaxConns
	}
	if s.MinConns > 0 {
		cfg.MinConns = s.MinConns
	}
	if s.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = s.MaxConnLifetime
	}
	if s.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = s.MaxConnIdleTime
	}
	if s.HealthCheckPeriod > 0 {
		cfg.HealthCheckPeriod = s.HealthCheckPeriod
	}
	if s.ConnectTimeout > 0 {
		cfg.ConnConfig.ConnectTimeout = s.ConnectTimeout
	}

	var pool *pgxpool.Pool
	err = connect(ctx, o, s.Retry, func(ctx context.Context) error {
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return table.Translate("connect", cfg.ConnConfig.Database, err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return table.Translate("connect", cfg.ConnConfig.Database, err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &PostgresPool{
		pool:     pool,
		table:    table,
		inst:     instrument{resource: o.name, recorder: o.recorder},
		minConns: cfg.MinConns,
	}, nil
}

// Pool returns the underlying pgx pool. Errors from it are not translated.
func (p *PostgresPool) Pool() *pgxpool.Pool {
	return p.pool
}

// Exec runs a statement and returns the affected row count.
func (p *PostgresPool) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	start := time.Now()
	tag, err := p.pool.Exec(ctx, sql, args...)
	err = p.table.Translate("exec", "", err)
	p.inst.observe("exec", start, err)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// QueryRow runs a single-row query and scans it into dest.
// No rows is reported as faultx.ErrNotFound.
func (p *PostgresPool) QueryRow(ctx context.Context, sql string, args []any, dest ...any) error {
	start := time.Now()
	err := p.pool.QueryRow(ctx, sql, args...).Scan(dest...)
	err = p.table.Translate("query_row", "", err)
	p.inst.observe("query_row", start, err)
	return err
}

// Stats returns a pool usage snapshot.
func (p *PostgresPool) Stats() obsx.PoolStats {
	st := p.pool.Stat()
	return obsx.PoolStats{
		Used: int(st.AcquiredConns()),
		Idle: int(st.IdleConns()),
		Min:  int(p.minConns),
		Max:  int(st.MaxConns()),
	}
}

// HealthCheck pings the pool and records a pool usage snapshot.
func (p *PostgresPool) HealthCheck(ctx context.Context) (healthx.Status, error) {
	start := time.Now()
	err := p.table.Translate("health_check", "", p.pool.Ping(ctx))
	p.inst.observe("health_check", start, err)
	if err != nil {
		return healthx.Unhealthy(time.Since(start), err), nil
	}

	stats := p.Stats()
	p.inst.pool(stats)
	status := healthx.Healthy(time.Since(start))
	status.Details = map[string]string{
		"pool_used": fmt.Sprint(stats.Used),
		"pool_idle": fmt.Sprint(stats.Idle),
		"pool_max":  fmt.Sprint(stats.Max),
	}
	return status, nil
}

// Close closes the pool. It waits for acquired connections to be released.
func (p *PostgresPool) Close(context.Context) error {
	start := time.Now()
	p.pool.Close()
	p.inst.observe("close", start, nil)
	return nil
}

// PostgresTable classifies pgx failures by SQLSTATE.
func PostgresTable() faultx.Table {
	t := faultx.SQLTable()
	t.Classifiers = []faultx.Classifier{classifyPostgres}
	return t
}

func classifyPostgres(err error) (faultx.Kind, bool) {
	if errors.Is(err, pgx.ErrNoRows) {
		return faultx.KindNotFound, true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return sqlstateKind(pgErr.Code), true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return faultx.KindTransient, true
	}
	if pgconn.Timeout(err) {
		return faultx.KindTransient, true
	}
	return "", false
}

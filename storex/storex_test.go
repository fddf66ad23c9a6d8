package storex

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"go.eggybyte.com/orchid/faultx"
	"go.eggybyte.com/orchid/obsx"
	"go.eggybyte.com/orchid/retryx"
)

type call struct {
	resource  string
	operation string
	success   bool
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []call
	errs  []string
}

func (r *fakeRecorder) ObserveOperation(resource, operation string, _ time.Duration, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{resource, operation, success})
}

func (r *fakeRecorder) ObserveError(_, _, errType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, errType)
}

func (r *fakeRecorder) ObservePoolUsage(string, obsx.PoolStats) {}

type replyError string

func (e replyError) Error() string { return string(e) }
func (replyError) RedisError()     {}

func TestSQLTable(t *testing.T) {
	table := SQLTable()
	tests := []struct {
		name string
		err  error
		want faultx.Kind
	}{
		{"record not found", gorm.ErrRecordNotFound, faultx.KindNotFound},
		{"missing where", gorm.ErrMissingWhereClause, faultx.KindValidation},
		{"mysql access denied", &gomysql.MySQLError{Number: 1045}, faultx.KindAuth},
		{"mysql unknown table", &gomysql.MySQLError{Number: 1146}, faultx.KindNotFound},
		{"mysql deadlock", &gomysql.MySQLError{Number: 1213}, faultx.KindTransient},
		{"mysql duplicate", &gomysql.MySQLError{Number: 1062}, faultx.KindOperation},
		{"mysql bad conn", gomysql.ErrInvalidConn, faultx.KindTransient},
		{"pg auth", &pgconn.PgError{Code: "28P01"}, faultx.KindAuth},
		{"pg privilege", &pgconn.PgError{Code: "42501"}, faultx.KindAuth},
		{"pg undefined table", &pgconn.PgError{Code: "42P01"}, faultx.KindNotFound},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, faultx.KindTransient},
		{"pg connection class", &pgconn.PgError{Code: "08006"}, faultx.KindTransient},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, faultx.KindOperation},
		{"deadline", context.DeadlineExceeded, faultx.KindTransient},
		{"unknown", errors.New("boom"), faultx.KindOperation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Classify(tt.err))
		})
	}
}

func TestPostgresTable(t *testing.T) {
	table := PostgresTable()
	assert.Equal(t, faultx.KindNotFound, table.Classify(pgx.ErrNoRows))
	assert.Equal(t, faultx.KindTransient, table.Classify(&pgconn.PgError{Code: "57P01"}))

	err := table.Translate("query_row", "users", pgx.ErrNoRows)
	assert.ErrorIs(t, err, faultx.ErrNotFound)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestRedisTable(t *testing.T) {
	table := RedisTable()
	tests := []struct {
		name string
		err  error
		want faultx.Kind
	}{
		{"nil reply", redis.Nil, faultx.KindNotFound},
		{"closed client", redis.ErrClosed, faultx.KindOperation},
		{"wrong password", replyError("WRONGPASS invalid username-password pair"), faultx.KindAuth},
		{"loading", replyError("LOADING Redis is loading the dataset in memory"), faultx.KindTransient},
		{"generic", replyError("ERR unknown command"), faultx.KindOperation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Classify(tt.err))
		})
	}
}

func TestBlobStoreTable(t *testing.T) {
	table := BlobStoreTable()
	tests := []struct {
		name string
		err  error
		want faultx.Kind
	}{
		{"no such key", &smithy.GenericAPIError{Code: "NoSuchKey"}, faultx.KindNotFound},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, faultx.KindAuth},
		{"slow down", &smithy.GenericAPIError{Code: "SlowDown"}, faultx.KindTransient},
		{"server fault", &smithy.GenericAPIError{Code: "Mystery", Fault: smithy.FaultServer}, faultx.KindTransient},
		{"client fault", &smithy.GenericAPIError{Code: "Mystery", Fault: smithy.FaultClient}, faultx.KindOperation},
		{"canceled", &smithy.CanceledError{Err: context.Canceled}, faultx.KindTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Classify(tt.err))
		})
	}
}

func TestNormalizePrefix(t *testing.T) {
	assert.Equal(t, "", NormalizePrefix(""))
	assert.Equal(t, "orders:", NormalizePrefix("orders"))
	assert.Equal(t, "orders:", NormalizePrefix("orders:"))
}

func TestResolveBlobSettings(t *testing.T) {
	creds := BlobSettings{Bucket: "media", AccessKey: "ak", SecretKey: "sk"}

	t.Run("minio requires endpoint", func(t *testing.T) {
		_, err := resolveBlobSettings(ProfileMinIO, creds)
		assert.Equal(t, faultx.KindValidation, faultx.KindOf(err))
	})

	t.Run("minio defaults", func(t *testing.T) {
		s := creds
		s.Endpoint = "localhost:9000"
		got, err := resolveBlobSettings(ProfileMinIO, s)
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:9000", got.Endpoint)
		assert.True(t, got.UsePathStyle)
		assert.Equal(t, "us-east-1", got.Region)
	})

	t.Run("r2 derives endpoint", func(t *testing.T) {
		s := creds
		s.AccountID = "abc123"
		got, err := resolveBlobSettings(ProfileR2, s)
		require.NoError(t, err)
		assert.Equal(t, "https://abc123.r2.cloudflarestorage.com", got.Endpoint)
		assert.Equal(t, "auto", got.Region)
	})

	t.Run("r2 requires account", func(t *testing.T) {
		_, err := resolveBlobSettings(ProfileR2, creds)
		assert.Equal(t, faultx.KindValidation, faultx.KindOf(err))
	})

	t.Run("s3 allows default credentials", func(t *testing.T) {
		got, err := resolveBlobSettings(ProfileS3, BlobSettings{Bucket: "media", Region: "eu-west-1"})
		require.NoError(t, err)
		assert.Equal(t, "eu-west-1", got.Region)
		assert.Empty(t, got.Endpoint)
	})

	t.Run("half credentials", func(t *testing.T) {
		_, err := resolveBlobSettings(ProfileS3, BlobSettings{Bucket: "media", AccessKey: "ak"})
		assert.Equal(t, faultx.KindValidation, faultx.KindOf(err))
	})

	t.Run("missing bucket", func(t *testing.T) {
		_, err := resolveBlobSettings(ProfileS3, BlobSettings{})
		assert.Equal(t, faultx.KindValidation, faultx.KindOf(err))
	})

	t.Run("unknown profile", func(t *testing.T) {
		_, err := resolveBlobSettings("gcs", creds)
		assert.Equal(t, faultx.KindValidation, faultx.KindOf(err))
	})
}

func TestConstructorsRejectInvalidSettings(t *testing.T) {
	ctx := context.Background()

	_, err := NewSQLStore(ctx, "oracle", SQLSettings{DSN: "x"})
	assert.Equal(t, faultx.KindValidation, faultx.KindOf(err))

	_, err = NewSQLStore(ctx, "mysql", SQLSettings{})
	assert.Equal(t, faultx.KindValidation, faultx.KindOf(err))

	_, err = NewPostgresPool(ctx, PostgresSettings{DSN: "postgres://user@localhost:notaport/db"})
	assert.Equal(t, faultx.KindValidation, faultx.KindOf(err))

	_, err = NewRedisCache(ctx, RedisSettings{URL: "ftp://localhost:6379"})
	assert.Equal(t, faultx.KindValidation, faultx.KindOf(err))

	_, err = NewBlobStore(ctx, ProfileMinIO, BlobSettings{Bucket: "media"})
	assert.Equal(t, faultx.KindValidation, faultx.KindOf(err))
}

func TestRedisCacheUnreachable(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}

	_, err := NewRedisCache(ctx, RedisSettings{
		URL:         "redis://127.0.0.1:1/0",
		DialTimeout: 200 * time.Millisecond,
		Retry:       retryx.Settings{Enabled: true, MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	}, WithRecorder(rec), WithName("cache"))
	require.Error(t, err)
	assert.Equal(t, faultx.KindTransient, faultx.KindOf(err))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotEmpty(t, rec.calls)
	last := rec.calls[len(rec.calls)-1]
	assert.Equal(t, call{"cache", "connect", false}, last)
	assert.Contains(t, rec.errs, "transient")
}

func TestRedisCacheHealthCheckAndClose(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	cache := NewRedisCacheFromClient(client, RedisSettings{KeyPrefix: "orders"}, WithRecorder(rec))

	assert.Equal(t, "orders:42", cache.Key("42"))

	status, err := cache.HealthCheck(ctx)
	require.NoError(t, err)
	assert.False(t, status.Healthy)
	assert.Equal(t, "transient", status.Details["error_type"])

	require.NoError(t, cache.Close(ctx))
	require.NoError(t, cache.Close(ctx))
}

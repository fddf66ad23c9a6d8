package storex

import (
	"time"

	"go.eggybyte.com/orchid/retryx"
)

// Keys below are relative; the settings section that holds them supplies the
// prefix (MYSQL_DSN, REDIS_URL, R2_BUCKET ...).

// SQLSettings configures a GORM-backed relational store.
type SQLSettings struct {
	DSN             string          `env:"DSN" yaml:"dsn" validate:"required"`
	MaxOpenConns    int             `env:"MAX_OPEN_CONNS" default:"10" yaml:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int             `env:"MAX_IDLE_CONNS" default:"5" yaml:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration   `env:"CONN_MAX_LIFETIME" default:"1h" yaml:"conn_max_lifetime"`
	SlowQuery       time.Duration   `env:"SLOW_QUERY" default:"200ms" yaml:"slow_query"`
	Retry           retryx.Settings `yaml:"retry"`
}

// PostgresSettings configures a pgx connection pool.
type PostgresSettings struct {
	DSN               string          `env:"DSN" yaml:"dsn" validate:"required"`
	MinConns          int32           `env:"MIN_CONNS" default:"1" yaml:"min_conns" validate:"gte=0"`
	MaxConns          int32           `env:"MAX_CONNS" default:"10" yaml:"max_conns" validate:"gte=1,gtefield=MinConns"`
	MaxConnLifetime   time.Duration   `env:"MAX_CONN_LIFETIME" default:"1h" yaml:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration   `env:"MAX_CONN_IDLE_TIME" default:"30m" yaml:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration   `env:"HEALTH_CHECK_PERIOD" default:"1m" yaml:"health_check_period"`
	ConnectTimeout    time.Duration   `env:"CONNECT_TIMEOUT" default:"10s" yaml:"connect_timeout"`
	Retry             retryx.Settings `yaml:"retry"`
}

// RedisSettings configures a go-redis client.
type RedisSettings struct {
	URL          string          `env:"URL" yaml:"url" validate:"required"`
	KeyPrefix    string          `env:"KEY_PREFIX" yaml:"key_prefix"`
	DefaultTTL   time.Duration   `env:"DEFAULT_TTL" yaml:"default_ttl" validate:"gte=0"`
	PoolSize     int             `env:"POOL_SIZE" default:"10" yaml:"pool_size" validate:"gte=1"`
	DialTimeout  time.Duration   `env:"DIAL_TIMEOUT" default:"5s" yaml:"dial_timeout"`
	ReadTimeout  time.Duration   `env:"READ_TIMEOUT" default:"3s" yaml:"read_timeout"`
	WriteTimeout time.Duration   `env:"WRITE_TIMEOUT" default:"3s" yaml:"write_timeout"`
	Retry        retryx.Settings `yaml:"retry"`
}

// BlobSettings configures an S3-compatible object store. Which fields matter
// depends on the Profile the store is opened with.
type BlobSettings struct {
	Endpoint     string          `env:"ENDPOINT" yaml:"endpoint"`
	Region       string          `env:"REGION" yaml:"region"`
	AccountID    string          `env:"ACCOUNT_ID" yaml:"account_id"`
	AccessKey    string          `env:"ACCESS_KEY" yaml:"access_key"`
	SecretKey    string          `env:"SECRET_KEY" yaml:"secret_key"`
	SessionToken string          `env:"SESSION_TOKEN" yaml:"session_token"`
	Bucket       string          `env:"BUCKET" yaml:"bucket" validate:"required"`
	UsePathStyle bool            `env:"USE_PATH_STYLE" yaml:"use_path_style"`
	CreateBucket bool            `env:"CREATE_BUCKET" yaml:"create_bucket"`
	Retry        retryx.Settings `yaml:"retry"`
}

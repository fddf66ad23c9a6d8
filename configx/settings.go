package configx

import (
	"reflect"
	"time"

	"go.eggybyte.com/orchid/obsx"
	"go.eggybyte.com/orchid/storex"
)

// AppSettings is the process-level configuration read by cmd/orchid.
type AppSettings struct {
	ServiceName     string        `env:"SERVICE_NAME" default:"orchid" yaml:"service_name" validate:"required"`
	Version         string        `env:"SERVICE_VERSION" default:"dev" yaml:"version"`
	Env             string        `env:"APP_ENV" default:"dev" yaml:"env" validate:"oneof=dev test staging prod"`
	LogLevel        string        `env:"LOG_LEVEL" default:"info" yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat       string        `env:"LOG_FORMAT" default:"logfmt" yaml:"log_format" validate:"oneof=logfmt json"`
	LogColor        bool          `env:"LOG_COLOR" yaml:"log_color"`
	HealthAddr      string        `env:"HEALTH_ADDR" default:":8081" yaml:"health_addr"`
	MetricsAddr     string        `env:"METRICS_ADDR" default:":9091" yaml:"metrics_addr"`
	HealthTimeout   time.Duration `env:"HEALTH_TIMEOUT" default:"5s" yaml:"health_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"15s" yaml:"shutdown_timeout" validate:"gt=0"`

	// Required names resources that must exist once startup finishes.
	Required []string `env:"REQUIRED_RESOURCES" yaml:"required_resources"`

	Observability obsx.Settings `yaml:"observability"`
	Resources     Resources     `yaml:"resources"`
}

// Resources holds one optional section per built-in resource. A section is
// non-nil only when at least one of its keys is configured, and only non-nil
// sections are constructed at startup. Field names match the factory
// registrations in runtimex.
type Resources struct {
	SQLite   *storex.SQLSettings      `envPrefix:"SQLITE_" yaml:"sqlite"`
	MySQL    *storex.SQLSettings      `envPrefix:"MYSQL_" yaml:"mysql"`
	Postgres *storex.PostgresSettings `envPrefix:"POSTGRES_" yaml:"postgres"`
	Redis    *storex.RedisSettings    `envPrefix:"REDIS_" yaml:"redis"`
	MinIO    *storex.BlobSettings     `envPrefix:"MINIO_" yaml:"minio"`
	R2       *storex.BlobSettings     `envPrefix:"R2_" yaml:"r2"`
	S3       *storex.BlobSettings     `envPrefix:"S3_" yaml:"s3"`
}

// Configured lists the field names of the sections that are set.
func (r Resources) Configured() []string {
	v := reflect.ValueOf(r)
	var names []string
	for i := 0; i < v.NumField(); i++ {
		if !v.Field(i).IsNil() {
			names = append(names, v.Type().Field(i).Name)
		}
	}
	return names
}

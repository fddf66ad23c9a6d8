package runtimex

import (
	"context"

	"go.eggybyte.com/orchid/core/errors"
	"go.eggybyte.com/orchid/storex"
)

// builtinFactories binds the storex adapters to the configx.Resources fields.
func builtinFactories() []NamedFactory {
	return []NamedFactory{
		{Name: "sqlite", Factory: Factory{Field: "SQLite", Build: sqlFactory("sqlite")}},
		{Name: "mysql", Factory: Factory{Field: "MySQL", Build: sqlFactory("mysql")}},
		{Name: "postgres", Factory: Factory{Field: "Postgres", Build: adapterFactory(storex.NewPostgresPool)}},
		{Name: "redis", Factory: Factory{Field: "Redis", Build: adapterFactory(storex.NewRedisCache)}},
		{Name: "minio", Factory: Factory{Field: "MinIO", Build: blobFactory(storex.ProfileMinIO)}},
		{Name: "r2", Factory: Factory{Field: "R2", Build: blobFactory(storex.ProfileR2)}},
		{Name: "s3", Factory: Factory{Field: "S3", Build: blobFactory(storex.ProfileS3)}},
	}
}

func adapterFactory[S, R any](open func(context.Context, S, ...storex.Option) (R, error)) BuildFunc {
	return func(ctx context.Context, section any, env BuildEnv) (any, error) {
		s, err := sectionAs[S](env.Name, section)
		if err != nil {
			return nil, err
		}
		r, err := open(ctx, s, env.storeOptions()...)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

func sqlFactory(driver string) BuildFunc {
	return adapterFactory(func(ctx context.Context, s storex.SQLSettings, opts ...storex.Option) (*storex.SQLStore, error) {
		return storex.NewSQLStore(ctx, driver, s, opts...)
	})
}

func blobFactory(profile storex.Profile) BuildFunc {
	return adapterFactory(func(ctx context.Context, s storex.BlobSettings, opts ...storex.Option) (*storex.BlobStore, error) {
		return storex.NewBlobStore(ctx, profile, s, opts...)
	})
}

// sectionAs accepts a section as S or *S.
func sectionAs[S any](name string, section any) (S, error) {
	switch s := section.(type) {
	case *S:
		if s != nil {
			return *s, nil
		}
	case S:
		return s, nil
	}
	var zero S
	return zero, errors.Newf(errors.CodeInvalidArgument, "resource %s: unexpected settings type %T", name, section)
}

func (e BuildEnv) storeOptions() []storex.Option {
	return []storex.Option{
		storex.WithName(e.Name),
		storex.WithLogger(e.Logger),
		storex.WithRecorder(e.Recorder),
	}
}

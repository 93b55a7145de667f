// Package drivers opens the storage.Store selected by the configuration.
package drivers

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/storage"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/storage/database"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/storage/filestore"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/storage/inmem"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/storage/redisstore"
)

const (
	Memory   = "memory"
	File     = "file"
	Redis    = "redis"
	Postgres = "postgres"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open returns the configured store and what must be closed with it.
func Open(ctx context.Context, conf *core.Config) (storage.Store, io.Closer, error) {
	sc := conf.Storage
	switch sc.Driver {
	case "", Memory:
		return inmem.NewStore(), nopCloser{}, nil

	case File:
		st, err := filestore.NewStore(sc.Path, conf.SecretKey)
		if err != nil {
			return nil, nil, err
		}
		return st, nopCloser{}, nil

	case Redis:
		client, err := redisstore.NewClient(redisstore.Options{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			DB:       sc.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		return redisstore.NewStore(client, sc.Namespace, 0), client, nil

	case Postgres:
		db, err := database.Open(sc.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err = database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return database.NewStore(db, sc.Namespace), db, nil
	}
	return nil, nil, errors.Errorf("unknown storage driver %q", sc.Driver)
}

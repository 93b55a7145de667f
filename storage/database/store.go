package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/storage"
)

type store struct {
	db        *sqlx.DB
	namespace string
}

var _ storage.Store = (*store)(nil)

func NewStore(db *sqlx.DB, namespace string) storage.Store {
	if namespace == "" {
		namespace = "default"
	}
	return &store{db: db, namespace: namespace}
}

func (s *store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value,
		`SELECT value FROM portal_state WHERE namespace = $1 AND key = $2`, s.namespace, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", errors.Wrap(err, "selecting state")
	}
	return value, nil
}

func (s *store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO portal_state (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		s.namespace, key, value)
	return errors.Wrap(err, "upserting state")
}

func (s *store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM portal_state WHERE namespace = $1 AND key = ANY($2)`, s.namespace, pq.Array(keys))
	return errors.Wrap(err, "deleting state")
}

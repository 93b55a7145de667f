package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/storage"
)

type Options struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
	// TTL expires every key; zero keeps them until deleted.
	TTL time.Duration
}

type store struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
}

var _ storage.Store = (*store)(nil)

// NewClient connects to a single redis node and pings it.
func NewClient(opts Options) (*redis.Client, error) {
	if opts.Addr == "" {
		return nil, errors.New("no redis address provided")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "connecting to redis")
	}
	return client, nil
}

func NewStore(client redis.UniversalClient, namespace string, ttl time.Duration) storage.Store {
	if namespace == "" {
		namespace = "default"
	}
	return &store{client: client, namespace: namespace, ttl: ttl}
}

func (s *store) key(k string) string {
	return fmt.Sprintf("thuto:%s:%s", s.namespace, k)
}

func (s *store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", storage.ErrNotFound
		}
		return "", errors.Wrap(err, "redis get")
	}
	return v, nil
}

func (s *store) Set(ctx context.Context, key, value string) error {
	return errors.Wrap(s.client.Set(ctx, s.key(key), value, s.ttl).Err(), "redis set")
}

func (s *store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	nsKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		nsKeys = append(nsKeys, s.key(k))
	}
	return errors.Wrap(s.client.Del(ctx, nsKeys...).Err(), "redis del")
}

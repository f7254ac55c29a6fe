package snapshot

import (
	"context"
	"errors"

	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type redisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore keeps the snapshot under a single key. dsn is a redis:// url.
func NewRedisStore(ctx context.Context, dsn, key string) (Store, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		zap.L().With(zap.Error(err)).Error("Snapshot: Failed to connect to redis")
		_ = client.Close()
		return nil, err
	}

	return NewRedisStoreWithClient(client, key), nil
}

func NewRedisStoreWithClient(client *redis.Client, key string) Store {
	return &redisStore{client, "snapshot:" + key}
}

func (r *redisStore) Save(ctx context.Context, s ledger.Snapshot) error {
	raw, err := encode(s)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, r.key, raw, 0).Err()
}

func (r *redisStore) Load(ctx context.Context) (*ledger.Snapshot, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}

	return decode(raw)
}

func (r *redisStore) Close() error {
	return r.client.Close()
}

// Package snapshot persists the in-memory ledger so a restarted daemon resumes
// from the last committed version instead of an empty ledger.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ZilDuck/marketplace-settlement/internal/config"
	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"go.uber.org/zap"
)

var (
	ErrNoSnapshot      = errors.New("no snapshot stored")
	ErrUnknownDriver   = errors.New("unknown ledger store driver")
	ErrMissingStoreDsn = errors.New("ledger store dsn is required")
)

const (
	RedisDriver    = "redis"
	SqliteDriver   = "sqlite"
	PostgresDriver = "postgres"
)

type Store interface {
	Save(ctx context.Context, s ledger.Snapshot) error
	Load(ctx context.Context) (*ledger.Snapshot, error)
	Close() error
}

func NewStore(ctx context.Context, cfg config.SnapshotConfig) (Store, error) {
	if cfg.Dsn == "" {
		return nil, ErrMissingStoreDsn
	}

	zap.L().With(zap.String("driver", cfg.Driver), zap.String("key", cfg.Key)).Info("Snapshot: Opening store")

	switch cfg.Driver {
	case RedisDriver:
		return NewRedisStore(ctx, cfg.Dsn, cfg.Key)
	case SqliteDriver:
		return NewSqliteStore(ctx, cfg.Dsn, cfg.Key)
	case PostgresDriver:
		return NewPostgresStore(ctx, cfg.Dsn, cfg.Key)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
}

func encode(s ledger.Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

func decode(raw []byte) (*ledger.Snapshot, error) {
	s := &ledger.Snapshot{}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, err
	}
	return s, nil
}

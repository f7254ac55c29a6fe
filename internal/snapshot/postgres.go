package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type postgresStore struct {
	pool *pgxpool.Pool
	key  string
}

func NewPostgresStore(ctx context.Context, dsn, key string) (Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		zap.L().With(zap.Error(err)).Error("Snapshot: Failed to connect to postgres")
		pool.Close()
		return nil, err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_snapshot (
			name TEXT PRIMARY KEY,
			version BIGINT NOT NULL,
			payload JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create snapshot table: %w", err)
	}

	return &postgresStore{pool, key}, nil
}

func (p *postgresStore) Save(ctx context.Context, s ledger.Snapshot) error {
	raw, err := encode(s)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO ledger_snapshot (name, version, payload, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE SET version = EXCLUDED.version, payload = EXCLUDED.payload, updated_at = now()
		WHERE EXCLUDED.version >= ledger_snapshot.version`,
		p.key, int64(s.Version), raw,
	)
	return err
}

func (p *postgresStore) Load(ctx context.Context) (*ledger.Snapshot, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, "SELECT payload FROM ledger_snapshot WHERE name = $1", p.key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}

	return decode(raw)
}

func (p *postgresStore) Close() error {
	p.pool.Close()
	return nil
}

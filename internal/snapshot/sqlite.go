package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	_ "github.com/glebarez/go-sqlite"
)

type sqliteStore struct {
	db  *sql.DB
	key string
}

func NewSqliteStore(ctx context.Context, path, key string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_snapshot (
			name TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			payload BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create snapshot table: %w", err)
	}

	return &sqliteStore{db, key}, nil
}

// Save never replaces a newer snapshot with an older one.
func (s *sqliteStore) Save(ctx context.Context, snap ledger.Snapshot) error {
	raw, err := encode(snap)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ledger_snapshot (name, version, payload, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET version=excluded.version, payload=excluded.payload, updated_at=excluded.updated_at
		WHERE excluded.version >= ledger_snapshot.version`,
		s.key, int64(snap.Version), raw, time.Now().Unix(),
	)
	return err
}

func (s *sqliteStore) Load(ctx context.Context) (*ledger.Snapshot, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM ledger_snapshot WHERE name = ?", s.key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}

	return decode(raw)
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

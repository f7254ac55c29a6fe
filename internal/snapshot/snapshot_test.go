package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZilDuck/marketplace-settlement/internal/config"
	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var programID = solana.MustPublicKeyFromBase58("uogw4oywo9nb4gyX6euzQgTHSkLLuiLc1FCEz4fpFHC")

func newSqliteStore(t *testing.T) Store {
	t.Helper()
	store, err := NewSqliteStore(context.Background(), filepath.Join(t.TempDir(), "ledger.db"), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewStoreRejectsUnknownDriver(t *testing.T) {
	_, err := NewStore(context.Background(), config.SnapshotConfig{Driver: "etcd", Dsn: "x"})
	require.ErrorIs(t, err, ErrUnknownDriver)

	_, err = NewStore(context.Background(), config.SnapshotConfig{Driver: SqliteDriver})
	require.ErrorIs(t, err, ErrMissingStoreDsn)
}

func TestSqliteLoadEmpty(t *testing.T) {
	_, err := newSqliteStore(t).Load(context.Background())
	require.ErrorIs(t, err, ErrNoSnapshot)
}

func TestSqliteKeepsNewestVersion(t *testing.T) {
	store := newSqliteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, ledger.Snapshot{ProgramID: programID, Version: 5}))
	require.NoError(t, store.Save(ctx, ledger.Snapshot{ProgramID: programID, Version: 3}))

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), snap.Version)
	assert.Equal(t, programID, snap.ProgramID)
}

func TestSnapshotterRoundTrip(t *testing.T) {
	store := newSqliteStore(t)
	ctx := context.Background()

	live := ledger.NewMemory(programID)
	holder := solana.NewWallet().PublicKey()
	require.NoError(t, live.Airdrop(holder, 1_000))

	require.NoError(t, NewSnapshotter(store, live).Save(ctx))

	restored := ledger.NewMemory(programID)
	found, err := NewSnapshotter(store, restored).Restore(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, live.Version(), restored.Version())

	_ = restored.View(ctx, func(tx ledger.Tx) error {
		assert.Equal(t, uint64(1_000), tx.NativeBalance(holder))
		return nil
	})
}

func TestSnapshotterSkipsUnchangedLedger(t *testing.T) {
	store := &countingStore{}
	live := ledger.NewMemory(programID)
	s := NewSnapshotter(store, live)

	require.NoError(t, s.Save(context.Background()))
	assert.Equal(t, 0, store.saves)

	require.NoError(t, live.Airdrop(solana.NewWallet().PublicKey(), 1))
	require.NoError(t, s.Save(context.Background()))
	require.NoError(t, s.Save(context.Background()))
	assert.Equal(t, 1, store.saves)
}

func TestSnapshotterRunSavesOnShutdown(t *testing.T) {
	store := &countingStore{}
	live := ledger.NewMemory(programID)
	require.NoError(t, live.Airdrop(solana.NewWallet().PublicKey(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewSnapshotter(store, live).Run(ctx, time.Hour)
		close(done)
	}()
	cancel()
	<-done

	assert.Equal(t, 1, store.saves)
}

func TestRestoreWithNothingStored(t *testing.T) {
	found, err := NewSnapshotter(newSqliteStore(t), ledger.NewMemory(programID)).Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore(t *testing.T) {
	dsn := os.Getenv("TEST_REDIS_URL")
	if dsn == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	testStore(t, func() (Store, error) { return NewRedisStore(context.Background(), dsn, t.Name()) })
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	testStore(t, func() (Store, error) { return NewPostgresStore(context.Background(), dsn, t.Name()) })
}

func testStore(t *testing.T, open func() (Store, error)) {
	store, err := open()
	require.NoError(t, err)
	defer store.Close()

	live := ledger.NewMemory(programID)
	require.NoError(t, live.Airdrop(solana.NewWallet().PublicKey(), 7))
	require.NoError(t, store.Save(context.Background(), live.Snapshot()))

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, live.Snapshot(), *snap)
}

type countingStore struct {
	saves int
	last  *ledger.Snapshot
}

func (c *countingStore) Save(_ context.Context, s ledger.Snapshot) error {
	c.saves++
	c.last = &s
	return nil
}

func (c *countingStore) Load(context.Context) (*ledger.Snapshot, error) {
	if c.last == nil {
		return nil, ErrNoSnapshot
	}
	return c.last, nil
}

func (c *countingStore) Close() error {
	return nil
}

package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/ZilDuck/marketplace-settlement/internal/metrics"
	"go.uber.org/zap"
)

const saveTimeout = 10 * time.Second

type Source interface {
	Version() uint64
	Snapshot() ledger.Snapshot
	Restore(s ledger.Snapshot) error
}

type Snapshotter struct {
	store  Store
	source Source
	saved  uint64
}

func NewSnapshotter(store Store, source Source) *Snapshotter {
	return &Snapshotter{store: store, source: source}
}

// Restore loads the stored snapshot into the source. It reports false when
// nothing has been stored yet.
func (s *Snapshotter) Restore(ctx context.Context) (bool, error) {
	snap, err := s.store.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		zap.L().Info("Snapshot: Nothing to restore")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := s.source.Restore(*snap); err != nil {
		return false, err
	}
	s.saved = snap.Version

	return true, nil
}

// Save writes the current ledger when it has moved since the last save.
func (s *Snapshotter) Save(ctx context.Context) error {
	if s.source.Version() == s.saved {
		return nil
	}

	snap := s.source.Snapshot()
	if err := s.store.Save(ctx, snap); err != nil {
		metrics.SnapshotsSaved.WithLabelValues("failed").Inc()
		zap.L().With(zap.Error(err), zap.Uint64("version", snap.Version)).Error("Snapshot: Failed to save")
		return err
	}

	s.saved = snap.Version
	metrics.SnapshotsSaved.WithLabelValues("saved").Inc()
	metrics.SnapshotVersion.Set(float64(snap.Version))
	zap.L().With(zap.Uint64("version", snap.Version)).Debug("Snapshot: Saved")

	return nil
}

// Run saves on every tick and once more when ctx ends.
func (s *Snapshotter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = s.Save(ctx)
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.Background(), saveTimeout)
			_ = s.Save(saveCtx)
			cancel()
			return
		}
	}
}

func (s *Snapshotter) Close() error {
	return s.store.Close()
}

package daemon

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ZilDuck/marketplace-settlement/internal/api"
	"github.com/ZilDuck/marketplace-settlement/internal/config"
	"github.com/ZilDuck/marketplace-settlement/internal/elastic_search"
	"github.com/ZilDuck/marketplace-settlement/internal/event"
	"github.com/ZilDuck/marketplace-settlement/internal/indexer"
	"github.com/ZilDuck/marketplace-settlement/internal/market"
	"github.com/ZilDuck/marketplace-settlement/internal/snapshot"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

const (
	flushInterval   = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

type Daemon struct {
	market    market.Service
	elastic   elastic_search.Index
	indexer   indexer.ActivityIndexer
	api       api.Server
	snapshots *snapshot.Snapshotter
	interval  time.Duration
}

func NewDaemon(
	market market.Service,
	elastic elastic_search.Index,
	indexer indexer.ActivityIndexer,
	api api.Server,
	snapshots *snapshot.Snapshotter,
	snapshotInterval time.Duration,
) *Daemon {
	return &Daemon{market, elastic, indexer, api, snapshots, snapshotInterval}
}

// Restore loads the last ledger snapshot, if a store is configured.
func (d *Daemon) Restore(ctx context.Context) error {
	if d.snapshots == nil {
		zap.L().Info("Daemon: No ledger store configured, starting from an empty ledger")
		return nil
	}

	found, err := d.snapshots.Restore(ctx)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("Daemon: Failed to restore ledger")
		return err
	}
	if found {
		zap.L().Info("Daemon: Ledger restored")
	}

	return nil
}

// Bootstrap initializes the market and its treasury from config. It is a
// no-op without an admin, and tolerates a market that already exists.
func (d *Daemon) Bootstrap(ctx context.Context, cfg config.MarketConfig) error {
	if cfg.Admin == "" {
		zap.L().Info("Daemon: No market admin configured, skipping bootstrap")
		return nil
	}

	req, mints, err := initializeRequest(cfg)
	if err != nil {
		return err
	}

	marketCfg, err := d.market.InitializeMarket(ctx, req)
	switch {
	case errors.Is(err, market.ErrAlreadyInitialized):
		zap.L().Info("Daemon: Market already initialized")
	case err != nil:
		return err
	default:
		zap.L().With(
			zap.String("admin", marketCfg.Admin.String()),
			zap.String("treasury", marketCfg.Treasury.String()),
		).Info("Daemon: Market initialized")
	}

	_, err = d.market.InitializeTreasury(ctx, market.InitializeTreasuryRequest{Initializer: req.Admin, Mints: mints})
	if errors.Is(err, market.ErrAlreadyInitialized) {
		return nil
	}

	return err
}

func initializeRequest(cfg config.MarketConfig) (market.InitializeMarketRequest, []solana.PublicKey, error) {
	admin, err := solana.PublicKeyFromBase58(cfg.Admin)
	if err != nil {
		return market.InitializeMarketRequest{}, nil, err
	}

	admins, err := parseKeys(cfg.MultisigAdmins)
	if err != nil {
		return market.InitializeMarketRequest{}, nil, err
	}
	mints, err := parseKeys(cfg.TreasuryMints)
	if err != nil {
		return market.InitializeMarketRequest{}, nil, err
	}

	return market.InitializeMarketRequest{
		Admin:             admin,
		MintFeeBps:        cfg.MintFeeBps,
		TradeFeeBps:       cfg.TradeFeeBps,
		RelistFeeBps:      cfg.RelistFeeBps,
		MultisigAdmins:    admins,
		MultisigThreshold: cfg.MultisigThreshold,
	}, mints, nil
}

func parseKeys(values []string) ([]solana.PublicKey, error) {
	keys := make([]solana.PublicKey, 0, len(values))
	for _, v := range values {
		key, err := solana.PublicKeyFromBase58(v)
		if err != nil {
			zap.L().With(zap.Error(err), zap.String("key", v)).Error("Daemon: Invalid key in config")
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Execute serves the API until ctx ends, then drains the server and flushes
// the activity index.
func (d *Daemon) Execute(ctx context.Context, port string) error {
	if d.elastic != nil {
		if err := d.elastic.InstallMappings(); err != nil {
			return err
		}
	}

	event.AddEventListener(event.ActionCommittedEvent, d.indexer.OnActionCommitted)
	event.AddEventListener(event.ListingUpdatedEvent, d.indexer.OnListingUpdated)
	event.AddEventListener(event.ActionCommittedEvent, d.api.OnActionCommitted)
	defer event.RemoveAllListeners()

	indexerCtx, stopIndexer := context.WithCancel(context.Background())
	indexerDone := make(chan struct{})
	go func() {
		d.indexer.Run(indexerCtx, flushInterval)
		close(indexerDone)
	}()

	snapshotDone := make(chan struct{})
	if d.snapshots != nil {
		go func() {
			d.snapshots.Run(indexerCtx, d.interval)
			close(snapshotDone)
		}()
	} else {
		close(snapshotDone)
	}

	server := &http.Server{Addr: ":" + port, Handler: d.api.Router()}
	serverErr := make(chan error, 1)
	go func() {
		zap.L().With(zap.String("port", port)).Info("Daemon: Serving API")
		serverErr <- server.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
		zap.L().Info("Daemon: Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err = server.Shutdown(shutdownCtx)
		cancel()
		d.api.Close()
	case err = <-serverErr:
		zap.L().With(zap.Error(err)).Error("Daemon: API server stopped")
	}

	stopIndexer()
	<-indexerDone
	<-snapshotDone

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

package di

import (
	"context"
	"time"

	"github.com/ZilDuck/marketplace-settlement/internal/api"
	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/ZilDuck/marketplace-settlement/internal/config"
	"github.com/ZilDuck/marketplace-settlement/internal/daemon"
	"github.com/ZilDuck/marketplace-settlement/internal/elastic_search"
	"github.com/ZilDuck/marketplace-settlement/internal/exchange"
	"github.com/ZilDuck/marketplace-settlement/internal/indexer"
	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/ZilDuck/marketplace-settlement/internal/market"
	"github.com/ZilDuck/marketplace-settlement/internal/messenger"
	"github.com/ZilDuck/marketplace-settlement/internal/repository"
	"github.com/ZilDuck/marketplace-settlement/internal/snapshot"
	"github.com/gagliardetto/solana-go"
	"github.com/sarulabs/di/v2"
	"go.uber.org/zap"
)

var Definitions = []di.Def{
	{
		Name: "ledger",
		Build: func(ctn di.Container) (interface{}, error) {
			programID, err := solana.PublicKeyFromBase58(config.Get().ProgramId)
			if err != nil {
				zap.L().With(zap.Error(err)).Error("Invalid program id")
				return nil, err
			}
			return ledger.NewMemory(programID), nil
		},
	},
	{
		Name: "deriver",
		Build: func(ctn di.Container) (interface{}, error) {
			l := ctn.Get("ledger").(*ledger.Memory)
			return authority.NewDeriver(l.ProgramID()), nil
		},
	},
	{
		Name: "exchange.registry",
		Build: func(ctn di.Container) (interface{}, error) {
			registry := exchange.NewRegistry()

			cfg := config.Get().Exchange
			if cfg.ProgramsFile != "" {
				programs, err := exchange.LoadPrograms(cfg.ProgramsFile)
				if err != nil {
					return nil, err
				}
				for _, p := range programs {
					registry.Register(p)
				}
			}
			if cfg.FixedQuoteProgram == "" || cfg.FixedQuotePool == "" {
				return registry, nil
			}

			id, err := solana.PublicKeyFromBase58(cfg.FixedQuoteProgram)
			if err != nil {
				return nil, err
			}
			pool, err := solana.PublicKeyFromBase58(cfg.FixedQuotePool)
			if err != nil {
				return nil, err
			}
			registry.Register(exchange.NewFixedQuote(id, pool))

			return registry, nil
		},
	},
	{
		Name: "market",
		Build: func(ctn di.Container) (interface{}, error) {
			return market.NewService(
				ctn.Get("ledger").(*ledger.Memory),
				ctn.Get("deriver").(authority.Deriver),
				ctn.Get("exchange.registry").(exchange.Registry),
				market.EnforceThreshold(config.Get().Market.EnforceThreshold),
			), nil
		},
	},
	{
		Name: "activity.indexer",
		Build: func(ctn di.Container) (interface{}, error) {
			elastic, _ := optional(ctn, "elastic").(elastic_search.Index)
			msg, _ := optional(ctn, "messenger").(messenger.MessageService)

			return indexer.NewActivityIndexer(elastic, msg), nil
		},
	},
	{
		Name: "daemon",
		Build: func(ctn di.Container) (interface{}, error) {
			elastic, _ := optional(ctn, "elastic").(elastic_search.Index)
			snapshots, _ := optional(ctn, "snapshotter").(*snapshot.Snapshotter)

			return daemon.NewDaemon(
				ctn.Get("market").(market.Service),
				elastic,
				ctn.Get("activity.indexer").(indexer.ActivityIndexer),
				ctn.Get("api").(api.Server),
				snapshots,
				time.Duration(config.Get().Snapshot.Interval)*time.Second,
			), nil
		},
	},
	{
		Name: "api",
		Build: func(ctn di.Container) (interface{}, error) {
			actionRepo, _ := optional(ctn, "action.repo").(repository.ActionRepository)

			var devnet api.Devnet
			if config.Get().Devnet {
				devnet = ctn.Get("ledger").(*ledger.Memory)
			}

			return api.NewServer(
				ctn.Get("market").(market.Service),
				actionRepo,
				devnet,
				ctn.Get("deriver").(authority.Deriver),
				authority.NewRequestVerifier(time.Duration(config.Get().SignatureWindow)*time.Second),
			), nil
		},
	},
}

// Optional returns the definitions of the services config enables. A service
// left out is reported as nil by optional.
func Optional(cfg *config.Config) []di.Def {
	defs := make([]di.Def, 0)
	if cfg.ElasticSearch.Enabled {
		defs = append(defs, elasticDefs...)
	} else {
		zap.L().Info("ElasticSearch: Disabled")
	}
	if cfg.Messenger.Driver != "" {
		defs = append(defs, messengerDefs...)
	} else {
		zap.L().Info("Messenger: Disabled")
	}
	if cfg.Snapshot.Driver != "" {
		defs = append(defs, snapshotDefs...)
	} else {
		zap.L().Info("Snapshot: Disabled, ledger is memory only")
	}

	return defs
}

var elasticDefs = []di.Def{
	{
		Name: "elastic",
		Build: func(ctn di.Container) (interface{}, error) {
			elastic, err := elastic_search.New()
			if err != nil {
				zap.L().With(zap.Error(err)).Fatal("Failed to start ES")
			}

			return elastic, nil
		},
	},
	{
		Name: "action.repo",
		Build: func(ctn di.Container) (interface{}, error) {
			return repository.NewActionRepository(ctn.Get("elastic").(elastic_search.Index)), nil
		},
	},
}

var messengerDefs = []di.Def{
	{
		Name: "messenger",
		Build: func(ctn di.Container) (interface{}, error) {
			return messenger.NewMessageService(*config.Get())
		},
	},
}

var snapshotDefs = []di.Def{
	{
		Name: "snapshot.store",
		Build: func(ctn di.Container) (interface{}, error) {
			store, err := snapshot.NewStore(context.Background(), config.Get().Snapshot)
			if err != nil {
				zap.L().With(zap.Error(err)).Fatal("Failed to open ledger store")
			}

			return store, nil
		},
		Close: func(obj interface{}) error {
			return obj.(snapshot.Store).Close()
		},
	},
	{
		Name: "snapshotter",
		Build: func(ctn di.Container) (interface{}, error) {
			return snapshot.NewSnapshotter(
				ctn.Get("snapshot.store").(snapshot.Store),
				ctn.Get("ledger").(*ledger.Memory),
			), nil
		},
	},
}

func optional(ctn di.Container, name string) interface{} {
	if _, defined := ctn.Definitions()[name]; !defined {
		return nil
	}

	obj, err := ctn.SafeGet(name)
	if err != nil {
		zap.L().With(zap.Error(err), zap.String("service", name)).Error("Failed to build optional service")
		return nil
	}
	return obj
}

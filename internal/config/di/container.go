package di

import (
	"github.com/ZilDuck/marketplace-settlement/internal/api"
	"github.com/ZilDuck/marketplace-settlement/internal/authority"
	"github.com/ZilDuck/marketplace-settlement/internal/config"
	"github.com/ZilDuck/marketplace-settlement/internal/daemon"
	"github.com/ZilDuck/marketplace-settlement/internal/elastic_search"
	"github.com/ZilDuck/marketplace-settlement/internal/indexer"
	"github.com/ZilDuck/marketplace-settlement/internal/ledger"
	"github.com/ZilDuck/marketplace-settlement/internal/market"
	"github.com/ZilDuck/marketplace-settlement/internal/messenger"
	"github.com/ZilDuck/marketplace-settlement/internal/snapshot"
	"github.com/sarulabs/di/v2"
)

// Container is the typed view of the definitions. Optional services return
// nil when disabled by config.
type Container struct {
	ctn di.Container
}

func NewContainer() (*Container, error) {
	builder, err := di.NewBuilder()
	if err != nil {
		return nil, err
	}
	if err := builder.Add(Definitions...); err != nil {
		return nil, err
	}
	if err := builder.Add(Optional(config.Get())...); err != nil {
		return nil, err
	}

	return &Container{builder.Build()}, nil
}

func (c *Container) GetLedger() *ledger.Memory {
	return c.ctn.Get("ledger").(*ledger.Memory)
}

func (c *Container) GetDeriver() authority.Deriver {
	return c.ctn.Get("deriver").(authority.Deriver)
}

func (c *Container) GetMarket() market.Service {
	return c.ctn.Get("market").(market.Service)
}

func (c *Container) GetElastic() elastic_search.Index {
	elastic, _ := optional(c.ctn, "elastic").(elastic_search.Index)
	return elastic
}

func (c *Container) GetMessenger() messenger.MessageService {
	msg, _ := optional(c.ctn, "messenger").(messenger.MessageService)
	return msg
}

func (c *Container) GetSnapshotter() *snapshot.Snapshotter {
	snapshots, _ := optional(c.ctn, "snapshotter").(*snapshot.Snapshotter)
	return snapshots
}

func (c *Container) GetActivityIndexer() indexer.ActivityIndexer {
	return c.ctn.Get("activity.indexer").(indexer.ActivityIndexer)
}

func (c *Container) GetDaemon() *daemon.Daemon {
	return c.ctn.Get("daemon").(*daemon.Daemon)
}

func (c *Container) GetApi() api.Server {
	return c.ctn.Get("api").(api.Server)
}

func (c *Container) Delete() error {
	return c.ctn.Delete()
}

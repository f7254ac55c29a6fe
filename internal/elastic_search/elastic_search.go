package elastic_search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZilDuck/marketplace-settlement/internal/config"
	"github.com/ZilDuck/marketplace-settlement/internal/entity"
	"github.com/aws/aws-sdk-go/aws/credentials"
	v4 "github.com/aws/aws-sdk-go/aws/signer/v4"
	"github.com/olivere/elastic/v7"
	"github.com/patrickmn/go-cache"
	"github.com/sha1sum/aws_signing_client"
	"go.uber.org/zap"
)

type Index interface {
	GetClient() *elastic.Client

	InstallMappings() error

	AddIndexRequest(index string, entity entity.Entity)
	HasRequest(entity entity.Entity) bool
	GetRequests() []Request
	GetRequest(id string) *Request
	ClearRequests()

	Save(ctx context.Context, index string, entity entity.Entity) error
	BatchPersist() bool
	Persist() int
}

type index struct {
	client  *elastic.Client
	cache   *cache.Cache
	refresh string
}

type Request struct {
	Index  string
	Entity entity.Entity
}

const (
	saveAttempts   int = 3
	batchThreshold int = 250
)

func New() (Index, error) {
	client, err := newClient()
	if err != nil {
		zap.L().With(zap.Error(err)).Error("ElasticSearch: Failed to create client")
		return nil, err
	}

	return NewIndex(client), nil
}

func NewIndex(client *elastic.Client) Index {
	return index{client, cache.New(5*time.Minute, 10*time.Minute), config.Get().ElasticSearch.Refresh}
}

func newClient() (*elastic.Client, error) {
	cfg := config.Get()

	opts := []elastic.ClientOptionFunc{
		elastic.SetURL(strings.Join(cfg.ElasticSearch.Hosts, ",")),
		elastic.SetSniff(cfg.ElasticSearch.Sniff),
		elastic.SetHealthcheck(cfg.ElasticSearch.HealthCheck),
	}

	if cfg.ElasticSearch.Debug {
		opts = append(opts, elastic.SetTraceLog(ElasticLogger{}))
	}

	if cfg.ElasticSearch.Aws {
		creds := credentials.NewStaticCredentials(cfg.Aws.AccessKey, cfg.Aws.SecretKey, cfg.Aws.Token)
		awsClient, err := aws_signing_client.New(v4.NewSigner(creds), nil, "es", cfg.Aws.Region)
		if err != nil {
			return nil, err
		}

		opts = append(opts, elastic.SetHttpClient(awsClient))
		opts = append(opts, elastic.SetScheme("https"))
		return elastic.NewClient(opts...)
	}

	if cfg.ElasticSearch.Username != "" {
		opts = append(opts, elastic.SetBasicAuth(cfg.ElasticSearch.Username, cfg.ElasticSearch.Password))
	}

	return elastic.NewClient(opts...)
}

func (i index) GetClient() *elastic.Client {
	return i.client
}

func (i index) InstallMappings() error {
	zap.L().Info("ElasticSearch: Install Mappings")

	dir := config.Get().ElasticSearch.MappingDir
	files, err := os.ReadDir(dir)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("ElasticSearch: Elastic mappings directory error")
		return err
	}

	for _, f := range files {
		if f.IsDir() {
			continue
		}

		b, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			zap.L().With(zap.Error(err), zap.String("file", f.Name())).Error("ElasticSearch: Elastic mappings file error")
			return err
		}

		name := Indices(strings.TrimSuffix(f.Name(), filepath.Ext(f.Name())))
		if err = i.createIndex(name.Get(), b); err != nil {
			zap.S().With(zap.Error(err)).Errorf("ElasticSearch: Failed to create index %s", name.Get())
			return err
		}
	}

	return nil
}

func (i index) createIndex(index string, mapping []byte) error {
	ctx := context.Background()

	exists, err := i.client.IndexExists(index).Do(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	createIndex, err := i.client.CreateIndex(index).BodyString(string(mapping)).Do(ctx)
	if err != nil {
		return err
	}
	if createIndex.Acknowledged {
		zap.S().Infof("ElasticSearch: Created index %s", index)
	}

	return nil
}

func (i index) AddIndexRequest(index string, entity entity.Entity) {
	zap.L().With(
		zap.String("index", index),
		zap.String("slug", entity.Slug()),
	).Debug("ElasticSearch: AddIndexRequest")

	i.cache.Set(entity.Slug(), Request{index, entity}, cache.DefaultExpiration)
}

func (i index) HasRequest(entity entity.Entity) bool {
	_, found := i.cache.Get(entity.Slug())

	return found
}

func (i index) GetRequests() []Request {
	requests := make([]Request, 0)
	for _, item := range i.cache.Items() {
		requests = append(requests, item.Object.(Request))
	}

	return requests
}

func (i index) GetRequest(id string) *Request {
	if item, found := i.cache.Get(id); found {
		req := item.(Request)
		return &req
	}
	return nil
}

func (i index) ClearRequests() {
	i.cache.Flush()
}

func (i index) Save(ctx context.Context, index string, entity entity.Entity) error {
	var err error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		_, err = i.client.Index().
			Index(index).
			Id(entity.Slug()).
			BodyJson(entity).
			Refresh(i.refresh).
			Do(ctx)
		if err == nil {
			return nil
		}

		zap.L().With(zap.Error(err), zap.String("index", index), zap.String("slug", entity.Slug()), zap.Int("attempt", attempt)).
			Warn("ElasticSearch: Failed to save entity")

		select {
		case <-time.After(time.Duration(attempt) * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("save %s/%s: %w", index, entity.Slug(), err)
}

func (i index) BatchPersist() bool {
	if len(i.GetRequests()) < batchThreshold {
		return false
	}

	actions := len(i.GetRequests())
	start := time.Now()
	i.Persist()

	zap.L().With(
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("actions", actions),
	).Info("ElasticSearch: Persisting data")

	return true
}

func (i index) Persist() int {
	persisted := 0
	bulk := i.client.Bulk()
	for _, r := range i.GetRequests() {
		bulk.Add(elastic.NewBulkIndexRequest().Index(r.Index).Id(r.Entity.Slug()).Doc(r.Entity))

		if bulk.NumberOfActions() >= config.Get().ElasticSearch.BulkPersistCount {
			persisted += i.persist(bulk)
			bulk = i.client.Bulk()
		}
	}

	if bulk.NumberOfActions() != 0 {
		persisted += i.persist(bulk)
	}

	i.cache.Flush()

	return persisted
}

func (i index) persist(bulk *elastic.BulkService) int {
	actions := bulk.NumberOfActions()
	zap.S().Debugf("ElasticSearch: Persisting %d actions", actions)

	response, err := bulk.Refresh(i.refresh).Do(context.Background())
	if err != nil {
		if err.Error() == "elastic: Error 429 (Too Many Requests)" {
			zap.L().With(zap.Error(err)).Warn("ElasticSearch: 429 (Too Many Requests)")
			time.Sleep(5 * time.Second)
			return i.persist(bulk)
		}
		zap.L().With(zap.Error(err)).Error("ElasticSearch: Failed to persist requests")
		return 0
	}

	for _, failed := range response.Failed() {
		zap.L().With(
			zap.Any("error", failed.Error),
			zap.String("index", failed.Index),
			zap.String("id", failed.Id),
		).Error("ElasticSearch: Failed to persist request. Retrying...")

		if req := i.GetRequest(failed.Id); req != nil {
			if err := i.Save(context.Background(), failed.Index, req.Entity); err != nil {
				actions--
			}
		}
	}

	return actions
}

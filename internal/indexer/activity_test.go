package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ZilDuck/marketplace-settlement/internal/elastic_search"
	"github.com/ZilDuck/marketplace-settlement/internal/entity"
	"github.com/ZilDuck/marketplace-settlement/internal/messenger"
	"github.com/gagliardetto/solana-go"
	"github.com/olivere/elastic/v7"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	requests []elastic_search.Request
	persists int
}

func (f *fakeIndex) GetClient() *elastic.Client {
	return nil
}

func (f *fakeIndex) InstallMappings() error {
	return nil
}

func (f *fakeIndex) AddIndexRequest(index string, e entity.Entity) {
	f.requests = append(f.requests, elastic_search.Request{Index: index, Entity: e})
}

func (f *fakeIndex) HasRequest(entity.Entity) bool {
	return false
}

func (f *fakeIndex) GetRequests() []elastic_search.Request {
	return f.requests
}

func (f *fakeIndex) GetRequest(string) *elastic_search.Request {
	return nil
}

func (f *fakeIndex) ClearRequests() {
	f.requests = nil
}

func (f *fakeIndex) Save(context.Context, string, entity.Entity) error {
	return nil
}

func (f *fakeIndex) BatchPersist() bool {
	return false
}

func (f *fakeIndex) Persist() int {
	n := len(f.requests)
	f.requests = nil
	f.persists++
	return n
}

type fakeMessenger struct {
	sent [][]byte
	err  error
}

func (f *fakeMessenger) SendMessage(_ messenger.Item, body []byte, _ bool) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, body)
	return nil
}

func (f *fakeMessenger) ConsumeMessages(context.Context, messenger.Item, func([]byte) error) error {
	return nil
}

func (f *fakeMessenger) GetQueueSize(messenger.Item) (*int, error) {
	return nil, nil
}

func testAction() entity.Action {
	return entity.Action{
		ID:     "8d2f7a3e-1c55-4b0c-9a43-54c3a1f0e9a1",
		Type:   entity.BuyAction,
		Asset:  solana.NewWallet().PublicKey().String(),
		Rail:   entity.RailNative,
		Amount: 1_000,
		Fee:    25,
		Time:   time.Now().UTC(),
	}
}

func TestActionIsIndexedDirectlyWithoutMessenger(t *testing.T) {
	viper.Set("NETWORK", "solana")
	viper.Set("INDEX_NAME", "marketplace")
	idx := &fakeIndex{}
	i := NewActivityIndexer(idx, nil)

	i.OnActionCommitted(testAction())

	require.Len(t, idx.requests, 1)
	assert.Equal(t, "solana.marketplace.action", idx.requests[0].Index)
}

func TestActionIsPublishedWithMessenger(t *testing.T) {
	idx := &fakeIndex{}
	m := &fakeMessenger{}
	i := NewActivityIndexer(idx, m)

	action := testAction()
	i.OnActionCommitted(action)

	assert.Empty(t, idx.requests)
	require.Len(t, m.sent, 1)

	var published entity.Action
	require.NoError(t, json.Unmarshal(m.sent[0], &published))
	assert.Equal(t, action.ID, published.ID)
	assert.Equal(t, action.Fee, published.Fee)
}

func TestFailedPublishFallsBackToIndex(t *testing.T) {
	idx := &fakeIndex{}
	i := NewActivityIndexer(idx, &fakeMessenger{err: errors.New("broker down")})

	i.OnActionCommitted(testAction())

	assert.Len(t, idx.requests, 1)
}

func TestIndexMessage(t *testing.T) {
	viper.Set("NETWORK", "solana")
	viper.Set("INDEX_NAME", "marketplace")
	idx := &fakeIndex{}
	i := NewActivityIndexer(idx, nil)

	body, err := json.Marshal(testAction())
	require.NoError(t, err)
	require.NoError(t, i.IndexMessage(body))
	require.Len(t, idx.requests, 1)

	assert.Error(t, i.IndexMessage([]byte("not json")))
	assert.ErrorIs(t, i.IndexMessage([]byte(`{"type":"buy"}`)), ErrUnexpectedMessage)
	assert.Len(t, idx.requests, 1)
}

func TestListingUpdateIsIndexed(t *testing.T) {
	viper.Set("NETWORK", "solana")
	viper.Set("INDEX_NAME", "marketplace")
	idx := &fakeIndex{}
	i := NewActivityIndexer(idx, &fakeMessenger{})

	listing := entity.Listing{Asset: solana.NewWallet().PublicKey(), Price: 10}
	i.OnListingUpdated(listing)
	i.OnListingUpdated("not a listing")

	require.Len(t, idx.requests, 1)
	assert.Equal(t, "solana.marketplace.listing", idx.requests[0].Index)
	assert.Equal(t, listing.Slug(), idx.requests[0].Entity.Slug())
}

func TestRunFlushesOnShutdown(t *testing.T) {
	idx := &fakeIndex{}
	i := NewActivityIndexer(idx, nil)
	i.IndexAction(testAction())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	i.Run(ctx, time.Hour)

	assert.Empty(t, idx.requests)
	assert.Equal(t, 1, idx.persists)
}

func TestNilElasticIsSkipped(t *testing.T) {
	i := NewActivityIndexer(nil, nil)
	i.OnActionCommitted(testAction())
	assert.Equal(t, 0, i.Flush())
}

package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ZilDuck/marketplace-settlement/internal/elastic_search"
	"github.com/ZilDuck/marketplace-settlement/internal/entity"
	"github.com/ZilDuck/marketplace-settlement/internal/messenger"
	"github.com/ZilDuck/marketplace-settlement/internal/metrics"
	"go.uber.org/zap"
)

var (
	ErrUnexpectedMessage = errors.New("unexpected event message")
)

// ActivityIndexer turns committed actions and listing changes into documents
// in the activity index. When a messenger is configured actions travel through
// the queue first, and IndexMessage is the consuming side.
type ActivityIndexer interface {
	OnActionCommitted(msg interface{})
	OnListingUpdated(msg interface{})

	IndexMessage(body []byte) error
	IndexAction(action entity.Action)
	IndexListing(listing entity.Listing)

	Flush() int
	Run(ctx context.Context, interval time.Duration)
}

type activityIndexer struct {
	elastic   elastic_search.Index
	messenger messenger.MessageService
}

// NewActivityIndexer accepts a nil elastic or messenger, in which case that
// leg is skipped.
func NewActivityIndexer(elastic elastic_search.Index, messenger messenger.MessageService) ActivityIndexer {
	return activityIndexer{elastic, messenger}
}

func (i activityIndexer) OnActionCommitted(msg interface{}) {
	action, ok := msg.(entity.Action)
	if !ok {
		zap.L().With(zap.Error(ErrUnexpectedMessage)).Error("ActivityIndexer: Action committed")
		return
	}

	if i.messenger == nil {
		i.IndexAction(action)
		return
	}

	if err := i.publish(action); err != nil {
		zap.L().With(zap.Error(err), zap.String("id", action.ID)).Warn("ActivityIndexer: Publish failed, indexing directly")
		i.IndexAction(action)
	}
}

func (i activityIndexer) OnListingUpdated(msg interface{}) {
	listing, ok := msg.(entity.Listing)
	if !ok {
		zap.L().With(zap.Error(ErrUnexpectedMessage)).Error("ActivityIndexer: Listing updated")
		return
	}

	i.IndexListing(listing)
}

func (i activityIndexer) publish(action entity.Action) error {
	body, err := json.Marshal(action)
	if err != nil {
		return err
	}

	if err := i.messenger.SendMessage(messenger.ActivityItem, body, true); err != nil {
		metrics.MessagesPublished.WithLabelValues("failed").Inc()
		return err
	}
	metrics.MessagesPublished.WithLabelValues("sent").Inc()

	return nil
}

func (i activityIndexer) IndexMessage(body []byte) error {
	var action entity.Action
	if err := json.Unmarshal(body, &action); err != nil {
		zap.L().With(zap.Error(err)).Error("ActivityIndexer: Failed to unmarshal action")
		return err
	}
	if action.ID == "" {
		return ErrUnexpectedMessage
	}

	i.IndexAction(action)
	i.elasticBatchPersist()

	return nil
}

func (i activityIndexer) IndexAction(action entity.Action) {
	if i.elastic == nil {
		return
	}

	zap.L().With(
		zap.String("id", action.ID),
		zap.String("type", string(action.Type)),
		zap.String("asset", action.Asset),
	).Debug("ActivityIndexer: Index action")

	i.elastic.AddIndexRequest(elastic_search.ActionIndex.Get(), action)
	metrics.ActionsIndexed.Inc()
}

func (i activityIndexer) IndexListing(listing entity.Listing) {
	if i.elastic == nil {
		return
	}

	zap.L().With(zap.String("asset", listing.Asset.String())).Debug("ActivityIndexer: Index listing")
	i.elastic.AddIndexRequest(elastic_search.ListingIndex.Get(), listing)
}

func (i activityIndexer) elasticBatchPersist() {
	if i.elastic != nil {
		i.elastic.BatchPersist()
	}
}

func (i activityIndexer) Flush() int {
	if i.elastic == nil {
		return 0
	}
	return i.elastic.Persist()
}

// Run flushes pending index requests every interval, and once more when ctx
// ends.
func (i activityIndexer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if n := i.Flush(); n > 0 {
				zap.L().With(zap.Int("count", n)).Info("ActivityIndexer: Final flush")
			}
			return
		case <-ticker.C:
			if n := i.Flush(); n > 0 {
				zap.L().With(zap.Int("count", n)).Debug("ActivityIndexer: Flushed")
			}
		}
	}
}

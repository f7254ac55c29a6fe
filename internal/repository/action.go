package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ZilDuck/marketplace-settlement/internal/elastic_search"
	"github.com/ZilDuck/marketplace-settlement/internal/entity"
	"github.com/olivere/elastic/v7"
	"go.uber.org/zap"
)

var (
	ErrActionNotFound = errors.New("action not found")
)

type ActionRepository interface {
	GetActionsForAsset(ctx context.Context, asset string, size, page int) ([]entity.Action, int64, error)
	GetLatestAction(ctx context.Context, asset string, actionType entity.ActionType) (*entity.Action, error)
}

type actionRepository struct {
	elastic elastic_search.Index
}

func NewActionRepository(elastic elastic_search.Index) ActionRepository {
	return actionRepository{elastic}
}

func (r actionRepository) GetActionsForAsset(ctx context.Context, asset string, size, page int) ([]entity.Action, int64, error) {
	from := size*page - size

	zap.L().With(
		zap.String("asset", asset),
		zap.Int("size", size),
		zap.Int("page", page),
	).Debug("GetActionsForAsset")

	results, err := search(ctx, r.elastic.GetClient().
		Search(elastic_search.ActionIndex.Get()).
		Query(elastic.NewTermQuery("asset", asset)).
		Sort("time", false).
		Size(size).
		From(from))

	return r.findMany(results, err)
}

func (r actionRepository) GetLatestAction(ctx context.Context, asset string, actionType entity.ActionType) (*entity.Action, error) {
	query := elastic.NewBoolQuery().Must(
		elastic.NewTermQuery("asset", asset),
		elastic.NewTermQuery("type", string(actionType)),
	)

	results, err := search(ctx, r.elastic.GetClient().
		Search(elastic_search.ActionIndex.Get()).
		Query(query).
		Sort("time", false).
		Size(1))

	return r.findOne(results, err)
}

func (r actionRepository) findOne(results *elastic.SearchResult, err error) (*entity.Action, error) {
	if err != nil {
		return nil, err
	}

	if len(results.Hits.Hits) == 0 {
		return nil, ErrActionNotFound
	}

	var action entity.Action
	if err := json.Unmarshal(results.Hits.Hits[0].Source, &action); err != nil {
		return nil, err
	}

	return &action, nil
}

func (r actionRepository) findMany(results *elastic.SearchResult, err error) ([]entity.Action, int64, error) {
	actions := make([]entity.Action, 0)
	if err != nil {
		return actions, 0, err
	}

	for _, hit := range results.Hits.Hits {
		var action entity.Action
		if err := json.Unmarshal(hit.Source, &action); err != nil {
			zap.L().With(zap.Error(err), zap.String("id", hit.Id)).Error("Failed to unmarshal action")
			continue
		}
		actions = append(actions, action)
	}

	return actions, results.TotalHits(), nil
}

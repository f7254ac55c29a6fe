package repository

import (
	"context"
	"time"

	"github.com/olivere/elastic/v7"
	"go.uber.org/zap"
)

const tooManyRequests = "elastic: Error 429 (Too Many Requests)"

func search(ctx context.Context, searchService *elastic.SearchService) (*elastic.SearchResult, error) {
	result, err := searchService.Do(ctx)
	if err != nil && err.Error() == tooManyRequests {
		zap.L().Warn("Elastic: 429 (Too Many Requests)")
		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return search(ctx, searchService)
	}

	return result, err
}

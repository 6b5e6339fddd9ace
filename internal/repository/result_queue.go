package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/scholarpath/testportal-backend/internal/config"
	"github.com/scholarpath/testportal-backend/internal/engine"
	"github.com/scholarpath/testportal-backend/internal/model"
)

// ResultQueue hands finished score records to the result persistence worker
// over a Redis list. Decoupling the submit path from PostgreSQL keeps
// submission fast and lets a transient database outage retry in the worker
// instead of failing the candidate.
type ResultQueue struct {
	rdb *redis.Client
}

// NewResultQueue creates a new ResultQueue.
func NewResultQueue(rdb *redis.Client) *ResultQueue {
	return &ResultQueue{rdb: rdb}
}

var _ engine.ResultSink = (*ResultQueue)(nil)

// SaveResult enqueues a score record for durable persistence and sets the
// submitted marker in the same pipeline. The marker closes the window where
// the result is queued but not yet in PostgreSQL: the duplicate-submission
// guard checks it alongside the results table.
func (q *ResultQueue) SaveResult(ctx context.Context, result *model.ScoreResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	marker := config.CacheKey.SubmittedMarkerKey(result.TestID.String(), result.ApplicationNo)

	pipe := q.rdb.TxPipeline()
	pipe.RPush(ctx, config.WorkerKey.PersistResultsQueue, payload)
	pipe.Set(ctx, marker, 1, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue result: %w", err)
	}
	return nil
}

// IsSubmitted reports whether an attempt's submitted marker is set.
func (q *ResultQueue) IsSubmitted(ctx context.Context, applicationNo string, testID uuid.UUID) (bool, error) {
	n, err := q.rdb.Exists(ctx, config.CacheKey.SubmittedMarkerKey(testID.String(), applicationNo)).Result()
	if err != nil {
		return false, fmt.Errorf("check submitted marker: %w", err)
	}
	return n > 0, nil
}

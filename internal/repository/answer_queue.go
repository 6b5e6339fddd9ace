package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/scholarpath/testportal-backend/internal/config"
	"github.com/scholarpath/testportal-backend/internal/model"
)

// AnswerQueue feeds the answer persistence worker over a Redis list. Answer
// capture stays in-memory-fast; the worker writes the audit trail to
// PostgreSQL at its own pace.
type AnswerQueue struct {
	rdb *redis.Client
}

// NewAnswerQueue creates a new AnswerQueue.
func NewAnswerQueue(rdb *redis.Client) *AnswerQueue {
	return &AnswerQueue{rdb: rdb}
}

// RecordAnswer enqueues one answer event.
func (q *AnswerQueue) RecordAnswer(ctx context.Context, event *model.AnswerEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal answer event: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err(); err != nil {
		return fmt.Errorf("enqueue answer event: %w", err)
	}
	return nil
}

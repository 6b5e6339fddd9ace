// Package worker holds the background consumers that move queued Redis
// items into PostgreSQL.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/scholarpath/testportal-backend/internal/config"
	"github.com/scholarpath/testportal-backend/internal/model"
)

// AnswerPersistWorker consumes persist_answers_queue and UPSERTs answer
// events into the candidate_answers audit table.
type AnswerPersistWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewAnswerPersistWorker creates a new AnswerPersistWorker.
func NewAnswerPersistWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AnswerPersistWorker {
	return &AnswerPersistWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "answer_persist_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AnswerPersistWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AnswerPersistWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistAnswersQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var event model.AnswerEvent
	if err := json.Unmarshal([]byte(result[1]), &event); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.persistAnswer(ctx, &event); err != nil {
		w.log.Error().Err(err).
			Str("application_no", event.ApplicationNo).
			Str("test_id", event.TestID.String()).
			Msg("Persist error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *AnswerPersistWorker) persistAnswer(ctx context.Context, e *model.AnswerEvent) error {
	// UPSERT: an overwritten answer replaces the previous selection but
	// keeps the latest answered_at.
	_, err := w.pool.Exec(ctx,
		`INSERT INTO candidate_answers (application_no, test_id, question_id, selected_option, answered_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (application_no, test_id, question_id) DO UPDATE
		 SET selected_option = EXCLUDED.selected_option, answered_at = EXCLUDED.answered_at`,
		e.ApplicationNo, e.TestID, e.QuestionID, e.SelectedOption, e.AnsweredAt,
	)
	return err
}

// drain processes all remaining items in the queue before shutdown.
func (w *AnswerPersistWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}

		var event model.AnswerEvent
		if err := json.Unmarshal([]byte(result), &event); err != nil {
			continue
		}
		if err := w.persistAnswer(ctx, &event); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error, item dropped back")
			w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result)
			break
		}
		drained++
	}
	if drained > 0 {
		w.log.Info().Int("drained", drained).Msg("Queue drained")
	}
}

package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/scholarpath/testportal-backend/internal/config"
	"github.com/scholarpath/testportal-backend/internal/model"
	"github.com/scholarpath/testportal-backend/internal/repository"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultPersistWorker consumes persist_results_queue and writes final score
// records to PostgreSQL in batches, falling back to single-row inserts when
// a batch fails. The unique (application_no, test_id) constraint makes a
// requeued item harmless.
type ResultPersistWorker struct {
	pool    *pgxpool.Pool
	rdb     *redis.Client
	results *repository.ResultRepository
	log     zerolog.Logger
}

// NewResultPersistWorker creates a new ResultPersistWorker.
func NewResultPersistWorker(pool *pgxpool.Pool, rdb *redis.Client, results *repository.ResultRepository, log zerolog.Logger) *ResultPersistWorker {
	return &ResultPersistWorker{
		pool:    pool,
		rdb:     rdb,
		results: results,
		log:     log.With().Str("component", "result_persist_worker").Logger(),
	}
}

// Start begins the worker loop with batching. Call in a goroutine.
func (w *ResultPersistWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultPersistWorker started")

	batch := make([]*model.ScoreResult, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var res model.ScoreResult
			if err := json.Unmarshal([]byte(item[1]), &res); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &res)
		}
	}
}

func (w *ResultPersistWorker) flushSafe(ctx context.Context, batch []*model.ScoreResult) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkInsertResults(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("Bulk result insert failed, using fallback")

		for _, res := range batch {
			if err := w.results.Create(ctx, res); err != nil {
				w.log.Error().Err(err).
					Str("application_no", res.ApplicationNo).
					Msg("Single insert failed, requeueing")
				raw, _ := json.Marshal(res)
				w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
			}
		}
		return
	}

	// Once results are durable their snapshots have no further use.
	w.bulkClearSnapshots(ctx, batch)
}

// bulkInsertResults writes the whole batch in one statement using UNNEST.
// The ON CONFLICT guard keeps the table append-only per attempt.
func (w *ResultPersistWorker) bulkInsertResults(ctx context.Context, batch []*model.ScoreResult) error {
	n := len(batch)

	applicationNos := make([]string, 0, n)
	applicantNames := make([]string, 0, n)
	testIDs := make([]uuid.UUID, 0, n)
	testNames := make([]string, 0, n)
	totals := make([]int, 0, n)
	corrects := make([]int, 0, n)
	percentages := make([]float64, 0, n)
	breakdowns := make([][]byte, 0, n)
	statuses := make([]string, 0, n)
	timeTakens := make([]int64, 0, n)

	for _, res := range batch {
		breakdown, err := json.Marshal(res.SubjectBreakdown)
		if err != nil {
			return err
		}
		applicationNos = append(applicationNos, res.ApplicationNo)
		applicantNames = append(applicantNames, res.ApplicantName)
		testIDs = append(testIDs, res.TestID)
		testNames = append(testNames, res.TestName)
		totals = append(totals, res.TotalQuestions)
		corrects = append(corrects, res.CorrectCount)
		percentages = append(percentages, res.Percentage)
		breakdowns = append(breakdowns, breakdown)
		statuses = append(statuses, string(res.Status))
		timeTakens = append(timeTakens, res.TimeTakenSeconds)
	}

	_, err := w.pool.Exec(ctx, `
		INSERT INTO score_results
		  (application_no, applicant_name, test_id, test_name, total_questions,
		   correct_count, percentage, subject_breakdown, status, time_taken_seconds)
		SELECT u.application_no, u.applicant_name, u.test_id, u.test_name, u.total_questions,
		       u.correct_count, u.percentage, u.subject_breakdown, u.status, u.time_taken_seconds
		FROM UNNEST(
			$1::text[],
			$2::text[],
			$3::uuid[],
			$4::text[],
			$5::int[],
			$6::int[],
			$7::float8[],
			$8::jsonb[],
			$9::text[],
			$10::bigint[]
		) AS u (application_no, applicant_name, test_id, test_name, total_questions,
		        correct_count, percentage, subject_breakdown, status, time_taken_seconds)
		ON CONFLICT (application_no, test_id) DO NOTHING`,
		applicationNos, applicantNames, testIDs, testNames, totals,
		corrects, percentages, breakdowns, statuses, timeTakens,
	)
	return err
}

func (w *ResultPersistWorker) bulkClearSnapshots(ctx context.Context, batch []*model.ScoreResult) {
	keys := make([]string, 0, len(batch))
	for _, res := range batch {
		keys = append(keys, config.CacheKey.SessionSnapshotKey(res.TestID.String(), res.ApplicationNo))
	}
	if err := w.rdb.Del(ctx, keys...).Err(); err != nil {
		w.log.Warn().Err(err).Msg("Snapshot cleanup failed")
	}
}

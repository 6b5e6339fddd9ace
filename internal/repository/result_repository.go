package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scholarpath/testportal-backend/internal/model"
)

// ResultRepository handles persisted score records. Writes are append-only:
// one row per (application, test), guarded by a unique constraint.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Create inserts a score record. A duplicate (application, test) pair is a
// no-op so a requeued worker item cannot produce a second row.
func (r *ResultRepository) Create(ctx context.Context, res *model.ScoreResult) error {
	breakdownJSON, err := json.Marshal(res.SubjectBreakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO score_results
		   (application_no, applicant_name, test_id, test_name, total_questions,
		    correct_count, percentage, subject_breakdown, status, time_taken_seconds)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (application_no, test_id) DO NOTHING`,
		res.ApplicationNo, res.ApplicantName, res.TestID, res.TestName, res.TotalQuestions,
		res.CorrectCount, res.Percentage, breakdownJSON, res.Status, res.TimeTakenSeconds,
	)
	return err
}

// ExistsFor reports whether a score record already exists for an
// application+test pair. Used by the eligibility gate's retake guard.
func (r *ResultRepository) ExistsFor(ctx context.Context, applicationNo string, testID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM score_results WHERE application_no = $1 AND test_id = $2)`,
		applicationNo, testID,
	).Scan(&exists)
	return exists, err
}

// GetByApplicationAndTest retrieves the final result for one attempt.
func (r *ResultRepository) GetByApplicationAndTest(ctx context.Context, applicationNo string, testID uuid.UUID) (*model.ScoreResult, error) {
	res := &model.ScoreResult{}
	var breakdownJSON []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, application_no, applicant_name, test_id, test_name, total_questions,
		        correct_count, percentage, subject_breakdown, status, time_taken_seconds, created_at
		 FROM score_results
		 WHERE application_no = $1 AND test_id = $2`,
		applicationNo, testID,
	).Scan(&res.ID, &res.ApplicationNo, &res.ApplicantName, &res.TestID, &res.TestName,
		&res.TotalQuestions, &res.CorrectCount, &res.Percentage, &breakdownJSON,
		&res.Status, &res.TimeTakenSeconds, &res.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(breakdownJSON, &res.SubjectBreakdown); err != nil {
		return nil, fmt.Errorf("unmarshal breakdown: %w", err)
	}
	return res, nil
}

// ListByTest retrieves all results for a test, paginated, highest score first.
func (r *ResultRepository) ListByTest(ctx context.Context, testID uuid.UUID, limit, offset int) ([]model.ScoreResult, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM score_results WHERE test_id = $1`, testID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, application_no, applicant_name, test_id, test_name, total_questions,
		        correct_count, percentage, subject_breakdown, status, time_taken_seconds, created_at
		 FROM score_results
		 WHERE test_id = $1
		 ORDER BY percentage DESC, created_at ASC
		 LIMIT $2 OFFSET $3`, testID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []model.ScoreResult
	for rows.Next() {
		var res model.ScoreResult
		var breakdownJSON []byte
		if err := rows.Scan(&res.ID, &res.ApplicationNo, &res.ApplicantName, &res.TestID, &res.TestName,
			&res.TotalQuestions, &res.CorrectCount, &res.Percentage, &breakdownJSON,
			&res.Status, &res.TimeTakenSeconds, &res.CreatedAt); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal(breakdownJSON, &res.SubjectBreakdown); err != nil {
			return nil, 0, fmt.Errorf("unmarshal breakdown: %w", err)
		}
		results = append(results, res)
	}
	return results, total, rows.Err()
}

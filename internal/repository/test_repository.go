package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scholarpath/testportal-backend/internal/model"
)

// TestRepository handles test definition data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

const testColumns = `id, title, time_limit_minutes, total_questions, test_start, test_end,
	modality, pass_threshold, source, subjects, qbank_id, status, created_at, updated_at`

func scanTest(row interface{ Scan(dest ...any) error }) (*model.TestDefinition, error) {
	t := &model.TestDefinition{}
	var subjectsJSON []byte
	err := row.Scan(
		&t.ID, &t.Title, &t.TimeLimitMinutes, &t.TotalQuestions, &t.TestStart, &t.TestEnd,
		&t.Modality, &t.PassThreshold, &t.Source, &subjectsJSON, &t.QBankID, &t.Status,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(subjectsJSON) > 0 {
		if err := json.Unmarshal(subjectsJSON, &t.Subjects); err != nil {
			return nil, fmt.Errorf("unmarshal subjects: %w", err)
		}
	}
	return t, nil
}

// GetByID retrieves a test definition by its UUID.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TestDefinition, error) {
	return scanTest(r.pool.QueryRow(ctx,
		`SELECT `+testColumns+` FROM tests WHERE id = $1`, id))
}

// Create inserts a new test definition.
func (r *TestRepository) Create(ctx context.Context, t *model.TestDefinition) error {
	subjectsJSON, err := json.Marshal(t.Subjects)
	if err != nil {
		return fmt.Errorf("marshal subjects: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO tests (title, time_limit_minutes, total_questions, test_start, test_end,
		                    modality, pass_threshold, source, subjects, qbank_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, created_at, updated_at`,
		t.Title, t.TimeLimitMinutes, t.TotalQuestions, t.TestStart, t.TestEnd,
		t.Modality, t.PassThreshold, t.Source, subjectsJSON, t.QBankID, t.Status,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// Update modifies an existing test definition.
func (r *TestRepository) Update(ctx context.Context, t *model.TestDefinition) error {
	subjectsJSON, err := json.Marshal(t.Subjects)
	if err != nil {
		return fmt.Errorf("marshal subjects: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE tests
		 SET title = $1, time_limit_minutes = $2, total_questions = $3, test_start = $4,
		     test_end = $5, modality = $6, pass_threshold = $7, subjects = $8, qbank_id = $9,
		     updated_at = NOW()
		 WHERE id = $10`,
		t.Title, t.TimeLimitMinutes, t.TotalQuestions, t.TestStart, t.TestEnd,
		t.Modality, t.PassThreshold, subjectsJSON, t.QBankID, t.ID)
	return err
}

// UpdateStatus changes a test's lifecycle status.
func (r *TestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.TestStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tests SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return err
}

// Delete removes a test definition.
func (r *TestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tests WHERE id = $1`, id)
	return err
}

// ListPublished retrieves all published test definitions.
func (r *TestRepository) ListPublished(ctx context.Context) ([]model.TestDefinition, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+testColumns+` FROM tests WHERE status = $1 ORDER BY created_at DESC`,
		model.TestStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.TestDefinition
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, *t)
	}
	return tests, rows.Err()
}

// ListPaginated retrieves test definitions newest first.
func (r *TestRepository) ListPaginated(ctx context.Context, limit, offset int) ([]model.TestDefinition, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tests`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+testColumns+` FROM tests ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tests []model.TestDefinition
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, 0, err
		}
		tests = append(tests, *t)
	}
	return tests, total, rows.Err()
}

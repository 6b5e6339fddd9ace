package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scholarpath/testportal-backend/internal/model"
)

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// CreateBank inserts a new question bank.
func (r *QuestionRepository) CreateBank(ctx context.Context, b *model.QuestionBank) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO qbanks (name, author_id) VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`,
		b.Name, b.AuthorID,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

// GetBank retrieves a question bank by ID.
func (r *QuestionRepository) GetBank(ctx context.Context, id uuid.UUID) (*model.QuestionBank, error) {
	b := &model.QuestionBank{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, author_id, created_at, updated_at FROM qbanks WHERE id = $1`, id,
	).Scan(&b.ID, &b.Name, &b.AuthorID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBanks retrieves all question banks.
func (r *QuestionRepository) ListBanks(ctx context.Context) ([]model.QuestionBank, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, author_id, created_at, updated_at FROM qbanks ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var banks []model.QuestionBank
	for rows.Next() {
		var b model.QuestionBank
		if err := rows.Scan(&b.ID, &b.Name, &b.AuthorID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		banks = append(banks, b)
	}
	return banks, rows.Err()
}

// DeleteBank removes a question bank and its questions.
func (r *QuestionRepository) DeleteBank(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM qbanks WHERE id = $1`, id)
	return err
}

// ListByBank retrieves a bank's questions grouped by subject in authored
// order. The ordering matters: the resolver assigns flat session IDs from it.
func (r *QuestionRepository) ListByBank(ctx context.Context, qbankID uuid.UUID) ([]model.BankQuestion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, qbank_id, subject_name, text, options, correct_option, explanation, order_num
		 FROM qbank_questions
		 WHERE qbank_id = $1
		 ORDER BY subject_name, order_num`, qbankID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.BankQuestion
	for rows.Next() {
		var q model.BankQuestion
		if err := rows.Scan(&q.ID, &q.QBankID, &q.SubjectName, &q.Text, &q.Options, &q.CorrectOption, &q.Explanation, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// AddQuestion inserts a question into a bank.
func (r *QuestionRepository) AddQuestion(ctx context.Context, q *model.BankQuestion) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO qbank_questions (qbank_id, subject_name, text, options, correct_option, explanation, order_num)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		q.QBankID, q.SubjectName, q.Text, q.Options, q.CorrectOption, q.Explanation, q.OrderNum,
	).Scan(&q.ID)
}

// ReplaceQuestions atomically swaps a bank's entire question set.
func (r *QuestionRepository) ReplaceQuestions(ctx context.Context, qbankID uuid.UUID, questions []model.BankQuestion) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM qbank_questions WHERE qbank_id = $1`, qbankID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i := range questions {
		q := &questions[i]
		batch.Queue(
			`INSERT INTO qbank_questions (qbank_id, subject_name, text, options, correct_option, explanation, order_num)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			qbankID, q.SubjectName, q.Text, q.Options, q.CorrectOption, q.Explanation, q.OrderNum,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scholarpath/testportal-backend/internal/model"
)

// ApplicationRepository handles scholarship application data access.
type ApplicationRepository struct {
	pool *pgxpool.Pool
}

// NewApplicationRepository creates a new ApplicationRepository.
func NewApplicationRepository(pool *pgxpool.Pool) *ApplicationRepository {
	return &ApplicationRepository{pool: pool}
}

// GetByApplicationNo retrieves an application by its public number.
// Returns pgx.ErrNoRows when no record exists.
func (r *ApplicationRepository) GetByApplicationNo(ctx context.Context, applicationNo string) (*model.Application, error) {
	a := &model.Application{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, application_no, applicant_name, email, modality, payment_verified, created_at, updated_at
		 FROM applications
		 WHERE application_no = $1`, applicationNo,
	).Scan(&a.ID, &a.ApplicationNo, &a.ApplicantName, &a.Email, &a.Modality, &a.PaymentVerified, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new application record.
func (r *ApplicationRepository) Create(ctx context.Context, a *model.Application) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO applications (application_no, applicant_name, email, modality, payment_verified)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		a.ApplicationNo, a.ApplicantName, a.Email, a.Modality, a.PaymentVerified,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// MarkPaymentVerified flips the payment flag after fee verification.
func (r *ApplicationRepository) MarkPaymentVerified(ctx context.Context, applicationNo string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE applications SET payment_verified = TRUE, updated_at = NOW()
		 WHERE application_no = $1`, applicationNo)
	return err
}

// List retrieves applications with pagination.
func (r *ApplicationRepository) List(ctx context.Context, limit, offset int) ([]model.Application, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM applications`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, application_no, applicant_name, email, modality, payment_verified, created_at, updated_at
		 FROM applications
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var apps []model.Application
	for rows.Next() {
		var a model.Application
		if err := rows.Scan(&a.ID, &a.ApplicationNo, &a.ApplicantName, &a.Email, &a.Modality, &a.PaymentVerified, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, err
		}
		apps = append(apps, a)
	}
	return apps, total, rows.Err()
}

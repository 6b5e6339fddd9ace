package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/scholarpath/testportal-backend/internal/model"
	"github.com/scholarpath/testportal-backend/internal/repository"
	"github.com/scholarpath/testportal-backend/internal/response"
)

// ApplicationService manages application records on behalf of
// administrators.
type ApplicationService struct {
	applications *repository.ApplicationRepository
	log          zerolog.Logger
}

// NewApplicationService creates a new ApplicationService.
func NewApplicationService(applications *repository.ApplicationRepository, log zerolog.Logger) *ApplicationService {
	return &ApplicationService{
		applications: applications,
		log:          log.With().Str("component", "application_service").Logger(),
	}
}

// Create registers a new application record.
func (s *ApplicationService) Create(ctx context.Context, req *model.CreateApplicationRequest) (*model.Application, error) {
	app := &model.Application{
		ApplicationNo:   strings.TrimSpace(req.ApplicationNo),
		ApplicantName:   strings.TrimSpace(req.ApplicantName),
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		Modality:        req.Modality,
		PaymentVerified: req.PaymentVerified,
	}
	if err := s.applications.Create(ctx, app); err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}
	return app, nil
}

// Get returns an application by its public number.
func (s *ApplicationService) Get(ctx context.Context, applicationNo string) (*model.Application, error) {
	app, err := s.applications.GetByApplicationNo(ctx, strings.TrimSpace(applicationNo))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Coded(response.ErrRecordNotFound, nil)
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}

// List returns applications, paginated.
func (s *ApplicationService) List(ctx context.Context, limit, offset int) ([]model.Application, int, error) {
	return s.applications.List(ctx, limit, offset)
}

// VerifyPayment flags an application's fee as verified.
func (s *ApplicationService) VerifyPayment(ctx context.Context, applicationNo string) error {
	if _, err := s.Get(ctx, applicationNo); err != nil {
		return err
	}
	if err := s.applications.MarkPaymentVerified(ctx, applicationNo); err != nil {
		return fmt.Errorf("mark payment verified: %w", err)
	}
	s.log.Info().Str("application_no", applicationNo).Msg("Payment verified")
	return nil
}

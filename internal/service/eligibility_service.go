package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/scholarpath/testportal-backend/internal/model"
	"github.com/scholarpath/testportal-backend/internal/response"
)

// TestLookup resolves a test definition by ID.
type TestLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.TestDefinition, error)
}

// ApplicationLookup resolves an application record by its public number.
type ApplicationLookup interface {
	GetByApplicationNo(ctx context.Context, applicationNo string) (*model.Application, error)
}

// ResultGuard answers whether a final score already exists for an attempt.
type ResultGuard interface {
	ExistsFor(ctx context.Context, applicationNo string, testID uuid.UUID) (bool, error)
}

// SubmittedMarker reports the marker set synchronously at submit time,
// before the persistence worker lands the result in the database.
type SubmittedMarker interface {
	IsSubmitted(ctx context.Context, applicationNo string, testID uuid.UUID) (bool, error)
}

// submissionGuard is the duplicate-submission check over both halves of the
// result pipeline: the submit-time marker covers the window where a result
// sits in the worker queue, the results table covers everything after.
type submissionGuard struct {
	marker  SubmittedMarker
	durable ResultGuard
}

// NewSubmissionGuard combines the submit-time marker with the durable
// results table into one ResultGuard.
func NewSubmissionGuard(marker SubmittedMarker, durable ResultGuard) ResultGuard {
	return &submissionGuard{marker: marker, durable: durable}
}

func (g *submissionGuard) ExistsFor(ctx context.Context, applicationNo string, testID uuid.UUID) (bool, error) {
	if ok, err := g.marker.IsSubmitted(ctx, applicationNo, testID); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}
	return g.durable.ExistsFor(ctx, applicationNo, testID)
}

// EligibilityService is the one-time admission check preceding session
// creation. Its checks run in a fixed order and short-circuit on the first
// failure; the resulting record is the only input session creation trusts,
// and nothing re-runs these checks after the timer starts.
type EligibilityService struct {
	tests        TestLookup
	applications ApplicationLookup
	results      ResultGuard
	log          zerolog.Logger
}

// NewEligibilityService creates a new EligibilityService.
func NewEligibilityService(tests TestLookup, applications ApplicationLookup, results ResultGuard, log zerolog.Logger) *EligibilityService {
	return &EligibilityService{
		tests:        tests,
		applications: applications,
		results:      results,
		log:          log.With().Str("component", "eligibility").Logger(),
	}
}

// VerifyInput carries everything one verification pass needs.
type VerifyInput struct {
	ApplicationNo string
	// CandidateName is the authenticated display name, matched against the
	// application record.
	CandidateName string
	// AdminBypass skips the identity match (proctored entry by staff).
	AdminBypass bool
}

// Verify runs one verification pass for an entry attempt. A non-eligible
// record carries the specific reason code; an error is returned only for
// infrastructure failures.
func (s *EligibilityService) Verify(ctx context.Context, testID uuid.UUID, in VerifyInput) (*model.EligibilityRecord, error) {
	ineligible := func(code response.ErrCode) *model.EligibilityRecord {
		return &model.EligibilityRecord{Eligible: false, Reason: string(code), TestID: testID}
	}

	// 1. Test lookup and window validity.
	def, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ineligible(response.ErrTestNotAvailable), nil
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	if def.Status != model.TestStatusPublished {
		return ineligible(response.ErrTestNotAvailable), nil
	}
	now := time.Now()
	if def.TestStart != nil && now.Before(*def.TestStart) {
		return ineligible(response.ErrOutsideTestWindow), nil
	}
	if def.TestEnd != nil && now.After(*def.TestEnd) {
		return ineligible(response.ErrOutsideTestWindow), nil
	}

	// 2. Application lookup.
	app, err := s.applications.GetByApplicationNo(ctx, strings.TrimSpace(in.ApplicationNo))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ineligible(response.ErrRecordNotFound), nil
		}
		return nil, fmt.Errorf("lookup application: %w", err)
	}

	// 3. Duplicate-submission guard: one result per application+test, ever.
	exists, err := s.results.ExistsFor(ctx, app.ApplicationNo, testID)
	if err != nil {
		return nil, fmt.Errorf("check existing result: %w", err)
	}
	if exists {
		return ineligible(response.ErrAlreadySubmitted), nil
	}

	// 4. Modality: an offline-registered application cannot enter online.
	if app.Modality == model.ModalityOffline {
		return ineligible(response.ErrWrongModality), nil
	}

	// 5. Payment flag. Not a hard failure: the caller may route to the
	// payment step and retry verification later.
	if !app.PaymentVerified {
		return ineligible(response.ErrPaymentRequired), nil
	}

	// 6. Identity match against the application record.
	if !in.AdminBypass && !namesMatch(in.CandidateName, app.ApplicantName) {
		s.log.Warn().
			Str("application_no", app.ApplicationNo).
			Str("test_id", testID.String()).
			Msg("Identity mismatch on entry")
		return ineligible(response.ErrIdentityMismatch), nil
	}

	return &model.EligibilityRecord{
		Eligible:      true,
		ApplicantName: app.ApplicantName,
		ApplicationNo: app.ApplicationNo,
		TestID:        testID,
	}, nil
}

// namesMatch compares display names case-insensitively, ignoring surrounding
// whitespace.
func namesMatch(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

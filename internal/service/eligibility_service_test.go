package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/scholarpath/testportal-backend/internal/model"
	"github.com/scholarpath/testportal-backend/internal/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTestLookup struct {
	tests map[uuid.UUID]*model.TestDefinition
}

func (f *fakeTestLookup) GetByID(_ context.Context, id uuid.UUID) (*model.TestDefinition, error) {
	def, ok := f.tests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return def, nil
}

type fakeApplicationLookup struct {
	apps map[string]*model.Application
}

func (f *fakeApplicationLookup) GetByApplicationNo(_ context.Context, no string) (*model.Application, error) {
	app, ok := f.apps[no]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return app, nil
}

type fakeResultGuard struct {
	submitted map[string]bool
}

func (f *fakeResultGuard) ExistsFor(_ context.Context, applicationNo string, testID uuid.UUID) (bool, error) {
	return f.submitted[applicationNo+":"+testID.String()], nil
}

type eligibilityFixture struct {
	svc   *EligibilityService
	def   *model.TestDefinition
	app   *model.Application
	guard *fakeResultGuard
}

func newEligibilityFixture() *eligibilityFixture {
	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	def := &model.TestDefinition{
		ID:        uuid.New(),
		Title:     "Entrance",
		Status:    model.TestStatusPublished,
		TestStart: &start,
		TestEnd:   &end,
	}
	app := &model.Application{
		ApplicationNo:   "SCH-2026-0001",
		ApplicantName:   "Amit Kumar",
		Modality:        model.ModalityOnline,
		PaymentVerified: true,
	}
	guard := &fakeResultGuard{submitted: map[string]bool{}}
	svc := NewEligibilityService(
		&fakeTestLookup{tests: map[uuid.UUID]*model.TestDefinition{def.ID: def}},
		&fakeApplicationLookup{apps: map[string]*model.Application{app.ApplicationNo: app}},
		guard,
		zerolog.Nop(),
	)
	return &eligibilityFixture{svc: svc, def: def, app: app, guard: guard}
}

func (f *eligibilityFixture) verify(t *testing.T, in VerifyInput) *model.EligibilityRecord {
	t.Helper()
	record, err := f.svc.Verify(context.Background(), f.def.ID, in)
	require.NoError(t, err)
	return record
}

func TestVerifyEligible(t *testing.T) {
	f := newEligibilityFixture()

	record := f.verify(t, VerifyInput{ApplicationNo: "SCH-2026-0001", CandidateName: "Amit Kumar"})

	assert.True(t, record.Eligible)
	assert.Equal(t, "Amit Kumar", record.ApplicantName)
	assert.Equal(t, "SCH-2026-0001", record.ApplicationNo)
	assert.Empty(t, record.Reason)
}

func TestVerifyUnknownTest(t *testing.T) {
	f := newEligibilityFixture()

	record, err := f.svc.Verify(context.Background(), uuid.New(), VerifyInput{ApplicationNo: "SCH-2026-0001"})
	require.NoError(t, err)
	assert.False(t, record.Eligible)
	assert.Equal(t, string(response.ErrTestNotAvailable), record.Reason)
}

func TestVerifyOutsideWindow(t *testing.T) {
	f := newEligibilityFixture()

	future := time.Now().Add(time.Hour)
	f.def.TestStart = &future
	record := f.verify(t, VerifyInput{ApplicationNo: "SCH-2026-0001", CandidateName: "Amit Kumar"})
	assert.Equal(t, string(response.ErrOutsideTestWindow), record.Reason)

	past := time.Now().Add(-time.Hour)
	earlier := past.Add(-time.Hour)
	f.def.TestStart = &earlier
	f.def.TestEnd = &past
	record = f.verify(t, VerifyInput{ApplicationNo: "SCH-2026-0001", CandidateName: "Amit Kumar"})
	assert.Equal(t, string(response.ErrOutsideTestWindow), record.Reason)
}

func TestVerifyOpenEndedWindow(t *testing.T) {
	f := newEligibilityFixture()
	f.def.TestStart = nil
	f.def.TestEnd = nil

	record := f.verify(t, VerifyInput{ApplicationNo: "SCH-2026-0001", CandidateName: "Amit Kumar"})
	assert.True(t, record.Eligible)
}

func TestVerifyUnpublishedTest(t *testing.T) {
	f := newEligibilityFixture()
	f.def.Status = model.TestStatusDraft

	record := f.verify(t, VerifyInput{ApplicationNo: "SCH-2026-0001", CandidateName: "Amit Kumar"})
	assert.Equal(t, string(response.ErrTestNotAvailable), record.Reason)
}

func TestVerifyRecordNotFound(t *testing.T) {
	f := newEligibilityFixture()

	record := f.verify(t, VerifyInput{ApplicationNo: "SCH-2026-9999", CandidateName: "Amit Kumar"})
	assert.Equal(t, string(response.ErrRecordNotFound), record.Reason)
}

func TestVerifyAlreadySubmitted(t *testing.T) {
	f := newEligibilityFixture()
	f.guard.submitted["SCH-2026-0001:"+f.def.ID.String()] = true

	record := f.verify(t, VerifyInput{ApplicationNo: "SCH-2026-0001", CandidateName: "Amit Kumar"})
	assert.Equal(t, string(response.ErrAlreadySubmitted), record.Reason)
}

func TestVerifyWrongModality(t *testing.T) {
	f := newEligibilityFixture()
	f.app.Modality = model.ModalityOffline

	record := f.verify(t, VerifyInput{ApplicationNo: "SCH-2026-0001", CandidateName: "Amit Kumar"})
	assert.Equal(t, string(response.ErrWrongModality), record.Reason)
}

func TestVerifyPaymentRequired(t *testing.T) {
	f := newEligibilityFixture()
	f.app.PaymentVerified = false

	record := f.verify(t, VerifyInput{ApplicationNo: "SCH-2026-0001", CandidateName: "Amit Kumar"})
	assert.Equal(t, string(response.ErrPaymentRequired), record.Reason)
}

func TestVerifyIdentityMismatch(t *testing.T) {
	f := newEligibilityFixture()

	record := f.verify(t, VerifyInput{ApplicationNo: "SCH-2026-0001", CandidateName: "Priya Sharma"})
	assert.Equal(t, string(response.ErrIdentityMismatch), record.Reason)

	// Case and whitespace differences are not mismatches.
	record = f.verify(t, VerifyInput{ApplicationNo: "SCH-2026-0001", CandidateName: "  amit KUMAR "})
	assert.True(t, record.Eligible)
}

func TestVerifyAdminBypassSkipsIdentity(t *testing.T) {
	f := newEligibilityFixture()

	record := f.verify(t, VerifyInput{ApplicationNo: "SCH-2026-0001", CandidateName: "Proctor Desk", AdminBypass: true})
	assert.True(t, record.Eligible)
}

func TestVerifyCheckOrder(t *testing.T) {
	// Every check that could fail does; the window failure wins because it
	// runs first.
	f := newEligibilityFixture()
	future := time.Now().Add(time.Hour)
	f.def.TestStart = &future
	f.app.Modality = model.ModalityOffline
	f.app.PaymentVerified = false
	f.guard.submitted["SCH-2026-0001:"+f.def.ID.String()] = true

	record := f.verify(t, VerifyInput{ApplicationNo: "SCH-2026-0001", CandidateName: "Nobody"})
	assert.Equal(t, string(response.ErrOutsideTestWindow), record.Reason)

	// With the window open again, the duplicate-submission guard outranks
	// modality, payment, and identity.
	f.def.TestStart = nil
	record = f.verify(t, VerifyInput{ApplicationNo: "SCH-2026-0001", CandidateName: "Nobody"})
	assert.Equal(t, string(response.ErrAlreadySubmitted), record.Reason)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/scholarpath/testportal-backend/internal/config"
	"github.com/scholarpath/testportal-backend/internal/model"
	"github.com/scholarpath/testportal-backend/internal/repository"
	"github.com/scholarpath/testportal-backend/internal/response"
)

// TestService implements administrator management of test definitions:
// draft authoring, publication with cache warming, archival.
type TestService struct {
	tests     *repository.TestRepository
	questions *repository.QuestionRepository
	rdb       *redis.Client
	log       zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(tests *repository.TestRepository, questions *repository.QuestionRepository, rdb *redis.Client, log zerolog.Logger) *TestService {
	return &TestService{
		tests:     tests,
		questions: questions,
		rdb:       rdb,
		log:       log.With().Str("component", "test_service").Logger(),
	}
}

// Create stores a new draft test definition.
func (s *TestService) Create(ctx context.Context, req *model.CreateTestRequest) (*model.TestDefinition, error) {
	modality := req.Modality
	if modality == "" {
		modality = model.ModalityOnline
	}

	def := &model.TestDefinition{
		ID:               uuid.New(),
		Title:            req.Title,
		TimeLimitMinutes: req.TimeLimitMinutes,
		TestStart:        req.TestStart,
		TestEnd:          req.TestEnd,
		Modality:         modality,
		PassThreshold:    req.PassThreshold,
		Source:           req.Source,
		Subjects:         req.Subjects,
		QBankID:          req.QBankID,
		Status:           model.TestStatusDraft,
	}
	for _, subject := range def.Subjects {
		def.TotalQuestions += subject.QuestionCount
	}

	if err := s.validateSource(ctx, def); err != nil {
		return nil, err
	}
	if err := s.tests.Create(ctx, def); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}
	return def, nil
}

// Get returns a test definition by ID.
func (s *TestService) Get(ctx context.Context, id uuid.UUID) (*model.TestDefinition, error) {
	def, err := s.tests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Coded(response.ErrTestNotAvailable, nil)
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	return def, nil
}

// List returns all test definitions, paginated, for the admin console.
func (s *TestService) List(ctx context.Context, limit, offset int) ([]model.TestDefinition, int, error) {
	return s.tests.ListPaginated(ctx, limit, offset)
}

// ListAvailable returns the published tests candidates may enter.
func (s *TestService) ListAvailable(ctx context.Context) ([]model.TestDefinition, error) {
	return s.tests.ListPublished(ctx)
}

// Update modifies a draft definition. Published tests are immutable; archive
// and recreate instead.
func (s *TestService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateTestRequest) (*model.TestDefinition, error) {
	def, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if def.Status != model.TestStatusDraft {
		return nil, Coded(response.ErrTestNotDraft, nil)
	}

	if req.Title != "" {
		def.Title = req.Title
	}
	if req.TimeLimitMinutes > 0 {
		def.TimeLimitMinutes = req.TimeLimitMinutes
	}
	if req.TestStart != nil {
		def.TestStart = req.TestStart
	}
	if req.TestEnd != nil {
		def.TestEnd = req.TestEnd
	}
	if req.Modality != "" {
		def.Modality = req.Modality
	}
	if req.PassThreshold != nil {
		def.PassThreshold = req.PassThreshold
	}
	if req.Subjects != nil {
		def.Subjects = req.Subjects
		def.TotalQuestions = 0
		for _, subject := range def.Subjects {
			def.TotalQuestions += subject.QuestionCount
		}
	}
	if req.QBankID != nil {
		def.QBankID = req.QBankID
	}

	if err := s.validateSource(ctx, def); err != nil {
		return nil, err
	}
	if err := s.tests.Update(ctx, def); err != nil {
		return nil, fmt.Errorf("update test: %w", err)
	}
	return def, nil
}

// Publish makes a draft available to candidates and warms the Redis caches
// candidates read at session start.
func (s *TestService) Publish(ctx context.Context, id uuid.UUID) (*model.TestDefinition, error) {
	def, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if def.Status == model.TestStatusPublished {
		return def, nil
	}
	if def.Status == model.TestStatusArchived {
		return nil, Coded(response.ErrTestNotDraft, nil)
	}
	if err := s.validateSource(ctx, def); err != nil {
		return nil, err
	}

	if err := s.tests.UpdateStatus(ctx, id, model.TestStatusPublished); err != nil {
		return nil, fmt.Errorf("publish test: %w", err)
	}
	def.Status = model.TestStatusPublished

	if err := s.warmCache(ctx, def); err != nil {
		s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Cache warm failed")
	}
	return def, nil
}

// Archive takes a published test out of circulation and drops its caches.
func (s *TestService) Archive(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.tests.UpdateStatus(ctx, id, model.TestStatusArchived); err != nil {
		return fmt.Errorf("archive test: %w", err)
	}
	s.dropCache(ctx, id)
	return nil
}

// Delete removes a draft definition. Published and archived tests keep their
// rows so results stay attributable.
func (s *TestService) Delete(ctx context.Context, id uuid.UUID) error {
	def, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if def.Status != model.TestStatusDraft {
		return Coded(response.ErrTestNotDraft, nil)
	}
	return s.tests.Delete(ctx, id)
}

// PrewarmAllCaches repopulates the Redis caches for every published test.
// Run at server start so a Redis flush does not degrade session starts.
func (s *TestService) PrewarmAllCaches(ctx context.Context) error {
	published, err := s.tests.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published tests: %w", err)
	}
	for i := range published {
		if err := s.warmCache(ctx, &published[i]); err != nil {
			s.log.Warn().Err(err).Str("test_id", published[i].ID.String()).Msg("Cache warm failed")
		}
	}
	s.log.Info().Int("tests", len(published)).Msg("Test caches warmed")
	return nil
}

// validateSource checks the definition's question source is complete enough
// to ever produce a paper.
func (s *TestService) validateSource(ctx context.Context, def *model.TestDefinition) error {
	switch def.Source {
	case model.TestSourceCustomBank:
		if def.QBankID == nil {
			return Coded(response.ErrValidation, fmt.Errorf("custom bank test needs a qbank_id"))
		}
		if _, err := s.questions.GetBank(ctx, *def.QBankID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Coded(response.ErrValidation, fmt.Errorf("question bank %s not found", def.QBankID))
			}
			return fmt.Errorf("get bank: %w", err)
		}
	case model.TestSourceGenerated:
		if len(def.Subjects) == 0 {
			return Coded(response.ErrValidation, fmt.Errorf("generated test needs at least one subject"))
		}
		for _, subject := range def.Subjects {
			if subject.QuestionCount <= 0 {
				return Coded(response.ErrValidation, fmt.Errorf("subject %s has no question count", subject.Name))
			}
		}
	}
	return nil
}

// EntryCard returns the candidate-facing summary of a published test,
// served from the Redis cache warmed at publish. A miss (Redis flush, or a
// test published by another instance before this one booted) falls back to
// the database and re-warms the key.
func (s *TestService) EntryCard(ctx context.Context, id uuid.UUID) (*model.TestEntryCard, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.TestEntryKey(id.String())).Bytes()
	if err == nil {
		var card model.TestEntryCard
		if err := json.Unmarshal(raw, &card); err == nil {
			return &card, nil
		}
		// Unreadable cache entry; rebuild below.
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Entry cache read failed")
	}

	def, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if def.Status != model.TestStatusPublished {
		return nil, Coded(response.ErrTestNotAvailable, nil)
	}
	if err := s.warmCache(ctx, def); err != nil {
		s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Cache warm failed")
	}
	card := entryCard(def, s.bankQuestionCount(ctx, def))
	return &card, nil
}

// entryCard builds the cached summary. bankQuestions is the stored question
// count for custom-bank tests; generated tests carry their total on the
// definition.
func entryCard(def *model.TestDefinition, bankQuestions int) model.TestEntryCard {
	total := def.TotalQuestions
	if def.Source == model.TestSourceCustomBank {
		total = bankQuestions
	}
	return model.TestEntryCard{
		TestID:           def.ID,
		Title:            def.Title,
		TimeLimitMinutes: def.TimeLimitMinutes,
		TotalQuestions:   total,
		TestStart:        def.TestStart,
		TestEnd:          def.TestEnd,
		Modality:         def.Modality,
	}
}

func (s *TestService) bankQuestionCount(ctx context.Context, def *model.TestDefinition) int {
	if def.Source != model.TestSourceCustomBank || def.QBankID == nil {
		return 0
	}
	stored, err := s.questions.ListByBank(ctx, *def.QBankID)
	if err != nil {
		s.log.Warn().Err(err).Str("test_id", def.ID.String()).Msg("Count bank questions failed")
		return 0
	}
	return len(stored)
}

// warmCache writes the entry-screen summary key read by EntryCard.
func (s *TestService) warmCache(ctx context.Context, def *model.TestDefinition) error {
	card := entryCard(def, s.bankQuestionCount(ctx, def))
	data, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshal entry card: %w", err)
	}

	warmCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.rdb.Set(warmCtx, config.CacheKey.TestEntryKey(def.ID.String()), data, 0).Err()
}

func (s *TestService) dropCache(ctx context.Context, id uuid.UUID) {
	if err := s.rdb.Del(ctx, config.CacheKey.TestEntryKey(id.String())).Err(); err != nil {
		s.log.Warn().Err(err).Str("test_id", id.String()).Msg("Cache drop failed")
	}
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/scholarpath/testportal-backend/internal/model"
	"github.com/scholarpath/testportal-backend/internal/repository"
	"github.com/scholarpath/testportal-backend/internal/response"
)

// QBankService manages the pre-authored question banks custom tests draw
// from.
type QBankService struct {
	questions *repository.QuestionRepository
	log       zerolog.Logger
}

// NewQBankService creates a new QBankService.
func NewQBankService(questions *repository.QuestionRepository, log zerolog.Logger) *QBankService {
	return &QBankService{
		questions: questions,
		log:       log.With().Str("component", "qbank_service").Logger(),
	}
}

// Create stores a new empty bank.
func (s *QBankService) Create(ctx context.Context, authorID int, req *model.CreateQBankRequest) (*model.QuestionBank, error) {
	bank := &model.QuestionBank{
		ID:       uuid.New(),
		Name:     req.Name,
		AuthorID: authorID,
	}
	if err := s.questions.CreateBank(ctx, bank); err != nil {
		return nil, fmt.Errorf("create bank: %w", err)
	}
	return bank, nil
}

// Get returns a bank by ID.
func (s *QBankService) Get(ctx context.Context, id uuid.UUID) (*model.QuestionBank, error) {
	bank, err := s.questions.GetBank(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Coded(response.ErrNotFound, nil)
		}
		return nil, fmt.Errorf("get bank: %w", err)
	}
	return bank, nil
}

// List returns all banks.
func (s *QBankService) List(ctx context.Context) ([]model.QuestionBank, error) {
	return s.questions.ListBanks(ctx)
}

// Delete removes a bank and its questions.
func (s *QBankService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.questions.DeleteBank(ctx, id)
}

// Questions returns a bank's questions in paper order.
func (s *QBankService) Questions(ctx context.Context, id uuid.UUID) ([]model.BankQuestion, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.questions.ListByBank(ctx, id)
}

// AddQuestion appends one question to a bank.
func (s *QBankService) AddQuestion(ctx context.Context, bankID uuid.UUID, req *model.AddBankQuestionRequest) (*model.BankQuestion, error) {
	if _, err := s.Get(ctx, bankID); err != nil {
		return nil, err
	}
	q := bankQuestionFromRequest(bankID, req)
	if err := s.questions.AddQuestion(ctx, q); err != nil {
		return nil, fmt.Errorf("add question: %w", err)
	}
	return q, nil
}

// ReplaceQuestions swaps out a bank's entire question list in one
// transaction.
func (s *QBankService) ReplaceQuestions(ctx context.Context, bankID uuid.UUID, req *model.ReplaceBankQuestionsRequest) error {
	if _, err := s.Get(ctx, bankID); err != nil {
		return err
	}
	questions := make([]model.BankQuestion, 0, len(req.Questions))
	for i := range req.Questions {
		questions = append(questions, *bankQuestionFromRequest(bankID, &req.Questions[i]))
	}
	if err := s.questions.ReplaceQuestions(ctx, bankID, questions); err != nil {
		return fmt.Errorf("replace questions: %w", err)
	}
	s.log.Info().
		Str("qbank_id", bankID.String()).
		Int("questions", len(questions)).
		Msg("Bank questions replaced")
	return nil
}

func bankQuestionFromRequest(bankID uuid.UUID, req *model.AddBankQuestionRequest) *model.BankQuestion {
	return &model.BankQuestion{
		ID:            uuid.New(),
		QBankID:       bankID,
		SubjectName:   req.SubjectName,
		Text:          req.Text,
		Options:       req.Options,
		CorrectOption: req.CorrectOption,
		Explanation:   req.Explanation,
		OrderNum:      req.OrderNum,
	}
}

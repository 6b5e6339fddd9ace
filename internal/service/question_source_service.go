package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/scholarpath/testportal-backend/internal/config"
	"github.com/scholarpath/testportal-backend/internal/generator"
	"github.com/scholarpath/testportal-backend/internal/model"
	"github.com/scholarpath/testportal-backend/internal/response"
)

// BankQuestionLister loads a bank's questions in stable order.
type BankQuestionLister interface {
	ListByBank(ctx context.Context, qbankID uuid.UUID) ([]model.BankQuestion, error)
}

// QuestionSourceService materializes the question list for a session. The
// list is built once at session start; flat 1-based IDs are assigned across
// subject boundaries and the definition's subject layout is filled in from
// the counts actually produced, so scoring attributes every index correctly
// even when generation came up short.
type QuestionSourceService struct {
	gen       generator.QuestionGenerator
	banks     BankQuestionLister
	shortfall config.ShortfallPolicy
	log       zerolog.Logger
}

// NewQuestionSourceService creates a new QuestionSourceService.
func NewQuestionSourceService(gen generator.QuestionGenerator, banks BankQuestionLister, shortfall config.ShortfallPolicy, log zerolog.Logger) *QuestionSourceService {
	return &QuestionSourceService{
		gen:       gen,
		banks:     banks,
		shortfall: shortfall,
		log:       log.With().Str("component", "question_source").Logger(),
	}
}

// Resolve produces the ordered question list for def and fills in
// def.SubjectLayout with the materialized per-subject counts. The returned
// slice is never empty on success.
func (s *QuestionSourceService) Resolve(ctx context.Context, def *model.TestDefinition) ([]model.Question, error) {
	var (
		questions []model.Question
		err       error
	)
	switch def.Source {
	case model.TestSourceCustomBank:
		questions, err = s.resolveBank(ctx, def)
	default:
		questions, err = s.resolveGenerated(ctx, def)
	}
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, Coded(response.ErrNoQuestions, nil)
	}
	return questions, nil
}

func (s *QuestionSourceService) resolveGenerated(ctx context.Context, def *model.TestDefinition) ([]model.Question, error) {
	if len(def.Subjects) == 0 {
		return nil, Coded(response.ErrNoQuestions, nil)
	}

	var questions []model.Question
	layout := make([]model.SubjectCount, 0, len(def.Subjects))
	nextID := 1

	for _, subject := range def.Subjects {
		generated, err := s.gen.Generate(ctx, subject)
		if err != nil {
			return nil, Coded(response.ErrGeneratorUnavailable, err)
		}
		if len(generated) > subject.QuestionCount {
			generated = generated[:subject.QuestionCount]
		}
		if len(generated) < subject.QuestionCount {
			if s.shortfall == config.ShortfallStrict {
				return nil, Coded(response.ErrNoQuestions,
					fmt.Errorf("subject %s: got %d of %d questions", subject.Name, len(generated), subject.QuestionCount))
			}
			s.log.Warn().
				Str("subject", subject.Name).
				Int("requested", subject.QuestionCount).
				Int("received", len(generated)).
				Msg("Generation shortfall, continuing with partial set")
		}
		for _, g := range generated {
			questions = append(questions, model.Question{
				ID:            nextID,
				SubjectName:   subject.Name,
				Text:          g.Text,
				Options:       g.Options,
				CorrectOption: g.CorrectOption,
				Explanation:   g.Explanation,
			})
			nextID++
		}
		layout = append(layout, model.SubjectCount{Name: subject.Name, Count: len(generated)})
	}

	def.SubjectLayout = layout
	return questions, nil
}

func (s *QuestionSourceService) resolveBank(ctx context.Context, def *model.TestDefinition) ([]model.Question, error) {
	if def.QBankID == nil {
		return nil, Coded(response.ErrNoQuestions, fmt.Errorf("test %s has no question bank", def.ID))
	}
	stored, err := s.banks.ListByBank(ctx, *def.QBankID)
	if err != nil {
		return nil, fmt.Errorf("list bank questions: %w", err)
	}

	// ListByBank orders by subject then order_num, so consecutive rows of
	// the same subject form one layout segment.
	questions := make([]model.Question, 0, len(stored))
	var layout []model.SubjectCount
	for i, q := range stored {
		questions = append(questions, model.Question{
			ID:            i + 1,
			SubjectName:   q.SubjectName,
			Text:          q.Text,
			Options:       q.Options,
			CorrectOption: q.CorrectOption,
			Explanation:   q.Explanation,
		})
		if n := len(layout); n > 0 && layout[n-1].Name == q.SubjectName {
			layout[n-1].Count++
		} else {
			layout = append(layout, model.SubjectCount{Name: q.SubjectName, Count: 1})
		}
	}

	def.SubjectLayout = layout
	return questions, nil
}

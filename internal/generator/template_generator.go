package generator

import (
	"context"
	"fmt"

	"github.com/scholarpath/testportal-backend/internal/model"
)

// TemplateGenerator is the dev fallback used when no provider URL is
// configured. It produces deterministic placeholder questions so the session
// flow can be exercised end to end without an AI provider.
type TemplateGenerator struct{}

// NewTemplateGenerator creates a TemplateGenerator.
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

var _ QuestionGenerator = (*TemplateGenerator)(nil)

// Generate produces count placeholder questions for a subject. The correct
// option is always "A" so dev sessions are scorable.
func (g *TemplateGenerator) Generate(_ context.Context, subject model.SubjectSpec) ([]GeneratedQuestion, error) {
	questions := make([]GeneratedQuestion, subject.QuestionCount)
	for i := range questions {
		questions[i] = GeneratedQuestion{
			Text:          fmt.Sprintf("[%s] Placeholder question %d for %s level", subject.Name, i+1, subject.AudienceLevel),
			Options:       []string{"A", "B", "C", "D"},
			CorrectOption: "A",
		}
	}
	return questions, nil
}

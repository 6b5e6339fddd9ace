// Package generator defines the question-supplier boundary. The portal trusts
// providers to produce question content; it never inspects how they do it.
package generator

import (
	"context"

	"github.com/scholarpath/testportal-backend/internal/model"
)

// GeneratedQuestion is one question as returned by a provider, before flat
// session IDs are assigned.
type GeneratedQuestion struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"correct_option"`
	Explanation   string   `json:"explanation,omitempty"`
}

// QuestionGenerator produces questions for one subject. Implementations may
// return fewer than count questions; the caller's shortfall policy decides
// what happens then.
type QuestionGenerator interface {
	Generate(ctx context.Context, subject model.SubjectSpec) ([]GeneratedQuestion, error)
}

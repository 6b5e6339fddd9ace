package model

import (
	"time"

	"github.com/google/uuid"
)

// Question is one question of a materialized session paper. IDs are flat
// 1-based running counters assigned across subject boundaries at resolution
// time, so a flat index can always be mapped back to its subject.
type Question struct {
	ID            int      `json:"id"`
	SubjectName   string   `json:"subject_name"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"correct_option"`
	Explanation   string   `json:"explanation,omitempty"`
}

// QuestionForCandidate is a question without the correct answer, sent to
// candidates.
type QuestionForCandidate struct {
	ID          int      `json:"id"`
	SubjectName string   `json:"subject_name"`
	Text        string   `json:"text"`
	Options     []string `json:"options"`
}

// ForCandidate strips the answer key from a question.
func (q Question) ForCandidate() QuestionForCandidate {
	return QuestionForCandidate{
		ID:          q.ID,
		SubjectName: q.SubjectName,
		Text:        q.Text,
		Options:     q.Options,
	}
}

// QuestionBank is a pre-authored collection of questions usable as a test's
// custom source.
type QuestionBank struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	AuthorID  int       `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BankQuestion is a question as stored in a bank, before flat IDs are
// assigned for a session.
type BankQuestion struct {
	ID            uuid.UUID `json:"id"`
	QBankID       uuid.UUID `json:"qbank_id"`
	SubjectName   string    `json:"subject_name"`
	Text          string    `json:"text"`
	Options       []string  `json:"options"`
	CorrectOption string    `json:"correct_option"`
	Explanation   string    `json:"explanation,omitempty"`
	OrderNum      int       `json:"order_num"`
}

// CreateQBankRequest is the payload for creating a question bank.
type CreateQBankRequest struct {
	Name string `json:"name" binding:"required,min=3,max=255"`
}

// AddBankQuestionRequest is the payload for adding a question to a bank.
type AddBankQuestionRequest struct {
	SubjectName   string   `json:"subject_name" binding:"required,min=1,max=100"`
	Text          string   `json:"text" binding:"required,min=1,max=2000"`
	Options       []string `json:"options" binding:"required,min=2,max=6,dive,min=1"`
	CorrectOption string   `json:"correct_option" binding:"required,max=500"`
	Explanation   string   `json:"explanation" binding:"omitempty,max=2000"`
	OrderNum      int      `json:"order_num" binding:"min=0"`
}

// ReplaceBankQuestionsRequest is the payload for bulk replacing a bank's
// questions.
type ReplaceBankQuestionsRequest struct {
	Questions []AddBankQuestionRequest `json:"questions" binding:"dive"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerEvent is one recorded answer selection, queued for durable
// persistence in the audit trail. The in-memory session remains the source
// of truth for scoring; this trail exists for dispute review.
type AnswerEvent struct {
	ApplicationNo  string    `json:"application_no"`
	TestID         uuid.UUID `json:"test_id"`
	QuestionID     int       `json:"question_id"`
	SelectedOption string    `json:"selected_option"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// AnswerRequest is the payload for recording an answer.
type AnswerRequest struct {
	QuestionIndex  int    `json:"question_index" binding:"min=0"`
	SelectedOption string `json:"selected_option" binding:"required,max=500"`
}

// NavigateRequest is the payload for moving the current question position.
type NavigateRequest struct {
	QuestionIndex int `json:"question_index" binding:"min=0"`
}

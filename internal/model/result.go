package model

import (
	"time"

	"github.com/google/uuid"
)

// ResultStatus is the pass/fail determination of a completed session.
type ResultStatus string

const (
	ResultPass ResultStatus = "PASS"
	ResultFail ResultStatus = "FAIL"
)

// SubjectScore is the per-subject correctness tally within one result.
type SubjectScore struct {
	Name    string `json:"name"`
	Correct int    `json:"correct"`
	Total   int    `json:"total"`
}

// ScoreResult is the immutable final score record of one submitted session.
type ScoreResult struct {
	ID               uuid.UUID      `json:"id"`
	ApplicationNo    string         `json:"application_no"`
	ApplicantName    string         `json:"applicant_name"`
	TestID           uuid.UUID      `json:"test_id"`
	TestName         string         `json:"test_name"`
	TotalQuestions   int            `json:"total_questions"`
	CorrectCount     int            `json:"correct_count"`
	Percentage       float64        `json:"percentage"`
	SubjectBreakdown []SubjectScore `json:"subject_breakdown"`
	Status           ResultStatus   `json:"status"`
	TimeTakenSeconds int64          `json:"time_taken_seconds"`
	CreatedAt        time.Time      `json:"created_at"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// TestStatus enumerates the possible states of a test definition.
type TestStatus string

const (
	TestStatusDraft     TestStatus = "DRAFT"
	TestStatusPublished TestStatus = "PUBLISHED"
	TestStatusArchived  TestStatus = "ARCHIVED"
)

// TestSource distinguishes how a test's question list is produced.
type TestSource string

const (
	// TestSourceGenerated builds the paper per subject via the question
	// generator at session start.
	TestSourceGenerated TestSource = "GENERATED"
	// TestSourceCustomBank loads a pre-authored question bank verbatim.
	TestSourceCustomBank TestSource = "CUSTOM_BANK"
)

// SubjectSpec configures one subject segment of a generated test.
type SubjectSpec struct {
	Name          string `json:"name"`
	QuestionCount int    `json:"question_count"`
	AudienceLevel string `json:"audience_level"`
	Language      string `json:"language"`
}

// SubjectCount is one segment of the materialized subject layout: the actual
// number of consecutive questions belonging to a subject. Cumulative counts
// over the layout map a flat question index back to its owning subject.
type SubjectCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TestDefinition is an administrator-authored test template. Immutable once
// published; never mutated by a session.
type TestDefinition struct {
	ID               uuid.UUID     `json:"id"`
	Title            string        `json:"title"`
	TimeLimitMinutes int           `json:"time_limit_minutes"`
	TotalQuestions   int           `json:"total_questions"`
	TestStart        *time.Time    `json:"test_start,omitempty"`
	TestEnd          *time.Time    `json:"test_end,omitempty"`
	Modality         Modality      `json:"modality"`
	PassThreshold    *float64      `json:"pass_threshold,omitempty"`
	Source           TestSource    `json:"source"`
	Subjects         []SubjectSpec `json:"subjects,omitempty"`
	QBankID          *uuid.UUID    `json:"qbank_id,omitempty"`
	Status           TestStatus    `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`

	// SubjectLayout is filled in at resolution time with the actual
	// per-subject counts of the materialized paper. It is what the scorer
	// uses to attribute a flat index to a subject.
	SubjectLayout []SubjectCount `json:"subject_layout,omitempty"`
}

// IndexSubject maps a zero-based flat question index to its owning subject
// name using cumulative counts over the layout. Returns "" when the layout is
// empty or the index falls past its end.
func (d *TestDefinition) IndexSubject(index int) string {
	cum := 0
	for _, seg := range d.SubjectLayout {
		cum += seg.Count
		if index < cum {
			return seg.Name
		}
	}
	return ""
}

// CreateTestRequest is the payload for creating a new test definition.
type CreateTestRequest struct {
	Title            string        `json:"title" binding:"required,min=3,max=255"`
	TimeLimitMinutes int           `json:"time_limit_minutes" binding:"required,min=1,max=480"`
	TestStart        *time.Time    `json:"test_start" binding:"omitempty"`
	TestEnd          *time.Time    `json:"test_end" binding:"omitempty,gtfield=TestStart"`
	Modality         Modality      `json:"modality" binding:"omitempty,oneof=ONLINE OFFLINE"`
	PassThreshold    *float64      `json:"pass_threshold" binding:"omitempty,min=0,max=100"`
	Source           TestSource    `json:"source" binding:"required,oneof=GENERATED CUSTOM_BANK"`
	Subjects         []SubjectSpec `json:"subjects" binding:"omitempty,dive"`
	QBankID          *uuid.UUID    `json:"qbank_id" binding:"omitempty"`
}

// UpdateTestRequest is the payload for updating a draft test definition.
type UpdateTestRequest struct {
	Title            string        `json:"title" binding:"omitempty,min=3,max=255"`
	TimeLimitMinutes int           `json:"time_limit_minutes" binding:"omitempty,min=1,max=480"`
	TestStart        *time.Time    `json:"test_start" binding:"omitempty"`
	TestEnd          *time.Time    `json:"test_end" binding:"omitempty,gtfield=TestStart"`
	Modality         Modality      `json:"modality" binding:"omitempty,oneof=ONLINE OFFLINE"`
	PassThreshold    *float64      `json:"pass_threshold" binding:"omitempty,min=0,max=100"`
	Subjects         []SubjectSpec `json:"subjects" binding:"omitempty,dive"`
	QBankID          *uuid.UUID    `json:"qbank_id" binding:"omitempty"`
}

// TestEntryCard is the Redis-cached summary shown on the candidate's entry
// screen, warmed at publish so the rush at test start never hits lazy
// loading. It never carries questions; the paper is only revealed at begin.
type TestEntryCard struct {
	TestID           uuid.UUID  `json:"test_id"`
	Title            string     `json:"title"`
	TimeLimitMinutes int        `json:"time_limit_minutes"`
	TotalQuestions   int        `json:"total_questions"`
	TestStart        *time.Time `json:"test_start,omitempty"`
	TestEnd          *time.Time `json:"test_end,omitempty"`
	Modality         Modality   `json:"modality"`
}

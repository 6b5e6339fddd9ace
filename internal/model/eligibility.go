package model

import "github.com/google/uuid"

// EligibilityRecord is the result of one entry-verification pass. It is
// created once per entry attempt and never persisted; a new session always
// re-verifies.
type EligibilityRecord struct {
	Eligible      bool      `json:"eligible"`
	Reason        string    `json:"reason,omitempty"`
	ApplicantName string    `json:"applicant_name,omitempty"`
	ApplicationNo string    `json:"application_no,omitempty"`
	TestID        uuid.UUID `json:"test_id"`
}

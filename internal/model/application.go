package model

import "time"

// Modality is the test-taking mode an application is registered for.
type Modality string

const (
	ModalityOnline  Modality = "ONLINE"
	ModalityOffline Modality = "OFFLINE"
)

// Application represents a scholarship-test application record, looked up by
// the application number the candidate supplies at the entry step.
type Application struct {
	ID              int       `json:"id"`
	ApplicationNo   string    `json:"application_no"`
	ApplicantName   string    `json:"applicant_name"`
	Email           string    `json:"email"`
	Modality        Modality  `json:"modality"`
	PaymentVerified bool      `json:"payment_verified"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// VerifyEntryRequest is the payload a candidate submits at the entry step.
type VerifyEntryRequest struct {
	ApplicationNo string `json:"application_no" binding:"required,min=4,max=30"`
}

// CreateApplicationRequest is the admin payload for registering an application.
type CreateApplicationRequest struct {
	ApplicationNo   string   `json:"application_no" binding:"required,min=4,max=30"`
	ApplicantName   string   `json:"applicant_name" binding:"required,min=2,max=100"`
	Email           string   `json:"email" binding:"required,email"`
	Modality        Modality `json:"modality" binding:"required,oneof=ONLINE OFFLINE"`
	PaymentVerified bool     `json:"payment_verified"`
}

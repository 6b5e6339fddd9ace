package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/scholarpath/testportal-backend/internal/middleware"
	"github.com/scholarpath/testportal-backend/internal/model"
	"github.com/scholarpath/testportal-backend/internal/response"
	"github.com/scholarpath/testportal-backend/internal/service"
	"github.com/scholarpath/testportal-backend/internal/validator"
)

// SessionHandler serves the candidate test-taking flow: entry verification,
// session start and resume, answer capture, submission and results.
type SessionHandler struct {
	sessions    *service.SessionService
	testService *service.TestService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService, testService *service.TestService) *SessionHandler {
	return &SessionHandler{sessions: sessions, testService: testService}
}

// ListAvailableTests godoc
// GET /api/v1/candidate/tests
// Returns the published tests a candidate may enter.
func (h *SessionHandler) ListAvailableTests(c *gin.Context) {
	tests, err := h.testService.ListAvailable(c.Request.Context())
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"tests": tests})
}

// GetTestDetail godoc
// GET /api/v1/candidate/tests/:testId
// Serves the entry-screen summary from the Redis cache warmed at publish.
func (h *SessionHandler) GetTestDetail(c *gin.Context) {
	testID, err := uuid.Parse(c.Param("testId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	card, err := h.testService.EntryCard(c.Request.Context(), testID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": card})
}

// VerifyEntry godoc
// POST /api/v1/candidate/tests/:testId/verify
// Runs the admission checks without starting a session, so the client can
// route a payment-pending candidate to the payment step.
func (h *SessionHandler) VerifyEntry(c *gin.Context) {
	testID, verifyIn, ok := h.entryInput(c)
	if !ok {
		return
	}

	record, err := h.sessions.Verify(c.Request.Context(), testID, verifyIn)
	if err != nil {
		failFromErr(c, err)
		return
	}

	if !record.Eligible {
		code := response.ErrCode(record.Reason)
		response.Fail(c, statusFor(code), code)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"eligibility": record})
}

// BeginSession godoc
// POST /api/v1/candidate/tests/:testId/begin
// Starts the attempt, or resumes the existing one with its clock intact.
func (h *SessionHandler) BeginSession(c *gin.Context) {
	testID, verifyIn, ok := h.entryInput(c)
	if !ok {
		return
	}

	state, err := h.sessions.Begin(c.Request.Context(), testID, verifyIn)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// GetSessionState godoc
// GET /api/v1/candidate/tests/:testId/session?application_no=...
// Returns everything needed to redraw the page after a reload.
func (h *SessionHandler) GetSessionState(c *gin.Context) {
	testID, applicationNo, candidateName, ok := h.sessionRef(c)
	if !ok {
		return
	}

	state, err := h.sessions.State(c.Request.Context(), testID, applicationNo, candidateName)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// RecordAnswer godoc
// POST /api/v1/candidate/tests/:testId/answer?application_no=...
func (h *SessionHandler) RecordAnswer(c *gin.Context) {
	testID, applicationNo, candidateName, ok := h.sessionRef(c)
	if !ok {
		return
	}

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessions.Answer(c.Request.Context(), testID, applicationNo, candidateName, &req); err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// Navigate godoc
// POST /api/v1/candidate/tests/:testId/navigate?application_no=...
func (h *SessionHandler) Navigate(c *gin.Context) {
	testID, applicationNo, candidateName, ok := h.sessionRef(c)
	if !ok {
		return
	}

	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessions.Navigate(c.Request.Context(), testID, applicationNo, candidateName, req.QuestionIndex); err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// SubmitSession godoc
// POST /api/v1/candidate/tests/:testId/submit?application_no=...
// Finalizes the attempt. Idempotent against the timer's own expiry submit.
func (h *SessionHandler) SubmitSession(c *gin.Context) {
	testID, applicationNo, candidateName, ok := h.sessionRef(c)
	if !ok {
		return
	}

	result, err := h.sessions.Submit(c.Request.Context(), testID, applicationNo, candidateName)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// GetResult godoc
// GET /api/v1/candidate/tests/:testId/result?application_no=...
func (h *SessionHandler) GetResult(c *gin.Context) {
	testID, applicationNo, candidateName, ok := h.sessionRef(c)
	if !ok {
		return
	}

	result, err := h.sessions.Result(c.Request.Context(), testID, applicationNo, candidateName)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// entryInput parses the test ID, entry payload, and authenticated identity
// for the verify and begin endpoints.
func (h *SessionHandler) entryInput(c *gin.Context) (uuid.UUID, service.VerifyInput, bool) {
	testID, err := uuid.Parse(c.Param("testId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, service.VerifyInput{}, false
	}

	var req model.VerifyEntryRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return uuid.Nil, service.VerifyInput{}, false
	}

	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return uuid.Nil, service.VerifyInput{}, false
	}

	return testID, service.VerifyInput{
		ApplicationNo: req.ApplicationNo,
		CandidateName: claims.Name,
	}, true
}

// sessionRef parses the test ID and application number identifying an
// existing session, plus the authenticated candidate name the service
// matches against the attempt's identity.
func (h *SessionHandler) sessionRef(c *gin.Context) (uuid.UUID, string, string, bool) {
	testID, err := uuid.Parse(c.Param("testId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, "", "", false
	}

	applicationNo := c.Query("application_no")
	if applicationNo == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return uuid.Nil, "", "", false
	}

	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return uuid.Nil, "", "", false
	}
	return testID, applicationNo, claims.Name, true
}

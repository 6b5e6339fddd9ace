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

// QBankHandler serves admin management of question banks.
type QBankHandler struct {
	qbanks *service.QBankService
}

// NewQBankHandler creates a new QBankHandler.
func NewQBankHandler(qbanks *service.QBankService) *QBankHandler {
	return &QBankHandler{qbanks: qbanks}
}

// CreateBank godoc
// POST /api/v1/admin/qbanks
func (h *QBankHandler) CreateBank(c *gin.Context) {
	var req model.CreateQBankRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	bank, err := h.qbanks.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"qbank": bank})
}

// ListBanks godoc
// GET /api/v1/admin/qbanks
func (h *QBankHandler) ListBanks(c *gin.Context) {
	banks, err := h.qbanks.List(c.Request.Context())
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"qbanks": banks})
}

// GetBank godoc
// GET /api/v1/admin/qbanks/:qbankId
func (h *QBankHandler) GetBank(c *gin.Context) {
	bankID, ok := parseBankID(c)
	if !ok {
		return
	}

	bank, err := h.qbanks.Get(c.Request.Context(), bankID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"qbank": bank})
}

// DeleteBank godoc
// DELETE /api/v1/admin/qbanks/:qbankId
func (h *QBankHandler) DeleteBank(c *gin.Context) {
	bankID, ok := parseBankID(c)
	if !ok {
		return
	}

	if err := h.qbanks.Delete(c.Request.Context(), bankID); err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// ListBankQuestions godoc
// GET /api/v1/admin/qbanks/:qbankId/questions
func (h *QBankHandler) ListBankQuestions(c *gin.Context) {
	bankID, ok := parseBankID(c)
	if !ok {
		return
	}

	questions, err := h.qbanks.Questions(c.Request.Context(), bankID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// AddBankQuestion godoc
// POST /api/v1/admin/qbanks/:qbankId/questions
func (h *QBankHandler) AddBankQuestion(c *gin.Context) {
	bankID, ok := parseBankID(c)
	if !ok {
		return
	}

	var req model.AddBankQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, err := h.qbanks.AddQuestion(c.Request.Context(), bankID, &req)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"question": q})
}

// ReplaceBankQuestions godoc
// PUT /api/v1/admin/qbanks/:qbankId/questions
func (h *QBankHandler) ReplaceBankQuestions(c *gin.Context) {
	bankID, ok := parseBankID(c)
	if !ok {
		return
	}

	var req model.ReplaceBankQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.qbanks.ReplaceQuestions(c.Request.Context(), bankID, &req); err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

func parseBankID(c *gin.Context) (uuid.UUID, bool) {
	bankID, err := uuid.Parse(c.Param("qbankId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return bankID, true
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/scholarpath/testportal-backend/internal/model"
	"github.com/scholarpath/testportal-backend/internal/repository"
	"github.com/scholarpath/testportal-backend/internal/response"
	"github.com/scholarpath/testportal-backend/internal/service"
	"github.com/scholarpath/testportal-backend/internal/validator"
)

// AdminTestHandler serves the admin console's test management endpoints.
type AdminTestHandler struct {
	testService *service.TestService
	results     *repository.ResultRepository
}

// NewAdminTestHandler creates a new AdminTestHandler.
func NewAdminTestHandler(testService *service.TestService, results *repository.ResultRepository) *AdminTestHandler {
	return &AdminTestHandler{testService: testService, results: results}
}

// CreateTest godoc
// POST /api/v1/admin/tests
func (h *AdminTestHandler) CreateTest(c *gin.Context) {
	var req model.CreateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	def, err := h.testService.Create(c.Request.Context(), &req)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"test": def})
}

// ListTests godoc
// GET /api/v1/admin/tests?page=&per_page=
func (h *AdminTestHandler) ListTests(c *gin.Context) {
	page, perPage := paginationParams(c)

	tests, total, err := h.testService.List(c.Request.Context(), perPage, (page-1)*perPage)
	if err != nil {
		failFromErr(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"tests": tests}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	})
}

// GetTest godoc
// GET /api/v1/admin/tests/:testId
func (h *AdminTestHandler) GetTest(c *gin.Context) {
	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	def, err := h.testService.Get(c.Request.Context(), testID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": def})
}

// UpdateTest godoc
// PUT /api/v1/admin/tests/:testId
func (h *AdminTestHandler) UpdateTest(c *gin.Context) {
	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	var req model.UpdateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	def, err := h.testService.Update(c.Request.Context(), testID, &req)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": def})
}

// PublishTest godoc
// POST /api/v1/admin/tests/:testId/publish
func (h *AdminTestHandler) PublishTest(c *gin.Context) {
	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	def, err := h.testService.Publish(c.Request.Context(), testID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": def})
}

// ArchiveTest godoc
// POST /api/v1/admin/tests/:testId/archive
func (h *AdminTestHandler) ArchiveTest(c *gin.Context) {
	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	if err := h.testService.Archive(c.Request.Context(), testID); err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// DeleteTest godoc
// DELETE /api/v1/admin/tests/:testId
func (h *AdminTestHandler) DeleteTest(c *gin.Context) {
	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	if err := h.testService.Delete(c.Request.Context(), testID); err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// ListTestResults godoc
// GET /api/v1/admin/tests/:testId/results?page=&per_page=
func (h *AdminTestHandler) ListTestResults(c *gin.Context) {
	testID, ok := parseTestID(c)
	if !ok {
		return
	}
	page, perPage := paginationParams(c)

	results, total, err := h.results.ListByTest(c.Request.Context(), testID, perPage, (page-1)*perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	})
}

func parseTestID(c *gin.Context) (uuid.UUID, bool) {
	testID, err := uuid.Parse(c.Param("testId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return testID, true
}

func paginationParams(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/scholarpath/testportal-backend/internal/model"
	"github.com/scholarpath/testportal-backend/internal/response"
	"github.com/scholarpath/testportal-backend/internal/service"
	"github.com/scholarpath/testportal-backend/internal/validator"
)

// ApplicationHandler serves admin management of application records.
type ApplicationHandler struct {
	applications *service.ApplicationService
}

// NewApplicationHandler creates a new ApplicationHandler.
func NewApplicationHandler(applications *service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{applications: applications}
}

// CreateApplication godoc
// POST /api/v1/admin/applications
func (h *ApplicationHandler) CreateApplication(c *gin.Context) {
	var req model.CreateApplicationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	app, err := h.applications.Create(c.Request.Context(), &req)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"application": app})
}

// ListApplications godoc
// GET /api/v1/admin/applications?page=&per_page=
func (h *ApplicationHandler) ListApplications(c *gin.Context) {
	page, perPage := paginationParams(c)

	apps, total, err := h.applications.List(c.Request.Context(), perPage, (page-1)*perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"applications": apps}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	})
}

// GetApplication godoc
// GET /api/v1/admin/applications/:applicationNo
func (h *ApplicationHandler) GetApplication(c *gin.Context) {
	app, err := h.applications.Get(c.Request.Context(), c.Param("applicationNo"))
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"application": app})
}

// VerifyPayment godoc
// POST /api/v1/admin/applications/:applicationNo/verify-payment
func (h *ApplicationHandler) VerifyPayment(c *gin.Context) {
	if err := h.applications.VerifyPayment(c.Request.Context(), c.Param("applicationNo")); err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// Package handler wires HTTP requests to services and shapes their
// responses.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/scholarpath/testportal-backend/internal/response"
	"github.com/scholarpath/testportal-backend/internal/service"
)

// failFromErr maps a service error onto the response envelope. Unrecognized
// errors become a generic 500 so internals never leak.
func failFromErr(c *gin.Context, err error) {
	var coded *service.CodedError
	if !errors.As(err, &coded) {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Fail(c, statusFor(coded.Code), coded.Code)
}

func statusFor(code response.ErrCode) int {
	switch code {
	case response.ErrOutsideTestWindow,
		response.ErrWrongModality,
		response.ErrPaymentRequired,
		response.ErrIdentityMismatch:
		return http.StatusForbidden
	case response.ErrRecordNotFound,
		response.ErrTestNotAvailable,
		response.ErrNoActiveSession,
		response.ErrResultNotFound,
		response.ErrNotFound:
		return http.StatusNotFound
	case response.ErrAlreadySubmitted,
		response.ErrSessionSubmitted,
		response.ErrTestNotDraft,
		response.ErrConflict:
		return http.StatusConflict
	case response.ErrValidation,
		response.ErrIndexOutOfRange,
		response.ErrNoQuestions,
		response.ErrInvalidID:
		return http.StatusBadRequest
	case response.ErrGeneratorUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

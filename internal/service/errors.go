package service

import (
	"fmt"

	"github.com/scholarpath/testportal-backend/internal/response"
)

// CodedError is a service failure carrying the error code the transport
// layer maps to a response envelope.
type CodedError struct {
	Code response.ErrCode
	Err  error
}

func (e *CodedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *CodedError) Unwrap() error { return e.Err }

// Coded wraps err with a response code. err may be nil.
func Coded(code response.ErrCode, err error) *CodedError {
	return &CodedError{Code: code, Err: err}
}

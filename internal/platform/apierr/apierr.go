package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine-readable codes returned in the error envelope.
const (
	CodeInvalidRequest         = "invalid_request"
	CodeInputOutOfRange        = "input_out_of_range"
	CodeUnauthorized           = "unauthorized"
	CodeNotFound               = "not_found"
	CodeValidationInProgress   = "validation_in_progress"
	CodeHistoryUnavailable     = "history_unavailable"
	CodeAuditPersistenceFailed = "audit_persistence_failed"
	CodeInternal               = "internal_error"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// From unwraps an *Error from err, or wraps err as a 500.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return New(http.StatusInternalServerError, CodeInternal, err)
}

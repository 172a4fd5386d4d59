package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"echostrata/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context. Errors that are not yet an
// AppError get the code of the domain error they carry.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    Classify(err),
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// GetCode returns the code of the outermost AppError in the chain, the domain
// classification of a plain error, or "UNKNOWN" for nil
func GetCode(err error) string {
	if err == nil {
		return "UNKNOWN"
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return Classify(err)
}

// Classify maps domain sentinels onto error codes
func Classify(err error) string {
	switch {
	case stderrors.Is(err, core.ErrMalformedInput):
		return CodeMalformedInput
	case stderrors.Is(err, core.ErrMissingStratumData):
		return CodeMissingStratumData
	case stderrors.Is(err, core.ErrInconsistentApportionment):
		return CodeInconsistentApportionment
	default:
		return CodeInternalError
	}
}

// HTTPStatus maps an error code to a response status
func HTTPStatus(code string) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidInput, CodeMalformedInput:
		return http.StatusBadRequest
	case CodeMissingStratumData, CodeInconsistentApportionment:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Predefined error codes
const (
	CodeConfigInvalid             = "CONFIG_INVALID"
	CodeDatabaseError             = "DATABASE_ERROR"
	CodeNotFound                  = "NOT_FOUND"
	CodeInternalError             = "INTERNAL_ERROR"
	CodeInvalidInput              = "INVALID_INPUT"
	CodeDataLoad                  = "DATA_LOAD_ERROR"
	CodeMalformedInput            = "MALFORMED_INPUT"
	CodeMissingStratumData        = "MISSING_STRATUM_DATA"
	CodeInconsistentApportionment = "INCONSISTENT_APPORTIONMENT"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string, cause error) *AppError {
	return &AppError{Code: CodeDatabaseError, Message: message, Cause: cause}
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

// DataLoad reports a survey file that could not be read or parsed
func DataLoad(source string, cause error) *AppError {
	return &AppError{
		Code:    CodeDataLoad,
		Message: fmt.Sprintf("failed to load %s", source),
		Cause:   cause,
	}
}

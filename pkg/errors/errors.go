package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents application error codes. The same codes are used
// for HTTP responses and WebSocket error envelopes.
type ErrorCode string

const (
	ErrCodeAuthRequired   ErrorCode = "AUTH_REQUIRED"
	ErrCodeAccessDenied   ErrorCode = "ACCESS_DENIED"
	ErrCodeNoSuchCamera   ErrorCode = "NO_SUCH_CAMERA"
	ErrCodeNoSuchTarget   ErrorCode = "NO_SUCH_TARGET"
	ErrCodeInvalidMessage ErrorCode = "INVALID_MESSAGE"
	ErrCodeInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeRateLimit      ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
)

// AppError represents an application error with code and context.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Context:    make(map[string]interface{}),
	}
}

func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Cause:      err,
		Context:    make(map[string]interface{}),
	}
}

// Common error constructors.

func NewAuthRequiredError(message string) *AppError {
	return NewAppError(ErrCodeAuthRequired, message, http.StatusUnauthorized)
}

func NewAccessDeniedError(message string) *AppError {
	return NewAppError(ErrCodeAccessDenied, message, http.StatusForbidden)
}

func NewNoSuchCameraError(roomID string) *AppError {
	return NewAppError(ErrCodeNoSuchCamera, "camera not found", http.StatusNotFound).
		WithContext("room_id", roomID)
}

func NewNoSuchTargetError(target string) *AppError {
	return NewAppError(ErrCodeNoSuchTarget, "target connection not found", http.StatusNotFound).
		WithContext("target", target)
}

func NewInvalidMessageError(message string) *AppError {
	return NewAppError(ErrCodeInvalidMessage, message, http.StatusBadRequest)
}

func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewRateLimitError() *AppError {
	return NewAppError(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

// IsAppError checks if error is an AppError.
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError extracts AppError from error chain.
func GetAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	type unwrapper interface {
		Unwrap() error
	}

	if u, ok := err.(unwrapper); ok {
		return GetAppError(u.Unwrap())
	}

	return nil
}

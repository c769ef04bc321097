package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidQuery     = errors.New("invalid query")
	ErrUnsupportedModel = errors.New("operator not supported by retrieval model")
	ErrFieldMismatch    = errors.New("arguments must be in the same field")
	ErrInvalidInput     = errors.New("invalid input")
	ErrIndexUnavailable = errors.New("index unavailable")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// UnsupportedError records which operator was evaluated under which model.
type UnsupportedError struct {
	Operator string
	Model    string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("operator %s is not supported by the %s retrieval model", e.Operator, e.Model)
}

func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupportedModel
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidQuery), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnsupportedModel), errors.Is(err, ErrFieldMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrIndexUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

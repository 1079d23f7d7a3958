package http

import (
	"fmt"
	"net/http"
)

// AppError is an application error carrying the HTTP status and a stable
// machine-readable code that clients match on.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Field: field, Status: status}
}

// WithError attaches the underlying cause without exposing it in the body.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func NotFoundError(message string) *AppError {
	return NewAppError("not_found", "", message, http.StatusNotFound)
}

func BadRequestError(message string) *AppError {
	return NewAppError("bad_request", "", message, http.StatusBadRequest)
}

func InternalError(message string) *AppError {
	return NewAppError("internal", "", message, http.StatusInternalServerError)
}

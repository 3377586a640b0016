package http

import "net/http"

// AppError is a handler error the error handler knows how to render: the
// machine-readable code and params land in the envelope data, Status in
// the envelope status field.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
}

func (e *AppError) Error() string { return e.Message }

// WithParam attaches one detail key to the error and returns it for
// chaining.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = map[string]interface{}{key: value}
		return e
	}
	e.Params[key] = value
	return e
}

func NewAppError(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

func NotFoundError(message string) *AppError {
	return NewAppError("ERR_NOT_FOUND", message, http.StatusNotFound)
}
